// Package haptic drives the DRV2605 vibration motor controller over I2C.
package haptic

import (
	"fmt"

	"padkeyd/internal/logging"
	"padkeyd/internal/sensors"
)

// DRV2605 registers.
const (
	regStatus   = 0x00
	regMode     = 0x01
	regLibrary  = 0x03
	regWaveSeq0 = 0x04
	regWaveSeq1 = 0x05
	regGo       = 0x0C

	modeInternalTrigger = 0x00
	libraryA            = 0x01
)

// DefaultAddr is the DRV2605's fixed I2C address.
const DefaultAddr uint16 = 0x5A

// DefaultEffect is ROM effect 1, a single strong click.
const DefaultEffect byte = 1

// Driver plays a fixed click effect from the controller's ROM library.
// Pulse retriggers the sequencer; overlapping triggers restart the effect,
// which is the behavior wanted for rapid key presses.
type Driver struct {
	dev *sensors.I2CDevice
	log *logging.Logger
}

// New opens the controller and programs the click effect.
func New(bus string, addr uint16, effect byte, log *logging.Logger) (*Driver, error) {
	dev, err := sensors.OpenI2C(bus, addr)
	if err != nil {
		return nil, err
	}

	d := &Driver{dev: dev, log: log}
	if err := d.init(effect); err != nil {
		dev.Close()
		return nil, err
	}

	log.Info("haptic controller ready", "bus", bus, "addr", fmt.Sprintf("0x%02x", addr), "effect", effect)
	return d, nil
}

func (d *Driver) init(effect byte) error {
	if _, err := d.dev.ReadReg(regStatus); err != nil {
		return fmt.Errorf("haptic controller not responding: %w", err)
	}

	steps := []struct {
		reg, val byte
	}{
		{regMode, modeInternalTrigger},
		{regLibrary, libraryA},
		{regWaveSeq0, effect},
		{regWaveSeq1, 0}, // end of sequence
	}
	for _, s := range steps {
		if err := d.dev.WriteReg(s.reg, s.val); err != nil {
			return fmt.Errorf("haptic init: %w", err)
		}
	}
	return nil
}

// Pulse fires the programmed effect once.
func (d *Driver) Pulse() error {
	return d.dev.WriteReg(regGo, 1)
}

// Close releases the bus handle.
func (d *Driver) Close() error {
	return d.dev.Close()
}
