// Package keysink emits key transitions through a uinput virtual keyboard
// and forwards haptic pulse requests to the vibration driver.
package keysink

import (
	"fmt"

	evdev "github.com/holoplot/go-evdev"

	"padkeyd/internal/layout"
	"padkeyd/internal/logging"
)

// Pulser fires one haptic pulse. Implementations own their timing.
type Pulser interface {
	Pulse() error
}

// Keyboard is a uinput-backed virtual keyboard. SetKey and Sync map
// directly onto EV_KEY and SYN_REPORT writes, so downstream readers see
// each packet's transitions as one atomic frame.
type Keyboard struct {
	dev    *evdev.InputDevice
	haptic Pulser
	log    *logging.Logger
}

// New creates the virtual keyboard, registering exactly the given key
// codes. haptic may be nil when no vibration hardware is present.
func New(name string, codes []evdev.EvCode, haptic Pulser, log *logging.Logger) (*Keyboard, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("virtual keyboard needs at least one key code")
	}

	dev, err := evdev.CreateDevice(name, evdev.InputID{
		BusType: 0x06, // BUS_VIRTUAL
		Vendor:  0x1209,
		Product: 0x0001,
		Version: 1,
	}, map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: codes,
	})
	if err != nil {
		return nil, fmt.Errorf("create virtual keyboard: %w", err)
	}

	log.Info("virtual keyboard created", "name", name, "keys", len(codes))
	return &Keyboard{dev: dev, haptic: haptic, log: log}, nil
}

// SetKey writes one EV_KEY transition per bound code. A pair binding
// writes both codes back to back so they always travel in the same frame.
func (k *Keyboard) SetKey(keys layout.KeyBinding, down bool) error {
	var value int32
	if down {
		value = 1
	}
	for _, code := range keys.Codes() {
		ev := evdev.InputEvent{
			Type:  evdev.EV_KEY,
			Code:  code,
			Value: value,
		}
		if err := k.dev.WriteOne(&ev); err != nil {
			return fmt.Errorf("write key event: %w", err)
		}
	}
	return nil
}

// Sync flushes the pending transitions with a SYN_REPORT.
func (k *Keyboard) Sync() error {
	ev := evdev.InputEvent{
		Type: evdev.EV_SYN,
		Code: evdev.SYN_REPORT,
	}
	if err := k.dev.WriteOne(&ev); err != nil {
		return fmt.Errorf("write sync event: %w", err)
	}
	return nil
}

// PulseHaptic requests one vibration pulse. Failures are logged and
// dropped; feedback never stalls key emission.
func (k *Keyboard) PulseHaptic() {
	if k.haptic == nil {
		return
	}
	if err := k.haptic.Pulse(); err != nil {
		k.log.Warn("haptic pulse failed", "error", err)
	}
}

// Close destroys the virtual device.
func (k *Keyboard) Close() error {
	return k.dev.Close()
}
