package sensors

import (
	"fmt"
	"time"
)

// ADS1115 registers.
const (
	adsRegConversion = 0x00
	adsRegConfig     = 0x01
)

// ADS1115Addr is the ADC's address with ADDR tied to ground.
const ADS1115Addr uint16 = 0x48

// Single-shot, +/-4.096V full scale, 128 SPS, comparator off. The
// single-ended channel mux bits are or-ed in per conversion.
const adsConfigBase uint16 = 0x8383

// adsFullScale is the measurable range in volts at the configured gain.
const adsFullScale = 4.096

// ADS1115 reads single-ended voltages. The battery watcher samples the
// channel wired to the pack through a divider sized to stay under full
// scale.
type ADS1115 struct {
	dev *I2CDevice
}

// NewADS1115 opens the ADC.
func NewADS1115(bus string, addr uint16) (*ADS1115, error) {
	dev, err := OpenI2C(bus, addr)
	if err != nil {
		return nil, err
	}
	return &ADS1115{dev: dev}, nil
}

// ReadVoltage runs one single-shot conversion on the given channel (0-3)
// and returns the measured voltage.
func (a *ADS1115) ReadVoltage(channel int) (float64, error) {
	if channel < 0 || channel > 3 {
		return 0, fmt.Errorf("adc channel %d out of range", channel)
	}

	cfg := adsConfigFor(channel)
	if err := a.dev.WriteRegs(adsRegConfig, []byte{byte(cfg >> 8), byte(cfg)}); err != nil {
		return 0, fmt.Errorf("start conversion: %w", err)
	}

	// 128 SPS finishes in under 8 ms; wait for the OS bit to confirm.
	deadline := time.Now().Add(50 * time.Millisecond)
	for {
		time.Sleep(8 * time.Millisecond)
		buf, err := a.dev.ReadRegs(adsRegConfig, 2)
		if err != nil {
			return 0, fmt.Errorf("poll conversion: %w", err)
		}
		if buf[0]&0x80 != 0 {
			break
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("conversion timed out on channel %d", channel)
		}
	}

	buf, err := a.dev.ReadRegs(adsRegConversion, 2)
	if err != nil {
		return 0, fmt.Errorf("read conversion: %w", err)
	}
	raw := int16(uint16(buf[0])<<8 | uint16(buf[1]))
	return adsVolts(raw), nil
}

// adsConfigFor builds the config word for a single-ended conversion on the
// given channel. Mux 100+channel selects AINx against ground.
func adsConfigFor(channel int) uint16 {
	return adsConfigBase | uint16(4+channel)<<12
}

// adsVolts converts a signed conversion result to volts.
func adsVolts(raw int16) float64 {
	return float64(raw) * adsFullScale / 32768
}

// Close releases the bus handle.
func (a *ADS1115) Close() error {
	return a.dev.Close()
}
