package sensors

import (
	"fmt"
	"time"
)

// BMA400 register map.
const (
	bmaRegChipID     = 0x00
	bmaRegAccData    = 0x04
	bmaRegAccConfig0 = 0x19
	bmaRegAccConfig1 = 0x1A

	bmaChipID     = 0x90
	bmaPwrNormal  = 0x02
	bmaRange2G100 = 0x48 // +/-2g range, 100 Hz ODR
)

// BMA400Addr is the accelerometer's address with SDO low.
const BMA400Addr uint16 = 0x14

// At +/-2g the 12-bit output resolves 1024 counts per g.
const bmaCountsPerG = 1024.0

// Accel is one acceleration sample in g.
type Accel struct {
	X, Y, Z float64
}

// BMA400 reads device orientation. The rotation watcher polls it to decide
// whether the handheld is held upright or sideways.
type BMA400 struct {
	dev *I2CDevice
}

// NewBMA400 opens and configures the accelerometer at +/-2g.
func NewBMA400(bus string, addr uint16) (*BMA400, error) {
	dev, err := OpenI2C(bus, addr)
	if err != nil {
		return nil, err
	}

	b := &BMA400{dev: dev}
	if err := b.init(); err != nil {
		dev.Close()
		return nil, err
	}
	return b, nil
}

func (b *BMA400) init() error {
	id, err := b.dev.ReadReg(bmaRegChipID)
	if err != nil {
		return fmt.Errorf("accelerometer not responding: %w", err)
	}
	if id != bmaChipID {
		return fmt.Errorf("unexpected accelerometer chip id 0x%02x", id)
	}

	if err := b.dev.WriteReg(bmaRegAccConfig0, bmaPwrNormal); err != nil {
		return err
	}
	// The chip needs a moment after leaving sleep before data is valid.
	time.Sleep(2 * time.Millisecond)
	return b.dev.WriteReg(bmaRegAccConfig1, bmaRange2G100)
}

// Read returns one acceleration sample in g.
func (b *BMA400) Read() (Accel, error) {
	raw, err := b.dev.ReadRegs(bmaRegAccData, 6)
	if err != nil {
		return Accel{}, fmt.Errorf("read acceleration: %w", err)
	}
	return Accel{
		X: float64(signExtend12(uint16(raw[0]) | uint16(raw[1])<<8)) / bmaCountsPerG,
		Y: float64(signExtend12(uint16(raw[2]) | uint16(raw[3])<<8)) / bmaCountsPerG,
		Z: float64(signExtend12(uint16(raw[4]) | uint16(raw[5])<<8)) / bmaCountsPerG,
	}, nil
}

// signExtend12 converts the chip's 12-bit two's complement sample.
func signExtend12(v uint16) int16 {
	v &= 0x0FFF
	if v&0x0800 != 0 {
		return int16(v) - 4096
	}
	return int16(v)
}

// Close releases the bus handle.
func (b *BMA400) Close() error {
	return b.dev.Close()
}
