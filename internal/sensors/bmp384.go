package sensors

import (
	"fmt"
	"time"
)

// BMP384 register map. The chip shares the BMP388 layout.
const (
	bmpRegChipID  = 0x00
	bmpRegStatus  = 0x03
	bmpRegData    = 0x04
	bmpRegPwrCtrl = 0x1B
	bmpRegOSR     = 0x1C
	bmpRegODR     = 0x1D
	bmpRegCalib   = 0x31
	bmpRegCmd     = 0x7E

	bmpChipID    = 0x50
	bmpCmdReset  = 0xB6
	bmpPwrNormal = 0x33 // pressure + temperature enabled, normal mode
)

// BMP384Addr is the barometer's address with SDO low.
const BMP384Addr uint16 = 0x77

// bmpCalib holds the floating-point compensation coefficients derived from
// the chip's NVM words, per the Bosch datasheet.
type bmpCalib struct {
	t1, t2, t3                         float64
	p1, p2, p3, p4, p5, p6, p7, p8, p9 float64
	p10, p11                           float64
}

// BMP384 reads barometric pressure. The cartridge detector watches it for
// the pressure spike of a blow into the cartridge slot.
type BMP384 struct {
	dev   *I2CDevice
	calib bmpCalib
}

// NewBMP384 opens and configures the barometer for continuous sampling.
func NewBMP384(bus string, addr uint16) (*BMP384, error) {
	dev, err := OpenI2C(bus, addr)
	if err != nil {
		return nil, err
	}

	b := &BMP384{dev: dev}
	if err := b.init(); err != nil {
		dev.Close()
		return nil, err
	}
	return b, nil
}

func (b *BMP384) init() error {
	id, err := b.dev.ReadReg(bmpRegChipID)
	if err != nil {
		return fmt.Errorf("barometer not responding: %w", err)
	}
	if id != bmpChipID {
		return fmt.Errorf("unexpected barometer chip id 0x%02x", id)
	}

	if err := b.dev.WriteReg(bmpRegCmd, bmpCmdReset); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)

	if err := b.readCalibration(); err != nil {
		return err
	}

	// 2x pressure oversampling, no temperature oversampling, 50 Hz.
	if err := b.dev.WriteReg(bmpRegOSR, 0x01); err != nil {
		return err
	}
	if err := b.dev.WriteReg(bmpRegODR, 0x02); err != nil {
		return err
	}
	return b.dev.WriteReg(bmpRegPwrCtrl, bmpPwrNormal)
}

func (b *BMP384) readCalibration() error {
	raw, err := b.dev.ReadRegs(bmpRegCalib, 21)
	if err != nil {
		return fmt.Errorf("read calibration: %w", err)
	}

	u16 := func(i int) uint16 { return uint16(raw[i]) | uint16(raw[i+1])<<8 }
	s16 := func(i int) int16 { return int16(u16(i)) }

	c := &b.calib
	c.t1 = float64(u16(0)) * 256 // / 2^-8
	c.t2 = float64(u16(2)) / 1073741824
	c.t3 = float64(int8(raw[4])) / 281474976710656
	c.p1 = (float64(s16(5)) - 16384) / 1048576
	c.p2 = (float64(s16(7)) - 16384) / 536870912
	c.p3 = float64(int8(raw[9])) / 4294967296
	c.p4 = float64(int8(raw[10])) / 137438953472
	c.p5 = float64(u16(11)) * 8 // / 2^-3
	c.p6 = float64(u16(13)) / 64
	c.p7 = float64(int8(raw[15])) / 256
	c.p8 = float64(int8(raw[16])) / 32768
	c.p9 = float64(s16(17)) / 281474976710656
	c.p10 = float64(int8(raw[19])) / 281474976710656
	c.p11 = float64(int8(raw[20])) / 36893488147419103232
	return nil
}

// ReadPressure returns the compensated pressure in hPa.
func (b *BMP384) ReadPressure() (float64, error) {
	raw, err := b.dev.ReadRegs(bmpRegData, 6)
	if err != nil {
		return 0, fmt.Errorf("read pressure: %w", err)
	}

	rawP := float64(uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16)
	rawT := float64(uint32(raw[3]) | uint32(raw[4])<<8 | uint32(raw[5])<<16)

	return b.calib.compensate(rawP, rawT) / 100, nil
}

// compensate applies the datasheet polynomial and returns pascals.
func (c *bmpCalib) compensate(rawP, rawT float64) float64 {
	// Temperature compensation, needed as input to the pressure polynomial.
	pd1 := rawT - c.t1
	pd2 := pd1 * c.t2
	tlin := pd2 + pd1*pd1*c.t3

	po1 := c.p6*tlin + c.p7*tlin*tlin + c.p8*tlin*tlin*tlin + c.p5
	po2 := rawP * (c.p2*tlin + c.p3*tlin*tlin + c.p4*tlin*tlin*tlin + c.p1)
	po3 := rawP * rawP * (c.p9 + c.p10*tlin)
	po4 := rawP * rawP * rawP * c.p11

	return po1 + po2 + po3 + po4
}

// Close releases the bus handle.
func (b *BMP384) Close() error {
	return b.dev.Close()
}
