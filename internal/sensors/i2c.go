// Package sensors talks to the handheld's I2C peripherals: the barometer
// behind the cartridge slot, the accelerometer, and the battery ADC.
package sensors

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// i2cSlave is the I2C_SLAVE ioctl request from linux/i2c-dev.h; the
// constant is not exported by golang.org/x/sys/unix.
const i2cSlave = 0x0703

// I2CDevice is one addressed peripheral on a Linux i2c-dev bus. Reads and
// writes are serialized; the kernel handles bus arbitration between
// processes.
type I2CDevice struct {
	mu   sync.Mutex
	f    *os.File
	bus  string
	addr uint16
}

// OpenI2C opens the i2c-dev node and binds the peripheral address.
func OpenI2C(bus string, addr uint16) (*I2CDevice, error) {
	f, err := os.OpenFile(bus, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %s: %w", bus, err)
	}
	if err := unix.IoctlSetInt(int(f.Fd()), i2cSlave, int(addr)); err != nil {
		f.Close()
		return nil, fmt.Errorf("bind i2c address 0x%02x on %s: %w", addr, bus, err)
	}
	return &I2CDevice{f: f, bus: bus, addr: addr}, nil
}

// WriteReg writes one register byte.
func (d *I2CDevice) WriteReg(reg, val byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.f.Write([]byte{reg, val}); err != nil {
		return fmt.Errorf("i2c write reg 0x%02x@0x%02x: %w", reg, d.addr, err)
	}
	return nil
}

// WriteRegs writes a register address followed by a payload.
func (d *I2CDevice) WriteRegs(reg byte, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := append([]byte{reg}, data...)
	if _, err := d.f.Write(buf); err != nil {
		return fmt.Errorf("i2c write regs 0x%02x@0x%02x: %w", reg, d.addr, err)
	}
	return nil
}

// ReadReg reads one register byte.
func (d *I2CDevice) ReadReg(reg byte) (byte, error) {
	buf, err := d.ReadRegs(reg, 1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadRegs reads n consecutive bytes starting at reg.
func (d *I2CDevice) ReadRegs(reg byte, n int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.f.Write([]byte{reg}); err != nil {
		return nil, fmt.Errorf("i2c select reg 0x%02x@0x%02x: %w", reg, d.addr, err)
	}
	buf := make([]byte, n)
	if _, err := d.f.Read(buf); err != nil {
		return nil, fmt.Errorf("i2c read reg 0x%02x@0x%02x: %w", reg, d.addr, err)
	}
	return buf, nil
}

// Close releases the bus handle.
func (d *I2CDevice) Close() error {
	return d.f.Close()
}
