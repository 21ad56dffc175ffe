// Package systemd controls units and system power state over D-Bus. The
// monitors use it to bounce the frontend, the emulator, and the touch
// translator, and to power the handheld off on a dead battery.
package systemd

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"padkeyd/internal/logging"
)

const (
	systemdDest = "org.freedesktop.systemd1"
	systemdPath = "/org/freedesktop/systemd1"
	managerIntf = "org.freedesktop.systemd1.Manager"

	loginDest = "org.freedesktop.login1"
	loginPath = "/org/freedesktop/login1"
	loginIntf = "org.freedesktop.login1.Manager"
)

// Conn wraps a system bus connection.
type Conn struct {
	bus *dbus.Conn
	log *logging.Logger
}

// Connect opens the system bus.
func Connect(log *logging.Logger) (*Conn, error) {
	bus, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	return &Conn{bus: bus, log: log}, nil
}

// StartUnit starts a unit, replacing any queued conflicting job.
func (c *Conn) StartUnit(name string) error {
	return c.unitCall("StartUnit", name)
}

// StopUnit stops a unit.
func (c *Conn) StopUnit(name string) error {
	return c.unitCall("StopUnit", name)
}

// RestartUnit restarts a unit, starting it if it was not running.
func (c *Conn) RestartUnit(name string) error {
	return c.unitCall("RestartUnit", name)
}

func (c *Conn) unitCall(method, name string) error {
	obj := c.bus.Object(systemdDest, dbus.ObjectPath(systemdPath))
	var job dbus.ObjectPath
	call := obj.Call(managerIntf+"."+method, 0, name, "replace")
	if err := call.Store(&job); err != nil {
		return fmt.Errorf("%s %s: %w", method, name, err)
	}
	c.log.Debug("unit job queued", "method", method, "unit", name, "job", string(job))
	return nil
}

// KillUnit sends a signal to a unit's main process.
func (c *Conn) KillUnit(name string, signal int32) error {
	obj := c.bus.Object(systemdDest, dbus.ObjectPath(systemdPath))
	call := obj.Call(managerIntf+".KillUnit", 0, name, "main", signal)
	if call.Err != nil {
		return fmt.Errorf("KillUnit %s: %w", name, call.Err)
	}
	return nil
}

// PowerOff asks logind to power the machine off. The interactive flag is
// false: no polkit prompt, this runs headless.
func (c *Conn) PowerOff() error {
	obj := c.bus.Object(loginDest, dbus.ObjectPath(loginPath))
	call := obj.Call(loginIntf+".PowerOff", 0, false)
	if call.Err != nil {
		return fmt.Errorf("power off: %w", call.Err)
	}
	return nil
}

// Close releases the bus connection.
func (c *Conn) Close() error {
	return c.bus.Close()
}
