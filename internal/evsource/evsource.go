// Package evsource reads multitouch frames from a Linux evdev touch panel
// and exposes them as abstract packets for the translation engine.
package evsource

import (
	"context"
	"fmt"

	evdev "github.com/holoplot/go-evdev"

	"padkeyd/internal/logging"
	"padkeyd/internal/touch"
)

// Device wraps an evdev input device and groups its events into
// SYN_REPORT-delimited packets.
type Device struct {
	dev  *evdev.InputDevice
	path string
	log  *logging.Logger
}

// Open opens the touch device at path.
func Open(path string, log *logging.Logger) (*Device, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open touch device %s: %w", path, err)
	}

	name, err := dev.Name()
	if err != nil {
		name = "(unknown)"
	}
	log.Info("touch device opened", "path", path, "name", name)

	return &Device{dev: dev, path: path, log: log}, nil
}

// Name returns the device's reported name.
func (d *Device) Name() string {
	name, err := d.dev.Name()
	if err != nil {
		return ""
	}
	return name
}

// TouchRange reads the ABS_MT position maxima from the device. The
// coordinate mapper scales the physical layout against these.
func (d *Device) TouchRange() (maxX, maxY int32, err error) {
	infos, err := d.dev.AbsInfos()
	if err != nil {
		return 0, 0, fmt.Errorf("read abs info: %w", err)
	}
	xi, ok := infos[evdev.ABS_MT_POSITION_X]
	if !ok {
		return 0, 0, fmt.Errorf("device %s reports no ABS_MT_POSITION_X", d.path)
	}
	yi, ok := infos[evdev.ABS_MT_POSITION_Y]
	if !ok {
		return 0, 0, fmt.Errorf("device %s reports no ABS_MT_POSITION_Y", d.path)
	}
	return xi.Maximum, yi.Maximum, nil
}

// ReadPacket blocks until a full SYN_REPORT frame has been read, then
// returns it as an abstract packet. Axes the engine does not track are
// passed through as AxisUnknown so the engine's ignore path applies.
// Closing the device unblocks a pending read.
func (d *Device) ReadPacket(ctx context.Context) (touch.Packet, error) {
	if err := ctx.Err(); err != nil {
		return touch.Packet{}, err
	}

	var events []touch.Event
	for {
		ev, err := d.dev.ReadOne()
		if err != nil {
			if ctx.Err() != nil {
				return touch.Packet{}, ctx.Err()
			}
			return touch.Packet{}, fmt.Errorf("read touch event: %w", err)
		}

		switch ev.Type {
		case evdev.EV_SYN:
			if ev.Code == evdev.SYN_REPORT {
				if len(events) == 0 {
					continue
				}
				return touch.Packet{Events: events}, nil
			}

		case evdev.EV_ABS:
			events = append(events, touch.Event{
				Axis:  axisFor(ev.Code),
				Value: ev.Value,
			})
		}
	}
}

// Close releases the device handle, unblocking any pending ReadPacket.
func (d *Device) Close() error {
	return d.dev.Close()
}

func axisFor(code evdev.EvCode) touch.Axis {
	switch code {
	case evdev.ABS_MT_SLOT:
		return touch.AxisSlot
	case evdev.ABS_MT_TRACKING_ID:
		return touch.AxisTrackingID
	case evdev.ABS_MT_POSITION_X:
		return touch.AxisPositionX
	case evdev.ABS_MT_POSITION_Y:
		return touch.AxisPositionY
	case evdev.ABS_MT_TOUCH_MAJOR:
		return touch.AxisContactSize
	default:
		return touch.AxisUnknown
	}
}
