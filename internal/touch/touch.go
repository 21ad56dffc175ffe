// Package touch translates a raw multitouch event stream into discrete
// virtual-keyboard key events and haptic pulses.
//
// The engine consumes packets from an abstract Source and emits key
// transitions to an abstract Sink. It tracks one state record per hardware
// multitouch slot, classifies each contact as button / viewport-gesture /
// neither, and guarantees that every press it emits is matched by exactly
// one release before the owning contact disappears.
package touch

import (
	"context"
	"time"

	"padkeyd/internal/layout"
)

// Axis identifies the abstract multitouch axes the engine understands.
// Any other axis in a packet is ignored.
type Axis int

const (
	// AxisUnknown is any axis the engine does not recognize.
	AxisUnknown Axis = iota
	// AxisSlot switches which slot subsequent events in the packet refer to.
	AxisSlot
	// AxisTrackingID starts a contact (non-negative) or ends it (negative).
	AxisTrackingID
	// AxisPositionX carries an absolute X coordinate in touch space.
	AxisPositionX
	// AxisPositionY carries an absolute Y coordinate in touch space.
	AxisPositionY
	// AxisContactSize carries the contact-major-axis size.
	AxisContactSize
)

// Event is one typed axis update.
type Event struct {
	Axis  Axis
	Value int32
}

// Packet is one frame of events, delivered in arrival order. The engine
// folds the whole packet into the slot table before re-classifying the
// affected slots.
type Packet struct {
	Events []Event
}

// Source delivers touch packets. ReadPacket blocks until the next packet
// arrives or the context is cancelled; it is the only place the consumer
// loop suspends.
type Source interface {
	ReadPacket(ctx context.Context) (Packet, error)
}

// Sink accepts key transitions and haptic pulse requests.
//
// SetKey applies a press or release for a single code or a code pair; the
// engine only calls it on genuine transitions. Sync flushes a batch of
// SetKey calls as one atomic update to downstream consumers. PulseHaptic is
// best-effort and must never block packet processing; implementations
// swallow and log their own failures.
type Sink interface {
	SetKey(keys layout.KeyBinding, down bool) error
	Sync() error
	PulseHaptic()
}

// Config holds the gesture detection thresholds. Distances are in
// touch-device units.
type Config struct {
	// SwipeMinDistance is the minimum horizontal travel for a swipe.
	SwipeMinDistance int32
	// SwipeMinVertical is the minimum vertical travel for a swipe.
	SwipeMinVertical int32
	// SwipeMaxOffAxis bounds travel on the perpendicular axis.
	SwipeMaxOffAxis int32
	// SwipeCooldown is the minimum interval between swipes from one slot.
	SwipeCooldown time.Duration
	// ViewportTapTimeout is the maximum contact duration for a tap.
	ViewportTapTimeout time.Duration
}

// DefaultConfig returns the tuned thresholds for the stock panel.
func DefaultConfig() Config {
	return Config{
		SwipeMinDistance:   60,
		SwipeMinVertical:   50,
		SwipeMaxOffAxis:    70,
		SwipeCooldown:      300 * time.Millisecond,
		ViewportTapTimeout: 150 * time.Millisecond,
	}
}

// Stats counts what the engine has emitted since start. Read once at
// shutdown for the session summary; no touch history is retained.
type Stats struct {
	Packets  uint64
	Presses  uint64
	Releases uint64
	Swipes   uint64
	Taps     uint64
}
