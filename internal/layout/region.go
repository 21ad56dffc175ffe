// Package layout defines the touch panel's hit regions and maps them from
// the physical screen layout into touch-device coordinate space.
package layout

import (
	"fmt"

	evdev "github.com/holoplot/go-evdev"
)

// Rect is an axis-aligned rectangle with inclusive bounds.
type Rect struct {
	X1, Y1, X2, Y2 int32
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(x, y int32) bool {
	return x >= r.X1 && x <= r.X2 && y >= r.Y1 && y <= r.Y2
}

// Valid reports whether the rectangle is normalized and non-empty.
func (r Rect) Valid() bool {
	return r.X1 < r.X2 && r.Y1 < r.Y2
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.X1, r.Y1, r.X2, r.Y2)
}

// KeyBinding is the key code or code pair bound to a region. Exactly two
// shapes occur: a single code, or a pair whose codes must always transition
// together as one logical button.
type KeyBinding struct {
	first  evdev.EvCode
	second evdev.EvCode
	pair   bool
}

// Key returns a binding for a single key code.
func Key(code evdev.EvCode) KeyBinding {
	return KeyBinding{first: code}
}

// KeyPair returns a binding for two key codes pressed and released together.
func KeyPair(a, b evdev.EvCode) KeyBinding {
	return KeyBinding{first: a, second: b, pair: true}
}

// Codes returns the bound key codes, one or two entries.
func (b KeyBinding) Codes() []evdev.EvCode {
	if b.pair {
		return []evdev.EvCode{b.first, b.second}
	}
	return []evdev.EvCode{b.first}
}

// IsPair reports whether the binding carries two codes.
func (b KeyBinding) IsPair() bool {
	return b.pair
}

// Zero reports whether the binding is unset.
func (b KeyBinding) Zero() bool {
	return !b.pair && b.first == 0
}

// Region is a named rectangular hit zone bound to one or two key codes.
// Rect is in touch-device coordinates. Directional regions get stricter
// release hysteresis in the slot state machine.
type Region struct {
	Name        string
	Keys        KeyBinding
	Rect        Rect
	Directional bool
}

// ComboZone forces two regions active together when a large contact lands
// inside its box. Box is in touch-device coordinates.
type ComboZone struct {
	Box     Rect
	Regions [2]string
}
