package layout

import (
	evdev "github.com/holoplot/go-evdev"
)

// Physical layout of the front panel overlay, in screen pixels. The screen
// is 480x800 portrait; the touch controller reports a 800x480 landscape
// coordinate space on top of it.
const (
	PhysicalWidth  = 480
	PhysicalHeight = 800
)

// DefaultComboSizeThreshold is the contact-major size at or above which a
// contact inside a combo zone registers both of the zone's buttons.
const DefaultComboSizeThreshold = 40

// physicalRegions is the button overlay as printed on the panel. LOAD, SAVE
// and EXIT chord with KEY_E, which the emulator binds as its hotkey enable.
var physicalRegions = []Region{
	{Name: "LOAD", Keys: KeyPair(evdev.KEY_L, evdev.KEY_E), Rect: Rect{39, 388, 159, 437}},
	{Name: "A BTN", Keys: Key(evdev.KEY_A), Rect: Rect{355, 508, 458, 609}},
	{Name: "B BTN", Keys: Key(evdev.KEY_B), Rect: Rect{250, 509, 351, 608}},
	{Name: "START", Keys: Key(evdev.KEY_ENTER), Rect: Rect{240, 685, 337, 728}},
	{Name: "SELECT", Keys: Key(evdev.KEY_LEFTCTRL), Rect: Rect{156, 686, 240, 731}},
	{Name: "RIGHT", Keys: Key(evdev.KEY_RIGHT), Rect: Rect{117, 534, 218, 594}, Directional: true},
	{Name: "UP", Keys: Key(evdev.KEY_UP), Rect: Rect{79, 464, 162, 522}, Directional: true},
	{Name: "LEFT", Keys: Key(evdev.KEY_LEFT), Rect: Rect{22, 523, 96, 594}, Directional: true},
	{Name: "DOWN", Keys: Key(evdev.KEY_DOWN), Rect: Rect{87, 594, 159, 658}, Directional: true},
	{Name: "SAVE", Keys: KeyPair(evdev.KEY_S, evdev.KEY_E), Rect: Rect{168, 388, 309, 437}},
	{Name: "EXIT", Keys: KeyPair(evdev.KEY_ENTER, evdev.KEY_E), Rect: Rect{319, 388, 456, 438}},
}

// physicalViewport covers the game display area above the button overlay.
// It never emits a direct button; taps and swipes inside it are translated
// by the gesture detector.
var physicalViewport = Region{
	Name: "VIEWPORT",
	Keys: Key(evdev.KEY_ENTER),
	Rect: Rect{0, 0, 480, 388},
}

// physicalCombos are the overlap boxes where a fat contact should press two
// adjacent buttons at once: the A/B face button pair, and the RIGHT+B
// diagonal used while running.
var physicalCombos = []ComboZone{
	{Box: Rect{250, 508, 458, 609}, Regions: [2]string{"A BTN", "B BTN"}},
	{Box: Rect{138, 505, 339, 607}, Regions: [2]string{"RIGHT", "B BTN"}},
}

// DefaultCatalog builds the built-in catalog scaled into the touch space
// described by the device's axis maxima.
func DefaultCatalog(touchMaxX, touchMaxY int32) (*Catalog, error) {
	m := NewMapper(PhysicalWidth, PhysicalHeight, touchMaxX, touchMaxY)

	regions := make([]Region, len(physicalRegions))
	for i, r := range physicalRegions {
		r.Rect = m.Rect(r.Rect)
		regions[i] = r
	}

	viewport := physicalViewport
	viewport.Rect = m.Rect(viewport.Rect)

	combos := make([]ComboZone, len(physicalCombos))
	for i, cz := range physicalCombos {
		cz.Box = m.Rect(cz.Box)
		combos[i] = cz
	}

	return NewCatalog(regions, viewport, combos, DefaultComboSizeThreshold)
}

// AllKeyCodes returns every key code the catalog can emit, including the
// viewport tap key. The virtual keyboard registers exactly these.
func (c *Catalog) AllKeyCodes() []evdev.EvCode {
	seen := make(map[evdev.EvCode]bool)
	var codes []evdev.EvCode
	add := func(b KeyBinding) {
		for _, code := range b.Codes() {
			if !seen[code] {
				seen[code] = true
				codes = append(codes, code)
			}
		}
	}
	for _, r := range c.regions {
		add(r.Keys)
	}
	add(c.viewport.Keys)
	// Swipe emission uses the arrow keys whether or not a directional
	// region is configured.
	add(Key(evdev.KEY_LEFT))
	add(Key(evdev.KEY_RIGHT))
	add(Key(evdev.KEY_UP))
	add(Key(evdev.KEY_DOWN))
	return codes
}
