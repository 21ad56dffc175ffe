package layout

import (
	"testing"

	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Stock panel maxima used throughout the tests.
const (
	testMaxX = 799
	testMaxY = 479
)

func defaultCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := DefaultCatalog(testMaxX, testMaxY)
	require.NoError(t, err)
	return c
}

func TestMapperScalesAxesIndependently(t *testing.T) {
	m := NewMapper(PhysicalWidth, PhysicalHeight, testMaxX, testMaxY)

	x, y := m.Point(480, 800)
	assert.Equal(t, int32(800), x)
	assert.Equal(t, int32(480), y)

	x, y = m.Point(240, 400)
	assert.Equal(t, int32(400), x)
	assert.Equal(t, int32(240), y)

	r := m.Rect(Rect{0, 0, 480, 388})
	assert.Equal(t, Rect{0, 0, 800, 232}, r)
}

func TestHitTestSingleRegion(t *testing.T) {
	c := defaultCatalog(t)

	// Center of the A button in touch space.
	hits := c.HitTest(700, 330, 0)
	require.Len(t, hits, 1)
	assert.Equal(t, "A BTN", hits[0].Name)
}

func TestHitTestMissReturnsEmpty(t *testing.T) {
	c := defaultCatalog(t)

	// Dead zone between the viewport bottom and the button cluster.
	hits := c.HitTest(10, 250, 0)
	assert.Empty(t, hits)
	assert.False(t, c.InViewport(10, 250))
}

func TestHitTestComboZoneNeedsLargeContact(t *testing.T) {
	c := defaultCatalog(t)

	// Point inside the A button and the A+B combo box.
	small := c.HitTest(700, 330, DefaultComboSizeThreshold-1)
	require.Len(t, small, 1)
	assert.Equal(t, "A BTN", small[0].Name)

	large := c.HitTest(700, 330, DefaultComboSizeThreshold)
	require.Len(t, large, 2)
	// Insertion order: A BTN precedes B BTN in the catalog.
	assert.Equal(t, "A BTN", large[0].Name)
	assert.Equal(t, "B BTN", large[1].Name)
}

func TestHitTestDirectionalComboZone(t *testing.T) {
	c := defaultCatalog(t)

	// Center of RIGHT, which also sits inside the RIGHT+B combo box.
	large := c.HitTest(279, 338, DefaultComboSizeThreshold)
	require.Len(t, large, 2)
	assert.Equal(t, "B BTN", large[0].Name)
	assert.Equal(t, "RIGHT", large[1].Name)
	assert.True(t, large[1].Directional)
}

func TestViewportContains(t *testing.T) {
	c := defaultCatalog(t)

	assert.True(t, c.InViewport(400, 100))
	assert.True(t, c.InViewport(0, 0))
	assert.False(t, c.InViewport(400, 300))

	vp := c.Viewport()
	assert.Equal(t, "VIEWPORT", vp.Name)
	assert.Equal(t, []evdev.EvCode{evdev.KEY_ENTER}, vp.Keys.Codes())
}

func TestRegionLookup(t *testing.T) {
	c := defaultCatalog(t)

	r, ok := c.Region("SAVE")
	require.True(t, ok)
	assert.True(t, r.Keys.IsPair())
	assert.Equal(t, []evdev.EvCode{evdev.KEY_S, evdev.KEY_E}, r.Keys.Codes())

	_, ok = c.Region("NOPE")
	assert.False(t, ok)
}

func TestAllKeyCodesUniqueAndComplete(t *testing.T) {
	c := defaultCatalog(t)

	codes := c.AllKeyCodes()
	seen := make(map[evdev.EvCode]bool)
	for _, code := range codes {
		assert.False(t, seen[code], "duplicate code %v", code)
		seen[code] = true
	}

	// START and EXIT share KEY_ENTER with the viewport; arrows are always
	// registered for swipe emission.
	for _, want := range []evdev.EvCode{
		evdev.KEY_A, evdev.KEY_B, evdev.KEY_ENTER, evdev.KEY_LEFTCTRL,
		evdev.KEY_L, evdev.KEY_S, evdev.KEY_E,
		evdev.KEY_UP, evdev.KEY_DOWN, evdev.KEY_LEFT, evdev.KEY_RIGHT,
	} {
		assert.True(t, seen[want], "missing code %v", want)
	}
}

func TestNewCatalogRejectsBadInput(t *testing.T) {
	viewport := Region{Name: "VIEWPORT", Keys: Key(evdev.KEY_ENTER), Rect: Rect{0, 0, 10, 10}}
	valid := Region{Name: "A", Keys: Key(evdev.KEY_A), Rect: Rect{0, 0, 5, 5}}

	tests := []struct {
		name     string
		regions  []Region
		viewport Region
		combos   []ComboZone
	}{
		{"no regions", nil, viewport, nil},
		{"unnamed region", []Region{{Keys: Key(evdev.KEY_A), Rect: Rect{0, 0, 5, 5}}}, viewport, nil},
		{"duplicate name", []Region{valid, valid}, viewport, nil},
		{"inverted rect", []Region{{Name: "A", Keys: Key(evdev.KEY_A), Rect: Rect{5, 5, 0, 0}}}, viewport, nil},
		{"no binding", []Region{{Name: "A", Rect: Rect{0, 0, 5, 5}}}, viewport, nil},
		{"bad viewport", []Region{valid}, Region{Name: "V", Keys: Key(evdev.KEY_ENTER)}, nil},
		{"combo unknown region", []Region{valid}, viewport, []ComboZone{
			{Box: Rect{0, 0, 5, 5}, Regions: [2]string{"A", "B"}},
		}},
		{"combo invalid box", []Region{valid}, viewport, []ComboZone{
			{Box: Rect{5, 5, 0, 0}, Regions: [2]string{"A", "A"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.regions, tt.viewport, tt.combos, DefaultComboSizeThreshold)
			assert.Error(t, err)
		})
	}
}

func TestRectContainsInclusive(t *testing.T) {
	r := Rect{10, 20, 30, 40}
	assert.True(t, r.Contains(10, 20))
	assert.True(t, r.Contains(30, 40))
	assert.False(t, r.Contains(9, 20))
	assert.False(t, r.Contains(31, 40))
	assert.False(t, r.Contains(10, 41))
}
