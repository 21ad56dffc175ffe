package layout

// Mapper converts rectangles from the fixed physical screen layout into
// touch-device coordinate space. The two axes scale independently; the
// panel is mounted landscape under a portrait screen, so the factors differ.
type Mapper struct {
	xScale float64
	yScale float64
}

// NewMapper builds a mapper from the physical layout dimensions and the
// touch device's reported coordinate maxima.
func NewMapper(physicalWidth, physicalHeight, touchMaxX, touchMaxY int32) Mapper {
	return Mapper{
		xScale: float64(touchMaxX+1) / float64(physicalWidth),
		yScale: float64(touchMaxY+1) / float64(physicalHeight),
	}
}

// Point scales a physical point into touch space.
func (m Mapper) Point(x, y int32) (int32, int32) {
	return int32(float64(x) * m.xScale), int32(float64(y) * m.yScale)
}

// Rect scales a physical rectangle into touch space, corner by corner.
func (m Mapper) Rect(r Rect) Rect {
	x1, y1 := m.Point(r.X1, r.Y1)
	x2, y2 := m.Point(r.X2, r.Y2)
	return Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
}
