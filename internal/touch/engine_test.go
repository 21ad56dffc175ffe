package touch

import (
	"context"
	"errors"
	"testing"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"padkeyd/internal/layout"
	"padkeyd/internal/logging"
)

// Touch-space anchor points on the stock layout (panel maxima 799x479).
const (
	aButtonX, aButtonY = 700, 330 // A button, inside the A+B combo box
	bButtonX, bButtonY = 560, 330 // B button only
	rightX, rightY     = 279, 338 // RIGHT pad, inside the RIGHT+B combo box
	viewX, viewY       = 400, 100 // viewport, far from any button
	deadX, deadY       = 10, 250  // outside every region and the viewport
)

type sinkOp struct {
	code evdev.EvCode
	down bool
}

// fakeSink records transitions and tracks which codes are logically down.
type fakeSink struct {
	ops    []sinkOp
	down   map[evdev.EvCode]bool
	syncs  int
	pulses int
	err    error
}

func newFakeSink() *fakeSink {
	return &fakeSink{down: make(map[evdev.EvCode]bool)}
}

func (f *fakeSink) SetKey(keys layout.KeyBinding, down bool) error {
	for _, code := range keys.Codes() {
		f.ops = append(f.ops, sinkOp{code, down})
		f.down[code] = down
	}
	return f.err
}

func (f *fakeSink) Sync() error { f.syncs++; return nil }
func (f *fakeSink) PulseHaptic() { f.pulses++ }

func (f *fakeSink) anyDown() bool {
	for _, d := range f.down {
		if d {
			return true
		}
	}
	return false
}

type testClock struct {
	now time.Time
}

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine(t *testing.T) (*Engine, *fakeSink, *testClock) {
	t.Helper()
	catalog, err := layout.DefaultCatalog(799, 479)
	require.NoError(t, err)

	sink := newFakeSink()
	clock := &testClock{now: time.Unix(1000, 0)}
	e := NewEngine(catalog, DefaultConfig(), sink, logging.Default())
	e.now = func() time.Time { return clock.now }
	return e, sink, clock
}

func packet(events ...Event) Packet {
	return Packet{Events: events}
}

func ev(axis Axis, value int32) Event {
	return Event{Axis: axis, Value: value}
}

// beginContact is the usual first frame of a new contact.
func beginContact(slot, id, x, y int32) Packet {
	return packet(
		ev(AxisSlot, slot),
		ev(AxisTrackingID, id),
		ev(AxisPositionX, x),
		ev(AxisPositionY, y),
	)
}

func moveTo(slot, x, y int32) Packet {
	return packet(
		ev(AxisSlot, slot),
		ev(AxisPositionX, x),
		ev(AxisPositionY, y),
	)
}

func endContact(slot int32) Packet {
	return packet(ev(AxisSlot, slot), ev(AxisTrackingID, -1))
}

func TestButtonPressAndRelease(t *testing.T) {
	e, sink, _ := newTestEngine(t)

	e.ProcessPacket(beginContact(0, 1, aButtonX, aButtonY))
	require.Equal(t, []sinkOp{{evdev.KEY_A, true}}, sink.ops)
	assert.Equal(t, 1, sink.pulses)
	assert.Equal(t, 1, sink.syncs)

	e.ProcessPacket(endContact(0))
	require.Equal(t, []sinkOp{{evdev.KEY_A, true}, {evdev.KEY_A, false}}, sink.ops)
	assert.Equal(t, 2, sink.syncs)
	assert.False(t, sink.anyDown())
}

func TestKeyPairPressedTogether(t *testing.T) {
	e, sink, _ := newTestEngine(t)

	// SAVE in touch space: physical (168,388)-(309,437) scales to x 280..515, y 232..262.
	e.ProcessPacket(beginContact(0, 1, 400, 245))
	require.Equal(t, []sinkOp{{evdev.KEY_S, true}, {evdev.KEY_E, true}}, sink.ops)
	// A pair is one logical press: one pulse.
	assert.Equal(t, 1, sink.pulses)

	e.ProcessPacket(endContact(0))
	assert.False(t, sink.anyDown())
}

func TestHoldWithoutMotionEmitsNothing(t *testing.T) {
	e, sink, _ := newTestEngine(t)

	e.ProcessPacket(beginContact(0, 1, aButtonX, aButtonY))
	opsAfterPress := len(sink.ops)
	syncsAfterPress := sink.syncs

	// Jitter-free re-reports inside the same region.
	e.ProcessPacket(moveTo(0, aButtonX+1, aButtonY))
	e.ProcessPacket(moveTo(0, aButtonX, aButtonY+1))

	assert.Equal(t, opsAfterPress, len(sink.ops))
	assert.Equal(t, syncsAfterPress, sink.syncs)
}

func TestSlideBetweenButtons(t *testing.T) {
	e, sink, _ := newTestEngine(t)

	e.ProcessPacket(beginContact(0, 1, rightX, rightY))
	require.Equal(t, []sinkOp{{evdev.KEY_RIGHT, true}}, sink.ops)

	// Slide off the pad onto B: directional release precedes the new press.
	e.ProcessPacket(moveTo(0, bButtonX, bButtonY))
	require.Equal(t, []sinkOp{
		{evdev.KEY_RIGHT, true},
		{evdev.KEY_RIGHT, false},
		{evdev.KEY_B, true},
	}, sink.ops)

	e.ProcessPacket(endContact(0))
	assert.False(t, sink.anyDown())
}

func TestComboPressesBothButtons(t *testing.T) {
	e, sink, _ := newTestEngine(t)

	e.ProcessPacket(packet(
		ev(AxisSlot, 0),
		ev(AxisTrackingID, 1),
		ev(AxisPositionX, aButtonX),
		ev(AxisPositionY, aButtonY),
		ev(AxisContactSize, 40),
	))
	require.Equal(t, []sinkOp{{evdev.KEY_A, true}, {evdev.KEY_B, true}}, sink.ops)
	assert.Equal(t, 2, sink.pulses)

	// Contact shrinks below the threshold: the forced button releases.
	e.ProcessPacket(packet(
		ev(AxisSlot, 0),
		ev(AxisContactSize, 10),
	))
	require.Equal(t, []sinkOp{
		{evdev.KEY_A, true},
		{evdev.KEY_B, true},
		{evdev.KEY_B, false},
	}, sink.ops)

	e.ProcessPacket(endContact(0))
	assert.False(t, sink.anyDown())
}

func TestSwipeRightWithRebase(t *testing.T) {
	e, sink, clock := newTestEngine(t)

	e.ProcessPacket(beginContact(0, 1, viewX, viewY))
	assert.Empty(t, sink.ops)

	// Travel past the horizontal threshold: one discrete right step.
	e.ProcessPacket(moveTo(0, viewX+61, viewY))
	require.Equal(t, []sinkOp{{evdev.KEY_RIGHT, true}, {evdev.KEY_RIGHT, false}}, sink.ops)
	assert.Equal(t, 1, sink.syncs)

	// Same travel again inside the cooldown: suppressed.
	e.ProcessPacket(moveTo(0, viewX+122, viewY))
	assert.Len(t, sink.ops, 2)

	// After the cooldown the origin has been rebased to the last swipe
	// point, so the accumulated travel counts from there.
	clock.advance(301 * time.Millisecond)
	e.ProcessPacket(moveTo(0, viewX+123, viewY))
	require.Equal(t, []sinkOp{
		{evdev.KEY_RIGHT, true}, {evdev.KEY_RIGHT, false},
		{evdev.KEY_RIGHT, true}, {evdev.KEY_RIGHT, false},
	}, sink.ops)

	e.ProcessPacket(endContact(0))
	assert.False(t, sink.anyDown())
}

func TestSwipeDirections(t *testing.T) {
	tests := []struct {
		name   string
		dx, dy int32
		key    evdev.EvCode
	}{
		{"right", 61, 0, evdev.KEY_RIGHT},
		{"left", -61, 0, evdev.KEY_LEFT},
		{"down", 0, 51, evdev.KEY_DOWN},
		{"up", 0, -51, evdev.KEY_UP},
		// Qualifies both ways; the horizontal check runs first.
		{"diagonal prefers horizontal", 65, 60, evdev.KEY_RIGHT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, sink, _ := newTestEngine(t)

			// Start mid-viewport so negative travel stays inside it.
			e.ProcessPacket(beginContact(0, 1, viewX, viewY))
			e.ProcessPacket(moveTo(0, viewX+tt.dx, viewY+tt.dy))
			require.Equal(t, []sinkOp{{tt.key, true}, {tt.key, false}}, sink.ops)
		})
	}
}

func TestSwipeOffAxisRejected(t *testing.T) {
	e, sink, _ := newTestEngine(t)

	e.ProcessPacket(beginContact(0, 1, viewX, viewY))
	// Too much travel on both axes: neither check passes.
	e.ProcessPacket(moveTo(0, viewX+80, viewY+80))
	assert.Empty(t, sink.ops)
}

func TestViewportTap(t *testing.T) {
	e, sink, clock := newTestEngine(t)

	e.ProcessPacket(beginContact(0, 1, viewX, viewY))
	clock.advance(100 * time.Millisecond)
	e.ProcessPacket(endContact(0))

	require.Equal(t, []sinkOp{{evdev.KEY_ENTER, true}, {evdev.KEY_ENTER, false}}, sink.ops)
	assert.Equal(t, 1, sink.pulses)
	assert.False(t, sink.anyDown())
}

func TestViewportLongHoldIsNoTap(t *testing.T) {
	e, sink, clock := newTestEngine(t)

	e.ProcessPacket(beginContact(0, 1, viewX, viewY))
	clock.advance(150 * time.Millisecond)
	e.ProcessPacket(endContact(0))
	assert.Empty(t, sink.ops)
}

func TestSwipeSuppressesTap(t *testing.T) {
	e, sink, clock := newTestEngine(t)

	e.ProcessPacket(beginContact(0, 1, viewX, viewY))
	e.ProcessPacket(moveTo(0, viewX+61, viewY))
	require.Len(t, sink.ops, 2)

	clock.advance(50 * time.Millisecond)
	e.ProcessPacket(endContact(0))
	// Still just the swipe pair, no tap.
	assert.Len(t, sink.ops, 2)
}

func TestButtonDragIntoViewport(t *testing.T) {
	e, sink, clock := newTestEngine(t)

	// Press SELECT, then drag up into the viewport.
	e.ProcessPacket(beginContact(0, 1, 300, 420))
	require.Equal(t, []sinkOp{{evdev.KEY_LEFTCTRL, true}}, sink.ops)

	e.ProcessPacket(moveTo(0, viewX, viewY))
	// The button releases on entry.
	require.Equal(t, []sinkOp{
		{evdev.KEY_LEFTCTRL, true},
		{evdev.KEY_LEFTCTRL, false},
	}, sink.ops)

	// A long drag inside the viewport: still attributed to the button,
	// so no swipe fires.
	e.ProcessPacket(moveTo(0, viewX+100, viewY))
	assert.Len(t, sink.ops, 2)

	// And no tap on lift either.
	clock.advance(50 * time.Millisecond)
	e.ProcessPacket(endContact(0))
	assert.Len(t, sink.ops, 2)
	assert.False(t, sink.anyDown())
}

func TestButtonFlagClearsOutsideAllRegions(t *testing.T) {
	e, sink, clock := newTestEngine(t)

	e.ProcessPacket(beginContact(0, 1, aButtonX, aButtonY))
	e.ProcessPacket(moveTo(0, deadX, deadY))
	require.Equal(t, []sinkOp{{evdev.KEY_A, true}, {evdev.KEY_A, false}}, sink.ops)

	// Passing through the dead zone cleared the button attribution, so a
	// quick lift in the viewport counts as a tap again.
	e.ProcessPacket(moveTo(0, viewX, viewY))
	clock.advance(50 * time.Millisecond)
	e.ProcessPacket(endContact(0))
	require.Equal(t, []sinkOp{
		{evdev.KEY_A, true}, {evdev.KEY_A, false},
		{evdev.KEY_ENTER, true}, {evdev.KEY_ENTER, false},
	}, sink.ops)
}

func TestTwoSlotsIndependent(t *testing.T) {
	e, sink, _ := newTestEngine(t)

	e.ProcessPacket(packet(
		ev(AxisSlot, 0),
		ev(AxisTrackingID, 1),
		ev(AxisPositionX, aButtonX),
		ev(AxisPositionY, aButtonY),
		ev(AxisSlot, 1),
		ev(AxisTrackingID, 2),
		ev(AxisPositionX, rightX),
		ev(AxisPositionY, rightY),
	))
	require.Equal(t, []sinkOp{{evdev.KEY_A, true}, {evdev.KEY_RIGHT, true}}, sink.ops)
	assert.Equal(t, 1, sink.syncs)

	// Lifting one finger leaves the other's key held.
	e.ProcessPacket(endContact(1))
	assert.True(t, sink.down[evdev.KEY_A])
	assert.False(t, sink.down[evdev.KEY_RIGHT])

	e.ProcessPacket(endContact(0))
	assert.False(t, sink.anyDown())
}

func TestPositionBeforeTrackingID(t *testing.T) {
	e, sink, _ := newTestEngine(t)

	// Some panels report position before the first tracking id. The slot
	// is created on demand and the press still fires.
	e.ProcessPacket(packet(
		ev(AxisSlot, 0),
		ev(AxisPositionX, aButtonX),
		ev(AxisPositionY, aButtonY),
	))
	require.Equal(t, []sinkOp{{evdev.KEY_A, true}}, sink.ops)

	e.ProcessPacket(endContact(0))
	assert.False(t, sink.anyDown())
}

func TestSingleAxisReportIgnoredUntilPositioned(t *testing.T) {
	e, sink, _ := newTestEngine(t)

	e.ProcessPacket(packet(ev(AxisSlot, 0), ev(AxisPositionX, aButtonX)))
	assert.Empty(t, sink.ops)
	assert.Equal(t, 0, sink.syncs)

	e.ProcessPacket(packet(ev(AxisSlot, 0), ev(AxisPositionY, aButtonY)))
	require.Equal(t, []sinkOp{{evdev.KEY_A, true}}, sink.ops)
}

func TestUnknownAxisIgnored(t *testing.T) {
	e, sink, _ := newTestEngine(t)

	e.ProcessPacket(packet(ev(AxisUnknown, 12345)))
	assert.Empty(t, sink.ops)
	assert.Equal(t, 0, sink.syncs)
}

func TestEndContactInSamePacket(t *testing.T) {
	e, sink, _ := newTestEngine(t)

	// Begin and end in one frame: classification runs after the fold, so
	// the drained slot never presses anything and nothing is left down.
	e.ProcessPacket(packet(
		ev(AxisSlot, 0),
		ev(AxisTrackingID, 1),
		ev(AxisPositionX, aButtonX),
		ev(AxisPositionY, aButtonY),
		ev(AxisTrackingID, -1),
	))
	assert.False(t, sink.anyDown())
}

func TestReleaseAll(t *testing.T) {
	e, sink, _ := newTestEngine(t)

	e.ProcessPacket(beginContact(0, 1, aButtonX, aButtonY))
	e.ProcessPacket(packet(
		ev(AxisSlot, 1),
		ev(AxisTrackingID, 2),
		ev(AxisPositionX, rightX),
		ev(AxisPositionY, rightY),
	))
	require.True(t, sink.anyDown())

	e.ReleaseAll()
	assert.False(t, sink.anyDown())
}

func TestSinkErrorDoesNotStopReleases(t *testing.T) {
	e, sink, _ := newTestEngine(t)

	e.ProcessPacket(packet(
		ev(AxisSlot, 0),
		ev(AxisTrackingID, 1),
		ev(AxisPositionX, aButtonX),
		ev(AxisPositionY, aButtonY),
		ev(AxisContactSize, 40),
	))
	require.Len(t, sink.ops, 2)

	// Every release is still attempted when the sink fails.
	sink.err = errors.New("device gone")
	e.ProcessPacket(endContact(0))
	assert.Len(t, sink.ops, 4)
}

type scriptedSource struct {
	packets []Packet
}

func (s *scriptedSource) ReadPacket(ctx context.Context) (Packet, error) {
	if len(s.packets) == 0 {
		return Packet{}, context.Canceled
	}
	p := s.packets[0]
	s.packets = s.packets[1:]
	return p, nil
}

func TestRunDrainsAndReleasesOnSourceEnd(t *testing.T) {
	e, sink, _ := newTestEngine(t)

	src := &scriptedSource{packets: []Packet{
		beginContact(0, 1, aButtonX, aButtonY),
		moveTo(0, bButtonX, bButtonY),
	}}

	err := e.Run(context.Background(), src)
	require.NoError(t, err)

	// The held B key from the last packet was released on the way out.
	assert.False(t, sink.anyDown())

	stats := e.Stats()
	assert.Equal(t, uint64(2), stats.Packets)
	assert.Equal(t, stats.Presses, stats.Releases)
}

func TestRunPropagatesSourceFailure(t *testing.T) {
	e, _, _ := newTestEngine(t)

	wantErr := errors.New("read failed")
	err := e.Run(context.Background(), failingSource{err: wantErr})
	assert.ErrorIs(t, err, wantErr)
}

type failingSource struct {
	err error
}

func (s failingSource) ReadPacket(ctx context.Context) (Packet, error) {
	return Packet{}, s.err
}
