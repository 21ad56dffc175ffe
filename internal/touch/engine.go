package touch

import (
	"context"
	"errors"
	"time"

	evdev "github.com/holoplot/go-evdev"

	"padkeyd/internal/layout"
	"padkeyd/internal/logging"
)

// Engine folds touch packets into the slot table and emits key transitions.
// It is single-threaded: Run is the only consumer, all state mutation
// happens between reads, and no locking is needed.
type Engine struct {
	catalog *layout.Catalog
	cfg     Config
	sink    Sink
	log     *logging.Logger

	slots       map[int32]*slotState
	currentSlot int32

	stats Stats

	// keyChanged is set while processing a packet whenever a transition was
	// emitted; it gates the end-of-packet Sync.
	keyChanged bool

	// now is replaced in tests.
	now func() time.Time
}

// NewEngine creates an engine over the given catalog and sink.
func NewEngine(catalog *layout.Catalog, cfg Config, sink Sink, log *logging.Logger) *Engine {
	return &Engine{
		catalog: catalog,
		cfg:     cfg,
		sink:    sink,
		log:     log,
		slots:   make(map[int32]*slotState),
		now:     time.Now,
	}
}

// Run consumes packets until the context is cancelled or the source fails.
// Each packet's transition sequence runs to completion before cancellation
// is honored; on the way out every slot's active buttons are released so no
// key is left logically down.
func (e *Engine) Run(ctx context.Context, src Source) error {
	defer e.ReleaseAll()

	for {
		pkt, err := src.ReadPacket(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		e.ProcessPacket(pkt)

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// ProcessPacket folds one packet into the slot table, re-classifies the
// affected slots, and flushes the resulting key transitions as one batch.
func (e *Engine) ProcessPacket(pkt Packet) {
	e.stats.Packets++
	e.keyChanged = false

	// Slots touched by position or size events this packet, in first-touch
	// order. Tracking-id lifecycle takes effect immediately during the fold.
	var dirty []int32
	dirtySet := make(map[int32]bool)

	for _, ev := range pkt.Events {
		switch ev.Axis {
		case AxisSlot:
			e.currentSlot = ev.Value

		case AxisTrackingID:
			if ev.Value < 0 {
				e.endContact(e.currentSlot)
			} else {
				e.slot(e.currentSlot).begin(ev.Value, e.now())
			}

		case AxisPositionX:
			e.slot(e.currentSlot).setX(ev.Value)
			if !dirtySet[e.currentSlot] {
				dirtySet[e.currentSlot] = true
				dirty = append(dirty, e.currentSlot)
			}

		case AxisPositionY:
			e.slot(e.currentSlot).setY(ev.Value)
			if !dirtySet[e.currentSlot] {
				dirtySet[e.currentSlot] = true
				dirty = append(dirty, e.currentSlot)
			}

		case AxisContactSize:
			e.slot(e.currentSlot).touchSize = ev.Value
			if !dirtySet[e.currentSlot] {
				dirtySet[e.currentSlot] = true
				dirty = append(dirty, e.currentSlot)
			}

		default:
			// Unrecognized axis: no state change.
		}
	}

	for _, id := range dirty {
		s, ok := e.slots[id]
		if !ok {
			// Contact ended later in the same packet; already drained.
			continue
		}
		if s.positioned() {
			e.classify(s)
		}
	}

	e.flush()
}

// slot returns the state for a slot id, creating it on first reference.
// Position and size events may legitimately arrive before any tracking id.
func (e *Engine) slot(id int32) *slotState {
	s, ok := e.slots[id]
	if !ok {
		s = newSlotState()
		e.slots[id] = s
	}
	return s
}

// classify re-evaluates one positioned slot against the catalog and emits
// the resulting transitions in fixed order: directional releases,
// non-directional releases, presses, then gesture emission.
func (e *Engine) classify(s *slotState) {
	regions := e.catalog.HitTest(s.x, s.y, s.touchSize)

	if len(regions) > 0 {
		e.updateButtons(s, regions)
		s.buttonPressed = true
		return
	}

	if e.catalog.InViewport(s.x, s.y) {
		// Transition out of button mode before gesture detection.
		if len(s.activeButtons) > 0 {
			e.releaseAllButtons(s)
		}
		s.inViewport = true
		e.detectSwipe(s)
		return
	}

	// Outside every known region.
	if len(s.activeButtons) > 0 {
		e.releaseAllButtons(s)
		s.buttonPressed = false
	}
}

// updateButtons diffs the new hit set against the slot's active buttons.
// Directional buttons are released the instant they leave their rectangle;
// non-directional buttons follow plain set difference. Newly present names
// are pressed once.
func (e *Engine) updateButtons(s *slotState, regions []layout.Region) {
	newSet := make(map[string]bool, len(regions))
	for _, r := range regions {
		newSet[r.Name] = true
	}

	for _, r := range e.catalog.Regions() {
		if r.Directional && s.activeButtons[r.Name] && !newSet[r.Name] {
			e.release(r.Keys, r.Name)
		}
	}
	for _, r := range e.catalog.Regions() {
		if !r.Directional && s.activeButtons[r.Name] && !newSet[r.Name] {
			e.release(r.Keys, r.Name)
		}
	}
	for _, r := range regions {
		if !s.activeButtons[r.Name] {
			e.press(r.Keys, r.Name)
		}
	}

	s.activeButtons = newSet
}

// detectSwipe classifies the slot's travel since the gesture origin. A
// qualifying movement emits one press+release step, rebases the origin, and
// stamps the cooldown. The horizontal check runs first; ties break
// horizontal.
func (e *Engine) detectSwipe(s *slotState) {
	if s.buttonPressed || len(s.activeButtons) > 0 {
		return
	}
	now := e.now()
	if now.Sub(s.lastSwipeTime) <= e.cfg.SwipeCooldown {
		return
	}

	dx := s.x - s.startX
	dy := s.y - s.startY

	switch {
	case abs32(dx) > e.cfg.SwipeMinDistance && abs32(dy) < e.cfg.SwipeMaxOffAxis:
		key, name := evdev.KEY_RIGHT, "swipe right"
		if dx < 0 {
			key, name = evdev.KEY_LEFT, "swipe left"
		}
		e.tap(layout.Key(evdev.EvCode(key)), name)
		e.latchSwipe(s, now)
		e.stats.Swipes++

	case abs32(dy) > e.cfg.SwipeMinVertical && abs32(dx) < e.cfg.SwipeMaxOffAxis:
		key, name := evdev.KEY_DOWN, "swipe down"
		if dy < 0 {
			key, name = evdev.KEY_UP, "swipe up"
		}
		e.tap(layout.Key(evdev.EvCode(key)), name)
		e.latchSwipe(s, now)
		e.stats.Swipes++
	}
}

func (e *Engine) latchSwipe(s *slotState, now time.Time) {
	s.lastSwipeTime = now
	s.startX = s.x
	s.startY = s.y
	s.swipeDetected = true
}

// endContact drains a slot on tracking-id end: every active button gets its
// release, a qualifying short viewport contact emits the tap, and the slot
// is cleared.
func (e *Engine) endContact(id int32) {
	s, ok := e.slots[id]
	if !ok {
		return
	}

	e.releaseAllButtons(s)

	if s.inViewport && !s.swipeDetected && !s.buttonPressed &&
		!s.touchStartTime.IsZero() &&
		e.now().Sub(s.touchStartTime) < e.cfg.ViewportTapTimeout {
		vp := e.catalog.Viewport()
		e.tap(vp.Keys, vp.Name)
		e.stats.Taps++
	}

	delete(e.slots, id)
}

// releaseAllButtons releases every active button of a slot, directionals
// first, continuing past sink errors so one failed release cannot leave the
// remaining buttons stuck.
func (e *Engine) releaseAllButtons(s *slotState) {
	if len(s.activeButtons) == 0 {
		return
	}
	for _, r := range e.catalog.Regions() {
		if r.Directional && s.activeButtons[r.Name] {
			e.release(r.Keys, r.Name)
		}
	}
	for _, r := range e.catalog.Regions() {
		if !r.Directional && s.activeButtons[r.Name] {
			e.release(r.Keys, r.Name)
		}
	}
	s.activeButtons = make(map[string]bool)
}

// ReleaseAll drains every slot and flushes. Called on shutdown so no
// physical-equivalent key stays down.
func (e *Engine) ReleaseAll() {
	e.keyChanged = false
	for id, s := range e.slots {
		e.releaseAllButtons(s)
		delete(e.slots, id)
	}
	e.flush()
}

// Stats returns the emission counters.
func (e *Engine) Stats() Stats {
	return e.stats
}

func (e *Engine) press(keys layout.KeyBinding, name string) {
	if err := e.sink.SetKey(keys, true); err != nil {
		e.log.Error("key press failed", "region", name, "error", err)
	}
	e.keyChanged = true
	e.stats.Presses++
	e.log.Debug("key press", "region", name)
	// One pulse per logical press; a code pair is still one pulse.
	e.sink.PulseHaptic()
}

func (e *Engine) release(keys layout.KeyBinding, name string) {
	if err := e.sink.SetKey(keys, false); err != nil {
		e.log.Error("key release failed", "region", name, "error", err)
	}
	e.keyChanged = true
	e.stats.Releases++
	e.log.Debug("key release", "region", name)
}

// tap emits a zero-duration press+release pair: one discrete step with no
// intervening state.
func (e *Engine) tap(keys layout.KeyBinding, name string) {
	e.press(keys, name)
	e.release(keys, name)
}

func (e *Engine) flush() {
	if !e.keyChanged {
		return
	}
	if err := e.sink.Sync(); err != nil {
		e.log.Error("sink sync failed", "error", err)
	}
	e.keyChanged = false
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
