package touch

import "time"

// noContact is the tracking id of an idle slot.
const noContact int32 = -1

// slotState is the per-contact state for one hardware multitouch slot.
// Exactly one of {no active region, activeButtons non-empty, inViewport}
// describes the slot's classification at any instant.
type slotState struct {
	trackingID int32

	// Latest absolute position; undefined until both axes reported once.
	x, y       int32
	hasX, hasY bool

	// Gesture reference origin; rebased after every swipe so a single drag
	// can emit multiple swipe steps.
	startX, startY int32

	touchSize int32

	// activeButtons holds region names whose press has been emitted and not
	// yet released.
	activeButtons map[string]bool

	// buttonPressed suppresses gesture and tap detection while the contact
	// is attributed to buttons. Cleared again when the contact leaves every
	// known region.
	buttonPressed bool

	// inViewport latches once the contact is seen inside the viewport with
	// no button active.
	inViewport bool

	// swipeDetected suppresses the end-of-contact tap.
	swipeDetected bool

	lastSwipeTime  time.Time
	touchStartTime time.Time
}

func newSlotState() *slotState {
	return &slotState{
		trackingID:    noContact,
		activeButtons: make(map[string]bool),
	}
}

// begin resets the slot for a new contact.
func (s *slotState) begin(trackingID int32, now time.Time) {
	*s = slotState{
		trackingID:     trackingID,
		activeButtons:  make(map[string]bool),
		touchStartTime: now,
	}
}

// setX records a position update, capturing the gesture origin on the first
// report of the axis.
func (s *slotState) setX(v int32) {
	s.x = v
	if !s.hasX {
		s.startX = v
		s.hasX = true
	}
}

func (s *slotState) setY(v int32) {
	s.y = v
	if !s.hasY {
		s.startY = v
		s.hasY = true
	}
}

// positioned reports whether both axes have been seen at least once.
func (s *slotState) positioned() bool {
	return s.hasX && s.hasY
}
