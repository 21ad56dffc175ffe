package cartridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"padkeyd/internal/logging"
)

type fakeSwapper struct {
	swaps int
	err   error
}

func (f *fakeSwapper) Swap() error {
	f.swaps++
	return f.err
}

func newTestDetector(swapper *fakeSwapper) (*Detector, *time.Time) {
	now := time.Unix(2000, 0)
	d := NewDetector(nil, swapper, DetectorConfig{
		SpikeThreshold: 0.25,
		WindowSize:     3,
		Poll:           500 * time.Millisecond,
		Cooldown:       10 * time.Second,
	}, logging.Default())
	d.now = func() time.Time { return now }
	return d, &now
}

func TestDetectorNeedsFullWindow(t *testing.T) {
	swapper := &fakeSwapper{}
	d, _ := newTestDetector(swapper)

	// Two baseline samples, then a spike: window not full yet, no trigger.
	d.Observe(1013.00)
	d.Observe(1013.02)
	d.Observe(1014.00)
	assert.Equal(t, 0, swapper.swaps)
}

func TestDetectorFiresOnSpike(t *testing.T) {
	swapper := &fakeSwapper{}
	d, _ := newTestDetector(swapper)

	d.Observe(1013.00)
	d.Observe(1013.02)
	d.Observe(1012.98)
	assert.Equal(t, 0, swapper.swaps)

	// A blow into the slot: +0.30 hPa over the rolling average.
	d.Observe(1013.30)
	assert.Equal(t, 1, swapper.swaps)
}

func TestDetectorIgnoresSlowDrift(t *testing.T) {
	swapper := &fakeSwapper{}
	d, _ := newTestDetector(swapper)

	// Weather-scale drift: each step well under the threshold.
	for p := 1013.00; p < 1015.00; p += 0.05 {
		d.Observe(p)
	}
	assert.Equal(t, 0, swapper.swaps)
}

func TestDetectorCooldown(t *testing.T) {
	swapper := &fakeSwapper{}
	d, now := newTestDetector(swapper)

	d.Observe(1013.00)
	d.Observe(1013.00)
	d.Observe(1013.00)
	d.Observe(1013.30)
	assert.Equal(t, 1, swapper.swaps)

	// A second spike right away is swallowed by the cooldown, even though
	// it clears the threshold.
	d.Observe(1013.00)
	d.Observe(1013.00)
	d.Observe(1013.00)
	d.Observe(1013.30)
	assert.Equal(t, 1, swapper.swaps)

	*now = now.Add(11 * time.Second)
	d.Observe(1013.00)
	d.Observe(1013.00)
	d.Observe(1013.00)
	d.Observe(1013.30)
	assert.Equal(t, 2, swapper.swaps)
}

func TestDetectorSwapErrorStillStampsCooldown(t *testing.T) {
	swapper := &fakeSwapper{err: assert.AnError}
	d, _ := newTestDetector(swapper)

	d.Observe(1013.00)
	d.Observe(1013.00)
	d.Observe(1013.00)
	d.Observe(1013.30)
	assert.Equal(t, 1, swapper.swaps)

	// Failure or not, the trigger counts for the cooldown; no rapid-fire
	// retry against a broken frontend.
	d.Observe(1013.30)
	assert.Equal(t, 1, swapper.swaps)
}
