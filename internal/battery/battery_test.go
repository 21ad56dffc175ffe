package battery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"padkeyd/internal/logging"
)

// fakeADC replays a fixed sequence, repeating the last reading.
type fakeADC struct {
	readings []float64
	idx      int
}

func (f *fakeADC) ReadVoltage(channel int) (float64, error) {
	v := f.readings[f.idx]
	if f.idx < len(f.readings)-1 {
		f.idx++
	}
	return v, nil
}

type fakePower struct {
	offs int
}

func (f *fakePower) PowerOff() error { f.offs++; return nil }

type fakeJournal struct {
	events  [][3]string
	samples []float64
}

func (f *fakeJournal) RecordEvent(source, kind, detail string) error {
	f.events = append(f.events, [3]string{source, kind, detail})
	return nil
}

func (f *fakeJournal) RecordBatterySample(voltage float64) error {
	f.samples = append(f.samples, voltage)
	return nil
}

func testConfig() Config {
	return Config{
		Threshold: 3.0,
		Confirm:   5 * time.Millisecond,
		Poll:      5 * time.Millisecond,
		Channel:   3,
	}
}

func TestConfirmedLowVoltagePowersOff(t *testing.T) {
	adc := &fakeADC{readings: []float64{3.8, 3.7, 2.9, 2.8}}
	power := &fakePower{}
	journal := &fakeJournal{}
	w := NewWatcher(adc, power, journal, testConfig(), logging.Default())

	err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, power.offs)

	require.Len(t, journal.events, 1)
	assert.Equal(t, "battery", journal.events[0][0])
	assert.Equal(t, "shutdown", journal.events[0][1])
}

func TestRecoveredVoltageDoesNotPowerOff(t *testing.T) {
	// Sag under load: one low reading, then back to normal.
	adc := &fakeADC{readings: []float64{3.8, 2.9, 3.6}}
	power := &fakePower{}
	w := NewWatcher(adc, power, nil, testConfig(), logging.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := w.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, power.offs)
}

func TestCancelStopsWatcher(t *testing.T) {
	adc := &fakeADC{readings: []float64{3.8}}
	w := NewWatcher(adc, &fakePower{}, nil, testConfig(), logging.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, w.Run(ctx))
}

func TestSamplesJournaled(t *testing.T) {
	adc := &fakeADC{readings: []float64{3.8, 2.9, 2.8}}
	journal := &fakeJournal{}
	w := NewWatcher(adc, &fakePower{}, journal, testConfig(), logging.Default())

	require.NoError(t, w.Run(context.Background()))
	// The journal is rate limited, but the first sample always lands.
	require.NotEmpty(t, journal.samples)
	assert.Equal(t, 3.8, journal.samples[0])
}
