// Package cartridge detects a blow into the cartridge slot and swaps the
// active emulated system.
//
// A small barometer sits behind the slot opening. Blowing into the slot,
// the ritual way of "changing the cartridge", raises the measured pressure
// a fraction of a hPa above the rolling baseline. The detector watches for
// that spike and toggles between the two installed systems.
package cartridge

import (
	"context"
	"time"

	"padkeyd/internal/logging"
)

// PressureReader delivers barometric pressure in hPa.
type PressureReader interface {
	ReadPressure() (float64, error)
}

// Swapper performs the system swap when a spike fires.
type Swapper interface {
	Swap() error
}

// DetectorConfig tunes the spike detector.
type DetectorConfig struct {
	// SpikeThreshold is the minimum rise over the rolling average, in hPa.
	SpikeThreshold float64
	// WindowSize is the rolling-average sample count.
	WindowSize int
	// Poll is the sampling interval.
	Poll time.Duration
	// Cooldown is the minimum interval between swaps.
	Cooldown time.Duration
}

// Detector polls the barometer and fires the swapper on a pressure spike.
type Detector struct {
	sensor  PressureReader
	swapper Swapper
	cfg     DetectorConfig
	log     *logging.Logger

	window      []float64
	lastTrigger time.Time

	// now is replaced in tests.
	now func() time.Time
}

// NewDetector creates a detector over the given sensor and swapper.
func NewDetector(sensor PressureReader, swapper Swapper, cfg DetectorConfig, log *logging.Logger) *Detector {
	return &Detector{
		sensor:  sensor,
		swapper: swapper,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// Run polls until the context ends. The first reading is discarded: the
// sensor's initial sample after power-up is not trustworthy as a baseline.
func (d *Detector) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.Poll)
	defer ticker.Stop()

	first := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		pressure, err := d.sensor.ReadPressure()
		if err != nil {
			d.log.Warn("pressure read failed", "error", err)
			continue
		}

		if first {
			first = false
			continue
		}

		d.Observe(pressure)
	}
}

// Observe feeds one pressure sample through the spike check, then folds it
// into the rolling window. The sample under test is compared against the
// average of the preceding window only, so the spike itself cannot drag
// the baseline up.
func (d *Detector) Observe(pressure float64) {
	if len(d.window) == d.cfg.WindowSize && !d.cooldownActive() {
		avg := d.average()
		diff := pressure - avg
		if diff >= d.cfg.SpikeThreshold {
			d.log.Info("pressure spike detected",
				"pressure_hpa", pressure, "baseline_hpa", avg, "diff_hpa", diff)
			if err := d.swapper.Swap(); err != nil {
				d.log.Error("system swap failed", "error", err)
			}
			d.lastTrigger = d.now()
		}
	}

	d.window = append(d.window, pressure)
	if len(d.window) > d.cfg.WindowSize {
		d.window = d.window[1:]
	}
}

func (d *Detector) cooldownActive() bool {
	if d.lastTrigger.IsZero() {
		return false
	}
	return d.now().Sub(d.lastTrigger) < d.cfg.Cooldown
}

func (d *Detector) average() float64 {
	var sum float64
	for _, v := range d.window {
		sum += v
	}
	return sum / float64(len(d.window))
}
