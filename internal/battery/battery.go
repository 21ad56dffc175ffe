// Package battery watches the pack voltage and powers the handheld off
// cleanly before the cells run flat.
package battery

import (
	"context"
	"fmt"
	"time"

	"padkeyd/internal/logging"
)

// VoltageReader samples a single-ended ADC channel.
type VoltageReader interface {
	ReadVoltage(channel int) (float64, error)
}

// PowerController powers the system off.
type PowerController interface {
	PowerOff() error
}

// Journal records voltage samples and the shutdown event. May be nil.
type Journal interface {
	RecordEvent(source, kind, detail string) error
	RecordBatterySample(voltage float64) error
}

// Config tunes the watcher.
type Config struct {
	// Threshold is the voltage below which shutdown is considered.
	Threshold float64
	// Confirm is how long to wait before re-reading, so a momentary sag
	// under load does not power the unit off.
	Confirm time.Duration
	// Poll is the sampling interval.
	Poll time.Duration
	// Channel is the ADC channel the pack divider feeds.
	Channel int
}

// journalInterval spaces out the persisted samples; the poll rate is much
// faster than the journal needs.
const journalInterval = time.Minute

// Watcher polls the ADC and triggers a confirmed-low-voltage shutdown.
type Watcher struct {
	adc     VoltageReader
	power   PowerController
	journal Journal
	cfg     Config
	log     *logging.Logger

	lastJournal time.Time
}

// NewWatcher creates a watcher.
func NewWatcher(adc VoltageReader, power PowerController, journal Journal, cfg Config, log *logging.Logger) *Watcher {
	return &Watcher{adc: adc, power: power, journal: journal, cfg: cfg, log: log}
}

// Run polls until the context ends or a shutdown is triggered.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		voltage, err := w.adc.ReadVoltage(w.cfg.Channel)
		if err != nil {
			w.log.Warn("voltage read failed", "error", err)
			continue
		}
		w.log.Debug("battery sample", "voltage", voltage)
		w.recordSample(voltage)

		if voltage >= w.cfg.Threshold {
			continue
		}

		w.log.Warn("battery voltage low, confirming", "voltage", voltage, "threshold", w.cfg.Threshold)
		confirmed, err := w.confirmLow(ctx)
		if err != nil {
			return err
		}
		if !confirmed {
			continue
		}

		return w.shutdown(voltage)
	}
}

// confirmLow waits the confirmation interval and re-reads. Returns false
// when the voltage recovered, a read failed, or the context ended.
func (w *Watcher) confirmLow(ctx context.Context) (bool, error) {
	select {
	case <-ctx.Done():
		return false, nil
	case <-time.After(w.cfg.Confirm):
	}

	voltage, err := w.adc.ReadVoltage(w.cfg.Channel)
	if err != nil {
		w.log.Warn("confirmation read failed", "error", err)
		return false, nil
	}
	if voltage >= w.cfg.Threshold {
		w.log.Info("battery voltage recovered", "voltage", voltage)
		return false, nil
	}
	return true, nil
}

func (w *Watcher) shutdown(voltage float64) error {
	w.log.Error("battery depleted, powering off", "voltage", voltage)
	if w.journal != nil {
		if err := w.journal.RecordEvent("battery", "shutdown", fmt.Sprintf("%.2fV", voltage)); err != nil {
			w.log.Warn("shutdown not journaled", "error", err)
		}
	}
	if err := w.power.PowerOff(); err != nil {
		return fmt.Errorf("power off: %w", err)
	}
	return nil
}

func (w *Watcher) recordSample(voltage float64) {
	if w.journal == nil || time.Since(w.lastJournal) < journalInterval {
		return
	}
	if err := w.journal.RecordBatterySample(voltage); err != nil {
		w.log.Warn("battery sample not journaled", "error", err)
		return
	}
	w.lastJournal = time.Now()
}
