// Package rotation watches the accelerometer and rotates the emulator's
// video output when the handheld is turned on its side.
//
// Sideways play is for vertically-oriented games. Rotating the output also
// disables the touch overlay and stops the touch translator, since the
// printed button layout no longer lines up with the screen.
package rotation

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"padkeyd/internal/logging"
	"padkeyd/internal/sensors"
)

// Rotation values as the emulator's video_rotation option counts them:
// quarter turns counter-clockwise.
const (
	RotationNone  = "0"
	RotationLeft  = "1"
	RotationRight = "3"
)

// AccelReader delivers acceleration samples.
type AccelReader interface {
	Read() (sensors.Accel, error)
}

// UnitController starts and stops the touch translator unit.
type UnitController interface {
	StartUnit(name string) error
	StopUnit(name string) error
}

// Journal records rotation events. May be nil.
type Journal interface {
	RecordEvent(source, kind, detail string) error
}

// Config tunes the watcher.
type Config struct {
	// TiltThreshold is the X acceleration, in g, past which the handheld
	// counts as rotated.
	TiltThreshold float64
	// Poll is the sampling interval.
	Poll time.Duration
	// RetroarchCfg is the emulator config file to patch.
	RetroarchCfg string
	// RuncommandLog is where the launcher logs the emulator command line.
	RuncommandLog string
	// TranslatorUnit is the touch translator's systemd unit.
	TranslatorUnit string
}

// defaultSettings is the upright configuration: overlay on, no rotation,
// viewport sized for the layout's game area.
var defaultSettings = map[string]string{
	"input_overlay_enable":   "true",
	"video_rotation":         RotationNone,
	"custom_viewport_height": "360",
	"custom_viewport_y":      "0",
}

// rotatedSettings is applied for either sideways orientation, with the
// rotation value filled in per direction.
var rotatedSettings = map[string]string{
	"input_overlay_enable":   "false",
	"custom_viewport_height": "640",
	"custom_viewport_y":      "80",
}

// Watcher tracks orientation and applies the matching emulator settings.
type Watcher struct {
	sensor  AccelReader
	units   UnitController
	procs   ProcessController
	journal Journal
	cfg     Config
	log     *logging.Logger

	current string
}

// NewWatcher creates a watcher. procs defaults to the exec-based
// controller when nil.
func NewWatcher(sensor AccelReader, units UnitController, procs ProcessController, journal Journal, cfg Config, log *logging.Logger) *Watcher {
	if procs == nil {
		procs = &execController{log: log}
	}
	return &Watcher{
		sensor:  sensor,
		units:   units,
		procs:   procs,
		journal: journal,
		cfg:     cfg,
		log:     log,
		current: RotationNone,
	}
}

// Run restores the upright defaults, then polls until the context ends.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.ResetDefaults(); err != nil {
		w.log.Warn("default settings not restored", "error", err)
	}

	ticker := time.NewTicker(w.cfg.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		sample, err := w.sensor.Read()
		if err != nil {
			w.log.Warn("acceleration read failed", "error", err)
			continue
		}
		w.Update(sample.X)
	}
}

// ResetDefaults writes the upright settings and makes sure the touch
// translator is running. Called once at startup so a crash while rotated
// cannot leave the emulator stuck sideways.
func (w *Watcher) ResetDefaults() error {
	if err := w.patchConfig(defaultSettings); err != nil {
		return err
	}
	w.setTranslator(true)
	w.current = RotationNone
	return nil
}

// Update classifies one X-axis sample and applies the orientation change
// if it crossed a threshold. The emulator is only bounced on a genuine
// change.
func (w *Watcher) Update(xAccel float64) {
	next := RotationNone
	switch {
	case xAccel >= w.cfg.TiltThreshold:
		next = RotationLeft
	case xAccel <= -w.cfg.TiltThreshold:
		next = RotationRight
	}

	if next == w.current {
		return
	}
	w.current = next

	if next == RotationNone {
		if err := w.patchConfig(defaultSettings); err != nil {
			w.log.Error("config patch failed", "error", err)
		}
		w.setTranslator(true)
	} else {
		settings := make(map[string]string, len(rotatedSettings)+1)
		for k, v := range rotatedSettings {
			settings[k] = v
		}
		settings["video_rotation"] = next
		if err := w.patchConfig(settings); err != nil {
			w.log.Error("config patch failed", "error", err)
		}
		w.setTranslator(false)
	}

	w.restartEmulator()

	if w.journal != nil {
		if err := w.journal.RecordEvent("rotation", "rotate", next); err != nil {
			w.log.Warn("rotation not journaled", "error", err)
		}
	}
	w.log.Info("rotation updated", "rotation", next)
}

// Rotation returns the currently applied rotation value.
func (w *Watcher) Rotation() string {
	return w.current
}

// patchConfig rewrites matching "key = value" lines in the emulator
// config. Only keys already present are touched; unknown lines pass
// through verbatim.
func (w *Watcher) patchConfig(settings map[string]string) error {
	data, err := os.ReadFile(w.cfg.RetroarchCfg)
	if err != nil {
		return fmt.Errorf("read emulator config: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		if val, ok := settings[key]; ok {
			lines[i] = fmt.Sprintf("%s = %s", key, val)
		}
	}

	if err := os.WriteFile(w.cfg.RetroarchCfg, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return fmt.Errorf("write emulator config: %w", err)
	}
	return nil
}

func (w *Watcher) setTranslator(running bool) {
	if w.units == nil || w.cfg.TranslatorUnit == "" {
		return
	}
	var err error
	if running {
		err = w.units.StartUnit(w.cfg.TranslatorUnit)
	} else {
		err = w.units.StopUnit(w.cfg.TranslatorUnit)
	}
	if err != nil {
		w.log.Warn("translator unit not switched", "running", running, "error", err)
	}
}

// restartEmulator kills a running emulator and relaunches it with the
// command line the launcher logged, so the patched config takes effect
// mid-game. The frontend is killed first when relaunching, otherwise it
// steals the display back.
func (w *Watcher) restartEmulator() {
	if !w.procs.IsRunning("retroarch") {
		w.log.Debug("emulator not running, config change applies on next launch")
		return
	}

	if err := w.procs.Kill("retroarch"); err != nil {
		w.log.Warn("emulator kill failed", "error", err)
	}
	time.Sleep(time.Second)

	command, err := lastLaunchCommand(w.cfg.RuncommandLog)
	if err != nil {
		w.log.Warn("no launch command found, skipping relaunch", "error", err)
		return
	}

	if w.procs.IsRunning("emulationstation") {
		if err := w.procs.Kill("emulationstation"); err != nil {
			w.log.Warn("frontend kill failed", "error", err)
		}
		time.Sleep(time.Second)
	}

	if err := w.procs.Launch(command); err != nil {
		w.log.Error("emulator relaunch failed", "error", err)
	}
}
