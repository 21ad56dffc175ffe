// tiltwatchd - Orientation watcher
//
// Polls the accelerometer and rotates the emulator's video output when
// the handheld is held sideways, stopping the touch translator while the
// printed overlay is misaligned.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"padkeyd/internal/config"
	"padkeyd/internal/logging"
	"padkeyd/internal/rotation"
	"padkeyd/internal/sensors"
	"padkeyd/internal/store"
	"padkeyd/internal/systemd"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "config file path")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	log := buildLogger(cfg, "tiltwatchd")
	defer log.Close()

	if err := run(cfg, log); err != nil {
		log.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sensor, err := sensors.NewBMA400(cfg.Devices.I2CBus, sensors.BMA400Addr)
	if err != nil {
		return err
	}
	defer sensor.Close()

	units, err := systemd.Connect(log.WithComponent("systemd"))
	if err != nil {
		return err
	}
	defer units.Close()

	var journal *store.Store
	if cfg.Storage.Path != "" {
		journal, err = store.Open(cfg.Storage.Path)
		if err != nil {
			log.Warn("journal unavailable", "error", err)
		} else {
			defer journal.Close()
		}
	}

	watcher := rotation.NewWatcher(sensor, units, nil, journalOrNil(journal), rotation.Config{
		TiltThreshold:  cfg.Rotation.TiltThresholdG,
		Poll:           cfg.Rotation.PollInterval(),
		RetroarchCfg:   cfg.Rotation.RetroarchCfg,
		RuncommandLog:  cfg.Rotation.RuncommandLog,
		TranslatorUnit: cfg.Rotation.TranslatorUnit,
	}, log.WithComponent("rotation"))

	log.Info("tilt watcher running", "threshold_g", cfg.Rotation.TiltThresholdG)
	return watcher.Run(ctx)
}

func journalOrNil(s *store.Store) rotation.Journal {
	if s == nil {
		return nil
	}
	return s
}

func buildLogger(cfg *config.Config, component string) *logging.Logger {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		format = logging.FormatText
	}

	log, err := logging.New(&logging.Config{
		Level:     level,
		Format:    format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.File,
		Component: component,
	})
	if err != nil {
		return logging.Default()
	}
	return log
}
