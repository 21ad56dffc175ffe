// battwatchd - Battery voltage watcher
//
// Samples the pack voltage through the ADC and powers the handheld off
// cleanly once a low reading is confirmed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"padkeyd/internal/battery"
	"padkeyd/internal/config"
	"padkeyd/internal/logging"
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

	log := buildLogger(cfg, "battwatchd")
	defer log.Close()

	if err := run(cfg, log); err != nil {
		log.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adc, err := sensors.NewADS1115(cfg.Devices.I2CBus, sensors.ADS1115Addr)
	if err != nil {
		return err
	}
	defer adc.Close()

	power, err := systemd.Connect(log.WithComponent("systemd"))
	if err != nil {
		return err
	}
	defer power.Close()

	var journal *store.Store
	if cfg.Storage.Path != "" {
		journal, err = store.Open(cfg.Storage.Path)
		if err != nil {
			log.Warn("journal unavailable", "error", err)
		} else {
			defer journal.Close()
		}
	}

	watcher := battery.NewWatcher(adc, power, journalOrNil(journal), battery.Config{
		Threshold: cfg.Battery.ThresholdV,
		Confirm:   cfg.Battery.Confirm(),
		Poll:      cfg.Battery.PollInterval(),
		Channel:   cfg.Battery.Channel,
	}, log.WithComponent("battery"))

	log.Info("battery watcher running",
		"threshold_v", cfg.Battery.ThresholdV, "channel", cfg.Battery.Channel)
	return watcher.Run(ctx)
}

func journalOrNil(s *store.Store) battery.Journal {
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
