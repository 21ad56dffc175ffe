// cartswapd - Cartridge-blow system swapper
//
// Watches the barometer behind the cartridge slot and toggles the active
// emulated system when someone blows into the slot.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"padkeyd/internal/cartridge"
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

	log := buildLogger(cfg, "cartswapd")
	defer log.Close()

	if err := run(cfg, log); err != nil {
		log.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sensor, err := sensors.NewBMP384(cfg.Devices.I2CBus, sensors.BMP384Addr)
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

	swapper := cartridge.NewSystemSwapper(cartridge.SwapperConfig{
		RomsDir:      cfg.Cartridge.RomsDir,
		ESSettings:   cfg.Cartridge.ESSettings,
		ESSystems:    cfg.Cartridge.ESSystems,
		ThemeXML:     cfg.Cartridge.ThemeXML,
		FrontendUnit: cfg.Cartridge.FrontendUnit,
	}, units, journalOrNil(journal), log.WithComponent("swapper"))

	detector := cartridge.NewDetector(sensor, swapper, cartridge.DetectorConfig{
		SpikeThreshold: cfg.Cartridge.SpikeThresholdHpa,
		WindowSize:     cfg.Cartridge.WindowSize,
		Poll:           cfg.Cartridge.PollInterval(),
		Cooldown:       cfg.Cartridge.Cooldown(),
	}, log.WithComponent("detector"))

	log.Info("cartridge detector running",
		"threshold_hpa", cfg.Cartridge.SpikeThresholdHpa, "cooldown", cfg.Cartridge.Cooldown())
	return detector.Run(ctx)
}

// journalOrNil avoids handing the swapper a typed nil inside a non-nil
// interface value.
func journalOrNil(s *store.Store) cartridge.Journal {
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
