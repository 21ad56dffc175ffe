// padkeyd - Touch panel to virtual keyboard translator
//
//	padkeyd run        Run the translator daemon
//	padkeyd regions    Print the active layout in touch coordinates
//	padkeyd status     Show journaled events and battery state
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"padkeyd/internal/config"
	"padkeyd/internal/evsource"
	"padkeyd/internal/haptic"
	"padkeyd/internal/keysink"
	"padkeyd/internal/layout"
	"padkeyd/internal/logging"
	"padkeyd/internal/store"
	"padkeyd/internal/touch"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		cmdRun()
	case "regions":
		cmdRegions()
	case "status":
		cmdStatus()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`padkeyd - Touch panel to virtual keyboard translator

USAGE:
    padkeyd <command> [options]

COMMANDS:
    run         Run the translator daemon
    regions     Print the active layout in touch coordinates
    status      Show journaled events and battery state
    help        Show this help message

The daemon reads multitouch events from the front panel, maps contacts
onto the printed button overlay, and emits the bound keys through a
virtual keyboard. Contacts in the game viewport become arrow-key swipes
and an enter tap. Each press fires a haptic click.`)
}

func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath, "config file path")
	device := fs.String("device", "", "touch device path (overrides config)")
	layoutFile := fs.String("layout", "", "layout override file (overrides config)")
	logLevel := fs.String("log-level", "", "log level (overrides config)")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("load config: %v", err)
	}
	if *device != "" {
		cfg.Devices.Touch = *device
	}
	if *layoutFile != "" {
		cfg.Layout.File = *layoutFile
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	log := buildLogger(cfg)
	defer log.Close()

	if err := run(cfg, *configPath, log); err != nil {
		log.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, log *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := evsource.Open(cfg.Devices.Touch, log.WithComponent("evsource"))
	if err != nil {
		return err
	}
	defer src.Close()

	maxX, maxY, err := src.TouchRange()
	if err != nil {
		return err
	}

	catalog, err := buildCatalog(cfg, maxX, maxY)
	if err != nil {
		return err
	}
	log.Info("layout ready", "regions", len(catalog.Regions()), "touch_max_x", maxX, "touch_max_y", maxY)

	var pulser keysink.Pulser
	if cfg.Haptics.Enabled {
		drv, err := haptic.New(cfg.Devices.I2CBus, cfg.Haptics.Addr, cfg.Haptics.Effect, log.WithComponent("haptic"))
		if err != nil {
			// Feedback is a nicety; keys still work without it.
			log.Warn("haptics unavailable", "error", err)
		} else {
			defer drv.Close()
			pulser = drv
		}
	}

	sink, err := keysink.New(cfg.Devices.KeyboardName, catalog.AllKeyCodes(), pulser, log.WithComponent("keysink"))
	if err != nil {
		return err
	}
	defer sink.Close()

	var journal *store.Store
	if cfg.Storage.Path != "" {
		journal, err = store.Open(cfg.Storage.Path)
		if err != nil {
			log.Warn("journal unavailable", "error", err)
		} else {
			defer journal.Close()
		}
	}

	engine := touch.NewEngine(catalog, gestureConfig(cfg), sink, log.WithComponent("engine"))

	go func() {
		err := config.Watch(ctx, configPath, log.WithComponent("config"), func(next *config.Config) {
			config.ApplyLogging(next, log)
		})
		if err != nil {
			log.Warn("config watch stopped", "error", err)
		}
	}()

	// Close the device when the context ends so the blocking read returns.
	go func() {
		<-ctx.Done()
		src.Close()
	}()

	started := time.Now()
	log.Info("translator running", "device", cfg.Devices.Touch)
	runErr := engine.Run(ctx, src)

	stats := engine.Stats()
	log.Info("translator stopped",
		"packets", stats.Packets, "presses", stats.Presses, "releases", stats.Releases,
		"swipes", stats.Swipes, "taps", stats.Taps)

	if journal != nil {
		sum := store.SessionSummary{
			Started:  started,
			Ended:    time.Now(),
			Packets:  stats.Packets,
			Presses:  stats.Presses,
			Releases: stats.Releases,
			Swipes:   stats.Swipes,
			Taps:     stats.Taps,
		}
		if err := journal.RecordSession(sum); err != nil {
			log.Warn("session not journaled", "error", err)
		}
	}

	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return nil
}

func buildCatalog(cfg *config.Config, maxX, maxY int32) (*layout.Catalog, error) {
	if cfg.Layout.File != "" {
		return layout.LoadOverride(cfg.Layout.File, maxX, maxY)
	}
	return layout.DefaultCatalog(maxX, maxY)
}

func gestureConfig(cfg *config.Config) touch.Config {
	return touch.Config{
		SwipeMinDistance:   cfg.Gestures.SwipeMinDistance,
		SwipeMinVertical:   cfg.Gestures.SwipeMinVertical,
		SwipeMaxOffAxis:    cfg.Gestures.SwipeMaxOffAxis,
		SwipeCooldown:      cfg.Gestures.SwipeCooldown(),
		ViewportTapTimeout: cfg.Gestures.ViewportTapTimeout(),
	}
}

func cmdRegions() {
	fs := flag.NewFlagSet("regions", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath, "config file path")
	maxX := fs.Int("touch-max-x", 799, "touch device X axis maximum")
	maxY := fs.Int("touch-max-y", 479, "touch device Y axis maximum")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("load config: %v", err)
	}

	catalog, err := buildCatalog(cfg, int32(*maxX), int32(*maxY))
	if err != nil {
		fatal("build layout: %v", err)
	}

	fmt.Printf("%-10s %-22s %s\n", "REGION", "RECT", "NOTES")
	for _, r := range catalog.Regions() {
		notes := ""
		if r.Directional {
			notes = "directional"
		}
		if r.Keys.IsPair() {
			if notes != "" {
				notes += ", "
			}
			notes += "key pair"
		}
		fmt.Printf("%-10s %-22s %s\n", r.Name, r.Rect, notes)
	}
	vp := catalog.Viewport()
	fmt.Printf("%-10s %-22s tap + swipe area\n", vp.Name, vp.Rect)
}

func cmdStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath, "config file path")
	limit := fs.Int("n", 10, "number of events to show")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("load config: %v", err)
	}
	if cfg.Storage.Path == "" {
		fatal("journaling is disabled in the config")
	}

	journal, err := store.Open(cfg.Storage.Path)
	if err != nil {
		fatal("open journal: %v", err)
	}
	defer journal.Close()

	voltage, at, ok, err := journal.LatestBatterySample()
	if err != nil {
		fatal("read battery sample: %v", err)
	}
	if ok {
		fmt.Printf("Battery: %.2fV (sampled %s)\n\n", voltage, at.Format(time.RFC3339))
	} else {
		fmt.Println("Battery: no samples yet")
		fmt.Println()
	}

	events, err := journal.RecentEvents(*limit)
	if err != nil {
		fatal("read events: %v", err)
	}
	if len(events) == 0 {
		fmt.Println("No events journaled.")
		return
	}
	for _, e := range events {
		fmt.Printf("%s  %-10s %-10s %s\n", e.Time.Format(time.RFC3339), e.Source, e.Kind, e.Detail)
	}
}

func buildLogger(cfg *config.Config) *logging.Logger {
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
		Component: "padkeyd",
	})
	if err != nil {
		return logging.Default()
	}
	logging.SetDefault(log)
	return log
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
