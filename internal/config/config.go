// Package config loads and validates the configuration shared by the
// padkeyd daemons. TOML is the native format; YAML and JSON files are
// accepted by extension.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the daemons look for configuration when no path is
// given on the command line.
const DefaultPath = "/etc/padkeyd/config.toml"

// Config is the root configuration.
type Config struct {
	Devices   Devices   `toml:"devices" yaml:"devices"`
	Layout    Layout    `toml:"layout" yaml:"layout"`
	Gestures  Gestures  `toml:"gestures" yaml:"gestures"`
	Haptics   Haptics   `toml:"haptics" yaml:"haptics"`
	Logging   Logging   `toml:"logging" yaml:"logging"`
	Storage   Storage   `toml:"storage" yaml:"storage"`
	Cartridge Cartridge `toml:"cartridge" yaml:"cartridge"`
	Rotation  Rotation  `toml:"rotation" yaml:"rotation"`
	Battery   Battery   `toml:"battery" yaml:"battery"`
}

// Devices names the hardware nodes.
type Devices struct {
	// Touch is the evdev node of the touch panel.
	Touch string `toml:"touch" yaml:"touch"`
	// KeyboardName is the name the virtual keyboard registers under.
	KeyboardName string `toml:"keyboard_name" yaml:"keyboard_name"`
	// I2CBus is the i2c-dev node shared by the sensors and the haptic
	// controller.
	I2CBus string `toml:"i2c_bus" yaml:"i2c_bus"`
}

// Layout points at an optional layout override file.
type Layout struct {
	// File is a JSON layout override. Empty means the built-in layout.
	File string `toml:"file" yaml:"file"`
}

// Gestures holds the swipe and tap thresholds.
type Gestures struct {
	SwipeMinDistance     int32 `toml:"swipe_min_distance" yaml:"swipe_min_distance"`
	SwipeMinVertical     int32 `toml:"swipe_min_vertical" yaml:"swipe_min_vertical"`
	SwipeMaxOffAxis      int32 `toml:"swipe_max_off_axis" yaml:"swipe_max_off_axis"`
	SwipeCooldownMs      int   `toml:"swipe_cooldown_ms" yaml:"swipe_cooldown_ms"`
	ViewportTapTimeoutMs int   `toml:"viewport_tap_timeout_ms" yaml:"viewport_tap_timeout_ms"`
}

// Haptics configures the vibration controller.
type Haptics struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Addr    uint16 `toml:"addr" yaml:"addr"`
	Effect  uint8  `toml:"effect" yaml:"effect"`
}

// Logging configures log output.
type Logging struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	Output string `toml:"output" yaml:"output"`
	File   string `toml:"file" yaml:"file"`
}

// Storage configures the event journal.
type Storage struct {
	// Path is the SQLite database file. Empty disables journaling.
	Path string `toml:"path" yaml:"path"`
}

// Cartridge configures the cartridge-blow detector.
type Cartridge struct {
	SpikeThresholdHpa float64 `toml:"spike_threshold_hpa" yaml:"spike_threshold_hpa"`
	WindowSize        int     `toml:"window_size" yaml:"window_size"`
	CooldownS         int     `toml:"cooldown_s" yaml:"cooldown_s"`
	PollMs            int     `toml:"poll_ms" yaml:"poll_ms"`
	RomsDir           string  `toml:"roms_dir" yaml:"roms_dir"`
	ESSettings        string  `toml:"es_settings" yaml:"es_settings"`
	ESSystems         string  `toml:"es_systems" yaml:"es_systems"`
	ThemeXML          string  `toml:"theme_xml" yaml:"theme_xml"`
	FrontendUnit      string  `toml:"frontend_unit" yaml:"frontend_unit"`
}

// Rotation configures the tilt watcher.
type Rotation struct {
	TiltThresholdG float64 `toml:"tilt_threshold_g" yaml:"tilt_threshold_g"`
	PollMs         int     `toml:"poll_ms" yaml:"poll_ms"`
	RetroarchCfg   string  `toml:"retroarch_cfg" yaml:"retroarch_cfg"`
	RuncommandLog  string  `toml:"runcommand_log" yaml:"runcommand_log"`
	TranslatorUnit string  `toml:"translator_unit" yaml:"translator_unit"`
}

// Battery configures the low-voltage watcher.
type Battery struct {
	ThresholdV float64 `toml:"threshold_v" yaml:"threshold_v"`
	ConfirmS   int     `toml:"confirm_s" yaml:"confirm_s"`
	PollS      int     `toml:"poll_s" yaml:"poll_s"`
	Channel    int     `toml:"channel" yaml:"channel"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Devices: Devices{
			Touch:        "/dev/input/event0",
			KeyboardName: "padkeyd virtual keyboard",
			I2CBus:       "/dev/i2c-1",
		},
		Gestures: Gestures{
			SwipeMinDistance:     60,
			SwipeMinVertical:     50,
			SwipeMaxOffAxis:      70,
			SwipeCooldownMs:      300,
			ViewportTapTimeoutMs: 150,
		},
		Haptics: Haptics{
			Enabled: true,
			Addr:    0x5A,
			Effect:  1,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Storage: Storage{
			Path: "/var/lib/padkeyd/journal.db",
		},
		Cartridge: Cartridge{
			SpikeThresholdHpa: 0.25,
			WindowSize:        3,
			CooldownS:         10,
			PollMs:            500,
			RomsDir:           "/home/pi/RetroPie/roms",
			ESSettings:        "/home/pi/.emulationstation/es_settings.cfg",
			ESSystems:         "/etc/emulationstation/es_systems.cfg",
			ThemeXML:          "/etc/emulationstation/themes/es-theme-ssimple-ve/theme.xml",
			FrontendUnit:      "emulationstation.service",
		},
		Rotation: Rotation{
			TiltThresholdG: 0.5,
			PollMs:         500,
			RetroarchCfg:   "/opt/retropie/configs/all/retroarch.cfg",
			RuncommandLog:  "/dev/shm/runcommand.log",
			TranslatorUnit: "padkeyd.service",
		},
		Battery: Battery{
			ThresholdV: 3.0,
			ConfirmS:   1,
			PollS:      1,
			Channel:    3,
		},
	}
}

// Load reads the config file at path, layering it over the defaults. The
// format follows the extension: .yaml/.yml/.json decode as YAML (JSON is a
// YAML subset), anything else as TOML. A missing file at the default path
// is not an error; the defaults apply. Environment overrides land last.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultPath {
			applyEnv(cfg)
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown config key %q", undecoded[0].String())
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers the supported environment overrides over the loaded
// values. Useful for unit files and one-off debugging without editing the
// config on the device.
func applyEnv(cfg *Config) {
	if v := os.Getenv("PADKEYD_TOUCH_DEVICE"); v != "" {
		cfg.Devices.Touch = v
	}
	if v := os.Getenv("PADKEYD_I2C_BUS"); v != "" {
		cfg.Devices.I2CBus = v
	}
	if v := os.Getenv("PADKEYD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PADKEYD_STORE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
}

// Validate checks the configuration for values the daemons cannot run with.
func (c *Config) Validate() error {
	if c.Devices.Touch == "" {
		return fmt.Errorf("devices.touch must be set")
	}
	if c.Devices.KeyboardName == "" {
		return fmt.Errorf("devices.keyboard_name must be set")
	}
	if c.Gestures.SwipeMinDistance <= 0 || c.Gestures.SwipeMinVertical <= 0 {
		return fmt.Errorf("gesture distances must be positive")
	}
	if c.Gestures.SwipeMaxOffAxis <= 0 {
		return fmt.Errorf("gestures.swipe_max_off_axis must be positive")
	}
	if c.Gestures.SwipeCooldownMs < 0 || c.Gestures.ViewportTapTimeoutMs <= 0 {
		return fmt.Errorf("gesture timings out of range")
	}
	if c.Layout.File != "" && !filepath.IsAbs(c.Layout.File) {
		return fmt.Errorf("layout.file must be an absolute path")
	}
	if c.Cartridge.SpikeThresholdHpa <= 0 {
		return fmt.Errorf("cartridge.spike_threshold_hpa must be positive")
	}
	if c.Cartridge.WindowSize < 2 {
		return fmt.Errorf("cartridge.window_size must be at least 2")
	}
	if c.Rotation.TiltThresholdG <= 0 || c.Rotation.TiltThresholdG >= 1 {
		return fmt.Errorf("rotation.tilt_threshold_g must be between 0 and 1")
	}
	if c.Battery.ThresholdV <= 0 {
		return fmt.Errorf("battery.threshold_v must be positive")
	}
	if c.Battery.Channel < 0 || c.Battery.Channel > 3 {
		return fmt.Errorf("battery.channel must be 0-3")
	}
	if _, err := parseLevelName(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

func parseLevelName(s string) (string, error) {
	switch s {
	case "", "debug", "info", "warn", "warning", "error":
		return s, nil
	default:
		return "", fmt.Errorf("logging.level: unknown level %q", s)
	}
}

// SwipeCooldown returns the swipe cooldown as a duration.
func (g Gestures) SwipeCooldown() time.Duration {
	return time.Duration(g.SwipeCooldownMs) * time.Millisecond
}

// ViewportTapTimeout returns the tap timeout as a duration.
func (g Gestures) ViewportTapTimeout() time.Duration {
	return time.Duration(g.ViewportTapTimeoutMs) * time.Millisecond
}

// PollInterval returns the cartridge sampling interval.
func (c Cartridge) PollInterval() time.Duration {
	return time.Duration(c.PollMs) * time.Millisecond
}

// Cooldown returns the minimum interval between cartridge swaps.
func (c Cartridge) Cooldown() time.Duration {
	return time.Duration(c.CooldownS) * time.Second
}

// PollInterval returns the tilt sampling interval.
func (r Rotation) PollInterval() time.Duration {
	return time.Duration(r.PollMs) * time.Millisecond
}

// Confirm returns how long the voltage must stay low before shutdown.
func (b Battery) Confirm() time.Duration {
	return time.Duration(b.ConfirmS) * time.Second
}

// PollInterval returns the battery sampling interval.
func (b Battery) PollInterval() time.Duration {
	return time.Duration(b.PollS) * time.Second
}
