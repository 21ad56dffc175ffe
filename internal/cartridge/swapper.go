package cartridge

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"padkeyd/internal/logging"
)

// disabledSuffix marks a system's rom directory as hidden from the
// frontend. EmulationStation only lists systems whose rom path exists.
const disabledSuffix = "_disabled"

// UnitRestarter restarts a systemd unit.
type UnitRestarter interface {
	RestartUnit(name string) error
}

// Journal records swap events. May be nil when journaling is disabled.
type Journal interface {
	RecordEvent(source, kind, detail string) error
}

// SwapperConfig names the two systems and the files the swap touches.
type SwapperConfig struct {
	// Systems are the two toggled system names, primary first. The
	// primary wins whenever the on-disk state is ambiguous.
	Systems [2]string

	RomsDir      string
	ESSettings   string
	ESSystems    string
	ThemeXML     string
	FrontendUnit string
}

// SystemSwapper toggles which of the two systems is visible: it renames
// the rom directories, points the frontend's startup system and theme
// overlay at the new one, reorders the system list, and bounces the
// frontend unit.
type SystemSwapper struct {
	cfg     SwapperConfig
	units   UnitRestarter
	journal Journal
	log     *logging.Logger
}

// NewSystemSwapper creates a swapper. units may be nil when no frontend
// restart is wanted (tests, dry runs).
func NewSystemSwapper(cfg SwapperConfig, units UnitRestarter, journal Journal, log *logging.Logger) *SystemSwapper {
	if cfg.Systems[0] == "" {
		cfg.Systems = [2]string{"gb", "nes"}
	}
	return &SystemSwapper{cfg: cfg, units: units, journal: journal, log: log}
}

// NextSystem reports which system a swap would activate, from the on-disk
// directory state.
func (s *SystemSwapper) NextSystem() string {
	a, b := s.cfg.Systems[0], s.cfg.Systems[1]
	if s.dirExists(a) && s.dirExists(b+disabledSuffix) {
		return b
	}
	return a
}

// Swap performs the full toggle. Frontend settings that fail to patch are
// logged and skipped; a half-themed frontend beats an aborted swap.
func (s *SystemSwapper) Swap() error {
	active, err := s.toggleFolders()
	if err != nil {
		return err
	}

	if err := s.updateStartupSystem(active); err != nil {
		s.log.Warn("startup system not updated", "error", err)
	}
	if err := s.updateThemeOverlay(active); err != nil {
		s.log.Warn("theme overlay not updated", "error", err)
	}
	if err := s.moveSystemToTop(active); err != nil {
		s.log.Warn("system list not reordered", "error", err)
	}

	if s.units != nil {
		if err := s.units.RestartUnit(s.cfg.FrontendUnit); err != nil {
			s.log.Error("frontend restart failed", "unit", s.cfg.FrontendUnit, "error", err)
		}
	}

	if s.journal != nil {
		if err := s.journal.RecordEvent("cartridge", "swap", active); err != nil {
			s.log.Warn("swap not journaled", "error", err)
		}
	}

	s.log.Info("system swapped", "active", active)
	return nil
}

// toggleFolders renames the rom directories so exactly one system is
// visible, and returns its name. Ambiguous states (both visible, both
// hidden) resolve to the primary system.
func (s *SystemSwapper) toggleFolders() (string, error) {
	a, b := s.cfg.Systems[0], s.cfg.Systems[1]

	switch {
	case s.dirExists(a) && s.dirExists(b+disabledSuffix):
		if err := s.rename(a, a+disabledSuffix); err != nil {
			return "", err
		}
		if err := s.rename(b+disabledSuffix, b); err != nil {
			return "", err
		}
		return b, nil

	case s.dirExists(b) && s.dirExists(a+disabledSuffix):
		if err := s.rename(b, b+disabledSuffix); err != nil {
			return "", err
		}
		if err := s.rename(a+disabledSuffix, a); err != nil {
			return "", err
		}
		return a, nil

	case s.dirExists(a) && s.dirExists(b):
		if err := s.rename(b, b+disabledSuffix); err != nil {
			return "", err
		}
		return a, nil

	case s.dirExists(a+disabledSuffix) && s.dirExists(b+disabledSuffix):
		if err := s.rename(a+disabledSuffix, a); err != nil {
			return "", err
		}
		return a, nil
	}

	return "", fmt.Errorf("rom directories for %s/%s not found under %s", a, b, s.cfg.RomsDir)
}

func (s *SystemSwapper) dirExists(name string) bool {
	info, err := os.Stat(filepath.Join(s.cfg.RomsDir, name))
	return err == nil && info.IsDir()
}

func (s *SystemSwapper) rename(from, to string) error {
	src := filepath.Join(s.cfg.RomsDir, from)
	dst := filepath.Join(s.cfg.RomsDir, to)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("rename rom directory: %w", err)
	}
	return nil
}

// updateStartupSystem rewrites the StartupSystem line of es_settings.cfg
// in place, preserving every other line untouched.
func (s *SystemSwapper) updateStartupSystem(system string) error {
	data, err := os.ReadFile(s.cfg.ESSettings)
	if err != nil {
		return err
	}

	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		if strings.Contains(line, `<string name="StartupSystem"`) {
			lines[i] = fmt.Sprintf(`<string name="StartupSystem" value="%s" />`, system)
			break
		}
	}

	return os.WriteFile(s.cfg.ESSettings, []byte(strings.Join(lines, "\n")), 0o644)
}

// updateThemeOverlay swaps the bezel image reference in the theme so the
// frontend shows the active system's shell artwork.
func (s *SystemSwapper) updateThemeOverlay(system string) error {
	other := s.cfg.Systems[0]
	if system == other {
		other = s.cfg.Systems[1]
	}
	oldOverlay := other + "_overlay.png"
	newOverlay := system + "_overlay.png"

	data, err := os.ReadFile(s.cfg.ThemeXML)
	if err != nil {
		return err
	}
	content := string(data)
	if !strings.Contains(content, oldOverlay) {
		return nil
	}

	content = strings.ReplaceAll(content, oldOverlay, newOverlay)
	return os.WriteFile(s.cfg.ThemeXML, []byte(content), 0o644)
}

// esSystem is one <system> entry. InnerXML keeps the entry's children
// verbatim so a rewrite never loses fields this code does not know about.
type esSystem struct {
	Name     string `xml:"name"`
	InnerXML string `xml:",innerxml"`
}

type esSystemList struct {
	XMLName xml.Name   `xml:"systemList"`
	Systems []esSystem `xml:"system"`
}

// moveSystemToTop reorders es_systems.cfg so the active system is listed
// first, which makes the frontend land on it after restart.
func (s *SystemSwapper) moveSystemToTop(system string) error {
	data, err := os.ReadFile(s.cfg.ESSystems)
	if err != nil {
		return err
	}

	var list esSystemList
	if err := xml.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parse system list: %w", err)
	}

	idx := -1
	for i, sys := range list.Systems {
		if sys.Name == system {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return nil
	}

	moved := list.Systems[idx]
	list.Systems = append(list.Systems[:idx], list.Systems[idx+1:]...)
	list.Systems = append([]esSystem{moved}, list.Systems...)

	var sb strings.Builder
	sb.WriteString("<?xml version=\"1.0\"?>\n<systemList>\n")
	for _, sys := range list.Systems {
		sb.WriteString("  <system>")
		sb.WriteString(sys.InnerXML)
		sb.WriteString("</system>\n")
	}
	sb.WriteString("</systemList>\n")

	return os.WriteFile(s.cfg.ESSystems, []byte(sb.String()), 0o644)
}
