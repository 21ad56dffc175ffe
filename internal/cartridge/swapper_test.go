package cartridge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"padkeyd/internal/logging"
)

type fakeUnits struct {
	restarted []string
}

func (f *fakeUnits) RestartUnit(name string) error {
	f.restarted = append(f.restarted, name)
	return nil
}

type fakeJournal struct {
	events [][3]string
}

func (f *fakeJournal) RecordEvent(source, kind, detail string) error {
	f.events = append(f.events, [3]string{source, kind, detail})
	return nil
}

const testSettings = `<?xml version="1.0"?>
<bool name="DrawFramerate" value="false" />
<string name="StartupSystem" value="gb" />
<string name="ThemeSet" value="es-theme-ssimple-ve" />
`

const testSystems = `<?xml version="1.0"?>
<systemList>
  <system><name>gb</name><fullname>Game Boy</fullname><path>/home/pi/RetroPie/roms/gb</path></system>
  <system><name>nes</name><fullname>Nintendo</fullname><path>/home/pi/RetroPie/roms/nes</path></system>
</systemList>
`

const testTheme = `<theme>
  <view name="system">
    <image name="overlay"><path>./art/gb_overlay.png</path></image>
  </view>
</theme>
`

// swapFixture lays out a fake RetroPie tree: rom dirs plus the three
// frontend files the swap patches.
func swapFixture(t *testing.T, dirs ...string) (*SystemSwapper, *fakeUnits, *fakeJournal, SwapperConfig) {
	t.Helper()
	root := t.TempDir()

	romsDir := filepath.Join(root, "roms")
	require.NoError(t, os.MkdirAll(romsDir, 0o755))
	for _, d := range dirs {
		require.NoError(t, os.Mkdir(filepath.Join(romsDir, d), 0o755))
	}

	cfg := SwapperConfig{
		RomsDir:      romsDir,
		ESSettings:   filepath.Join(root, "es_settings.cfg"),
		ESSystems:    filepath.Join(root, "es_systems.cfg"),
		ThemeXML:     filepath.Join(root, "theme.xml"),
		FrontendUnit: "emulationstation.service",
	}
	require.NoError(t, os.WriteFile(cfg.ESSettings, []byte(testSettings), 0o644))
	require.NoError(t, os.WriteFile(cfg.ESSystems, []byte(testSystems), 0o644))
	require.NoError(t, os.WriteFile(cfg.ThemeXML, []byte(testTheme), 0o644))

	units := &fakeUnits{}
	journal := &fakeJournal{}
	s := NewSystemSwapper(cfg, units, journal, logging.Default())
	return s, units, journal, cfg
}

func dirExistsAt(t *testing.T, romsDir, name string) bool {
	t.Helper()
	info, err := os.Stat(filepath.Join(romsDir, name))
	return err == nil && info.IsDir()
}

func TestSwapTogglesToSecondary(t *testing.T) {
	s, units, journal, cfg := swapFixture(t, "gb", "nes_disabled")

	assert.Equal(t, "nes", s.NextSystem())
	require.NoError(t, s.Swap())

	assert.True(t, dirExistsAt(t, cfg.RomsDir, "gb_disabled"))
	assert.True(t, dirExistsAt(t, cfg.RomsDir, "nes"))
	assert.False(t, dirExistsAt(t, cfg.RomsDir, "gb"))

	settings, err := os.ReadFile(cfg.ESSettings)
	require.NoError(t, err)
	assert.Contains(t, string(settings), `<string name="StartupSystem" value="nes" />`)
	assert.Contains(t, string(settings), "DrawFramerate")

	theme, err := os.ReadFile(cfg.ThemeXML)
	require.NoError(t, err)
	assert.Contains(t, string(theme), "nes_overlay.png")
	assert.NotContains(t, string(theme), "gb_overlay.png")

	assert.Equal(t, []string{"emulationstation.service"}, units.restarted)
	assert.Equal(t, [][3]string{{"cartridge", "swap", "nes"}}, journal.events)
}

func TestSwapTogglesBackToPrimary(t *testing.T) {
	s, _, _, cfg := swapFixture(t, "nes", "gb_disabled")

	assert.Equal(t, "gb", s.NextSystem())
	require.NoError(t, s.Swap())

	assert.True(t, dirExistsAt(t, cfg.RomsDir, "gb"))
	assert.True(t, dirExistsAt(t, cfg.RomsDir, "nes_disabled"))
}

func TestSwapBothVisibleKeepsPrimary(t *testing.T) {
	s, _, _, cfg := swapFixture(t, "gb", "nes")

	require.NoError(t, s.Swap())
	assert.True(t, dirExistsAt(t, cfg.RomsDir, "gb"))
	assert.True(t, dirExistsAt(t, cfg.RomsDir, "nes_disabled"))
}

func TestSwapBothHiddenRestoresPrimary(t *testing.T) {
	s, _, _, cfg := swapFixture(t, "gb_disabled", "nes_disabled")

	require.NoError(t, s.Swap())
	assert.True(t, dirExistsAt(t, cfg.RomsDir, "gb"))
	assert.True(t, dirExistsAt(t, cfg.RomsDir, "nes_disabled"))
}

func TestSwapFailsWithoutRomDirs(t *testing.T) {
	s, units, _, _ := swapFixture(t)

	assert.Error(t, s.Swap())
	assert.Empty(t, units.restarted)
}

func TestSwapReordersSystemList(t *testing.T) {
	s, _, _, cfg := swapFixture(t, "gb", "nes_disabled")

	require.NoError(t, s.Swap())

	data, err := os.ReadFile(cfg.ESSystems)
	require.NoError(t, err)
	content := string(data)

	// nes moved to the top; the entries keep their child elements.
	nesIdx := strings.Index(content, "<name>nes</name>")
	gbIdx := strings.Index(content, "<name>gb</name>")
	require.GreaterOrEqual(t, nesIdx, 0)
	require.GreaterOrEqual(t, gbIdx, 0)
	assert.Less(t, nesIdx, gbIdx)
	assert.Contains(t, content, "<fullname>Nintendo</fullname>")
	assert.Contains(t, content, "<path>/home/pi/RetroPie/roms/gb</path>")
}

func TestSwapSurvivesMissingFrontendFiles(t *testing.T) {
	s, units, _, cfg := swapFixture(t, "gb", "nes_disabled")
	require.NoError(t, os.Remove(cfg.ESSettings))
	require.NoError(t, os.Remove(cfg.ThemeXML))
	require.NoError(t, os.Remove(cfg.ESSystems))

	// The folder toggle is the one step that must succeed; the cosmetic
	// patches degrade to warnings.
	require.NoError(t, s.Swap())
	assert.True(t, dirExistsAt(t, cfg.RomsDir, "nes"))
	assert.Equal(t, []string{"emulationstation.service"}, units.restarted)
}
