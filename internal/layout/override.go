package layout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	evdev "github.com/holoplot/go-evdev"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// overrideSchema validates a layout override file before it is decoded, so
// a malformed file fails at startup with a precise path instead of a zero
// value sneaking into the catalog.
const overrideSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["regions", "viewport"],
  "additionalProperties": false,
  "properties": {
    "physical_width": {"type": "integer", "minimum": 1},
    "physical_height": {"type": "integer", "minimum": 1},
    "combo_size_threshold": {"type": "integer", "minimum": 0},
    "regions": {
      "type": "array",
      "minItems": 1,
      "items": {"$ref": "#/$defs/region"}
    },
    "viewport": {
      "type": "object",
      "required": ["keys", "rect"],
      "additionalProperties": false,
      "properties": {
        "keys": {"$ref": "#/$defs/keys"},
        "rect": {"$ref": "#/$defs/rect"}
      }
    },
    "combo_zones": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["rect", "regions"],
        "additionalProperties": false,
        "properties": {
          "rect": {"$ref": "#/$defs/rect"},
          "regions": {
            "type": "array",
            "minItems": 2,
            "maxItems": 2,
            "items": {"type": "string"}
          }
        }
      }
    }
  },
  "$defs": {
    "rect": {
      "type": "array",
      "minItems": 4,
      "maxItems": 4,
      "items": {"type": "integer", "minimum": 0}
    },
    "keys": {
      "type": "array",
      "minItems": 1,
      "maxItems": 2,
      "items": {"type": "string", "pattern": "^KEY_[A-Z0-9_]+$"}
    },
    "region": {
      "type": "object",
      "required": ["name", "keys", "rect"],
      "additionalProperties": false,
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "keys": {"$ref": "#/$defs/keys"},
        "rect": {"$ref": "#/$defs/rect"},
        "directional": {"type": "boolean"}
      }
    }
  }
}`

// keyCodesByName covers the key codes a layout file may bind. Kept small on
// purpose: the virtual keyboard only registers what the catalog uses.
var keyCodesByName = map[string]evdev.EvCode{
	"KEY_A":         evdev.KEY_A,
	"KEY_B":         evdev.KEY_B,
	"KEY_E":         evdev.KEY_E,
	"KEY_L":         evdev.KEY_L,
	"KEY_S":         evdev.KEY_S,
	"KEY_X":         evdev.KEY_X,
	"KEY_Y":         evdev.KEY_Y,
	"KEY_Z":         evdev.KEY_Z,
	"KEY_ENTER":     evdev.KEY_ENTER,
	"KEY_ESC":       evdev.KEY_ESC,
	"KEY_SPACE":     evdev.KEY_SPACE,
	"KEY_TAB":       evdev.KEY_TAB,
	"KEY_LEFTCTRL":  evdev.KEY_LEFTCTRL,
	"KEY_LEFTALT":   evdev.KEY_LEFTALT,
	"KEY_LEFTSHIFT": evdev.KEY_LEFTSHIFT,
	"KEY_UP":        evdev.KEY_UP,
	"KEY_DOWN":      evdev.KEY_DOWN,
	"KEY_LEFT":      evdev.KEY_LEFT,
	"KEY_RIGHT":     evdev.KEY_RIGHT,
}

type overrideFile struct {
	PhysicalWidth      int32            `json:"physical_width"`
	PhysicalHeight     int32            `json:"physical_height"`
	ComboSizeThreshold int32            `json:"combo_size_threshold"`
	Regions            []overrideRegion `json:"regions"`
	Viewport           overrideRegion   `json:"viewport"`
	ComboZones         []overrideCombo  `json:"combo_zones"`
}

type overrideRegion struct {
	Name        string   `json:"name"`
	Keys        []string `json:"keys"`
	Rect        [4]int32 `json:"rect"`
	Directional bool     `json:"directional"`
}

type overrideCombo struct {
	Rect    [4]int32  `json:"rect"`
	Regions [2]string `json:"regions"`
}

// LoadOverride reads a layout override file, validates it against the
// embedded schema, and builds a catalog scaled into the device's touch
// space.
func LoadOverride(path string, touchMaxX, touchMaxY int32) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout file: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("layout.schema.json", bytes.NewReader([]byte(overrideSchema))); err != nil {
		return nil, fmt.Errorf("compile layout schema: %w", err)
	}
	schema, err := compiler.Compile("layout.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile layout schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse layout file: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid layout file: %w", err)
	}

	var of overrideFile
	if err := json.Unmarshal(data, &of); err != nil {
		return nil, fmt.Errorf("decode layout file: %w", err)
	}

	physW, physH := of.PhysicalWidth, of.PhysicalHeight
	if physW == 0 {
		physW = PhysicalWidth
	}
	if physH == 0 {
		physH = PhysicalHeight
	}
	threshold := of.ComboSizeThreshold
	if threshold == 0 {
		threshold = DefaultComboSizeThreshold
	}

	m := NewMapper(physW, physH, touchMaxX, touchMaxY)

	regions := make([]Region, 0, len(of.Regions))
	for _, or := range of.Regions {
		r, err := or.toRegion(m)
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}

	viewport, err := of.Viewport.toRegion(m)
	if err != nil {
		return nil, err
	}
	if viewport.Name == "" {
		viewport.Name = "VIEWPORT"
	}

	combos := make([]ComboZone, 0, len(of.ComboZones))
	for _, oc := range of.ComboZones {
		combos = append(combos, ComboZone{
			Box:     m.Rect(Rect{oc.Rect[0], oc.Rect[1], oc.Rect[2], oc.Rect[3]}),
			Regions: oc.Regions,
		})
	}

	return NewCatalog(regions, viewport, combos, threshold)
}

func (or overrideRegion) toRegion(m Mapper) (Region, error) {
	binding, err := bindingFromNames(or.Keys)
	if err != nil {
		return Region{}, fmt.Errorf("region %q: %w", or.Name, err)
	}
	return Region{
		Name:        or.Name,
		Keys:        binding,
		Rect:        m.Rect(Rect{or.Rect[0], or.Rect[1], or.Rect[2], or.Rect[3]}),
		Directional: or.Directional,
	}, nil
}

func bindingFromNames(names []string) (KeyBinding, error) {
	codes := make([]evdev.EvCode, 0, 2)
	for _, name := range names {
		code, ok := keyCodesByName[name]
		if !ok {
			return KeyBinding{}, fmt.Errorf("unsupported key name %q", name)
		}
		codes = append(codes, code)
	}
	switch len(codes) {
	case 1:
		return Key(codes[0]), nil
	case 2:
		return KeyPair(codes[0], codes[1]), nil
	default:
		return KeyBinding{}, fmt.Errorf("binding needs one or two keys, got %d", len(codes))
	}
}
