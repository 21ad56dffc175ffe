package layout

import (
	"fmt"
)

// Catalog is the fixed, ordered set of hit regions plus the viewport and
// combo zones, all in touch-device coordinates. Built once at startup;
// immutable afterwards.
type Catalog struct {
	regions  []Region
	viewport Region
	combos   []ComboZone
	// comboSizeThreshold is the minimum reported contact-major size that
	// activates a combo zone.
	comboSizeThreshold int32

	byName map[string]int
}

// NewCatalog validates and assembles a catalog. Misconfiguration here is a
// programming or config-file error, never a runtime fault.
func NewCatalog(regions []Region, viewport Region, combos []ComboZone, comboSizeThreshold int32) (*Catalog, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("catalog has no regions")
	}

	byName := make(map[string]int, len(regions))
	for i, r := range regions {
		if r.Name == "" {
			return nil, fmt.Errorf("region %d has no name", i)
		}
		if _, dup := byName[r.Name]; dup {
			return nil, fmt.Errorf("duplicate region name %q", r.Name)
		}
		if !r.Rect.Valid() {
			return nil, fmt.Errorf("region %q has invalid rect %s", r.Name, r.Rect)
		}
		if r.Keys.Zero() {
			return nil, fmt.Errorf("region %q has no key binding", r.Name)
		}
		byName[r.Name] = i
	}

	if !viewport.Rect.Valid() {
		return nil, fmt.Errorf("viewport has invalid rect %s", viewport.Rect)
	}
	if viewport.Keys.Zero() {
		return nil, fmt.Errorf("viewport has no key binding")
	}

	for _, cz := range combos {
		if !cz.Box.Valid() {
			return nil, fmt.Errorf("combo zone has invalid box %s", cz.Box)
		}
		for _, name := range cz.Regions {
			if _, ok := byName[name]; !ok {
				return nil, fmt.Errorf("combo zone references unknown region %q", name)
			}
		}
	}

	return &Catalog{
		regions:            regions,
		viewport:           viewport,
		combos:             combos,
		comboSizeThreshold: comboSizeThreshold,
		byName:             byName,
	}, nil
}

// HitTest returns the regions active for a contact at (x, y) with the given
// reported contact-major size. A large contact inside a combo zone forces
// both of the zone's regions into the result even when the raw point only
// intersects one of them. The result preserves catalog insertion order;
// empty means the point is over no discrete button.
func (c *Catalog) HitTest(x, y, touchSize int32) []Region {
	hit := make(map[string]bool, 2)

	for _, r := range c.regions {
		if r.Rect.Contains(x, y) {
			hit[r.Name] = true
		}
	}

	if touchSize >= c.comboSizeThreshold {
		for _, cz := range c.combos {
			if cz.Box.Contains(x, y) {
				hit[cz.Regions[0]] = true
				hit[cz.Regions[1]] = true
			}
		}
	}

	if len(hit) == 0 {
		return nil
	}

	out := make([]Region, 0, len(hit))
	for _, r := range c.regions {
		if hit[r.Name] {
			out = append(out, r)
		}
	}
	return out
}

// InViewport reports whether the point lies inside the viewport region.
// Only meaningful when HitTest returned empty.
func (c *Catalog) InViewport(x, y int32) bool {
	return c.viewport.Rect.Contains(x, y)
}

// Region looks up a region by name.
func (c *Catalog) Region(name string) (Region, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Region{}, false
	}
	return c.regions[i], true
}

// Regions returns the catalog's regions in insertion order.
func (c *Catalog) Regions() []Region {
	return c.regions
}

// Viewport returns the viewport region.
func (c *Catalog) Viewport() Region {
	return c.viewport
}

// ComboSizeThreshold returns the contact size threshold for combo zones.
func (c *Catalog) ComboSizeThreshold() int32 {
	return c.comboSizeThreshold
}
