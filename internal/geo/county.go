// Package geo holds the county geometry set used as the map's base layer and
// join target.
package geo

import (
	"fmt"
	"slices"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// County is one row of the boundary table.
type County struct {
	ID       string
	Name     string
	Geometry orb.MultiPolygon
	// Label is a point inside the county for placing text.
	Label orb.Point
}

// Set is the immutable county geometry set of one state.
type Set struct {
	stateFP  string
	counties []County
	byID     map[string]int
	bound    orb.Bound
}

// NewSet indexes counties by ID. Labels are computed for counties that do
// not carry one.
func NewSet(stateFP string, counties []County) (*Set, error) {
	s := &Set{
		stateFP:  stateFP,
		counties: make([]County, 0, len(counties)),
		byID:     make(map[string]int, len(counties)),
	}
	for i, c := range counties {
		if c.ID == "" {
			return nil, fmt.Errorf("county %d (%s) has no id", i, c.Name)
		}
		if _, dup := s.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate county id %q", c.ID)
		}
		if len(c.Geometry) == 0 {
			return nil, fmt.Errorf("county %q has no geometry", c.ID)
		}
		if c.Label == (orb.Point{}) {
			c.Label = RepresentativePoint(c.Geometry)
		}
		if len(s.counties) == 0 {
			s.bound = c.Geometry.Bound()
		} else {
			s.bound = s.bound.Union(c.Geometry.Bound())
		}
		s.byID[c.ID] = len(s.counties)
		s.counties = append(s.counties, c)
	}
	return s, nil
}

// StateFP returns the state identifier the set was loaded for.
func (s *Set) StateFP() string { return s.stateFP }

// Len returns the number of counties.
func (s *Set) Len() int { return len(s.counties) }

// All returns the counties in load order.
func (s *Set) All() []County { return slices.Clone(s.counties) }

// Lookup finds a county by ID.
func (s *Set) Lookup(id string) (County, bool) {
	i, ok := s.byID[id]
	if !ok {
		return County{}, false
	}
	return s.counties[i], true
}

// Bound is the bounding box of every county.
func (s *Set) Bound() orb.Bound { return s.bound }

// FeatureCollection exports the set as GeoJSON. props, if set, supplies extra
// properties per county; returning nil drops the county from the export.
func (s *Set) FeatureCollection(props func(County) map[string]any) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range s.counties {
		f := geojson.NewFeature(c.Geometry)
		f.ID = c.ID
		f.Properties["countyfp"] = c.ID
		f.Properties["name"] = c.Name
		if props != nil {
			extra := props(c)
			if extra == nil {
				continue
			}
			for k, v := range extra {
				f.Properties[k] = v
			}
		}
		fc.Append(f)
	}
	return fc
}

// ToMultiPolygon accepts the polygon geometries a boundary table can hold.
func ToMultiPolygon(g orb.Geometry) (orb.MultiPolygon, error) {
	switch v := g.(type) {
	case orb.MultiPolygon:
		return v, nil
	case orb.Polygon:
		return orb.MultiPolygon{v}, nil
	case orb.Collection:
		var mp orb.MultiPolygon
		for _, part := range v {
			sub, err := ToMultiPolygon(part)
			if err != nil {
				return nil, err
			}
			mp = append(mp, sub...)
		}
		return mp, nil
	case nil:
		return nil, fmt.Errorf("geometry is null")
	default:
		return nil, fmt.Errorf("unsupported geometry type %s", g.GeoJSONType())
	}
}

// RepresentativePoint returns a point guaranteed to lie inside the largest
// polygon of mp. It scans the horizontal line through the middle of the
// polygon's bound and takes the midpoint of the widest interior interval.
func RepresentativePoint(mp orb.MultiPolygon) orb.Point {
	if len(mp) == 0 {
		return orb.Point{}
	}
	largest := mp[0]
	largestArea := planar.Area(largest)
	for _, p := range mp[1:] {
		if a := planar.Area(p); a > largestArea {
			largest, largestArea = p, a
		}
	}

	b := largest.Bound()
	y := (b.Min[1] + b.Max[1]) / 2
	xs := scanline(largest, y)
	best, bestWidth := orb.Point{}, -1.0
	for i := 0; i+1 < len(xs); i += 2 {
		if w := xs[i+1] - xs[i]; w > bestWidth {
			best, bestWidth = orb.Point{(xs[i] + xs[i+1]) / 2, y}, w
		}
	}
	if bestWidth <= 0 {
		c, _ := planar.CentroidArea(largest)
		return c
	}
	return best
}

// scanline returns the sorted x coordinates where the horizontal line at y
// crosses the polygon's rings.
func scanline(p orb.Polygon, y float64) []float64 {
	var xs []float64
	for _, ring := range p {
		for i := range ring {
			a, b := ring[i], ring[(i+1)%len(ring)]
			if (a[1] > y) == (b[1] > y) {
				continue
			}
			t := (y - a[1]) / (b[1] - a[1])
			xs = append(xs, a[0]+t*(b[0]-a[0]))
		}
	}
	sort.Float64s(xs)
	return xs
}
