package geo

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// Hatch returns the "//" hatch pattern for mp: segments of the lines
// y = x + c, spaced every spacing units along the x axis, clipped to the
// polygon interior. Holes are left unhatched.
func Hatch(mp orb.MultiPolygon, spacing float64) []orb.LineString {
	if spacing <= 0 || len(mp) == 0 {
		return nil
	}
	b := mp.Bound()
	// c = y - x ranges over the bound's corners.
	cMin := b.Min[1] - b.Max[0]
	cMax := b.Max[1] - b.Min[0]
	start := math.Ceil(cMin/spacing) * spacing

	var out []orb.LineString
	for c := start; c <= cMax; c += spacing {
		for _, p := range mp {
			out = append(out, clipDiagonal(p, c)...)
		}
	}
	return out
}

// clipDiagonal intersects the line y = x + c with polygon p using the
// even-odd rule over all rings.
func clipDiagonal(p orb.Polygon, c float64) []orb.LineString {
	var xs []float64
	for _, ring := range p {
		for i := range ring {
			a, b := ring[i], ring[(i+1)%len(ring)]
			fa := a[1] - a[0] - c
			fb := b[1] - b[0] - c
			if (fa > 0) == (fb > 0) {
				continue
			}
			t := fa / (fa - fb)
			xs = append(xs, a[0]+t*(b[0]-a[0]))
		}
	}
	if len(xs) < 2 {
		return nil
	}
	sort.Float64s(xs)

	segs := make([]orb.LineString, 0, len(xs)/2)
	for i := 0; i+1 < len(xs); i += 2 {
		x0, x1 := xs[i], xs[i+1]
		if x1-x0 <= 0 {
			continue
		}
		segs = append(segs, orb.LineString{{x0, x0 + c}, {x1, x1 + c}})
	}
	return segs
}

// HatchSpacing picks a spacing that gives roughly n hatch lines across the
// larger side of bound.
func HatchSpacing(bound orb.Bound, n int) float64 {
	if n <= 0 {
		n = 60
	}
	w := bound.Max[0] - bound.Min[0]
	h := bound.Max[1] - bound.Min[1]
	return math.Max(w, h) / float64(n)
}
