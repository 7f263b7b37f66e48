package choropleth

import (
	"image/color"
	"math"

	"github.com/leapstack-labs/countymap/internal/panel"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// ScaleKind distinguishes the two colour scales.
type ScaleKind int

// Scale kinds.
const (
	Sequential ScaleKind = iota
	Diverging
)

func (k ScaleKind) String() string {
	if k == Diverging {
		return "diverging"
	}
	return "sequential"
}

// Scale is the value range the colour map spans.
type Scale struct {
	Kind ScaleKind
	Min  float64
	Max  float64
}

// ScaleFor computes the colour scale for the coloured rows: min..max for
// Count, [-b, b] with b = max |v| for Change. It returns nil for no rows.
func ScaleFor(mode panel.Mode, data []Datum) *Scale {
	if len(data) == 0 {
		return nil
	}
	if mode == panel.ChangeMode {
		var b float64
		for _, d := range data {
			b = math.Max(b, math.Abs(d.Value))
		}
		return &Scale{Kind: Diverging, Min: -b, Max: b}
	}
	s := &Scale{Kind: Sequential, Min: data[0].Value, Max: data[0].Value}
	for _, d := range data[1:] {
		s.Min = math.Min(s.Min, d.Value)
		s.Max = math.Max(s.Max, d.Value)
	}
	return s
}

// Symmetric reports whether the bounds are centred at zero.
func (s Scale) Symmetric() bool {
	return s.Max == -s.Min
}

// span returns the range the colour map is built over. A single-valued
// scale is widened so the map and its colour bar stay drawable.
func (s Scale) span() (lo, hi float64) {
	lo, hi = s.Min, s.Max
	if hi > lo {
		return lo, hi
	}
	pad := math.Abs(lo) / 2
	if pad == 0 {
		pad = 1
	}
	return lo - pad, hi + pad
}

// Sequential palette controls, darkest first: a single green hue from
// near black to near white.
var sequentialControls = []color.Color{
	color.NRGBA{R: 0x0f, G: 0x24, B: 0x18, A: 0xff},
	color.NRGBA{R: 0x1f, G: 0x5c, B: 0x3a, A: 0xff},
	color.NRGBA{R: 0x3f, G: 0x96, B: 0x62, A: 0xff},
	color.NRGBA{R: 0x8c, G: 0xc9, B: 0x9f, A: 0xff},
	color.NRGBA{R: 0xee, G: 0xf6, B: 0xef, A: 0xff},
}

// Diverging end points: red for decline, green for growth.
var (
	declineColor = color.NRGBA{R: 0xc2, G: 0x3b, B: 0x3b, A: 0xff}
	growthColor  = color.NRGBA{R: 0x2f, G: 0x8f, B: 0x5b, A: 0xff}
)

// ColorMap builds the palette for the scale: light to dark green for
// sequential scales, red through a light centre to green for diverging.
func (s Scale) ColorMap() (palette.ColorMap, error) {
	lo, hi := s.span()
	var cm palette.ColorMap
	if s.Kind == Diverging {
		cm = moreland.NewSmoothDiverging(declineColor, growthColor, 88)
	} else {
		l, err := moreland.NewLuminance(sequentialControls)
		if err != nil {
			return nil, err
		}
		cm = l
	}
	cm.SetMin(lo)
	cm.SetMax(hi)
	if s.Kind == Sequential {
		// Low values light, high values dark.
		cm = palette.Reverse(cm)
	}
	return cm, nil
}
