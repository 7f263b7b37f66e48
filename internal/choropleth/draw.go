package choropleth

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"github.com/leapstack-labs/countymap/internal/geo"
	"github.com/paulmach/orb"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"
)

// Format is an output image format.
type Format string

// Supported formats.
const (
	SVG Format = "svg"
	PNG Format = "png"
)

// ParseFormat accepts "svg" and "png".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case SVG, PNG:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported image format %q (want svg or png)", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == PNG {
		return "image/png"
	}
	return "image/svg+xml"
}

// Options controls the figure.
type Options struct {
	Width  vg.Length
	Height vg.Length
	Format Format
	// DPI applies to PNG output.
	DPI int
	// HatchLines is the approximate number of hatch lines across the map.
	HatchLines int
	// Labels draws county names at their label points.
	Labels bool
}

// DefaultOptions is a 6x8 inch SVG.
func DefaultOptions() Options {
	return Options{
		Width:      6 * vg.Inch,
		Height:     8 * vg.Inch,
		Format:     SVG,
		DPI:        96,
		HatchLines: 60,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.Format == "" {
		o.Format = d.Format
	}
	if o.DPI <= 0 {
		o.DPI = d.DPI
	}
	if o.HatchLines <= 0 {
		o.HatchLines = d.HatchLines
	}
	return o
}

const legendWidth = 1 * vg.Inch

var (
	baseFill  = color.Gray{Y: 0xd3} // lightgray
	edgeColor = color.Black
)

// Draw renders the hatched base layer of every county, then the coloured
// layer for data with a colour bar for scale. A nil scale draws the base
// layer only.
func Draw(set *geo.Set, data []Datum, scale *Scale, column string, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	var c vg.CanvasWriterTo
	switch opts.Format {
	case SVG:
		c = vgsvg.New(opts.Width, opts.Height)
	case PNG:
		c = vgimg.PngCanvas{Canvas: vgimg.NewWith(vgimg.UseWH(opts.Width, opts.Height), vgimg.UseDPI(opts.DPI))}
	default:
		return nil, fmt.Errorf("unsupported image format %q", opts.Format)
	}

	dc := draw.New(c)
	dc.SetColor(color.White)
	dc.Fill(dc.Rectangle.Path())

	mapArea := draw.Crop(dc, 0, -legendWidth, 0, 0)
	mapPlot, err := mapLayer(set, data, scale, opts, mapArea)
	if err != nil {
		return nil, err
	}
	mapPlot.Draw(mapArea)

	if scale != nil {
		legend, err := legendPlot(*scale, column)
		if err != nil {
			return nil, err
		}
		legendArea := draw.Crop(dc, opts.Width-legendWidth, 0, opts.Height/4, -opts.Height/4)
		legend.Draw(legendArea)
	}

	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode %s: %w", opts.Format, err)
	}
	return buf.Bytes(), nil
}

func mapLayer(set *geo.Set, data []Datum, scale *Scale, opts Options, area draw.Canvas) (*plot.Plot, error) {
	p := plot.New()
	p.HideAxes()
	p.X.Padding, p.Y.Padding = 0, 0
	p.BackgroundColor = nil

	bound := set.Bound()
	for _, c := range set.All() {
		if err := addCounty(p, c.Geometry, baseFill); err != nil {
			return nil, err
		}
	}
	p.Add(&hatchLayer{
		segments: geo.Hatch(allGeometry(set), geo.HatchSpacing(bound, opts.HatchLines)),
		style:    draw.LineStyle{Color: edgeColor, Width: vg.Points(0.3)},
	})

	if scale != nil {
		cm, err := scale.ColorMap()
		if err != nil {
			return nil, err
		}
		for _, d := range data {
			fill, err := cm.At(d.Value)
			if err != nil {
				return nil, fmt.Errorf("colour for county %s: %w", d.County.ID, err)
			}
			if err := addCounty(p, d.County.Geometry, fill); err != nil {
				return nil, err
			}
		}
	}

	if opts.Labels {
		if err := addLabels(p, set); err != nil {
			return nil, err
		}
	}

	fitAspect(p, bound, area)
	return p, nil
}

func allGeometry(set *geo.Set) orb.MultiPolygon {
	var mp orb.MultiPolygon
	for _, c := range set.All() {
		mp = append(mp, c.Geometry...)
	}
	return mp
}

// addCounty adds one filled polygon per part with black edges. Rings are
// oriented so inner rings wind opposite to the outer ring and render as
// holes.
func addCounty(p *plot.Plot, mp orb.MultiPolygon, fill color.Color) error {
	for _, poly := range mp {
		rings := make([]plotter.XYer, 0, len(poly))
		for i, r := range poly {
			want := orb.CCW
			if i > 0 {
				want = orb.CW
			}
			rings = append(rings, ringXYs(r, want))
		}
		pg, err := plotter.NewPolygon(rings...)
		if err != nil {
			return fmt.Errorf("polygon: %w", err)
		}
		pg.Color = fill
		pg.LineStyle = draw.LineStyle{Color: edgeColor, Width: vg.Points(0.5)}
		p.Add(pg)
	}
	return nil
}

func ringXYs(r orb.Ring, want orb.Orientation) plotter.XYs {
	xys := make(plotter.XYs, len(r))
	reverse := r.Orientation() != want
	for i, pt := range r {
		j := i
		if reverse {
			j = len(r) - 1 - i
		}
		xys[j] = plotter.XY{X: pt[0], Y: pt[1]}
	}
	return xys
}

func addLabels(p *plot.Plot, set *geo.Set) error {
	all := set.All()
	l := plotter.XYLabels{XYs: make(plotter.XYs, len(all)), Labels: make([]string, len(all))}
	for i, c := range all {
		l.XYs[i] = plotter.XY{X: c.Label[0], Y: c.Label[1]}
		l.Labels[i] = c.Name
	}
	labels, err := plotter.NewLabels(l)
	if err != nil {
		return fmt.Errorf("labels: %w", err)
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].Font.Size = vg.Points(5)
		labels.TextStyle[i].XAlign = text.XCenter
		labels.TextStyle[i].YAlign = text.YCenter
	}
	p.Add(labels)
	return nil
}

// fitAspect widens the data range along one axis so map units are square
// on the canvas.
func fitAspect(p *plot.Plot, b orb.Bound, area draw.Canvas) {
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	aw := float64(area.Max.X - area.Min.X)
	ah := float64(area.Max.Y - area.Min.Y)
	if w <= 0 || h <= 0 || aw <= 0 || ah <= 0 {
		return
	}
	s := math.Min(aw/w, ah/h)
	cx, cy := (b.Min[0]+b.Max[0])/2, (b.Min[1]+b.Max[1])/2
	hw, hh := aw/s/2, ah/s/2
	p.X.Min, p.X.Max = cx-hw, cx+hw
	p.Y.Min, p.Y.Max = cy-hh, cy+hh
}

func legendPlot(s Scale, column string) (*plot.Plot, error) {
	cm, err := s.ColorMap()
	if err != nil {
		return nil, err
	}
	p := plot.New()
	p.HideX()
	p.BackgroundColor = nil
	p.Y.Label.Text = column
	p.Add(&plotter.ColorBar{ColorMap: cm, Vertical: true})
	return p, nil
}

// hatchLayer strokes the "//" base layer pattern.
type hatchLayer struct {
	segments []orb.LineString
	style    draw.LineStyle
}

// Plot implements plot.Plotter.
func (h *hatchLayer) Plot(c draw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&c)
	for _, s := range h.segments {
		c.StrokeLine2(h.style, trX(s[0][0]), trY(s[0][1]), trX(s[1][0]), trY(s[1][1]))
	}
}
