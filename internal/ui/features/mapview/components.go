package mapview

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"
	"github.com/leapstack-labs/countymap/internal/panel"
	"github.com/leapstack-labs/countymap/internal/ui/resources"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

// html collects writes and keeps the first error.
type html struct {
	w   io.Writer
	err error
}

func (h *html) printf(format string, args ...any) {
	if h.err != nil {
		return
	}
	_, h.err = fmt.Fprintf(h.w, format, args...)
}

func (h *html) render(ctx context.Context, c templ.Component) {
	if h.err != nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

func esc(s string) string { return templ.EscapeString(s) }

// Page is the full dashboard document.
func Page(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.printf(`<!doctype html><html lang="en"><head><meta charset="utf-8">`)
		h.printf(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.printf(`<title>%s - countymap</title>`, esc(data.Title))
		h.printf(`<link rel="stylesheet" href="%s">`, resources.StaticPath("style.css"))
		h.printf(`<script type="module" src="%s"></script>`, datastarScript)
		h.printf(`</head><body>`)
		h.printf(`<main id="app" data-signals="%s" data-init="@get('/updates')">`, esc(data.State))
		if data.IsDev {
			h.printf(`<div data-init="@get('/reload')"></div>`)
		}
		h.printf(`<h1>%s</h1>`, esc(data.Title))
		h.render(ctx, Controls(data.Panel))
		h.render(ctx, Output(data.Output))
		h.printf(`</main></body></html>`)
		return h.err
	})
}

// Controls is the control panel: metric dropdown, mode toggle, both period
// selectors and the Generate button.
func Controls(data PanelData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.printf(`<section id="controls" class="panel">`)

		h.printf(`<label class="row">Metric <select data-bind:metric>`)
		for _, m := range data.Metrics {
			sel := ""
			if m.Value == data.Selection.Metric {
				sel = " selected"
			}
			h.printf(`<option value="%s"%s>%s</option>`, esc(m.Value), sel, esc(m.Label))
		}
		h.printf(`</select></label>`)

		h.printf(`<div class="row toggle" role="group">`)
		for _, m := range data.Modes {
			cls := ""
			if m == data.Selection.Mode {
				cls = ` class="active"`
			}
			h.printf(`<button type="button" id="mode-%s"%s title="%s" data-on:click="$mode = '%s'; @post('/panel/mode')">%s</button>`,
				esc(m.String()), cls, esc(m.Tooltip()), esc(m.String()), esc(m.String()))
		}
		h.printf(`</div>`)

		h.render(ctx, PeriodControls(data))

		h.printf(`<div class="row"><button type="button" id="generate" title="Generate Plot" data-on:click="@post('/panel/generate')">Generate Plot</button></div>`)
		h.printf(`</section>`)
		return h.err
	})
}

// PeriodControls holds the quarter selector and the range selector; exactly
// one of them is visible.
func PeriodControls(data PanelData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		last := strconv.Itoa(len(data.Labels) - 1)
		h.printf(`<div id="period-controls" class="periods">`)

		h.printf(`<div id="period-control" class="row"%s>`, hidden(!data.Visibility.Period))
		h.printf(`<label>Quarter <input type="range" min="0" max="%s" data-bind:period></label>`, last)
		h.printf(`<output>%s</output></div>`, esc(label(data.Labels, data.Signals.Period)))

		h.printf(`<div id="range-control" class="row"%s>`, hidden(!data.Visibility.Range))
		h.printf(`<label>Time Range <input type="range" min="0" max="%s" data-bind:range-start>`, last)
		h.printf(`<input type="range" min="0" max="%s" data-bind:range-end></label>`, last)
		h.printf(`<output>%s to %s</output></div>`,
			esc(label(data.Labels, data.Signals.RangeStart)), esc(label(data.Labels, data.Signals.RangeEnd)))

		h.printf(`</div>`)
		return h.err
	})
}

// Output is the output surface.
func Output(data OutputData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		h.printf(`<section id="output" class="output" data-version="%d">`, data.Version)
		switch {
		case data.Generating:
			h.printf(`<p class="muted">Generating…</p>`)
		case data.Error != "":
			h.printf(`<pre class="error">%s</pre>`, esc(data.Error))
		case data.ImageURL == "":
			h.printf(`<p class="muted">Pick a metric and period, then Generate Plot.</p>`)
		default:
			h.printf(`<img src="%s" alt="%s map">`, esc(data.ImageURL), esc(data.Column))
			h.printf(`<p class="summary">%s %s, %s: `, esc(data.Mode), esc(data.Column), esc(data.Label))
			if data.Empty {
				h.printf(`no counties with data (%d rows)`, data.Rows)
			} else {
				h.printf(`%d of %d rows coloured, scale %s to %s`, data.Coloured, data.Rows,
					strconv.FormatFloat(data.Min, 'g', 6, 64), strconv.FormatFloat(data.Max, 'g', 6, 64))
			}
			h.printf(` (%d ms)</p>`, data.DurationMS)
		}
		h.printf(`</section>`)
		return h.err
	})
}

func hidden(b bool) string {
	if b {
		return ` style="visibility: hidden"`
	}
	return ""
}

func label(labels []string, i int) string {
	if i < 0 || i >= len(labels) {
		return ""
	}
	return labels[i]
}

// modeOptions keeps the toggle order.
func modeOptions() []panel.Mode { return panel.Modes() }
