package mapview

import (
	"fmt"

	"github.com/leapstack-labs/countymap/internal/dashboard"
	"github.com/leapstack-labs/countymap/internal/panel"
	"github.com/leapstack-labs/countymap/internal/period"
)

// PanelSignals are the datastar signals bound to the control panel. Periods
// are slider positions in the calendar.
type PanelSignals struct {
	Metric     string `json:"metric"`
	Mode       string `json:"mode"`
	Period     int    `json:"period"`
	RangeStart int    `json:"rangeStart"`
	RangeEnd   int    `json:"rangeEnd"`
}

// signalsFor converts a selection to slider positions.
func signalsFor(sel panel.Selection, cal period.Calendar) PanelSignals {
	return PanelSignals{
		Metric:     sel.Metric,
		Mode:       sel.Mode.String(),
		Period:     cal.Index(sel.Period),
		RangeStart: cal.Index(sel.Range.Start),
		RangeEnd:   cal.Index(sel.Range.End),
	}
}

// Selection converts signals to a panel selection. A range dragged past
// itself is put back in order.
func (s PanelSignals) Selection(cal period.Calendar) (panel.Selection, error) {
	mode, err := panel.ParseMode(s.Mode)
	if err != nil {
		return panel.Selection{}, err
	}
	per, ok := cal.At(s.Period)
	if !ok {
		return panel.Selection{}, &panel.InvalidSelectionError{Control: "period", Value: fmt.Sprint(s.Period), Reason: "slider position out of range"}
	}
	lo, hi := s.RangeStart, s.RangeEnd
	if lo > hi {
		lo, hi = hi, lo
	}
	start, ok1 := cal.At(lo)
	end, ok2 := cal.At(hi)
	if !ok1 || !ok2 {
		return panel.Selection{}, &panel.InvalidSelectionError{Control: "range", Value: fmt.Sprintf("%d-%d", lo, hi), Reason: "slider position out of range"}
	}
	return panel.Selection{
		Metric: s.Metric,
		Mode:   mode,
		Period: per,
		Range:  period.Range{Start: start, End: end},
	}, nil
}

// MetricOption is one dropdown entry.
type MetricOption struct {
	Value string
	Label string
}

// PanelData is everything the control panel renders.
type PanelData struct {
	Metrics    []MetricOption
	Modes      []panel.Mode
	Labels     []string
	Selection  panel.Selection
	Signals    PanelSignals
	Visibility panel.Visibility
}

// OutputData is the output surface view.
type OutputData struct {
	Version    uint64
	Generating bool
	Error      string
	Empty      bool
	ImageURL   string
	Column     string
	Mode       string
	Label      string
	Rows       int
	Coloured   int
	Min, Max   float64
	DurationMS int64
}

// PageData is the full dashboard page.
type PageData struct {
	Title  string
	IsDev  bool
	State  string
	Panel  PanelData
	Output OutputData
}

func outputData(snap dashboard.Snapshot) OutputData {
	out := OutputData{Version: snap.Version}
	if snap.Err != nil {
		out.Error = snap.Err.Error()
		return out
	}
	r := snap.Render
	if r == nil {
		return out
	}
	out.ImageURL = fmt.Sprintf("/map.%s?v=%d", r.Format, snap.Version)
	out.Column = r.Column
	out.Mode = r.Selection.Mode.String()
	out.Rows = r.ResultRows
	out.Coloured = len(r.Data)
	out.Empty = r.Empty()
	out.DurationMS = r.Duration.Milliseconds()
	if r.Selection.Mode == panel.ChangeMode {
		out.Label = r.Selection.Range.String()
	} else {
		out.Label = r.Selection.Period.String()
	}
	if r.Scale != nil {
		out.Min, out.Max = r.Scale.Min, r.Scale.Max
	}
	return out
}
