// Package mapview provides the dashboard page: the control panel, the
// output surface and the SSE endpoints that drive them.
package mapview

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/countymap/internal/dashboard"
	"github.com/leapstack-labs/countymap/internal/panel"
	"github.com/leapstack-labs/countymap/internal/ui/notifier"
	"github.com/starfederation/datastar-go/datastar"
)

const (
	sessionName  = "countymap"
	selectionKey = "selection"
)

// Handlers provides HTTP handlers for the dashboard page.
type Handlers struct {
	dash         *dashboard.Dashboard
	sessionStore sessions.Store
	notifier     *notifier.Notifier[dashboard.Snapshot]
	title        string
	isDev        bool
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(dash *dashboard.Dashboard, sessionStore sessions.Store, notify *notifier.Notifier[dashboard.Snapshot], title string, isDev bool) *Handlers {
	if title == "" {
		title = "County Map"
	}
	return &Handlers{
		dash:         dash,
		sessionStore: sessionStore,
		notifier:     notify,
		title:        title,
		isDev:        isDev,
	}
}

// DashboardPage renders the full page. A selection saved in the browser's
// session is restored into the panel first.
func (h *Handlers) DashboardPage(w http.ResponseWriter, r *http.Request) {
	if sel, ok := h.loadSelection(r); ok {
		// A stale cookie (metric removed from config) is ignored.
		_ = h.dash.Panel().Apply(sel)
	}

	pd := h.panelData()
	state, err := json.Marshal(pd.Signals)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	page := PageData{
		Title:  h.title,
		IsDev:  h.isDev,
		State:  string(state),
		Panel:  pd,
		Output: outputData(h.dash.Output().Current()),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := Page(page).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// SetMode applies the signals after a toggle click and patches the period
// controls so only the one matching the new mode is visible.
func (h *Handlers) SetMode(w http.ResponseWriter, r *http.Request) {
	// Read signals BEFORE creating SSE (SSE consumes the request body)
	err := h.applySignals(w, r)

	sse := datastar.NewSSE(w, r)
	if err != nil {
		_ = sse.ConsoleError(err)
		return
	}
	if err := sse.PatchElementTempl(Controls(h.panelData())); err != nil {
		_ = sse.ConsoleError(err)
	}
}

// Generate applies the signals and runs one render. The output surface is
// cleared first, then replaced with the map or the error.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	err := h.applySignals(w, r)

	sse := datastar.NewSSE(w, r)
	if err != nil {
		_ = sse.PatchElementTempl(Output(OutputData{Error: err.Error()}))
		return
	}

	if err := sse.PatchElementTempl(Output(OutputData{Generating: true})); err != nil {
		return
	}

	// Errors are shown through the output surface.
	_, _ = h.dash.Generate(r.Context())

	if err := sse.PatchElementTempl(Output(outputData(h.dash.Output().Current()))); err != nil {
		_ = sse.ConsoleError(err)
	}
}

// Updates is the long-lived SSE endpoint. It pushes the output surface to
// every open tab when a render finishes.
func (h *Handlers) Updates(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := h.notifier.Subscribe()
	defer h.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := sse.PatchElementTempl(Output(outputData(snap))); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

func (h *Handlers) applySignals(w http.ResponseWriter, r *http.Request) error {
	var signals PanelSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		return errors.New("failed to read signals: " + err.Error())
	}
	sel, err := signals.Selection(h.dash.Panel().Calendar())
	if err != nil {
		return err
	}
	if err := h.dash.Panel().Apply(sel); err != nil {
		return err
	}
	h.saveSelection(w, r, h.dash.Panel().Selection())
	return nil
}

func (h *Handlers) panelData() PanelData {
	p := h.dash.Panel()
	cal := p.Calendar()
	sel := p.Selection()

	metrics := make([]MetricOption, 0, len(p.Metrics()))
	for _, m := range p.Metrics() {
		metrics = append(metrics, MetricOption{Value: m, Label: panel.DisplayName(m)})
	}
	opts := cal.Options()
	labels := make([]string, len(opts))
	for i, o := range opts {
		labels[i] = o.Label()
	}
	return PanelData{
		Metrics:    metrics,
		Modes:      modeOptions(),
		Labels:     labels,
		Selection:  sel,
		Signals:    signalsFor(sel, cal),
		Visibility: panel.VisibilityFor(sel.Mode),
	}
}

func (h *Handlers) loadSelection(r *http.Request) (panel.Selection, bool) {
	sess, err := h.sessionStore.Get(r, sessionName)
	if err != nil {
		return panel.Selection{}, false
	}
	raw, ok := sess.Values[selectionKey].(string)
	if !ok {
		return panel.Selection{}, false
	}
	var sel panel.Selection
	if err := json.Unmarshal([]byte(raw), &sel); err != nil {
		return panel.Selection{}, false
	}
	return sel, true
}

func (h *Handlers) saveSelection(w http.ResponseWriter, r *http.Request, sel panel.Selection) {
	sess, err := h.sessionStore.Get(r, sessionName)
	if err != nil && sess == nil {
		return
	}
	raw, err := json.Marshal(sel)
	if err != nil {
		return
	}
	sess.Values[selectionKey] = string(raw)
	_ = sess.Save(r, w)
}
