package mapview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/countymap/internal/panel"
	"github.com/leapstack-labs/countymap/internal/period"
	"github.com/leapstack-labs/countymap/internal/ui/features"
)

// =============================================================================
// Test Setup Helpers
// =============================================================================

func setupTestHandlers(t *testing.T) (*Handlers, *features.TestFixture) {
	t.Helper()

	fixture := features.SetupTestFixture(t)
	handlers := NewHandlers(
		fixture.Dashboard,
		fixture.SessionStore,
		fixture.Notifier,
		"Illinois",
		true, // isDev
	)
	return handlers, fixture
}

func postSignals(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/panel/mode", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// lockedRecorder lets a test read a streaming response while the handler
// is still writing.
type lockedRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (l *lockedRecorder) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ResponseRecorder.Write(b)
}

func (l *lockedRecorder) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ResponseRecorder.Flush()
}

func (l *lockedRecorder) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Body.String()
}

// =============================================================================
// DashboardPage Tests
// =============================================================================

func TestDashboardPage(t *testing.T) {
	handlers, _ := setupTestHandlers(t)

	rec := httptest.NewRecorder()
	handlers.DashboardPage(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, want := range []string{
		"<!doctype html>",
		"<title>Illinois - countymap</title>",
		"data-init",
		"/updates",
		"/reload",
		`id="controls"`,
		`id="period-controls"`,
		`id="output"`,
		`<option value="jobs" selected>Jobs</option>`,
		`<option value="wages">Wages</option>`,
		"Display absolute counts",
		"Display change over time",
		" Q1 2005 ",
		"Generate Plot",
	} {
		assert.Contains(t, body, want)
	}

	// Count mode shows the quarter selector and hides the range selector.
	assert.Contains(t, body, `<div id="period-control" class="row">`)
	assert.Contains(t, body, `<div id="range-control" class="row" style="visibility: hidden">`)
}

func TestDashboardPage_RestoresSessionSelection(t *testing.T) {
	handlers, fixture := setupTestHandlers(t)

	rec := httptest.NewRecorder()
	handlers.SetMode(rec, postSignals(`{"metric":"wages","mode":"Change","period":0,"rangeStart":4,"rangeEnd":8}`))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	// Another tab moved the shared panel back to the defaults.
	p := fixture.Dashboard.Panel()
	require.NoError(t, p.SetMode(panel.CountMode))
	require.NoError(t, p.SetMetric("jobs"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	handlers.DashboardPage(rec, req)

	sel := p.Selection()
	assert.Equal(t, "wages", sel.Metric)
	assert.Equal(t, panel.ChangeMode, sel.Mode)
	assert.Equal(t, period.Period{Quarter: 1, Year: 2006}, sel.Range.Start)
	assert.Contains(t, rec.Body.String(), `<option value="wages" selected>Wages</option>`)
}

// =============================================================================
// SetMode Tests - SSE patches of the control panel
// =============================================================================

func TestSetMode(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantMode  panel.Mode
		wantBody  []string
		wantError bool
	}{
		{
			name:     "change shows the range selector",
			body:     `{"metric":"jobs","mode":"Change","period":0,"rangeStart":0,"rangeEnd":43}`,
			wantMode: panel.ChangeMode,
			wantBody: []string{
				"datastar-patch-elements",
				`id="controls"`,
				`<div id="period-control" class="row" style="visibility: hidden">`,
				`<div id="range-control" class="row">`,
				`id="mode-Change" class="active"`,
			},
		},
		{
			name:     "count shows the quarter selector",
			body:     `{"metric":"jobs","mode":"Count","period":3,"rangeStart":0,"rangeEnd":43}`,
			wantMode: panel.CountMode,
			wantBody: []string{
				`<div id="period-control" class="row">`,
				`<div id="range-control" class="row" style="visibility: hidden">`,
				" Q4 2005 ",
			},
		},
		{
			name:      "unknown mode is reported to the console",
			body:      `{"metric":"jobs","mode":"Sideways","period":0,"rangeStart":0,"rangeEnd":43}`,
			wantMode:  panel.CountMode,
			wantBody:  []string{"console.error"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers, fixture := setupTestHandlers(t)

			rec := httptest.NewRecorder()
			handlers.SetMode(rec, postSignals(tt.body))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
			for _, want := range tt.wantBody {
				assert.Contains(t, rec.Body.String(), want)
			}
			assert.Equal(t, tt.wantMode, fixture.Dashboard.Panel().Mode())
			if !tt.wantError {
				assert.NotEmpty(t, rec.Result().Cookies(), "selection should be saved in the session")
			}
		})
	}
}

func TestSetMode_NoRender(t *testing.T) {
	handlers, fixture := setupTestHandlers(t)

	handlers.SetMode(httptest.NewRecorder(), postSignals(`{"metric":"jobs","mode":"Change","period":0,"rangeStart":0,"rangeEnd":43}`))

	assert.Empty(t, fixture.Runner.Queries, "toggling the mode must not run a query")
	assert.Nil(t, fixture.Dashboard.Output().Current().Render)
}

// =============================================================================
// Generate Tests
// =============================================================================

func TestGenerate_Count(t *testing.T) {
	handlers, fixture := setupTestHandlers(t)

	rec := httptest.NewRecorder()
	handlers.Generate(rec, postSignals(`{"metric":"jobs","mode":"Count","period":5,"rangeStart":0,"rangeEnd":43}`))

	body := rec.Body.String()
	// The output is cleared before the map arrives.
	generating := strings.Index(body, "Generating")
	img := strings.Index(body, "/map.svg?v=1")
	require.NotEqual(t, -1, generating)
	require.NotEqual(t, -1, img)
	assert.Less(t, generating, img)
	assert.Contains(t, body, "1 of 2 rows coloured")

	assert.Equal(t, "SELECT cnty, jobs FROM qcew WHERE qtr = 2 AND year = 2006", fixture.Runner.LastQuery())
}

func TestGenerate_ChangeSwapsInvertedRange(t *testing.T) {
	handlers, fixture := setupTestHandlers(t)

	rec := httptest.NewRecorder()
	handlers.Generate(rec, postSignals(`{"metric":"jobs","mode":"Change","period":0,"rangeStart":43,"rangeEnd":0}`))

	assert.Equal(t, "SELECT cnty, change_in_jobs_pct FROM qcew_change(1, 2005, 4, 2015)", fixture.Runner.LastQuery())
	assert.Contains(t, rec.Body.String(), "2 of 2 rows coloured, scale -15 to 15")
}

func TestGenerate_QueryErrorShownInOutput(t *testing.T) {
	handlers, fixture := setupTestHandlers(t)
	fixture.Runner.Err = assert.AnError

	rec := httptest.NewRecorder()
	handlers.Generate(rec, postSignals(`{"metric":"jobs","mode":"Count","period":0,"rangeStart":0,"rangeEnd":43}`))

	assert.Contains(t, rec.Body.String(), `class="error"`)
	assert.Contains(t, rec.Body.String(), assert.AnError.Error())
	assert.Error(t, fixture.Dashboard.Output().Current().Err)
}

func TestGenerate_InvalidSignals(t *testing.T) {
	handlers, fixture := setupTestHandlers(t)

	rec := httptest.NewRecorder()
	handlers.Generate(rec, postSignals(`{"metric":"jobs","mode":"Count","period":99,"rangeStart":0,"rangeEnd":43}`))

	assert.Contains(t, rec.Body.String(), "slider position out of range")
	assert.Empty(t, fixture.Runner.Queries)
}

// =============================================================================
// Updates Tests - long-lived SSE stream
// =============================================================================

func TestUpdates_PushesFinishedRender(t *testing.T) {
	handlers, fixture := setupTestHandlers(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/updates", nil).WithContext(ctx)
	rec := &lockedRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		defer close(done)
		handlers.Updates(rec, req)
	}()

	require.Eventually(t, func() bool { return fixture.Notifier.Len() == 1 }, time.Second, 5*time.Millisecond)

	_, err := fixture.Dashboard.Generate(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(rec.String(), "/map.svg?v=1")
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Updates did not return after the request was cancelled")
	}
	assert.Equal(t, 0, fixture.Notifier.Len())
}

// =============================================================================
// Signals
// =============================================================================

func TestPanelSignals_Selection(t *testing.T) {
	cal := period.DefaultCalendar()

	sel, err := PanelSignals{Metric: "jobs", Mode: "Change", Period: 2, RangeStart: 10, RangeEnd: 3}.Selection(cal)
	require.NoError(t, err)
	assert.Equal(t, panel.ChangeMode, sel.Mode)
	assert.Equal(t, period.Period{Quarter: 3, Year: 2005}, sel.Period)
	assert.Equal(t, period.Period{Quarter: 4, Year: 2005}, sel.Range.Start)
	assert.Equal(t, period.Period{Quarter: 3, Year: 2007}, sel.Range.End)

	_, err = PanelSignals{Metric: "jobs", Mode: "Count", Period: -1}.Selection(cal)
	var invalid *panel.InvalidSelectionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "period", invalid.Control)

	_, err = PanelSignals{Metric: "jobs", Mode: "Count", RangeEnd: 44}.Selection(cal)
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "range", invalid.Control)

	_, err = PanelSignals{Mode: "bogus"}.Selection(cal)
	assert.Error(t, err)
}

func TestSignalsFor_RoundTrip(t *testing.T) {
	cal := period.DefaultCalendar()
	sel := panel.Selection{
		Metric: "wages",
		Mode:   panel.ChangeMode,
		Period: period.Period{Quarter: 2, Year: 2010},
		Range:  period.Range{Start: period.Period{Quarter: 1, Year: 2008}, End: period.Period{Quarter: 4, Year: 2012}},
	}
	got, err := signalsFor(sel, cal).Selection(cal)
	require.NoError(t, err)
	assert.Equal(t, sel, got)
}
