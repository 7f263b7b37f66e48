// Package features provides shared test utilities for UI feature tests.
package features

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/countymap/internal/choropleth"
	"github.com/leapstack-labs/countymap/internal/dashboard"
	"github.com/leapstack-labs/countymap/internal/geo"
	"github.com/leapstack-labs/countymap/internal/panel"
	"github.com/leapstack-labs/countymap/internal/period"
	"github.com/leapstack-labs/countymap/internal/query"
	"github.com/leapstack-labs/countymap/internal/source"
	"github.com/leapstack-labs/countymap/internal/testutil"
	"github.com/leapstack-labs/countymap/internal/ui/notifier"
)

// Query templates used by the fixture.
const (
	CountTemplate  = "SELECT cnty, {metric} FROM qcew WHERE qtr = {q} AND year = {y}"
	ChangeTemplate = "SELECT cnty, change_in_{metric}_pct FROM qcew_change({q0}, {y0}, {q1}, {y1})"
)

// StubRunner answers count and change queries with fixed rows and records
// every query it receives.
type StubRunner struct {
	mu      sync.Mutex
	Count   []source.Row
	Change  []source.Row
	Err     error
	Queries []string
}

// Results implements choropleth.Runner.
func (s *StubRunner) Results(_ context.Context, sql string) (*source.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Queries = append(s.Queries, sql)
	if s.Err != nil {
		return nil, s.Err
	}
	if strings.Contains(sql, "qcew_change") {
		return &source.Result{Columns: []string{"cnty", "change_in_jobs_pct", "change_in_wages_pct"}, Rows: s.Change}, nil
	}
	return &source.Result{Columns: []string{"cnty", "jobs", "wages"}, Rows: s.Count}, nil
}

// LastQuery returns the most recent query.
func (s *StubRunner) LastQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Queries) == 0 {
		return ""
	}
	return s.Queries[len(s.Queries)-1]
}

// TestFixture holds all dependencies needed for UI handler tests.
type TestFixture struct {
	Dashboard    *dashboard.Dashboard
	Runner       *StubRunner
	Notifier     *notifier.Notifier[dashboard.Snapshot]
	SessionStore *sessions.CookieStore
}

// SetupTestFixture creates a dashboard over three square counties with
// metrics jobs and wages. Renders are broadcast through the notifier the
// way the server wires it.
func SetupTestFixture(t *testing.T) *TestFixture {
	t.Helper()

	logger := testutil.NewTestLogger(t)
	sq := func(x, y float64) orb.MultiPolygon {
		return orb.MultiPolygon{{orb.Ring{{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y}}}}
	}
	set, err := geo.NewSet("17", []geo.County{
		{ID: "001", Name: "Adams", Geometry: sq(0, 0)},
		{ID: "003", Name: "Alexander", Geometry: sq(1, 0)},
		{ID: "005", Name: "Bond", Geometry: sq(0, 1)},
	})
	require.NoError(t, err)

	metrics := []string{"jobs", "wages"}
	builder, err := query.NewBuilder(query.Templates{Count: CountTemplate, Change: ChangeTemplate}, metrics)
	require.NoError(t, err)
	p, err := panel.New(metrics, period.DefaultCalendar())
	require.NoError(t, err)

	runner := &StubRunner{
		Count: []source.Row{
			{County: "001", Values: map[string]float64{"jobs": 120, "wages": 900}},
			{County: "003", Values: map[string]float64{"jobs": 0, "wages": 0}},
		},
		Change: []source.Row{
			{County: "001", Values: map[string]float64{"change_in_jobs_pct": -15}},
			{County: "005", Values: map[string]float64{"change_in_jobs_pct": 6}},
		},
	}

	dash, err := dashboard.New(dashboard.Config{
		Panel:     p,
		Builder:   builder,
		Generator: choropleth.NewGenerator(set, builder, runner, choropleth.Options{}, logger),
		Logger:    logger,
	})
	require.NoError(t, err)

	notify := notifier.New[dashboard.Snapshot]()
	dash.Output().OnReplace(notify.Broadcast)

	return &TestFixture{
		Dashboard:    dash,
		Runner:       runner,
		Notifier:     notify,
		SessionStore: NewTestSessionStore(),
	}
}

// RequestWithPathParam wraps a request with chi URL params.
func RequestWithPathParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// NewTestSessionStore creates a session store for testing.
func NewTestSessionStore() *sessions.CookieStore {
	return sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!"))
}
