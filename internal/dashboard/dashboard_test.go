package dashboard

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leapstack-labs/countymap/internal/choropleth"
	"github.com/leapstack-labs/countymap/internal/geo"
	"github.com/leapstack-labs/countymap/internal/history"
	"github.com/leapstack-labs/countymap/internal/panel"
	"github.com/leapstack-labs/countymap/internal/period"
	"github.com/leapstack-labs/countymap/internal/query"
	"github.com/leapstack-labs/countymap/internal/source"
	"github.com/leapstack-labs/countymap/internal/testutil"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowRunner tracks how many queries run at once.
type slowRunner struct {
	active  atomic.Int32
	maxSeen atomic.Int32
	calls   atomic.Int32
	err     error
}

func (r *slowRunner) Results(context.Context, string) (*source.Result, error) {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		m := r.maxSeen.Load()
		if n <= m || r.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	r.calls.Add(1)
	time.Sleep(5 * time.Millisecond)
	if r.err != nil {
		return nil, r.err
	}
	return &source.Result{
		Columns: []string{"cnty", "jobs", "change_in_jobs_pct"},
		Rows: []source.Row{
			{County: "001", Values: map[string]float64{"jobs": 12, "change_in_jobs_pct": -4}},
			{County: "003", Values: map[string]float64{"jobs": 0, "change_in_jobs_pct": 9}},
		},
	}, nil
}

type memRecorder struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (m *memRecorder) Record(_ context.Context, e history.Entry) (history.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return e, nil
}

func newTestDashboard(t *testing.T, runner choropleth.Runner, rec Recorder) *Dashboard {
	t.Helper()
	sq := func(x float64) orb.MultiPolygon {
		return orb.MultiPolygon{{orb.Ring{{x, 0}, {x + 1, 0}, {x + 1, 1}, {x, 1}, {x, 0}}}}
	}
	set, err := geo.NewSet("17", []geo.County{
		{ID: "001", Name: "Adams", Geometry: sq(0)},
		{ID: "003", Name: "Alexander", Geometry: sq(1)},
	})
	require.NoError(t, err)

	metrics := []string{"jobs"}
	b, err := query.NewBuilder(query.Templates{
		Count:  "SELECT cnty, {metric} FROM qcew WHERE qtr = {q} AND year = {y}",
		Change: "SELECT cnty, change_in_{metric}_pct FROM qcew_change({q0}, {y0}, {q1}, {y1})",
	}, metrics)
	require.NoError(t, err)
	p, err := panel.New(metrics, period.DefaultCalendar())
	require.NoError(t, err)

	logger := testutil.NewTestLogger(t)
	d, err := New(Config{
		Panel:     p,
		Builder:   b,
		Generator: choropleth.NewGenerator(set, b, runner, choropleth.Options{}, logger),
		Recorder:  rec,
		Logger:    logger,
	})
	require.NoError(t, err)
	return d
}

func TestGenerate_ReplacesOutput(t *testing.T) {
	rec := &memRecorder{}
	d := newTestDashboard(t, &slowRunner{}, rec)

	var seen []uint64
	d.Output().OnReplace(func(s Snapshot) { seen = append(seen, s.Version) })

	_, err := d.Image(choropleth.SVG)
	assert.ErrorIs(t, err, ErrNoRender)

	r1, err := d.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jobs", r1.Column)
	require.Len(t, r1.Data, 1, "zero count is not coloured")

	require.NoError(t, d.Panel().SetMode(panel.ChangeMode))
	r2, err := d.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "change_in_jobs_pct", r2.Column)

	snap := d.Output().Current()
	assert.Equal(t, uint64(2), snap.Version)
	assert.Same(t, r2, snap.Render)
	assert.Equal(t, []uint64{1, 2}, seen)

	column, values := d.Values()
	assert.Equal(t, "change_in_jobs_pct", column)
	assert.Equal(t, map[string]float64{"001": -4, "003": 9}, values)

	require.Len(t, rec.entries, 2)
	assert.Equal(t, "Count", rec.entries[0].Mode)
	assert.Equal(t, "Change", rec.entries[1].Mode)
	assert.Equal(t, "Q1 2005", rec.entries[1].RangeStart)
}

func TestGenerate_ErrorReplacesOutput(t *testing.T) {
	rec := &memRecorder{}
	runner := &slowRunner{}
	d := newTestDashboard(t, runner, rec)

	_, err := d.Generate(context.Background())
	require.NoError(t, err)

	runner.err = assert.AnError
	_, err = d.Generate(context.Background())
	require.ErrorIs(t, err, assert.AnError)

	snap := d.Output().Current()
	assert.Nil(t, snap.Render, "previous render is cleared")
	assert.ErrorIs(t, snap.Err, assert.AnError)

	_, err = d.Image(choropleth.PNG)
	assert.ErrorIs(t, err, assert.AnError)

	require.Len(t, rec.entries, 2)
	assert.True(t, rec.entries[1].Failed())
}

func TestGenerate_Serialised(t *testing.T) {
	runner := &slowRunner{}
	d := newTestDashboard(t, runner, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.Generate(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(4), runner.calls.Load())
	assert.Equal(t, int32(1), runner.maxSeen.Load(), "renders never overlap")
	assert.Equal(t, uint64(4), d.Output().Current().Version)
}

func TestImage_EncodesOtherFormat(t *testing.T) {
	d := newTestDashboard(t, &slowRunner{}, nil)
	_, err := d.Generate(context.Background())
	require.NoError(t, err)

	svg, err := d.Image(choropleth.SVG)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(svg, []byte("<svg")))

	png1, err := d.Image(choropleth.PNG)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png1, []byte("\x89PNG")))

	png2, err := d.Image(choropleth.PNG)
	require.NoError(t, err)
	assert.Equal(t, png1, png2)
}

func TestNew_RequiresParts(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
