package query

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/countymap/internal/panel"
	"github.com/leapstack-labs/countymap/internal/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	countTmpl  = "SELECT cnty, {metric} FROM qcew WHERE qtr = {q} AND year = {y}"
	changeTmpl = "SELECT cnty, change_in_{metric}_pct FROM qcew_change({q0}, {y0}, {q1}, {y1})"
)

func newBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(Templates{Count: countTmpl, Change: changeTmpl}, []string{"jobs", "earnings"})
	require.NoError(t, err)
	return b
}

func TestBuild_Count(t *testing.T) {
	b := newBuilder(t)
	q, err := b.Build(panel.Selection{
		Metric: "jobs",
		Mode:   panel.CountMode,
		Period: period.Period{Quarter: 2, Year: 2010},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT cnty, jobs FROM qcew WHERE qtr = 2 AND year = 2010", q.SQL)
	assert.Equal(t, map[string]int{"q": 2, "y": 2010}, q.Params)
	assert.Equal(t, panel.CountMode, q.Mode)
}

func TestBuild_Change(t *testing.T) {
	b := newBuilder(t)
	q, err := b.Build(panel.Selection{
		Metric: "jobs",
		Mode:   panel.ChangeMode,
		Range:  period.DefaultCalendar().FullRange(),
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT cnty, change_in_jobs_pct FROM qcew_change(1, 2005, 4, 2015)", q.SQL)
	assert.Equal(t, map[string]int{"q0": 1, "y0": 2005, "q1": 4, "y1": 2015}, q.Params)
}

func TestBuild_UnknownMetric(t *testing.T) {
	b := newBuilder(t)
	_, err := b.Build(panel.Selection{Metric: "jobs; DROP TABLE qcew", Mode: panel.CountMode})
	assert.Error(t, err)
}

func TestNewBuilder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    Templates
		metrics []string
		errIs   error
	}{
		{"empty count", Templates{Change: changeTmpl}, []string{"jobs"}, nil},
		{"empty change", Templates{Count: countTmpl}, []string{"jobs"}, nil},
		{"range placeholder in count", Templates{Count: "SELECT {q0}", Change: changeTmpl}, []string{"jobs"}, ErrUnknownPlaceholder},
		{"typo in change", Templates{Count: countTmpl, Change: "SELECT {y2}"}, []string{"jobs"}, ErrUnknownPlaceholder},
		{"bad metric name", Templates{Count: countTmpl, Change: changeTmpl}, []string{"total jobs"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder(tt.tmpl, tt.metrics)
			require.Error(t, err)
			if tt.errIs != nil {
				assert.True(t, errors.Is(err, tt.errIs))
			}
		})
	}
}

func TestSetTemplates_RejectsUnknownPlaceholder(t *testing.T) {
	b := newBuilder(t)

	err := b.SetTemplates(Templates{Count: "SELECT cnty, {metric} FROM qcew WHERE qtr = {quarter}", Change: changeTmpl})
	require.ErrorIs(t, err, ErrUnknownPlaceholder)
	assert.Equal(t, countTmpl, b.Templates().Count, "rejected templates must not replace the active ones")

	q, err := b.Build(panel.Selection{Metric: "earnings", Mode: panel.CountMode, Period: period.Period{Quarter: 3, Year: 2012}})
	require.NoError(t, err)
	assert.NotContains(t, q.SQL, "{")
}

func TestValueColumn(t *testing.T) {
	assert.Equal(t, "jobs", ValueColumn(panel.CountMode, "jobs"))
	assert.Equal(t, "change_in_jobs_pct", ValueColumn(panel.ChangeMode, "jobs"))
}

func TestSource_Load(t *testing.T) {
	dir := t.TempDir()
	countFile := filepath.Join(dir, "count.sql")
	require.NoError(t, os.WriteFile(countFile, []byte(countTmpl), 0o600))

	got, err := Source{CountFile: countFile, Change: changeTmpl}.Load()
	require.NoError(t, err)
	assert.Equal(t, Templates{Count: countTmpl, Change: changeTmpl}, got)

	_, err = Source{CountFile: filepath.Join(dir, "missing.sql")}.Load()
	assert.Error(t, err)
}

func TestWatch_ReloadsTemplates(t *testing.T) {
	dir := t.TempDir()
	countFile := filepath.Join(dir, "count.sql")
	require.NoError(t, os.WriteFile(countFile, []byte(countTmpl), 0o600))

	src := Source{CountFile: countFile, Change: changeTmpl}
	b := newBuilder(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, b, src, nil, func() {
			select {
			case reloaded <- struct{}{}:
			default:
			}
		})
	}()

	updated := "SELECT cnty, {metric} FROM qcew_v2 WHERE qtr = {q} AND year = {y}"
	require.Eventually(t, func() bool {
		_ = os.WriteFile(countFile, []byte(updated), 0o600)
		select {
		case <-reloaded:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 100*time.Millisecond)

	assert.Equal(t, updated, b.Templates().Count)

	cancel()
	assert.NoError(t, <-done)
}
