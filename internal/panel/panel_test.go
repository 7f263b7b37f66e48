package panel

import (
	"errors"
	"sync"
	"testing"

	"github.com/leapstack-labs/countymap/internal/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPanel(t *testing.T) *Panel {
	t.Helper()
	p, err := New([]string{"jobs", "earnings"}, period.DefaultCalendar())
	require.NoError(t, err)
	return p
}

func TestNew_InitialState(t *testing.T) {
	p := newPanel(t)
	sel := p.Selection()

	assert.Equal(t, CountMode, sel.Mode)
	assert.Equal(t, "jobs", sel.Metric)
	assert.Equal(t, period.Period{Quarter: 1, Year: 2005}, sel.Period)
	assert.Equal(t, period.DefaultCalendar().FullRange(), sel.Range)
	assert.Equal(t, Visibility{Period: true, Range: false}, p.Visibility())
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil, period.DefaultCalendar())
	assert.Error(t, err)

	_, err = New([]string{"jobs"}, period.Calendar{FirstYear: 2010, LastYear: 2000})
	assert.Error(t, err)
}

func TestSetMode_ExactlyOneControlVisible(t *testing.T) {
	p := newPanel(t)
	transitions := []Mode{ChangeMode, CountMode, CountMode, ChangeMode, ChangeMode, CountMode}

	for _, m := range transitions {
		require.NoError(t, p.SetMode(m))
		v := p.Visibility()
		assert.NotEqual(t, v.Period, v.Range, "exactly one control must be visible")
		assert.Equal(t, m == CountMode, v.Period)
		assert.Equal(t, m == ChangeMode, v.Range)
	}
}

func TestSetMode_Observers(t *testing.T) {
	p := newPanel(t)
	var seen []Mode
	p.OnModeChange(func(m Mode) { seen = append(seen, m) })

	require.NoError(t, p.SetMode(ChangeMode))
	require.NoError(t, p.SetMode(ChangeMode))
	require.NoError(t, p.SetMode(CountMode))

	assert.Equal(t, []Mode{ChangeMode, CountMode}, seen)
}

func TestSetMode_ObserversFollowTransitionOrder(t *testing.T) {
	p := newPanel(t)
	var (
		mu   sync.Mutex
		seen []Mode
	)
	p.OnModeChange(func(m Mode) {
		mu.Lock()
		seen = append(seen, m)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := range 200 {
		wg.Add(1)
		go func(m Mode) {
			defer wg.Done()
			assert.NoError(t, p.SetMode(m))
		}(Mode(i % 2))
	}
	wg.Wait()

	require.NotEmpty(t, seen)
	// Only real transitions are reported, so consecutive notifications
	// alternate and the last one matches the stored mode.
	for i := 1; i < len(seen); i++ {
		assert.NotEqual(t, seen[i-1], seen[i], "notification %d repeats a mode", i)
	}
	assert.Equal(t, ChangeMode, seen[0])
	assert.Equal(t, p.Mode(), seen[len(seen)-1])
}

func TestSetMode_Invalid(t *testing.T) {
	p := newPanel(t)
	err := p.SetMode(Mode(7))

	var invalid *InvalidSelectionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "mode", invalid.Control)
	assert.Equal(t, CountMode, p.Mode())
}

func TestSetters(t *testing.T) {
	p := newPanel(t)

	require.NoError(t, p.SetMetric("earnings"))
	require.NoError(t, p.SetPeriod(period.Period{Quarter: 2, Year: 2010}))
	r := period.Range{Start: period.Period{Quarter: 1, Year: 2008}, End: period.Period{Quarter: 3, Year: 2012}}
	require.NoError(t, p.SetRange(r))

	sel := p.Selection()
	assert.Equal(t, "earnings", sel.Metric)
	assert.Equal(t, period.Period{Quarter: 2, Year: 2010}, sel.Period)
	assert.Equal(t, r, sel.Range)

	assert.Error(t, p.SetMetric("wages"))
	assert.Error(t, p.SetPeriod(period.Period{Quarter: 1, Year: 2020}))
	assert.Error(t, p.SetRange(period.Range{Start: r.End, End: r.Start}))

	// Failed setters leave the selection untouched.
	assert.Equal(t, sel, p.Selection())
}

func TestApply(t *testing.T) {
	p := newPanel(t)
	want := Selection{
		Metric: "earnings",
		Mode:   ChangeMode,
		Period: period.Period{Quarter: 3, Year: 2011},
		Range:  period.Range{Start: period.Period{Quarter: 1, Year: 2006}, End: period.Period{Quarter: 2, Year: 2009}},
	}
	require.NoError(t, p.Apply(want))
	assert.Equal(t, want, p.Selection())
	assert.Equal(t, Visibility{Range: true}, p.Visibility())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Change")
	require.NoError(t, err)
	assert.Equal(t, ChangeMode, m)

	m, err = ParseMode("count")
	require.NoError(t, err)
	assert.Equal(t, CountMode, m)

	_, err = ParseMode("Delta")
	assert.Error(t, err)
	assert.Equal(t, "Mode(3)", Mode(3).String())
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"jobs":          "Jobs",
		"avg_wage":      "Avg Wage",
		"num_employers": "Num Employers",
	}
	for in, want := range tests {
		assert.Equal(t, want, DisplayName(in))
	}
}
