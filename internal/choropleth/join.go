package choropleth

import (
	"fmt"
	"math"

	"github.com/leapstack-labs/countymap/internal/geo"
	"github.com/leapstack-labs/countymap/internal/panel"
	"github.com/leapstack-labs/countymap/internal/source"
)

// Datum is one coloured county.
type Datum struct {
	County geo.County
	Value  float64
}

// Join inner-joins result rows to the county set on the county identifier
// and keeps the rows that get a colour. Rows without a finite value in
// column are dropped, and in Count mode so are rows whose value is not positive. The
// output follows the set's order; for duplicate identifiers the first row
// wins.
func Join(set *geo.Set, res *source.Result, column string, mode panel.Mode) ([]Datum, error) {
	if !res.HasColumn(column) {
		return nil, fmt.Errorf("query result has no column %q", column)
	}

	byCounty := make(map[string]source.Row, len(res.Rows))
	for _, r := range res.Rows {
		if _, dup := byCounty[r.County]; !dup {
			byCounty[r.County] = r
		}
	}

	var out []Datum
	for _, c := range set.All() {
		r, ok := byCounty[c.ID]
		if !ok {
			continue
		}
		v, ok := r.Value(column)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if mode == panel.CountMode && v <= 0 {
			continue
		}
		out = append(out, Datum{County: c, Value: v})
	}
	return out, nil
}
