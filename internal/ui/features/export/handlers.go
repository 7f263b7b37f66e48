// Package export serves the last render as an image and the county set as
// GeoJSON.
package export

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/countymap/internal/choropleth"
	"github.com/leapstack-labs/countymap/internal/dashboard"
	"github.com/leapstack-labs/countymap/internal/geo"
)

// Handlers provides HTTP handlers for exports.
type Handlers struct {
	dash *dashboard.Dashboard
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(dash *dashboard.Dashboard) *Handlers {
	return &Handlers{dash: dash}
}

// SetupRoutes configures routes for the export feature.
func SetupRoutes(router chi.Router, dash *dashboard.Dashboard) error {
	h := NewHandlers(dash)

	router.Get("/map.{format}", h.Map)
	router.Get("/api/counties.geojson", h.Counties)

	return nil
}

// Map serves the current render as SVG or PNG.
func (h *Handlers) Map(w http.ResponseWriter, r *http.Request) {
	f, err := choropleth.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	img, err := h.dash.Image(f)
	switch {
	case errors.Is(err, dashboard.ErrNoRender):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(img)
}

// Counties exports the county set as a GeoJSON feature collection. Counties
// coloured by the current render carry the value under the render's column.
// With ?joined=1 only those counties are exported.
func (h *Handlers) Counties(w http.ResponseWriter, r *http.Request) {
	column, values := h.dash.Values()
	joinedOnly := r.URL.Query().Get("joined") == "1"

	fc := h.dash.Counties().FeatureCollection(func(c geo.County) map[string]any {
		v, ok := values[c.ID]
		if !ok {
			if joinedOnly {
				return nil
			}
			return map[string]any{}
		}
		return map[string]any{column: v}
	})

	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
