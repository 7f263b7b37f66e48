// Package router sets up HTTP routes for the UI server.
package router

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/countymap/internal/dashboard"
	exportFeature "github.com/leapstack-labs/countymap/internal/ui/features/export"
	mapviewFeature "github.com/leapstack-labs/countymap/internal/ui/features/mapview"
	"github.com/leapstack-labs/countymap/internal/ui/notifier"
	"github.com/leapstack-labs/countymap/internal/ui/resources"
	"github.com/starfederation/datastar-go/datastar"
)

// Deps are the shared dependencies of the feature routes.
type Deps struct {
	Dashboard    *dashboard.Dashboard
	SessionStore sessions.Store
	Notifier     *notifier.Notifier[dashboard.Snapshot]
	Title        string
	IsDev        bool
}

// SetupRoutes configures all routes for the UI server.
func SetupRoutes(router chi.Router, deps Deps) error {
	// Hot reload endpoint for dev mode
	if deps.IsDev {
		setupReload(router)
	}

	// Static assets
	router.Handle("/static/*", resources.Handler())

	if err := mapviewFeature.SetupRoutes(router, deps.Dashboard, deps.SessionStore, deps.Notifier, deps.Title, deps.IsDev); err != nil {
		return err
	}

	if err := exportFeature.SetupRoutes(router, deps.Dashboard); err != nil {
		return err
	}

	return nil
}

func setupReload(router chi.Router) {
	reloadChan := make(chan struct{}, 1)
	var hotReloadOnce sync.Once

	router.Get("/reload", func(w http.ResponseWriter, r *http.Request) {
		sse := datastar.NewSSE(w, r)
		reload := func() { _ = sse.ExecuteScript("window.location.reload()") }
		hotReloadOnce.Do(reload)
		select {
		case <-reloadChan:
			reload()
		case <-r.Context().Done():
		}
	})

	router.Get("/hotreload", func(w http.ResponseWriter, _ *http.Request) {
		select {
		case reloadChan <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}
