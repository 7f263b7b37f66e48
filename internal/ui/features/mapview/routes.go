package mapview

import (
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/countymap/internal/dashboard"
	"github.com/leapstack-labs/countymap/internal/ui/notifier"
)

// SetupRoutes configures routes for the dashboard page.
func SetupRoutes(
	router chi.Router,
	dash *dashboard.Dashboard,
	sessionStore sessions.Store,
	notify *notifier.Notifier[dashboard.Snapshot],
	title string,
	isDev bool,
) error {
	handlers := NewHandlers(dash, sessionStore, notify, title, isDev)

	router.Get("/", handlers.DashboardPage)
	router.Get("/updates", handlers.Updates)
	router.Post("/panel/mode", handlers.SetMode)
	router.Post("/panel/generate", handlers.Generate)

	return nil
}
