/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /api/user             Display-name record
  /api/settings         Budget settings
  /api/expenses/*       Expense log
  /api/goal             Savings goal
  /api/overview         Derived metrics
  /api/rollover         Rollover into a period
  /api/advice/*         Advisor reports
  /api/chat             Advisor conversation
  /api/scenarios/*      Demo scenarios
  /api/scheduler/*      Period scheduler

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins are used when no origins are configured.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured. Credentials
// are only allowed for an explicit origin list.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !slices.Contains(allowedOrigins, "*"),
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			r.Get("/", h.GetUser)
			r.Post("/", h.RegisterUser)
			r.Delete("/", h.LogoutUser)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.GetSettings)
			r.Put("/", h.UpdateSettings)
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", h.ListExpenses)
			r.Post("/", h.AddExpense)
			r.Delete("/{id}", h.DeleteExpense)
		})

		r.Route("/goal", func(r chi.Router) {
			r.Get("/", h.GetGoal)
			r.Put("/", h.SaveGoal)
			r.Delete("/", h.DeleteGoal)
		})

		r.Get("/overview", h.GetOverview)
		r.Get("/rollover", h.GetRollover)

		r.Route("/advice", func(r chi.Router) {
			r.Get("/", h.GetAdvice)
			r.Post("/refresh", h.RefreshAdvice)
			r.Post("/quest/accept", h.AcceptQuest)
			r.Post("/categories", h.OptimizeCategories)
			r.Get("/savings", h.GetSavingsTip)
		})
		r.Post("/chat", h.Chat)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})

		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/runs", h.ListPeriodRuns)
			r.Post("/run", h.TriggerPeriodCheck)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Budget Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Budget Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/overview">/api/overview</a> - Current period overview</li>
<li><a href="/api/expenses">/api/expenses</a> - Expense log</li>
<li><a href="/api/settings">/api/settings</a> - Budget settings</li>
<li><a href="/api/advice">/api/advice</a> - Last advisor report</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
