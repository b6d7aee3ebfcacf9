package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, hc *HealthChecker) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health checks (no auth required)
	r.Get("/health", hc.HandleHealth)
	r.Get("/health/live", hc.HandleLiveness)
	r.Get("/health/ready", hc.HandleReadiness)

	r.Route("/api", func(r chi.Router) {
		// Leads
		r.Route("/leads", func(r chi.Router) {
			r.Get("/", h.ListLeads)
			r.Post("/", h.CreateLead)
			r.Route("/{leadID}", func(r chi.Router) {
				r.Get("/", h.GetLead)
				r.Patch("/status", h.UpdateLeadStatus)
				r.Patch("/score", h.AdjustLeadScore)
				r.Post("/tags", h.AddLeadTag)
				r.Get("/interactions", h.ListInteractions)
				r.Post("/interactions", h.AddInteraction)
			})
		})

		// Automation templates and instances
		r.Route("/automations", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Post("/", h.CreateTemplate)
			r.Get("/stats", h.AutomationStats)
			r.Post("/sweep", h.RunSweep)

			r.Route("/instances", func(r chi.Router) {
				r.Get("/", h.ListInstances)
				r.Post("/{instanceID}/stop", h.StopInstance)
			})

			r.Route("/{templateID}", func(r chi.Router) {
				r.Get("/", h.GetTemplate)
				r.Put("/", h.UpdateTemplate)
				r.Delete("/", h.DeleteTemplate)
				r.Post("/activate", h.ActivateTemplate)
				r.Post("/deactivate", h.DeactivateTemplate)
				r.Post("/trigger", h.TriggerTemplate)
			})
		})
	})

	return r
}
