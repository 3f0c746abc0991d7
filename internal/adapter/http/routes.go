package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/outlive-sh/outlive/internal/adapter/ws"
)

// NewRouter builds the agent's API router with the standard middleware
// chain applied.
func NewRouter(h *Handlers, hub *ws.Hub, corsOrigin string) chi.Router {
	r := chi.NewRouter()
	r.Use(Logger)
	r.Use(SecurityHeaders)
	r.Use(CORS(corsOrigin))

	MountRoutes(r, h, hub)
	return r
}

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, hub *ws.Hub) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		r.Get("/status", h.GetStatus)

		r.Get("/turns", h.ListTurns)
		r.Post("/turn", h.ExecuteTurn)

		r.Get("/bounties", h.ListBounties)
		r.Post("/bounties/scan", h.ScanBounties)
		r.Get("/bounties/{id}", h.GetBounty)

		r.Post("/tools/{name}", h.ExecuteTool)
	})

	if hub != nil {
		r.Get("/ws", hub.HandleWS)
	}
}
