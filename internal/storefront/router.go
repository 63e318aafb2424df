package storefront

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the storefront API. adminAuth guards /api/admin; nil leaves it open,
// which is only meant for local development.
func NewRouter(h *Handler, adminAuth func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.Logger))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", h.ListEvents)
		r.Get("/events/{eventId}", h.GetEvent)
		r.Get("/categories", h.ListCategories)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/{eventId}/tickets/{ticketId}/increment", h.IncrementTicket)
			r.Post("/{eventId}/tickets/{ticketId}/decrement", h.DecrementTicket)
		})

		r.Get("/checkout", h.GetCheckout)
		r.Post("/checkout", h.SubmitCheckout)

		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)

		r.Route("/admin", func(r chi.Router) {
			if adminAuth != nil {
				r.Use(adminAuth)
			} else {
				h.Logger.Warn("AUTH", "OIDC_ISSUER not set: admin routes are unauthenticated")
			}
			r.Get("/users", h.AdminListUsers)
			r.Get("/events", h.AdminListEvents)
			r.Post("/events", h.AdminCreateEvent)
			r.Post("/tickets", h.AdminCreateTicket)
		})
	})

	return r
}
