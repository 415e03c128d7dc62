package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig carries everything the HTTP surface is built from.
type RouterConfig struct {
	Events       *EventHandler
	Reservations *ReservationHandler
	Users        *UserHandler
	Tokens       TokenVerifier
	// Limiter throttles reservation writes; nil disables throttling.
	Limiter     *RateLimiter
	CORSOrigins []string
}

// NewRouter builds the chi router with the global middleware stack and all
// API routes under /api/v1.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger)                  // structured access log
	r.Use(CORS(cfg.CORSOrigins))
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/health", HealthCheck)

	authn := Authenticate(cfg.Tokens)
	throttle := func(next http.Handler) http.Handler { return next }
	if cfg.Limiter != nil {
		throttle = cfg.Limiter.Middleware
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthCheck)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", cfg.Users.Register)
			r.Post("/login", cfg.Users.Login)
			r.With(authn).Get("/me", cfg.Users.Me)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", cfg.Events.ListEvents)
			r.Get("/{id}", cfg.Events.GetEvent)

			r.Group(func(r chi.Router) {
				r.Use(authn)
				r.Post("/", cfg.Events.CreateEvent)
				r.Put("/{id}", cfg.Events.UpdateEvent)
				r.Delete("/{id}", cfg.Events.DeleteEvent)

				r.Get("/{id}/reservations", cfg.Reservations.ListForEvent)
				r.Delete("/{id}/reservations", cfg.Reservations.ClearForEvent)
				r.Get("/{id}/attendees", cfg.Reservations.Attendees)
				r.Get("/{id}/reservation", cfg.Reservations.Status)
				r.With(throttle).Post("/{id}/reservation", cfg.Reservations.Reserve)
				r.With(throttle).Delete("/{id}/reservation", cfg.Reservations.Cancel)
			})
		})

		r.With(authn).Get("/reservations", cfg.Reservations.ListAll)

		r.Route("/users", func(r chi.Router) {
			r.Use(authn)
			r.Get("/", cfg.Users.List)
			r.Get("/{id}", cfg.Users.Get)
			r.Delete("/{id}", cfg.Users.Delete)
			r.Get("/{id}/reservations", cfg.Reservations.ListForUser)
			r.Get("/{id}/reservations/count", cfg.Reservations.CountForUser)
			r.Get("/{id}/reserved-events", cfg.Reservations.ReservedEvents)
		})
	})

	return r
}
