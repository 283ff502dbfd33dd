/**
 * @description
 * This file sets up the HTTP router for the proximity-service. Health and metrics are
 * public; everything under /proximity requires a Clerk session.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5, github.com/go-chi/cors: routing and middleware.
 * - github.com/prometheus/client_golang: the /metrics exposition handler.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configures the cross-cutting parts of the router.
type RouterOptions struct {
	Auth           func(http.Handler) http.Handler
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
}

// ProximityRoutes creates and returns the router for the proximity service.
func ProximityRoutes(h *ProximityHandlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	}
	r.Get("/health", health)

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/proximity", func(r chi.Router) {
		r.Get("/health", health)

		r.Group(func(r chi.Router) {
			if opts.Auth != nil {
				r.Use(opts.Auth)
			}
			r.Post("/location", h.UpdateLocationHandler)
			r.Post("/subscribe", h.SubscribeHandler)
			r.Delete("/subscribe", h.UnsubscribeHandler)
			r.Get("/exact", h.FindExactHandler)
			r.Get("/nearby", h.FindNearbyHandler)
		})
	})

	return r
}
