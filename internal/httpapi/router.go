package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/erauner12/toolbridge-sync/internal/auth"
	"github.com/erauner12/toolbridge-sync/internal/service/syncservice"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Server holds dependencies for HTTP handlers
type Server struct {
	Sync            *syncservice.Service
	RateLimitConfig RateLimitInfo

	// Ready reports whether the backing store is reachable; nil means always ready.
	Ready func(r *http.Request) error
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

// decodeJSON reads a size-capped JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

const maxBodyBytes = 8 << 20

// Routes creates the HTTP router with all sync endpoints
func (s *Server) Routes(jwt auth.JWTCfg) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CorrelationMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check (unauthenticated)
	r.Get("/healthz", s.Healthz)

	// Capability discovery (unauthenticated)
	r.Get("/v1/sync/info", s.Info)

	// All sync endpoints require authentication
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(jwt))
		r.Use(DeviceMiddleware)
		r.Use(RateLimitMiddleware(s.RateLimitConfig))

		r.Route("/v1/sync", func(r chi.Router) {
			// Devices
			r.Post("/devices", s.RegisterDevice)
			r.Get("/devices", s.ListDevices)
			r.Get("/devices/{deviceId}", s.GetDevice)
			r.Post("/devices/{deviceId}/deactivate", s.DeactivateDevice)
			r.Delete("/devices/{deviceId}", s.RemoveDevice)

			// Change log
			r.Get("/pull", s.Pull)
			r.Post("/push", s.Push)
			r.Get("/cursor", s.Cursor)

			// Conflicts
			r.Get("/conflicts", s.ListConflicts)
			r.Get("/conflicts/{conflictId}", s.GetConflict)
			r.Post("/conflicts/{conflictId}/resolve", s.ResolveConflict)

			// Block signatures
			r.Get("/signature", s.Signature)
		})
	})

	log.Info().Msg("HTTP routes registered")
	return r
}

// Healthz handles GET /healthz
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	if s.Ready != nil {
		if err := s.Ready(r); err != nil {
			log.Ctx(r.Context()).Warn().Err(err).Msg("health check failed")
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
