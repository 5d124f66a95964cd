package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	deviceIDKey      contextKey = "deviceId"
	correlationIDKey contextKey = "correlationId"
)

// DeviceMiddleware reads the X-Sync-Device header and adds it to context
// Handlers fall back to it when the request does not name a device
func DeviceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID := r.Header.Get("X-Sync-Device")

		if deviceID != "" {
			ctx := context.WithValue(r.Context(), deviceIDKey, deviceID)

			// Build device logger from existing contextual logger (preserves correlation ID)
			logger := log.Ctx(ctx).With().Str("device_id", deviceID).Logger()
			ctx = logger.WithContext(ctx)

			r = r.WithContext(ctx)
		}

		next.ServeHTTP(w, r)
	})
}

// GetDeviceID retrieves the header device ID from context
func GetDeviceID(ctx context.Context) string {
	if deviceID, ok := ctx.Value(deviceIDKey).(string); ok {
		return deviceID
	}
	return ""
}

// deviceOrHeader prefers an explicit device id over the header one.
func deviceOrHeader(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return GetDeviceID(ctx)
}

// CorrelationMiddleware reads X-Correlation-ID header and adds it to context
// Generates a new correlation ID if client doesn't provide one
// This enables end-to-end request tracing across client and server logs
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		// Add to response headers for client verification
		w.Header().Set("X-Correlation-ID", correlationID)

		ctx := context.WithValue(r.Context(), correlationIDKey, correlationID)

		// Add to logger context for all logs in this request
		logger := log.With().Str("correlation_id", correlationID).Logger()
		ctx = logger.WithContext(ctx)

		r = r.WithContext(ctx)
		next.ServeHTTP(w, r)
	})
}

// GetCorrelationID retrieves the correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if correlationID, ok := ctx.Value(correlationIDKey).(string); ok {
		return correlationID
	}
	return ""
}
