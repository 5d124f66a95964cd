package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const CtxUserID ctxKey = "uid"

// ErrMissingSubject is returned for a valid token without a sub claim.
var ErrMissingSubject = errors.New("token has no subject")

// JWTCfg holds JWT authentication configuration
type JWTCfg struct {
	HS256Secret       string   // HMAC secret for HS256 tokens
	Issuer            string   // expected iss; empty skips the check
	AcceptedAudiences []string // any one must match aud; empty skips the check
	DevMode           bool     // Allow X-Debug-Sub header (DANGEROUS: only for local dev)
}

// ValidateToken verifies an HS256 token and returns its subject, which is
// the sync user id.
func ValidateToken(tok string, cfg JWTCfg) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return []byte(cfg.HS256Secret), nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if !t.Valid {
		return "", jwt.ErrTokenSignatureInvalid
	}

	if len(cfg.AcceptedAudiences) > 0 {
		aud, err := claims.GetAudience()
		if err != nil {
			return "", err
		}
		if !audienceAccepted(aud, cfg.AcceptedAudiences) {
			return "", jwt.ErrTokenInvalidAudience
		}
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", ErrMissingSubject
	}
	return sub, nil
}

func audienceAccepted(got jwt.ClaimStrings, accepted []string) bool {
	for _, a := range got {
		for _, want := range accepted {
			if a == want {
				return true
			}
		}
	}
	return false
}

// Middleware creates HTTP middleware for JWT authentication
// Supports two modes:
// 1. Production: Bearer token with JWT validation
// 2. Development: X-Debug-Sub header (ONLY when DevMode=true)
func Middleware(cfg JWTCfg) func(http.Handler) http.Handler {
	if cfg.DevMode {
		log.Warn().Msg("SECURITY WARNING: DevMode enabled - X-Debug-Sub header will bypass JWT authentication")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := log.Ctx(r.Context())

			tok := ""
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				tok = strings.TrimSpace(h[len("Bearer "):])
			}

			sub := ""

			// Development mode: accept X-Debug-Sub ONLY if DevMode is enabled and no token present
			if cfg.DevMode && tok == "" {
				sub = r.Header.Get("X-Debug-Sub")
				if sub != "" {
					logger.Debug().Str("sub", sub).Msg("using X-Debug-Sub header (dev mode)")
				}
			}

			if tok != "" {
				s, err := ValidateToken(tok, cfg)
				if err != nil {
					logger.Warn().Err(err).Msg("jwt validation failed")
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				sub = s
			}

			if sub == "" {
				logger.Warn().Msg("missing subject (no JWT sub or X-Debug-Sub header)")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), CtxUserID, sub)
			ctx = logger.With().Str("user_id", sub).Logger().WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID extracts the authenticated user ID from request context
// Returns empty string if not authenticated (should never happen after middleware)
func UserID(ctx context.Context) string {
	if v := ctx.Value(CtxUserID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithUserID returns ctx carrying userID, for callers outside the HTTP stack.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxUserID, userID)
}
