package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func issue(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub": "user-123",
		"iss": "https://auth.example.test",
		"aud": "toolbridge-sync",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
}

func TestValidateToken(t *testing.T) {
	cfg := JWTCfg{
		HS256Secret:       testSecret,
		Issuer:            "https://auth.example.test",
		AcceptedAudiences: []string{"toolbridge-sync"},
	}

	tests := []struct {
		name    string
		mutate  func(jwt.MapClaims)
		secret  string
		cfg     *JWTCfg
		wantSub string
		wantErr bool
	}{
		{name: "valid token", wantSub: "user-123"},
		{name: "wrong secret", secret: "other", wantErr: true},
		{name: "expired", mutate: func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Minute).Unix() }, wantErr: true},
		{name: "missing exp", mutate: func(c jwt.MapClaims) { delete(c, "exp") }, wantErr: true},
		{name: "wrong issuer", mutate: func(c jwt.MapClaims) { c["iss"] = "https://evil.test" }, wantErr: true},
		{name: "wrong audience", mutate: func(c jwt.MapClaims) { c["aud"] = "someone-else" }, wantErr: true},
		{name: "audience list", mutate: func(c jwt.MapClaims) { c["aud"] = []string{"x", "toolbridge-sync"} }, wantSub: "user-123"},
		{name: "missing sub", mutate: func(c jwt.MapClaims) { delete(c, "sub") }, wantErr: true},
		{
			name:    "issuer and audience checks disabled",
			mutate:  func(c jwt.MapClaims) { c["iss"] = "anything"; c["aud"] = "anything" },
			cfg:     &JWTCfg{HS256Secret: testSecret},
			wantSub: "user-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			if tt.mutate != nil {
				tt.mutate(claims)
			}
			secret := testSecret
			if tt.secret != "" {
				secret = tt.secret
			}
			c := cfg
			if tt.cfg != nil {
				c = *tt.cfg
			}

			sub, err := ValidateToken(issue(t, jwt.SigningMethodHS256, []byte(secret), claims), c)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ValidateToken() = %q, expected error", sub)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateToken() error = %v", err)
			}
			if sub != tt.wantSub {
				t.Errorf("sub = %q, want %q", sub, tt.wantSub)
			}
		})
	}
}

func TestValidateToken_MissingSubClaim(t *testing.T) {
	claims := validClaims()
	claims["sub"] = ""
	_, err := ValidateToken(issue(t, jwt.SigningMethodHS256, []byte(testSecret), claims), JWTCfg{HS256Secret: testSecret})
	if !errors.Is(err, ErrMissingSubject) {
		t.Errorf("error = %v, want ErrMissingSubject", err)
	}
}

func TestValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	tok := issue(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims())
	if _, err := ValidateToken(tok, JWTCfg{HS256Secret: testSecret}); err == nil {
		t.Error("expected unsigned token to be rejected")
	}
}

func TestMiddleware(t *testing.T) {
	var gotUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	token := issue(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims())

	tests := []struct {
		name     string
		devMode  bool
		headers  map[string]string
		wantCode int
		wantUser string
	}{
		{"bearer token", false, map[string]string{"Authorization": "Bearer " + token}, http.StatusNoContent, "user-123"},
		{"bad token", false, map[string]string{"Authorization": "Bearer junk"}, http.StatusUnauthorized, ""},
		{"no credentials", false, nil, http.StatusUnauthorized, ""},
		{"debug header outside dev mode", false, map[string]string{"X-Debug-Sub": "dev-user"}, http.StatusUnauthorized, ""},
		{"debug header in dev mode", true, map[string]string{"X-Debug-Sub": "dev-user"}, http.StatusNoContent, "dev-user"},
		{"token wins over debug header", true, map[string]string{"Authorization": "Bearer " + token, "X-Debug-Sub": "dev-user"}, http.StatusNoContent, "user-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUser = ""
			h := Middleware(JWTCfg{HS256Secret: testSecret, DevMode: tt.devMode})(next)

			req := httptest.NewRequest(http.MethodGet, "/v1/sync/cursor", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if gotUser != tt.wantUser {
				t.Errorf("user = %q, want %q", gotUser, tt.wantUser)
			}
		})
	}
}
