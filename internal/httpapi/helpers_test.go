package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erauner12/toolbridge-sync/internal/auth"
	"github.com/erauner12/toolbridge-sync/internal/blob"
	"github.com/erauner12/toolbridge-sync/internal/service/syncservice"
	"github.com/erauner12/toolbridge-sync/internal/store/memstore"
)

const testUser = "test-user"

// newTestRouter builds the full router over an in-memory store
func newTestRouter(t *testing.T, limits RateLimitInfo, blobRoot string) http.Handler {
	t.Helper()

	var blobs blob.Source
	if blobRoot != "" {
		blobs = blob.NewDir(blobRoot)
	}
	srv := &Server{
		Sync:            syncservice.New(memstore.New(), blobs),
		RateLimitConfig: limits,
	}
	return srv.Routes(auth.JWTCfg{HS256Secret: "test-secret", DevMode: true})
}

// doJSON makes an HTTP request as user with an optional JSON body
func doJSON(t *testing.T, router http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Debug-Sub", user)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func registerDevice(t *testing.T, router http.Handler, deviceID, deviceType string) {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/v1/sync/devices", testUser, map[string]string{
		"deviceId":   deviceID,
		"deviceName": deviceID,
		"deviceType": deviceType,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("register %s: status %d, body %s", deviceID, w.Code, w.Body.String())
	}
}
