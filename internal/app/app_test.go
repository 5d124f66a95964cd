package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/erauner12/toolbridge-sync/internal/config"
	"github.com/erauner12/toolbridge-sync/internal/store/memstore"
	"github.com/erauner12/toolbridge-sync/internal/store/sqlitestore"
)

func memoryConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Store.Driver = config.DriverMemory
	return cfg
}

func TestOpenStoreDrivers(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		st, closeFn, err := OpenStore(ctx, memoryConfig())
		if err != nil {
			t.Fatalf("OpenStore: %v", err)
		}
		defer closeFn()
		if _, ok := st.(*memstore.Store); !ok {
			t.Errorf("expected *memstore.Store, got %T", st)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Store.Driver = config.DriverSQLite
		cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "sync.db")
		st, closeFn, err := OpenStore(ctx, cfg)
		if err != nil {
			t.Fatalf("OpenStore: %v", err)
		}
		defer closeFn()
		if _, ok := st.(*sqlitestore.Store); !ok {
			t.Errorf("expected *sqlitestore.Store, got %T", st)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Store.Driver = "mongo"
		_, _, err := OpenStore(ctx, cfg)
		if !errors.Is(err, config.ErrUnknownDriver) {
			t.Errorf("expected ErrUnknownDriver, got %v", err)
		}
	})
}

func TestHandlerHealthz(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Driver = config.DriverSQLite
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "sync.db")

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sync/devices", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("devices without token = %d, want 401", rec.Code)
	}
}

func TestBlobRootWiresSignatureSource(t *testing.T) {
	cfg := memoryConfig()
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Sync.Blobs != nil {
		t.Errorf("expected nil blob source without BlobRoot, got %T", a.Sync.Blobs)
	}

	cfg = memoryConfig()
	cfg.BlobRoot = t.TempDir()
	a, err = New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Sync.Blobs == nil {
		t.Error("expected blob source when BlobRoot is set")
	}
}

func TestRunRetention(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.Retention.Interval = 0
		a, err := New(context.Background(), cfg)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := a.RunRetention(context.Background()); err != nil {
			t.Errorf("RunRetention: %v", err)
		}
	})

	t.Run("stops on cancel", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.Retention.Interval = config.Duration(5 * time.Millisecond)
		a, err := New(context.Background(), cfg)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- a.RunRetention(ctx) }()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("RunRetention: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("RunRetention did not return after cancel")
		}
	})
}
