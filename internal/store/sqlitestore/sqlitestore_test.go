package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/erauner12/toolbridge-sync/internal/store"
	"github.com/erauner12/toolbridge-sync/internal/store/storetest"
)

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(context.Background(), filepath.Join(t.TempDir(), "sync.db"))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		return s
	})
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "sync.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var cur int64
	if cur, err = s.CurrentCursor(ctx, "u1"); err != nil || cur != 0 {
		t.Fatalf("CurrentCursor = %d, %v", cur, err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO sync_cursor (user_id, cursor) VALUES ('u1', 7)`); err != nil {
		t.Fatalf("seed cursor: %v", err)
	}
	s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if cur, err = s.CurrentCursor(ctx, "u1"); err != nil || cur != 7 {
		t.Errorf("CurrentCursor after reopen = %d, %v", cur, err)
	}
}
