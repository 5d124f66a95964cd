package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SYNC_CONFIG", "")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("ENV", "dev")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	out, err := run(t, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "schema ready (memory)") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestPrune(t *testing.T) {
	out, err := run(t, "prune", "--days", "3")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if !strings.Contains(out, "removed 0 records older than 3 days") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestSignatureRejectsBadItemID(t *testing.T) {
	if _, err := run(t, "signature", "not-a-uuid"); err == nil {
		t.Fatal("expected error for invalid item id")
	}
}
