package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseChangeType(t *testing.T) {
	tests := []struct {
		in      string
		want    ChangeType
		wantErr bool
	}{
		{"MODIFY", ChangeModify, false},
		{"modify", ChangeModify, false},
		{" trash ", ChangeTrash, false},
		{"METADATA", ChangeMetadata, false},
		{"UPSERT", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChangeType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseChangeType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseChangeType(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestChangeTypeNamesRoundTrip(t *testing.T) {
	for _, ct := range AllChangeTypes() {
		parsed, err := ParseChangeType(ct.String())
		if err != nil || parsed != ct {
			t.Errorf("round trip of %v gave %v, %v", ct, parsed, err)
		}
	}
	if len(AllChangeTypes()) != NumChangeTypes {
		t.Errorf("AllChangeTypes() has %d entries, want %d", len(AllChangeTypes()), NumChangeTypes)
	}
}

func TestParseResolution(t *testing.T) {
	got, err := ParseResolution("keep_remote")
	if err != nil || got != ResolutionKeepRemote {
		t.Fatalf("ParseResolution(keep_remote) = %v, %v", got, err)
	}
	if _, err := ParseResolution("THEIRS"); err == nil {
		t.Error("expected error for unknown resolution")
	}
	if len(AllResolutions()) != 5 {
		t.Errorf("expected 5 resolutions, got %d", len(AllResolutions()))
	}
}

func TestParseDeviceType(t *testing.T) {
	got, err := ParseDeviceType("desktop_mac")
	if err != nil || got != DeviceDesktopMac {
		t.Fatalf("ParseDeviceType(desktop_mac) = %v, %v", got, err)
	}
	if _, err := ParseDeviceType("TOASTER"); err == nil {
		t.Error("expected error for unknown device type")
	}
}

func TestConflictJSONIncludesPending(t *testing.T) {
	c := SyncConflict{
		ID:           uuid.New(),
		ItemID:       uuid.New(),
		UserID:       "user-1",
		LocalChange:  SyncChange{ChangeType: ChangeModify},
		RemoteChange: SyncChange{ChangeType: ChangeDelete},
		ConflictType: ConflictEditDelete,
		CreatedAt:    time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC),
	}

	b, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"isPending":true`, `"conflictType":"EDIT_DELETE"`, `"changeType":"MODIFY"`} {
		if !strings.Contains(s, want) {
			t.Errorf("json %s missing %s", s, want)
		}
	}

	var back SyncConflict
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.ConflictType != ConflictEditDelete || !back.IsPending() {
		t.Errorf("unexpected decoded conflict: %+v", back)
	}
}

func TestConflictEffect(t *testing.T) {
	local := SyncChange{ID: uuid.New(), ChangeType: ChangeModify}
	remote := SyncChange{ID: uuid.New(), ChangeType: ChangeModify}
	c := SyncConflict{LocalChange: local, RemoteChange: remote}

	if _, ok := c.Effect(); ok {
		t.Fatal("pending conflict must not have an effect")
	}

	for _, r := range AllResolutions() {
		r := r
		c.Resolution = &r
		e, ok := c.Effect()
		if !ok {
			t.Fatalf("no effect for %v", r)
		}
		switch v := e.(type) {
		case KeepChange:
			want := local.ID
			if r == ResolutionKeepRemote {
				want = remote.ID
			}
			if v.Winner.ID != want {
				t.Errorf("%v: winner %v, want %v", r, v.Winner.ID, want)
			}
		case KeepBoth:
			if r != ResolutionKeepBoth {
				t.Errorf("%v mapped to KeepBoth", r)
			}
		case AwaitMerge:
			if r != ResolutionMerge {
				t.Errorf("%v mapped to AwaitMerge", r)
			}
		case AwaitManual:
			if r != ResolutionManual {
				t.Errorf("%v mapped to AwaitManual", r)
			}
		}
	}
}
