package syncx

import (
	"testing"

	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/google/uuid"
)

func TestExtractChange(t *testing.T) {
	item := "c1d9b7dc-a1b2-4c3d-9e8f-7a6b5c4d3e2f"
	parent := "0a4e6c1e-2f7b-4d0a-8f1e-3b5c7d9e1f20"

	tests := []struct {
		name    string
		input   map[string]any
		check   func(t *testing.T, got model.RecordChangeInput)
		wantErr bool
	}{
		{
			name: "canonical fields",
			input: map[string]any{
				"itemId":         item,
				"changeType":     "MODIFY",
				"oldPath":        "/a.txt",
				"newPath":        "/b.txt",
				"checksum":       "abc",
				"parentId":       parent,
				"clientChangeId": "op-1",
			},
			check: func(t *testing.T, got model.RecordChangeInput) {
				if got.ItemID != uuid.MustParse(item) || got.ChangeType != model.ChangeModify {
					t.Errorf("id/type = %v/%v", got.ItemID, got.ChangeType)
				}
				if *got.OldPath != "/a.txt" || *got.NewPath != "/b.txt" || *got.Checksum != "abc" {
					t.Errorf("paths = %v %v %v", got.OldPath, got.NewPath, got.Checksum)
				}
				if got.ParentID == nil || *got.ParentID != uuid.MustParse(parent) {
					t.Errorf("parent = %v", got.ParentID)
				}
				if got.ClientChangeID == nil || *got.ClientChangeID != "op-1" {
					t.Errorf("clientChangeId = %v", got.ClientChangeID)
				}
			},
		},
		{
			name:  "snake case keys",
			input: map[string]any{"item_id": item, "change_type": "trash", "parent_id": parent, "client_change_id": "x"},
			check: func(t *testing.T, got model.RecordChangeInput) {
				if got.ChangeType != model.ChangeTrash || got.ParentID == nil || got.ClientChangeID == nil {
					t.Errorf("got %+v", got)
				}
			},
		},
		{
			name: "nested file block",
			input: map[string]any{
				"itemId":     item,
				"changeType": "RENAME",
				"file":       map[string]any{"oldPath": "/x", "path": "/y"},
			},
			check: func(t *testing.T, got model.RecordChangeInput) {
				if got.OldPath == nil || *got.OldPath != "/x" || got.NewPath == nil || *got.NewPath != "/y" {
					t.Errorf("paths = %v %v", got.OldPath, got.NewPath)
				}
			},
		},
		{
			name:  "optional fields absent",
			input: map[string]any{"itemId": item, "changeType": "CREATE"},
			check: func(t *testing.T, got model.RecordChangeInput) {
				if got.OldPath != nil || got.NewPath != nil || got.ParentID != nil || got.ClientChangeID != nil {
					t.Errorf("unexpected optional fields: %+v", got)
				}
			},
		},
		{name: "missing item id", input: map[string]any{"changeType": "CREATE"}, wantErr: true},
		{name: "invalid item id", input: map[string]any{"itemId": "nope", "changeType": "CREATE"}, wantErr: true},
		{name: "missing change type", input: map[string]any{"itemId": item}, wantErr: true},
		{name: "unknown change type", input: map[string]any{"itemId": item, "changeType": "EXPLODE"}, wantErr: true},
		{name: "invalid parent", input: map[string]any{"itemId": item, "changeType": "MOVE", "parentId": "zzz"}, wantErr: true},
		{name: "non-string item id", input: map[string]any{"itemId": 12, "changeType": "CREATE"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractChange(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ExtractChange() = %+v, expected error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractChange() error = %v", err)
			}
			tt.check(t, got)
		})
	}
}
