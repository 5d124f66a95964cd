package syncservice

import (
	"testing"

	"github.com/erauner12/toolbridge-sync/internal/model"
)

func TestClassify_EveryPair(t *testing.T) {
	edits := []model.ChangeType{model.ChangeModify, model.ChangeMetadata}
	moves := []model.ChangeType{model.ChangeRename, model.ChangeMove}
	removals := []model.ChangeType{model.ChangeDelete, model.ChangeTrash}
	survivors := []model.ChangeType{model.ChangeModify, model.ChangeMetadata, model.ChangeRename, model.ChangeMove, model.ChangeRestore}

	want := map[[2]model.ChangeType]model.ConflictType{
		{model.ChangeCreate, model.ChangeCreate}: model.ConflictCreateCreate,
	}
	for _, l := range edits {
		for _, r := range edits {
			want[[2]model.ChangeType{l, r}] = model.ConflictEdit
		}
	}
	for _, l := range moves {
		for _, r := range moves {
			want[[2]model.ChangeType{l, r}] = model.ConflictMoveMove
		}
	}
	for _, s := range survivors {
		for _, d := range removals {
			want[[2]model.ChangeType{s, d}] = model.ConflictEditDelete
			want[[2]model.ChangeType{d, s}] = model.ConflictDeleteEdit
		}
	}

	pairs := 0
	for _, local := range model.AllChangeTypes() {
		for _, remote := range model.AllChangeTypes() {
			pairs++
			expected := want[[2]model.ChangeType{local, remote}]
			if got := Classify(local, remote); got != expected {
				t.Errorf("Classify(%s, %s) = %s, want %s", local, remote, got, expected)
			}
		}
	}
	if pairs != model.NumChangeTypes*model.NumChangeTypes {
		t.Errorf("covered %d pairs", pairs)
	}
}

func TestClassify_InvalidKinds(t *testing.T) {
	if got := Classify(model.ChangeType(-1), model.ChangeModify); got != model.ConflictNone {
		t.Errorf("Classify(invalid, MODIFY) = %s", got)
	}
	if got := Classify(model.ChangeModify, model.ChangeType(model.NumChangeTypes)); got != model.ConflictNone {
		t.Errorf("Classify(MODIFY, out of range) = %s", got)
	}
}
