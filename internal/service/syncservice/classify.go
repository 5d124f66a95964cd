package syncservice

import "github.com/erauner12/toolbridge-sync/internal/model"

// conflictTable[local][remote] is the conflict raised when a device pushes
// local while remote, from another device, is still unseen by it.
// Pairs left out classify as ConflictNone.
var conflictTable = [model.NumChangeTypes][model.NumChangeTypes]model.ConflictType{
	model.ChangeCreate: {
		model.ChangeCreate: model.ConflictCreateCreate,
	},
	model.ChangeModify: {
		model.ChangeModify:   model.ConflictEdit,
		model.ChangeMetadata: model.ConflictEdit,
		model.ChangeDelete:   model.ConflictEditDelete,
		model.ChangeTrash:    model.ConflictEditDelete,
	},
	model.ChangeMetadata: {
		model.ChangeModify:   model.ConflictEdit,
		model.ChangeMetadata: model.ConflictEdit,
		model.ChangeDelete:   model.ConflictEditDelete,
		model.ChangeTrash:    model.ConflictEditDelete,
	},
	model.ChangeRename: {
		model.ChangeRename: model.ConflictMoveMove,
		model.ChangeMove:   model.ConflictMoveMove,
		model.ChangeDelete: model.ConflictEditDelete,
		model.ChangeTrash:  model.ConflictEditDelete,
	},
	model.ChangeMove: {
		model.ChangeRename: model.ConflictMoveMove,
		model.ChangeMove:   model.ConflictMoveMove,
		model.ChangeDelete: model.ConflictEditDelete,
		model.ChangeTrash:  model.ConflictEditDelete,
	},
	model.ChangeRestore: {
		model.ChangeDelete: model.ConflictEditDelete,
		model.ChangeTrash:  model.ConflictEditDelete,
	},
	model.ChangeDelete: {
		model.ChangeModify:   model.ConflictDeleteEdit,
		model.ChangeMetadata: model.ConflictDeleteEdit,
		model.ChangeRename:   model.ConflictDeleteEdit,
		model.ChangeMove:     model.ConflictDeleteEdit,
		model.ChangeRestore:  model.ConflictDeleteEdit,
	},
	model.ChangeTrash: {
		model.ChangeModify:   model.ConflictDeleteEdit,
		model.ChangeMetadata: model.ConflictDeleteEdit,
		model.ChangeRename:   model.ConflictDeleteEdit,
		model.ChangeMove:     model.ConflictDeleteEdit,
		model.ChangeRestore:  model.ConflictDeleteEdit,
	},
}

// Classify returns the conflict between an incoming local change and a
// concurrent remote change of the same item.
func Classify(local, remote model.ChangeType) model.ConflictType {
	if !local.Valid() || !remote.Valid() {
		return model.ConflictNone
	}
	return conflictTable[local][remote]
}
