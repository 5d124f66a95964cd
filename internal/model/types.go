// Package model holds the entities exchanged between the sync services,
// the repositories and the wire layer.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultPageLimit is the page size used when a pull omits limit.
const DefaultPageLimit = 1000

// DefaultBlockSize is the signature block size used when none is requested.
const DefaultBlockSize = 4096

// SyncDevice is one registered endpoint of a user.
type SyncDevice struct {
	ID             uuid.UUID  `json:"id"`
	UserID         string     `json:"userId"`
	DeviceID       string     `json:"deviceId"`
	DeviceName     string     `json:"deviceName"`
	DeviceType     DeviceType `json:"deviceType"`
	IsActive       bool       `json:"isActive"`
	LastSyncAt     *time.Time `json:"lastSyncAt,omitempty"`
	LastSyncCursor int64      `json:"lastSyncCursor"`
	// RemovalCursor trails LastSyncCursor when pulls filtered out deletes:
	// every DELETE or TRASH at or below it was delivered to the device.
	RemovalCursor int64     `json:"removalCursor"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// SyncChange is one atomic mutation in a user's change log.
// Cursor is assigned by the store at append time.
type SyncChange struct {
	ID             uuid.UUID  `json:"id"`
	ItemID         uuid.UUID  `json:"itemId"`
	ChangeType     ChangeType `json:"changeType"`
	UserID         string     `json:"userId"`
	DeviceID       *string    `json:"deviceId,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
	Cursor         int64      `json:"cursor"`
	OldPath        *string    `json:"oldPath,omitempty"`
	NewPath        *string    `json:"newPath,omitempty"`
	Checksum       *string    `json:"checksum,omitempty"`
	ParentID       *uuid.UUID `json:"parentId,omitempty"`
	ClientChangeID *string    `json:"clientChangeId,omitempty"`
}

// FromDevice reports whether the change originated on deviceID.
func (c SyncChange) FromDevice(deviceID string) bool {
	return c.DeviceID != nil && *c.DeviceID == deviceID
}

// SyncConflict records two concurrent changes to the same item.
// A conflict is pending while ResolvedAt and Resolution are both nil.
type SyncConflict struct {
	ID           uuid.UUID    `json:"id"`
	ItemID       uuid.UUID    `json:"itemId"`
	UserID       string       `json:"userId"`
	LocalChange  SyncChange   `json:"localChange"`
	RemoteChange SyncChange   `json:"remoteChange"`
	ConflictType ConflictType `json:"conflictType"`
	ResolvedAt   *time.Time   `json:"resolvedAt,omitempty"`
	Resolution   *Resolution  `json:"resolution,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

func (c SyncConflict) IsPending() bool {
	return c.ResolvedAt == nil && c.Resolution == nil
}

// MarshalJSON adds the derived isPending flag.
func (c SyncConflict) MarshalJSON() ([]byte, error) {
	type plain SyncConflict
	return json.Marshal(struct {
		plain
		IsPending bool `json:"isPending"`
	}{plain(c), c.IsPending()})
}

// BlockChecksum is the two-tier fingerprint of one block.
type BlockChecksum struct {
	Index  int    `json:"index"`
	Weak   uint32 `json:"weak"`
	Strong string `json:"strong"`
}

// FileSignature fingerprints one version of one item. An empty Blocks list
// means no delta optimisation is possible and the caller transfers in full.
type FileSignature struct {
	ItemID        uuid.UUID       `json:"itemId"`
	VersionNumber int             `json:"versionNumber"`
	BlockSize     int             `json:"blockSize"`
	Blocks        []BlockChecksum `json:"blocks"`
}

// SyncRequest is a pull. A nil Cursor means "from the beginning".
type SyncRequest struct {
	DeviceID       string `json:"deviceId"`
	Cursor         *int64 `json:"cursor,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	IncludeDeleted bool   `json:"includeDeleted,omitempty"`
}

// SyncResponse is the answer to a pull. Cursor is what the device presents next.
type SyncResponse struct {
	Changes   []SyncChange   `json:"changes"`
	Cursor    int64          `json:"cursor"`
	HasMore   bool           `json:"hasMore"`
	Conflicts []SyncConflict `json:"conflicts"`
}

// RecordChangeInput is a client-originated change before it is logged.
// The log timestamp is assigned by the server when the change is recorded.
type RecordChangeInput struct {
	ItemID         uuid.UUID  `json:"itemId"`
	ChangeType     ChangeType `json:"changeType"`
	OldPath        *string    `json:"oldPath,omitempty"`
	NewPath        *string    `json:"newPath,omitempty"`
	Checksum       *string    `json:"checksum,omitempty"`
	ParentID       *uuid.UUID `json:"parentId,omitempty"`
	ClientChangeID *string    `json:"clientChangeId,omitempty"`
}
