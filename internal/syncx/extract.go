package syncx

import (
	"errors"
	"fmt"

	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/google/uuid"
)

// GetString safely extracts a string value from a map
func GetString(m map[string]any, k string) (string, bool) {
	if v, ok := m[k]; ok {
		if s, ok2 := v.(string); ok2 {
			return s, true
		}
	}
	return "", false
}

// firstString returns the first present string among the given keys.
func firstString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := GetString(m, k); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// GetMap safely extracts a nested map from a map
func GetMap(m map[string]any, k string) (map[string]any, bool) {
	if v, ok := m[k]; ok {
		if mm, ok2 := v.(map[string]any); ok2 {
			return mm, true
		}
	}
	return nil, false
}

// ParseUUID parses a UUID string
func ParseUUID(s string) (uuid.UUID, bool) {
	if s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	return id, err == nil
}

// optString returns a pointer to the first non-empty string among keys.
func optString(m map[string]any, keys ...string) *string {
	if s, ok := firstString(m, keys...); ok {
		return &s
	}
	return nil
}

// ExtractChange parses one pushed change from client JSON.
// Keys are accepted in camelCase or snake_case.
func ExtractChange(item map[string]any) (model.RecordChangeInput, error) {
	var out model.RecordChangeInput

	// 1. Item id (required)
	idStr, _ := firstString(item, "itemId", "item_id")
	id, ok := ParseUUID(idStr)
	if !ok {
		return out, errors.New("missing or invalid itemId")
	}
	out.ItemID = id

	// 2. Change type (required)
	ctStr, ok := firstString(item, "changeType", "change_type")
	if !ok {
		return out, errors.New("missing changeType")
	}
	ct, err := model.ParseChangeType(ctStr)
	if err != nil {
		return out, err
	}
	out.ChangeType = ct

	// 3. Optional paths and checksum, flat or nested under "file"
	src := item
	if file, ok := GetMap(item, "file"); ok {
		src = file
	}
	out.OldPath = optString(src, "oldPath", "old_path")
	out.NewPath = optString(src, "newPath", "new_path", "path")
	out.Checksum = optString(src, "checksum", "sha256")

	// 4. Parent folder
	if ps, ok := firstString(item, "parentId", "parent_id"); ok {
		pid, ok := ParseUUID(ps)
		if !ok {
			return out, fmt.Errorf("invalid parentId: %s", ps)
		}
		out.ParentID = &pid
	}

	// 5. Idempotency key
	out.ClientChangeID = optString(item, "clientChangeId", "client_change_id")

	return out, nil
}
