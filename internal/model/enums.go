package model

import (
	"fmt"
	"strings"
)

// ChangeType is the kind of mutation recorded in the change log.
type ChangeType int

const (
	ChangeCreate ChangeType = iota
	ChangeModify
	ChangeRename
	ChangeMove
	ChangeDelete
	ChangeRestore
	ChangeTrash
	ChangeMetadata

	numChangeTypes
)

// NumChangeTypes bounds tables indexed by ChangeType.
const NumChangeTypes = int(numChangeTypes)

var changeTypeNames = [NumChangeTypes]string{
	ChangeCreate:   "CREATE",
	ChangeModify:   "MODIFY",
	ChangeRename:   "RENAME",
	ChangeMove:     "MOVE",
	ChangeDelete:   "DELETE",
	ChangeRestore:  "RESTORE",
	ChangeTrash:    "TRASH",
	ChangeMetadata: "METADATA",
}

// AllChangeTypes returns every change type in declaration order.
func AllChangeTypes() []ChangeType {
	out := make([]ChangeType, 0, NumChangeTypes)
	for t := ChangeType(0); t < numChangeTypes; t++ {
		out = append(out, t)
	}
	return out
}

func (t ChangeType) Valid() bool { return t >= 0 && t < numChangeTypes }

func (t ChangeType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("ChangeType(%d)", int(t))
	}
	return changeTypeNames[t]
}

// IsRemoval reports whether the change takes the item out of the live tree.
func (t ChangeType) IsRemoval() bool {
	return t == ChangeDelete || t == ChangeTrash
}

// ParseChangeType accepts the wire names case-insensitively.
func ParseChangeType(s string) (ChangeType, error) {
	i, err := parseEnum(changeTypeNames[:], s, "change type")
	return ChangeType(i), err
}

func (t ChangeType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid change type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *ChangeType) UnmarshalText(b []byte) error {
	v, err := ParseChangeType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ConflictType classifies a pair of colliding changes.
// ConflictNone is never persisted; it is the "no conflict" answer of the classifier.
type ConflictType int

const (
	ConflictNone ConflictType = iota
	ConflictEdit
	ConflictEditDelete
	ConflictDeleteEdit
	ConflictCreateCreate
	ConflictMoveMove
	ConflictParentDeleted

	numConflictTypes
)

var conflictTypeNames = [numConflictTypes]string{
	ConflictNone:          "NONE",
	ConflictEdit:          "EDIT_CONFLICT",
	ConflictEditDelete:    "EDIT_DELETE",
	ConflictDeleteEdit:    "DELETE_EDIT",
	ConflictCreateCreate:  "CREATE_CREATE",
	ConflictMoveMove:      "MOVE_MOVE",
	ConflictParentDeleted: "PARENT_DELETED",
}

func (t ConflictType) Valid() bool { return t > ConflictNone && t < numConflictTypes }

func (t ConflictType) String() string {
	if t < 0 || t >= numConflictTypes {
		return fmt.Sprintf("ConflictType(%d)", int(t))
	}
	return conflictTypeNames[t]
}

func ParseConflictType(s string) (ConflictType, error) {
	i, err := parseEnum(conflictTypeNames[1:], s, "conflict type")
	if err != nil {
		return ConflictNone, err
	}
	return ConflictType(i + 1), nil
}

func (t ConflictType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid conflict type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *ConflictType) UnmarshalText(b []byte) error {
	v, err := ParseConflictType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Resolution is the decision recorded for a conflict.
type Resolution int

const (
	ResolutionKeepLocal Resolution = iota + 1
	ResolutionKeepRemote
	ResolutionKeepBoth
	ResolutionMerge
	ResolutionManual

	resolutionEnd
)

var resolutionNames = [...]string{
	"KEEP_LOCAL",
	"KEEP_REMOTE",
	"KEEP_BOTH",
	"MERGE",
	"MANUAL",
}

// AllResolutions returns every resolution in declaration order.
func AllResolutions() []Resolution {
	out := make([]Resolution, 0, len(resolutionNames))
	for r := ResolutionKeepLocal; r < resolutionEnd; r++ {
		out = append(out, r)
	}
	return out
}

func (r Resolution) Valid() bool { return r >= ResolutionKeepLocal && r < resolutionEnd }

func (r Resolution) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Resolution(%d)", int(r))
	}
	return resolutionNames[r-1]
}

func ParseResolution(s string) (Resolution, error) {
	i, err := parseEnum(resolutionNames[:], s, "resolution")
	if err != nil {
		return 0, err
	}
	return Resolution(i + 1), nil
}

func (r Resolution) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid resolution %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Resolution) UnmarshalText(b []byte) error {
	v, err := ParseResolution(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// DeviceType tags the platform of a synchronizing endpoint.
type DeviceType string

const (
	DeviceDesktopWindows DeviceType = "DESKTOP_WINDOWS"
	DeviceDesktopMac     DeviceType = "DESKTOP_MAC"
	DeviceDesktopLinux   DeviceType = "DESKTOP_LINUX"
	DeviceMobileIOS      DeviceType = "MOBILE_IOS"
	DeviceMobileAndroid  DeviceType = "MOBILE_ANDROID"
	DeviceWeb            DeviceType = "WEB"
	DeviceCLI            DeviceType = "CLI"
	DeviceOther          DeviceType = "OTHER"
)

var deviceTypes = []DeviceType{
	DeviceDesktopWindows,
	DeviceDesktopMac,
	DeviceDesktopLinux,
	DeviceMobileIOS,
	DeviceMobileAndroid,
	DeviceWeb,
	DeviceCLI,
	DeviceOther,
}

// AllDeviceTypes returns every known platform tag.
func AllDeviceTypes() []DeviceType {
	return append([]DeviceType(nil), deviceTypes...)
}

func (t DeviceType) Valid() bool {
	for _, d := range deviceTypes {
		if d == t {
			return true
		}
	}
	return false
}

// ParseDeviceType normalises case and rejects unknown platforms.
func ParseDeviceType(s string) (DeviceType, error) {
	t := DeviceType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown device type %q", s)
	}
	return t, nil
}

func parseEnum(names []string, s, kind string) (int, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range names {
		if n == want {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", kind, s)
}
