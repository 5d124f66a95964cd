package syncx

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCursor is returned for a cursor that is not a non-negative integer.
var ErrInvalidCursor = errors.New("invalid cursor")

// ParseCursor parses the cursor query parameter.
// An empty string means "from the beginning" and yields nil.
func ParseCursor(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return nil, ErrInvalidCursor
	}
	return &n, nil
}

// FormatCursor renders a cursor the way ParseCursor reads it.
func FormatCursor(c int64) string {
	return strconv.FormatInt(c, 10)
}

// ParseLimit parses a limit query param with default and max
func ParseLimit(q string, def, max int) int {
	if q == "" {
		return def
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// ParseBool accepts the usual query spellings; anything else is def.
func ParseBool(q string, def bool) bool {
	if q == "" {
		return def
	}
	b, err := strconv.ParseBool(q)
	if err != nil {
		return def
	}
	return b
}

// RFC3339 converts Unix milliseconds to RFC3339 timestamp string
func RFC3339(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}

// NowMs returns current Unix milliseconds timestamp (UTC)
func NowMs() int64 {
	return time.Now().UTC().UnixMilli()
}
