// Package blob is the read side of the content store the sync engine
// fingerprints. Byte transfer itself lives elsewhere.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

// ErrContentUnavailable means the version has no materialised bytes yet.
var ErrContentUnavailable = errors.New("blob: content unavailable")

// Source opens the bytes of one version of one item.
type Source interface {
	Open(ctx context.Context, itemID uuid.UUID, version int) (io.ReadCloser, error)
}

// Dir serves versions from <Root>/<itemID>/<version>.
type Dir struct {
	Root string
}

// NewDir returns a Dir rooted at root.
func NewDir(root string) *Dir {
	return &Dir{Root: root}
}

func (d *Dir) Path(itemID uuid.UUID, version int) string {
	return filepath.Join(d.Root, itemID.String(), strconv.Itoa(version))
}

func (d *Dir) Open(ctx context.Context, itemID uuid.UUID, version int) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if version < 0 {
		return nil, ErrContentUnavailable
	}
	f, err := os.Open(d.Path(itemID, version))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrContentUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("open blob %s@%d: %w", itemID, version, err)
	}
	return f, nil
}
