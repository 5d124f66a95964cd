package syncservice

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/adler32"
	"io"

	"github.com/erauner12/toolbridge-sync/internal/blob"
	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MaxBlockSize bounds the requested signature block size.
const MaxBlockSize = 1 << 20

// ComputeSignature splits r into blockSize blocks (the last may be short) and
// fingerprints each with an Adler-32 weak checksum and a SHA-256 strong hash.
func ComputeSignature(r io.Reader, blockSize int) ([]model.BlockChecksum, error) {
	if blockSize <= 0 {
		blockSize = model.DefaultBlockSize
	}

	blocks := make([]model.BlockChecksum, 0)
	buf := make([]byte, blockSize)
	for index := 0; ; index++ {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			strong := sha256.Sum256(buf[:n])
			blocks = append(blocks, model.BlockChecksum{
				Index:  index,
				Weak:   adler32.Checksum(buf[:n]),
				Strong: hex.EncodeToString(strong[:]),
			})
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return blocks, nil
		default:
			return nil, err
		}
	}
}

// GenerateFileSignature fingerprints one stored version of an item. Content
// that is not available yields an empty block list, which callers treat as
// "transfer in full".
func (s *Service) GenerateFileSignature(ctx context.Context, itemID uuid.UUID, versionNumber, blockSize int) (model.FileSignature, error) {
	if itemID == uuid.Nil {
		return model.FileSignature{}, &InvalidArgumentError{Field: "itemId", Reason: "must not be empty"}
	}
	if versionNumber < 0 {
		return model.FileSignature{}, &InvalidArgumentError{Field: "versionNumber", Reason: "must not be negative"}
	}
	if blockSize <= 0 {
		blockSize = model.DefaultBlockSize
	}
	if blockSize > MaxBlockSize {
		return model.FileSignature{}, &InvalidArgumentError{Field: "blockSize", Reason: fmt.Sprintf("must be at most %d", MaxBlockSize)}
	}

	sig := model.FileSignature{
		ItemID:        itemID,
		VersionNumber: versionNumber,
		BlockSize:     blockSize,
		Blocks:        []model.BlockChecksum{},
	}
	if s.Blobs == nil {
		return sig, nil
	}

	rc, err := s.Blobs.Open(ctx, itemID, versionNumber)
	if errors.Is(err, blob.ErrContentUnavailable) {
		log.Ctx(ctx).Debug().Str("item_id", itemID.String()).Int("version", versionNumber).Msg("content unavailable, empty signature")
		return sig, nil
	}
	if err != nil {
		return model.FileSignature{}, err
	}
	defer rc.Close()

	blocks, err := ComputeSignature(ctxReader{ctx: ctx, r: rc}, blockSize)
	if err != nil {
		return model.FileSignature{}, fmt.Errorf("signature %s@%d: %w", itemID, versionNumber, err)
	}
	sig.Blocks = blocks
	return sig, nil
}

// ctxReader stops a long read once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
