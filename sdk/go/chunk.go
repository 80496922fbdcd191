package evidrop

import (
	"fmt"
	"io"
)

// DefaultChunkSize is the chunk size used when none is configured (5 MiB).
const DefaultChunkSize = 5 * 1024 * 1024

// Chunker splits a byte stream of known length into fixed-size chunks.
// It is pure arithmetic over (index, size): any chunk can be recomputed at
// any time, which is what makes uploads restartable.
type Chunker struct {
	// Size is the chunk size in bytes. Zero means DefaultChunkSize.
	Size int64
}

func (c Chunker) size() int64 {
	if c.Size > 0 {
		return c.Size
	}
	return DefaultChunkSize
}

// TotalChunks returns how many chunks a payload of totalSize splits into.
// A zero-length payload still occupies one (empty) chunk slot; callers must
// reject empty files before chunking.
func (c Chunker) TotalChunks(totalSize int64) int {
	if totalSize <= 0 {
		return 0
	}
	return int((totalSize + c.size() - 1) / c.size())
}

// Range returns the byte offset and length of chunk index within a payload
// of totalSize. The final chunk carries the remainder.
func (c Chunker) Range(index int, totalSize int64) (offset, length int64, err error) {
	total := c.TotalChunks(totalSize)
	if index < 0 || index >= total {
		return 0, 0, fmt.Errorf("chunk index %d out of range [0,%d)", index, total)
	}

	offset = int64(index) * c.size()
	length = c.size()
	if offset+length > totalSize {
		length = totalSize - offset
	}
	return offset, length, nil
}

// ReadChunk reads chunk index of a payload of totalSize from r.
func (c Chunker) ReadChunk(r io.ReaderAt, index int, totalSize int64) ([]byte, error) {
	offset, length, err := c.Range(index, totalSize)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, length)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("reading chunk %d: %w", index, err)
	}
	return buf, nil
}
