// Package utils provides chunk staging and filesystem helpers for evidrop.
package utils

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// assembleBufferSize is the buffer size for chunk assembly (8MB).
// Large enough to keep syscall overhead low when concatenating 5MB chunks.
const assembleBufferSize = 8 * 1024 * 1024

// StagingDir returns the directory holding all staged chunks
func StagingDir(uploadDir string) string {
	return filepath.Join(uploadDir, ".staging")
}

// SessionChunkDir returns the staging directory for one upload session
func SessionChunkDir(uploadDir, uploadID string) string {
	return filepath.Join(StagingDir(uploadDir), uploadID)
}

// ChunkPath returns the staged file path for a specific chunk index
func ChunkPath(uploadDir, uploadID string, chunkIndex int) string {
	return filepath.Join(SessionChunkDir(uploadDir, uploadID), fmt.Sprintf("chunk_%d", chunkIndex))
}

// ExpectedChunkSize returns the byte length chunk i must have for a session
// splitting totalSize into fixed chunkSize pieces. The last chunk carries the
// remainder.
func ExpectedChunkSize(chunkIndex, totalChunks int, chunkSize, totalSize int64) int64 {
	if chunkIndex < totalChunks-1 {
		return chunkSize
	}
	return totalSize - int64(totalChunks-1)*chunkSize
}

// SaveChunk stages a chunk on disk
func SaveChunk(uploadDir, uploadID string, chunkIndex int, data []byte) error {
	chunkDir := SessionChunkDir(uploadDir, uploadID)
	if err := os.MkdirAll(chunkDir, 0755); err != nil {
		return fmt.Errorf("failed to create chunk directory: %w", err)
	}

	// Open explicitly instead of os.WriteFile to avoid an implicit sync;
	// staged chunks are re-sendable if the server crashes before flush.
	chunkPath := ChunkPath(uploadDir, uploadID, chunkIndex)
	file, err := os.OpenFile(chunkPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create chunk file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("failed to write chunk data: %w", err)
	}

	slog.Debug("chunk staged",
		"upload_id", uploadID,
		"chunk_index", chunkIndex,
		"size", len(data),
	)

	return nil
}

// ChunkExists checks whether a staged chunk exists and returns its size
func ChunkExists(uploadDir, uploadID string, chunkIndex int) (bool, int64, error) {
	info, err := os.Stat(ChunkPath(uploadDir, uploadID, chunkIndex))
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to stat chunk file: %w", err)
	}
	return true, info.Size(), nil
}

// MissingChunks returns the sorted chunk indices not yet staged
func MissingChunks(uploadDir, uploadID string, totalChunks int) ([]int, error) {
	var missing []int
	for i := 0; i < totalChunks; i++ {
		exists, _, err := ChunkExists(uploadDir, uploadID, i)
		if err != nil {
			return nil, fmt.Errorf("failed to check chunk %d: %w", i, err)
		}
		if !exists {
			missing = append(missing, i)
		}
	}
	return missing, nil
}

// VerifyChunkSizes verifies every staged chunk has the expected byte length
func VerifyChunkSizes(uploadDir, uploadID string, totalChunks int, chunkSize, totalSize int64) error {
	for i := 0; i < totalChunks; i++ {
		exists, size, err := ChunkExists(uploadDir, uploadID, i)
		if err != nil {
			return fmt.Errorf("failed to check chunk %d: %w", i, err)
		}
		if !exists {
			return fmt.Errorf("chunk %d is missing", i)
		}
		if want := ExpectedChunkSize(i, totalChunks, chunkSize, totalSize); size != want {
			return fmt.Errorf("chunk %d has incorrect size: expected %d, got %d", i, want, size)
		}
	}
	return nil
}

// AssembleChunks concatenates staged chunks 0..totalChunks-1 in index order
// into a single file at outputPath. Returns the total bytes written.
func AssembleChunks(uploadDir, uploadID string, totalChunks int, outputPath string) (int64, error) {
	startTime := time.Now()

	missing, err := MissingChunks(uploadDir, uploadID, totalChunks)
	if err != nil {
		return 0, fmt.Errorf("failed to check for missing chunks: %w", err)
	}
	if len(missing) > 0 {
		return 0, fmt.Errorf("cannot assemble: %d chunks missing (first missing: %d)", len(missing), missing[0])
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer outFile.Close()

	writer := bufio.NewWriterSize(outFile, assembleBufferSize)

	var totalBytesWritten int64
	for i := 0; i < totalChunks; i++ {
		chunkFile, err := os.Open(ChunkPath(uploadDir, uploadID, i))
		if err != nil {
			return 0, fmt.Errorf("failed to open chunk %d: %w", i, err)
		}

		bytesWritten, err := io.Copy(writer, chunkFile)
		chunkFile.Close()
		if err != nil {
			return 0, fmt.Errorf("failed to copy chunk %d: %w", i, err)
		}

		totalBytesWritten += bytesWritten
	}

	if err := writer.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush output file: %w", err)
	}

	slog.Info("chunk assembly complete",
		"upload_id", uploadID,
		"total_chunks", totalChunks,
		"total_bytes", totalBytesWritten,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)

	return totalBytesWritten, nil
}

// DeleteChunks removes all staged chunks for an upload session
func DeleteChunks(uploadDir, uploadID string) error {
	chunkDir := SessionChunkDir(uploadDir, uploadID)

	if _, err := os.Stat(chunkDir); os.IsNotExist(err) {
		return nil // Already deleted
	}

	if err := os.RemoveAll(chunkDir); err != nil {
		return fmt.Errorf("failed to delete chunk directory: %w", err)
	}

	slog.Debug("staged chunks deleted", "upload_id", uploadID)

	return nil
}
