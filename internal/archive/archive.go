package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store provides file-based retention of raw model responses that failed
// downstream parsing.
type Store struct {
	basePath string
}

// New creates a Store and ensures the base directory exists.
func New(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", basePath, err)
	}
	return &Store{basePath: basePath}, nil
}

// sanitizeTimestamp makes the timestamp safe for filenames.
func sanitizeTimestamp(ts string) string {
	return strings.ReplaceAll(ts, ":", "-")
}

// rawPath returns the full path for one archived response.
func (s *Store) rawPath(operation, ts, id string) string {
	filename := fmt.Sprintf("%s_%s_%s.txt", operation, sanitizeTimestamp(ts), id)
	return filepath.Join(s.basePath, filename)
}

// SaveRaw stores one raw model response under an operation-scoped,
// timestamped filename. The uuid suffix keeps same-second saves distinct.
func (s *Store) SaveRaw(operation, raw string) error {
	ts := time.Now().UTC().Format(time.RFC3339)
	id := uuid.NewString()[:8]

	filePath := s.rawPath(operation, ts, id)
	if err := os.WriteFile(filePath, []byte(raw), 0644); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	return nil
}
