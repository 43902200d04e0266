package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ruteri/tee-keymaster-state/interfaces"
)

// FileStore implements a state store using the local file system.
// Each record is a file in the base directory, replaced via rename.
type FileStore struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileStore creates a file store rooted at baseDir, creating the directory if needed.
func NewFileStore(baseDir string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FileStore{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Load reads the named record. Returns ErrRecordNotFound if the file doesn't exist.
func (s *FileStore) Load(ctx context.Context, name string) ([]byte, error) {
	filePath, err := s.recordPath(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil, interfaces.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	s.log.Debug("Loaded record from file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return data, nil
}

// Save writes data to a temporary file, syncs it and renames it over the record.
func (s *FileStore) Save(ctx context.Context, name string, data []byte) error {
	filePath, err := s.recordPath(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.baseDir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		return fmt.Errorf("failed to replace record: %w", err)
	}
	s.syncDir()

	s.log.Debug("Saved record to file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return nil
}

// Delete removes the named record file.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	filePath, err := s.recordPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	s.syncDir()
	return nil
}

// Available checks if the base directory exists.
func (s *FileStore) Available(ctx context.Context) bool {
	_, err := os.Stat(s.baseDir)
	if err != nil {
		s.log.Debug("File store unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this store.
func (s *FileStore) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(s.baseDir))
}

// LocationURI returns the URI that identifies this store.
func (s *FileStore) LocationURI() string {
	return s.locationURI
}

// recordPath maps a record name to a file inside the base directory.
func (s *FileStore) recordPath(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid record name %q", name)
	}
	return filepath.Join(s.baseDir, name), nil
}

// syncDir flushes the directory entry after a rename or unlink.
func (s *FileStore) syncDir() {
	dir, err := os.Open(s.baseDir)
	if err != nil {
		s.log.Warn("Failed to open state directory for sync", "err", err)
		return
	}
	defer dir.Close()
	if err := dir.Sync(); err != nil {
		s.log.Debug("Failed to sync state directory", "err", err)
	}
}
