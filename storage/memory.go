package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/tee-keymaster-state/interfaces"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	name    string
	records map[string][]byte
	log     *slog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(name string, log *slog.Logger) *MemoryStore {
	return &MemoryStore{
		name:    name,
		records: make(map[string][]byte),
		log:     log,
	}
}

// Load returns a copy of the named record.
func (s *MemoryStore) Load(ctx context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.records[name]
	if !ok {
		return nil, interfaces.ErrRecordNotFound
	}
	return append([]byte(nil), data...), nil
}

// Save stores a copy of data under name.
func (s *MemoryStore) Save(ctx context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[name] = append([]byte(nil), data...)
	s.log.Debug("Saved record in memory", slog.String("record", name), slog.Int("size", len(data)))
	return nil
}

// Delete removes the named record.
func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, name)
	return nil
}

// Available always returns true.
func (s *MemoryStore) Available(ctx context.Context) bool {
	return true
}

// Name returns a unique identifier for this store.
func (s *MemoryStore) Name() string {
	return fmt.Sprintf("memory-%s", s.name)
}

// LocationURI returns the URI that identifies this store.
func (s *MemoryStore) LocationURI() string {
	return fmt.Sprintf("memory://%s", s.name)
}
