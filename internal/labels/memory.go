package labels

import (
	"context"
	"sort"
	"sync"

	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

// MemoryStore is an in-memory label archive used for tests and development.
type MemoryStore struct {
	mu     sync.RWMutex
	labels map[string][]byte
}

// NewMemoryStore creates an empty in-memory label archive.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{labels: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, code string, png []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(png))
	copy(cp, png)
	s.labels[code] = cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, code string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	png, ok := s.labels[code]
	if !ok {
		return nil, fmerr.ErrLabelNotFound.WithMessage("no label archived for code %q", code)
	}
	cp := make([]byte, len(png))
	copy(cp, png)
	return cp, nil
}

func (s *MemoryStore) Exists(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.labels[code]
	return ok, nil
}

func (s *MemoryStore) Delete(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.labels, code)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.labels))
	for code := range s.labels {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
