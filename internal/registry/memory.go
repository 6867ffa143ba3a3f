package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

// MemoryStore is an in-memory Store implementation used for tests and
// development. All state is lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	locations map[string]*LocationRecord
	byCode    map[string]string // code -> location ID
	retired   map[string]bool   // codes burned by regeneration
}

// NewMemoryStore creates an empty in-memory registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locations: make(map[string]*LocationRecord),
		byCode:    make(map[string]string),
		retired:   make(map[string]bool),
	}
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateLocation(ctx context.Context, loc *LocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locations[loc.ID]; ok {
		return fmerr.ErrLocationExists.WithMessage("location %q already exists", loc.ID)
	}

	now := time.Now().UTC()
	cp := *loc
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	cp.Active = true
	s.locations[cp.ID] = &cp
	if cp.Code != "" {
		s.byCode[cp.Code] = cp.ID
	}
	return nil
}

func (s *MemoryStore) GetLocation(ctx context.Context, id string) (*LocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, ok := s.locations[id]
	if !ok {
		return nil, fmerr.ErrLocationNotFound.WithMessage("location %q not found", id)
	}
	cp := *loc
	return &cp, nil
}

func (s *MemoryStore) ListLocations(ctx context.Context) ([]LocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]LocationRecord, 0, len(s.locations))
	for _, loc := range s.locations {
		out = append(out, *loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) DeleteLocation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.locations[id]
	if !ok {
		return fmerr.ErrLocationNotFound.WithMessage("location %q not found", id)
	}
	loc.Active = false
	loc.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ExistsByCode(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.retired[code] {
		return true, nil
	}
	_, ok := s.byCode[code]
	return ok, nil
}

func (s *MemoryStore) FindByCode(ctx context.Context, code string) (*LocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, fmerr.ErrCodeNotFound.WithMessage("code %q not bound", code)
	}
	loc := s.locations[id]
	if loc == nil || !loc.Active {
		return nil, fmerr.ErrCodeNotFound.WithMessage("code %q not bound", code)
	}
	cp := *loc
	return &cp, nil
}

func (s *MemoryStore) ListRetiredCodes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.retired))
	for code := range s.retired {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) RetireCode(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retired[code] = true
	return nil
}

func (s *MemoryStore) BindCode(ctx context.Context, locationID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.locations[locationID]
	if !ok {
		return fmerr.ErrLocationNotFound.WithMessage("location %q not found", locationID)
	}
	if old := loc.Code; old != "" {
		delete(s.byCode, old)
		s.retired[old] = true
	}
	loc.Code = code
	loc.UpdatedAt = time.Now().UTC()
	s.byCode[code] = locationID
	return nil
}
