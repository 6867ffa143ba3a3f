package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

// testStores returns one of each locally-testable Store implementation.
// Cloud backends are exercised against real services and are not covered
// here.
func testStores(t *testing.T) map[string]Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "registry.db")
	sqlite, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore(%q) failed: %v", dbPath, err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

// seedLocation creates a location record and returns it.
func seedLocation(t *testing.T, store Store, id, code string) *LocationRecord {
	t.Helper()
	loc := &LocationRecord{
		ID:   id,
		Code: code,
		Name: "Test Location " + id,
		Site: "HQ",
	}
	if err := store.CreateLocation(context.Background(), loc); err != nil {
		t.Fatalf("CreateLocation(%q) failed: %v", id, err)
	}
	return loc
}

func TestLocationLifecycle(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			seedLocation(t, store, "loc-1", "LOC-aaaaaaaaaaaa")

			got, err := store.GetLocation(ctx, "loc-1")
			if err != nil {
				t.Fatalf("GetLocation: %v", err)
			}
			if got.Code != "LOC-aaaaaaaaaaaa" || !got.Active {
				t.Errorf("GetLocation = %+v, want active record with seeded code", got)
			}
			if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
				t.Error("timestamps not set on create")
			}

			// Duplicate ID rejected.
			err = store.CreateLocation(ctx, &LocationRecord{ID: "loc-1", Code: "LOC-bbbbbbbbbbbb"})
			if !errors.Is(err, fmerr.ErrLocationExists) {
				t.Errorf("duplicate CreateLocation error = %v, want ErrLocationExists", err)
			}

			seedLocation(t, store, "loc-2", "LOC-cccccccccccc")
			locs, err := store.ListLocations(ctx)
			if err != nil {
				t.Fatalf("ListLocations: %v", err)
			}
			if len(locs) != 2 || locs[0].ID != "loc-1" || locs[1].ID != "loc-2" {
				t.Errorf("ListLocations = %+v, want [loc-1 loc-2]", locs)
			}

			// Delete deactivates but retains the record and its code.
			if err := store.DeleteLocation(ctx, "loc-2"); err != nil {
				t.Fatalf("DeleteLocation: %v", err)
			}
			got, err = store.GetLocation(ctx, "loc-2")
			if err != nil {
				t.Fatalf("GetLocation after delete: %v", err)
			}
			if got.Active {
				t.Error("deleted location still active")
			}
			exists, err := store.ExistsByCode(ctx, "LOC-cccccccccccc")
			if err != nil || !exists {
				t.Errorf("ExistsByCode(deleted location's code) = (%v, %v), want (true, nil)", exists, err)
			}

			if err := store.DeleteLocation(ctx, "loc-missing"); !errors.Is(err, fmerr.ErrLocationNotFound) {
				t.Errorf("DeleteLocation(missing) error = %v, want ErrLocationNotFound", err)
			}
			if _, err := store.GetLocation(ctx, "loc-missing"); !errors.Is(err, fmerr.ErrLocationNotFound) {
				t.Errorf("GetLocation(missing) error = %v, want ErrLocationNotFound", err)
			}
		})
	}
}

func TestCodeLookup(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedLocation(t, store, "loc-1", "LOC-aaaaaaaaaaaa")

			exists, err := store.ExistsByCode(ctx, "LOC-aaaaaaaaaaaa")
			if err != nil || !exists {
				t.Errorf("ExistsByCode(bound) = (%v, %v), want (true, nil)", exists, err)
			}
			exists, err = store.ExistsByCode(ctx, "LOC-zzzzzzzzzzzz")
			if err != nil || exists {
				t.Errorf("ExistsByCode(free) = (%v, %v), want (false, nil)", exists, err)
			}

			got, err := store.FindByCode(ctx, "LOC-aaaaaaaaaaaa")
			if err != nil {
				t.Fatalf("FindByCode: %v", err)
			}
			if got.ID != "loc-1" {
				t.Errorf("FindByCode resolved %q, want loc-1", got.ID)
			}

			if _, err := store.FindByCode(ctx, "LOC-zzzzzzzzzzzz"); !errors.Is(err, fmerr.ErrCodeNotFound) {
				t.Errorf("FindByCode(free) error = %v, want ErrCodeNotFound", err)
			}

			// Inactive locations do not resolve.
			if err := store.DeleteLocation(ctx, "loc-1"); err != nil {
				t.Fatalf("DeleteLocation: %v", err)
			}
			if _, err := store.FindByCode(ctx, "LOC-aaaaaaaaaaaa"); !errors.Is(err, fmerr.ErrCodeNotFound) {
				t.Errorf("FindByCode(inactive) error = %v, want ErrCodeNotFound", err)
			}
		})
	}
}

func TestBindCodeRetiresOldValue(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedLocation(t, store, "loc-1", "LOC-aaaaaaaaaaaa")

			if err := store.BindCode(ctx, "loc-1", "LOC-bbbbbbbbbbbb"); err != nil {
				t.Fatalf("BindCode: %v", err)
			}

			got, err := store.GetLocation(ctx, "loc-1")
			if err != nil {
				t.Fatalf("GetLocation: %v", err)
			}
			if got.Code != "LOC-bbbbbbbbbbbb" {
				t.Errorf("code after bind = %q, want LOC-bbbbbbbbbbbb", got.Code)
			}

			// The new code resolves; the old one is permanently invalid but
			// still burned for minting.
			if _, err := store.FindByCode(ctx, "LOC-bbbbbbbbbbbb"); err != nil {
				t.Errorf("FindByCode(new) failed: %v", err)
			}
			if _, err := store.FindByCode(ctx, "LOC-aaaaaaaaaaaa"); !errors.Is(err, fmerr.ErrCodeNotFound) {
				t.Errorf("FindByCode(old) error = %v, want ErrCodeNotFound", err)
			}
			exists, err := store.ExistsByCode(ctx, "LOC-aaaaaaaaaaaa")
			if err != nil || !exists {
				t.Errorf("ExistsByCode(retired) = (%v, %v), want (true, nil)", exists, err)
			}

			if err := store.BindCode(ctx, "loc-missing", "LOC-dddddddddddd"); !errors.Is(err, fmerr.ErrLocationNotFound) {
				t.Errorf("BindCode(missing) error = %v, want ErrLocationNotFound", err)
			}
		})
	}
}

func TestRetiredCodes(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedLocation(t, store, "loc-1", "LOC-aaaaaaaaaaaa")
			if err := store.BindCode(ctx, "loc-1", "LOC-bbbbbbbbbbbb"); err != nil {
				t.Fatalf("BindCode: %v", err)
			}
			if err := store.RetireCode(ctx, "LOC-cccccccccccc"); err != nil {
				t.Fatalf("RetireCode: %v", err)
			}
			// Retiring twice is a no-op.
			if err := store.RetireCode(ctx, "LOC-cccccccccccc"); err != nil {
				t.Fatalf("repeated RetireCode: %v", err)
			}

			codes, err := store.ListRetiredCodes(ctx)
			if err != nil {
				t.Fatalf("ListRetiredCodes: %v", err)
			}
			want := []string{"LOC-aaaaaaaaaaaa", "LOC-cccccccccccc"}
			if len(codes) != 2 || codes[0] != want[0] || codes[1] != want[1] {
				t.Errorf("ListRetiredCodes = %v, want %v", codes, want)
			}

			exists, err := store.ExistsByCode(ctx, "LOC-cccccccccccc")
			if err != nil || !exists {
				t.Errorf("ExistsByCode(retired) = (%v, %v), want (true, nil)", exists, err)
			}
		})
	}
}

func TestPing(t *testing.T) {
	for name, store := range testStores(t) {
		if err := store.Ping(context.Background()); err != nil {
			t.Errorf("%s: Ping failed: %v", name, err)
		}
	}
}
