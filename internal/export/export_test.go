package export

import (
	"context"
	"testing"

	"github.com/fieldmark/fieldmark/internal/registry"
)

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := registry.NewMemoryStore()

	if err := src.CreateLocation(ctx, &registry.LocationRecord{ID: "loc-1", Code: "LOC-aaaaaaaaaaaa", Name: "Dock 1"}); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	if err := src.CreateLocation(ctx, &registry.LocationRecord{ID: "loc-2", Code: "LOC-bbbbbbbbbbbb", Name: "Dock 2"}); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	if err := src.DeleteLocation(ctx, "loc-2"); err != nil {
		t.Fatalf("deactivating: %v", err)
	}
	if err := src.BindCode(ctx, "loc-1", "LOC-cccccccccccc"); err != nil {
		t.Fatalf("binding: %v", err)
	}

	data, err := Export(ctx, src)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := registry.NewMemoryStore()
	res, err := Import(ctx, dst, data)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Locations != 2 || res.Retired != 1 || res.Skipped != 0 {
		t.Errorf("ImportResult = %+v, want 2 locations, 1 retired, 0 skipped", res)
	}

	loc, err := dst.GetLocation(ctx, "loc-1")
	if err != nil || loc.Code != "LOC-cccccccccccc" {
		t.Errorf("restored loc-1 = (%+v, %v), want rebound code", loc, err)
	}
	loc, err = dst.GetLocation(ctx, "loc-2")
	if err != nil || loc.Active {
		t.Errorf("restored loc-2 = (%+v, %v), want inactive record", loc, err)
	}

	// The retired code stays burned in the restored registry.
	exists, err := dst.ExistsByCode(ctx, "LOC-aaaaaaaaaaaa")
	if err != nil || !exists {
		t.Errorf("ExistsByCode(retired) = (%v, %v), want (true, nil)", exists, err)
	}
}

func TestImportIsAdditive(t *testing.T) {
	ctx := context.Background()
	src := registry.NewMemoryStore()
	if err := src.CreateLocation(ctx, &registry.LocationRecord{ID: "loc-1", Code: "LOC-aaaaaaaaaaaa"}); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	data, err := Export(ctx, src)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := registry.NewMemoryStore()
	if err := dst.CreateLocation(ctx, &registry.LocationRecord{ID: "loc-1", Code: "LOC-zzzzzzzzzzzz", Name: "kept"}); err != nil {
		t.Fatalf("seeding target: %v", err)
	}

	res, err := Import(ctx, dst, data)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Skipped != 1 || res.Locations != 0 {
		t.Errorf("ImportResult = %+v, want the existing location skipped", res)
	}
	loc, err := dst.GetLocation(ctx, "loc-1")
	if err != nil || loc.Code != "LOC-zzzzzzzzzzzz" {
		t.Errorf("existing record was modified: (%+v, %v)", loc, err)
	}
}

func TestImportRejectsBadSnapshots(t *testing.T) {
	ctx := context.Background()
	dst := registry.NewMemoryStore()

	if _, err := Import(ctx, dst, []byte("not json")); err == nil {
		t.Error("Import accepted malformed JSON")
	}
	if _, err := Import(ctx, dst, []byte(`{"version": 99}`)); err == nil {
		t.Error("Import accepted an unsupported snapshot version")
	}
}
