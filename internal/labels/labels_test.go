package labels

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"

	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

func testArchives(t *testing.T) map[string]Store {
	t.Helper()
	local, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	return map[string]Store{
		"memory": NewMemoryStore(),
		"local":  local,
	}
}

func TestRender(t *testing.T) {
	data, err := Render("LOC-ab3D9kX7Q2mN", 256)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("rendered label is not a valid PNG: %v", err)
	}
	if w := img.Bounds().Dx(); w != 256 {
		t.Errorf("label width = %d, want 256", w)
	}
}

func TestRenderDefaults(t *testing.T) {
	data, err := Render("LOC-ab3D9kX7Q2mN", 0)
	if err != nil {
		t.Fatalf("Render with zero size failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("rendered label is not a valid PNG: %v", err)
	}
	if w := img.Bounds().Dx(); w != DefaultSize {
		t.Errorf("label width = %d, want %d", w, DefaultSize)
	}

	if _, err := Render("", 256); err == nil {
		t.Error("Render accepted an empty payload")
	}
}

func TestArchiveLifecycle(t *testing.T) {
	for name, store := range testArchives(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			payload := []byte("not-really-a-png")

			if err := store.Put(ctx, "LOC-aaaaaaaaaaaa", payload); err != nil {
				t.Fatalf("Put: %v", err)
			}

			got, err := store.Get(ctx, "LOC-aaaaaaaaaaaa")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("Get returned %q, want %q", got, payload)
			}

			exists, err := store.Exists(ctx, "LOC-aaaaaaaaaaaa")
			if err != nil || !exists {
				t.Errorf("Exists(stored) = (%v, %v), want (true, nil)", exists, err)
			}
			exists, err = store.Exists(ctx, "LOC-zzzzzzzzzzzz")
			if err != nil || exists {
				t.Errorf("Exists(missing) = (%v, %v), want (false, nil)", exists, err)
			}

			if _, err := store.Get(ctx, "LOC-zzzzzzzzzzzz"); !errors.Is(err, fmerr.ErrLabelNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrLabelNotFound", err)
			}

			if err := store.Put(ctx, "LOC-bbbbbbbbbbbb", payload); err != nil {
				t.Fatalf("Put: %v", err)
			}
			codes, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			want := []string{"LOC-aaaaaaaaaaaa", "LOC-bbbbbbbbbbbb"}
			if len(codes) != 2 || codes[0] != want[0] || codes[1] != want[1] {
				t.Errorf("List = %v, want %v", codes, want)
			}

			if err := store.Delete(ctx, "LOC-aaaaaaaaaaaa"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := store.Get(ctx, "LOC-aaaaaaaaaaaa"); !errors.Is(err, fmerr.ErrLabelNotFound) {
				t.Errorf("Get after delete error = %v, want ErrLabelNotFound", err)
			}
			// Deleting a missing label is a no-op.
			if err := store.Delete(ctx, "LOC-aaaaaaaaaaaa"); err != nil {
				t.Errorf("Delete(missing) failed: %v", err)
			}
		})
	}
}

func TestObjectKey(t *testing.T) {
	if got := objectKey("", "LOC-x"); got != "LOC-x.png" {
		t.Errorf("objectKey without prefix = %q", got)
	}
	if got := objectKey("labels", "LOC-x"); got != "labels/LOC-x.png" {
		t.Errorf("objectKey with prefix = %q", got)
	}
}
