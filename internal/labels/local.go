package labels

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

// LocalStore archives label PNGs as files under a root directory. It is the
// default backend for single-node deployments.
type LocalStore struct {
	rootDir string
}

// NewLocalStore creates a LocalStore rooted at the given directory, creating
// it if necessary.
func NewLocalStore(rootDir string) (*LocalStore, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("label root directory is required")
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating label directory: %w", err)
	}
	return &LocalStore{rootDir: rootDir}, nil
}

func (s *LocalStore) path(code string) string {
	return filepath.Join(s.rootDir, code+".png")
}

func (s *LocalStore) Put(ctx context.Context, code string, png []byte) error {
	// Write-then-rename so readers never observe a torn label file.
	tmp, err := os.CreateTemp(s.rootDir, ".label-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp label file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(png); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing label file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing label file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(code)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming label file: %w", err)
	}
	return nil
}

func (s *LocalStore) Get(ctx context.Context, code string) ([]byte, error) {
	png, err := os.ReadFile(s.path(code))
	if os.IsNotExist(err) {
		return nil, fmerr.ErrLabelNotFound.WithMessage("no label archived for code %q", code)
	}
	if err != nil {
		return nil, fmt.Errorf("reading label file: %w", err)
	}
	return png, nil
}

func (s *LocalStore) Exists(ctx context.Context, code string) (bool, error) {
	_, err := os.Stat(s.path(code))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking label file: %w", err)
	}
	return true, nil
}

func (s *LocalStore) Delete(ctx context.Context, code string) error {
	err := os.Remove(s.path(code))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing label file: %w", err)
	}
	return nil
}

func (s *LocalStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		return nil, fmt.Errorf("listing label directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".png") {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ".png"))
	}
	sort.Strings(out)
	return out, nil
}

func (s *LocalStore) Close() error { return nil }
