package labels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/fieldmark/fieldmark/internal/config"
	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

// GCSStore archives label PNGs in a Google Cloud Storage bucket. Credentials
// are resolved via Application Default Credentials.
type GCSStore struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSStore creates a GCSStore for the configured bucket.
func NewGCSStore(ctx context.Context, cfg *config.LabelsConfig) (*GCSStore, error) {
	if cfg == nil || cfg.GCSBucket == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: cfg.GCSBucket, prefix: cfg.GCSPrefix}, nil
}

func (s *GCSStore) object(code string) *gcs.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(objectKey(s.prefix, code))
}

func (s *GCSStore) Put(ctx context.Context, code string, png []byte) error {
	w := s.object(code).NewWriter(ctx)
	w.ContentType = "image/png"
	if _, err := w.Write(png); err != nil {
		w.Close()
		return fmt.Errorf("writing label object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing label object: %w", err)
	}
	return nil
}

func (s *GCSStore) Get(ctx context.Context, code string) ([]byte, error) {
	r, err := s.object(code).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmerr.ErrLabelNotFound.WithMessage("no label archived for code %q", code)
	}
	if err != nil {
		return nil, fmt.Errorf("opening label object: %w", err)
	}
	defer r.Close()
	png, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading label object: %w", err)
	}
	return png, nil
}

func (s *GCSStore) Exists(ctx context.Context, code string) (bool, error) {
	_, err := s.object(code).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking label object: %w", err)
	}
	return true, nil
}

func (s *GCSStore) Delete(ctx context.Context, code string) error {
	err := s.object(code).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("deleting label object: %w", err)
	}
	return nil
}

func (s *GCSStore) List(ctx context.Context) ([]string, error) {
	listPrefix := ""
	if s.prefix != "" {
		listPrefix = s.prefix + "/"
	}
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: listPrefix})

	var out []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing label objects: %w", err)
		}
		name := strings.TrimPrefix(attrs.Name, listPrefix)
		if strings.HasSuffix(name, ".png") {
			out = append(out, strings.TrimSuffix(name, ".png"))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
