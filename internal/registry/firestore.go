package registry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fieldmark/fieldmark/internal/config"
	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

// FirestoreStore implements the Store interface on Google Cloud Firestore.
// Location records and retired-code markers share one collection,
// distinguished by document ID prefix.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

func fsDocLocation(id string) string { return "loc_" + id }

func fsDocRetired(code string) string { return "retired_" + code }

// NewFirestoreStore creates a FirestoreStore for the configured project and
// collection.
func NewFirestoreStore(ctx context.Context, cfg *config.FirestoreConfig) (*FirestoreStore, error) {
	if cfg == nil || cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore project_id is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "fieldmark"
	}

	return &FirestoreStore{client: client, collection: collection}, nil
}

func (s *FirestoreStore) col() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

func (s *FirestoreStore) Ping(ctx context.Context) error {
	_, err := s.col().Limit(1).Documents(ctx).Next()
	if err != nil && err != iterator.Done {
		return err
	}
	return nil
}

func (s *FirestoreStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// locDoc is the Firestore document shape for a location record.
type locDoc struct {
	Type      string    `firestore:"type"`
	ID        string    `firestore:"id"`
	Code      string    `firestore:"code"`
	Name      string    `firestore:"name"`
	Site      string    `firestore:"site"`
	Active    bool      `firestore:"active"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func (d *locDoc) record() *LocationRecord {
	return &LocationRecord{
		ID:        d.ID,
		Code:      d.Code,
		Name:      d.Name,
		Site:      d.Site,
		Active:    d.Active,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (s *FirestoreStore) CreateLocation(ctx context.Context, loc *LocationRecord) error {
	now := time.Now().UTC()
	created := loc.CreatedAt
	if created.IsZero() {
		created = now
	}
	doc := locDoc{
		Type:      "location",
		ID:        loc.ID,
		Code:      loc.Code,
		Name:      loc.Name,
		Site:      loc.Site,
		Active:    true,
		CreatedAt: created,
		UpdatedAt: now,
	}

	_, err := s.col().Doc(fsDocLocation(loc.ID)).Create(ctx, doc)
	if status.Code(err) == codes.AlreadyExists {
		return fmerr.ErrLocationExists.WithMessage("location %q already exists", loc.ID)
	}
	if err != nil {
		return fmt.Errorf("creating location document: %w", err)
	}
	return nil
}

func (s *FirestoreStore) GetLocation(ctx context.Context, id string) (*LocationRecord, error) {
	snap, err := s.col().Doc(fsDocLocation(id)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmerr.ErrLocationNotFound.WithMessage("location %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting location document: %w", err)
	}
	var doc locDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding location document: %w", err)
	}
	return doc.record(), nil
}

func (s *FirestoreStore) ListLocations(ctx context.Context) ([]LocationRecord, error) {
	iter := s.col().Where("type", "==", "location").Documents(ctx)
	defer iter.Stop()

	var out []LocationRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating locations: %w", err)
		}
		var doc locDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decoding location document: %w", err)
		}
		out = append(out, *doc.record())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *FirestoreStore) DeleteLocation(ctx context.Context, id string) error {
	_, err := s.col().Doc(fsDocLocation(id)).Update(ctx, []firestore.Update{
		{Path: "active", Value: false},
		{Path: "updated_at", Value: time.Now().UTC()},
	})
	if status.Code(err) == codes.NotFound {
		return fmerr.ErrLocationNotFound.WithMessage("location %q not found", id)
	}
	if err != nil {
		return fmt.Errorf("deactivating location: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ExistsByCode(ctx context.Context, code string) (bool, error) {
	// Retired codes burn forever.
	_, err := s.col().Doc(fsDocRetired(code)).Get(ctx)
	if err == nil {
		return true, nil
	}
	if status.Code(err) != codes.NotFound {
		return false, fmt.Errorf("checking retired code: %w", err)
	}

	iter := s.col().Where("code", "==", code).Limit(1).Documents(ctx)
	defer iter.Stop()
	_, err = iter.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying code: %w", err)
	}
	return true, nil
}

func (s *FirestoreStore) FindByCode(ctx context.Context, code string) (*LocationRecord, error) {
	iter := s.col().
		Where("code", "==", code).
		Where("active", "==", true).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, fmerr.ErrCodeNotFound.WithMessage("code %q not bound", code)
	}
	if err != nil {
		return nil, fmt.Errorf("querying code: %w", err)
	}
	var doc locDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding location document: %w", err)
	}
	return doc.record(), nil
}

func (s *FirestoreStore) ListRetiredCodes(ctx context.Context) ([]string, error) {
	iter := s.col().Where("type", "==", "retired").Documents(ctx)
	defer iter.Stop()

	var out []string
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating retired codes: %w", err)
		}
		if c, err := snap.DataAt("code"); err == nil {
			if code, ok := c.(string); ok {
				out = append(out, code)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *FirestoreStore) RetireCode(ctx context.Context, code string) error {
	_, err := s.col().Doc(fsDocRetired(code)).Set(ctx, map[string]any{
		"type":       "retired",
		"code":       code,
		"retired_at": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("retiring code: %w", err)
	}
	return nil
}

func (s *FirestoreStore) BindCode(ctx context.Context, locationID, code string) error {
	docRef := s.col().Doc(fsDocLocation(locationID))

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if status.Code(err) == codes.NotFound {
			return fmerr.ErrLocationNotFound.WithMessage("location %q not found", locationID)
		}
		if err != nil {
			return fmt.Errorf("reading location: %w", err)
		}
		var doc locDoc
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decoding location document: %w", err)
		}

		now := time.Now().UTC()
		if doc.Code != "" {
			retired := map[string]any{
				"type":       "retired",
				"code":       doc.Code,
				"retired_at": now,
			}
			if err := tx.Set(s.col().Doc(fsDocRetired(doc.Code)), retired); err != nil {
				return fmt.Errorf("retiring old code: %w", err)
			}
		}
		return tx.Update(docRef, []firestore.Update{
			{Path: "code", Value: code},
			{Path: "updated_at", Value: now},
		})
	})
}
