package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"

	"github.com/fieldmark/fieldmark/internal/config"
	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

const cosmosTimeFormat = "2006-01-02T15:04:05.000Z"

// CosmosStore implements the Store interface on Azure Cosmos DB. Items are
// partitioned by type ("location" or "retired") so lookups stay
// single-partition point reads.
type CosmosStore struct {
	client *azcosmos.ContainerClient
}

func cosmosDocLocation(id string) string { return "loc_" + id }

func cosmosDocRetired(code string) string { return "retired_" + code }

// NewCosmosStore creates a CosmosStore for the configured database and
// container using master-key authentication.
func NewCosmosStore(ctx context.Context, cfg *config.CosmosConfig) (*CosmosStore, error) {
	if cfg == nil || cfg.Endpoint == "" || cfg.MasterKey == "" {
		return nil, fmt.Errorf("cosmos endpoint and master key are required")
	}
	if cfg.Database == "" || cfg.Container == "" {
		return nil, fmt.Errorf("cosmos database and container names are required")
	}

	cred, err := azcosmos.NewKeyCredential(cfg.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("creating cosmos key credential: %w", err)
	}

	client, err := azcosmos.NewClientWithKey(cfg.Endpoint, cred, &azcosmos.ClientOptions{
		ClientOptions: policy.ClientOptions{},
	})
	if err != nil {
		return nil, fmt.Errorf("creating cosmos client: %w", err)
	}

	dbClient, err := client.NewDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("getting database client: %w", err)
	}
	containerClient, err := dbClient.NewContainer(cfg.Container)
	if err != nil {
		return nil, fmt.Errorf("getting container client: %w", err)
	}

	return &CosmosStore{client: containerClient}, nil
}

func (s *CosmosStore) Ping(ctx context.Context) error {
	_, err := s.client.Read(ctx, nil)
	return err
}

func (s *CosmosStore) Close() error { return nil }

// cosmosStatus extracts the HTTP status code from a Cosmos SDK error, or 0.
func cosmosStatus(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

// cosmosLocation is the Cosmos item shape for a location record.
type cosmosLocation struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Location  string `json:"location_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Site      string `json:"site"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (d *cosmosLocation) record() *LocationRecord {
	loc := &LocationRecord{
		ID:     d.Location,
		Code:   d.Code,
		Name:   d.Name,
		Site:   d.Site,
		Active: d.Active,
	}
	if t, err := time.Parse(cosmosTimeFormat, d.CreatedAt); err == nil {
		loc.CreatedAt = t
	}
	if t, err := time.Parse(cosmosTimeFormat, d.UpdatedAt); err == nil {
		loc.UpdatedAt = t
	}
	return loc
}

func (s *CosmosStore) readLocationDoc(ctx context.Context, id string) (*cosmosLocation, error) {
	resp, err := s.client.ReadItem(ctx, azcosmos.NewPartitionKeyString("location"), cosmosDocLocation(id), nil)
	if err != nil {
		if cosmosStatus(err) == http.StatusNotFound {
			return nil, fmerr.ErrLocationNotFound.WithMessage("location %q not found", id)
		}
		return nil, fmt.Errorf("reading location item: %w", err)
	}
	var doc cosmosLocation
	if err := json.Unmarshal(resp.Value, &doc); err != nil {
		return nil, fmt.Errorf("decoding location item: %w", err)
	}
	return &doc, nil
}

func (s *CosmosStore) writeLocationDoc(ctx context.Context, doc *cosmosLocation, create bool) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding location item: %w", err)
	}
	pk := azcosmos.NewPartitionKeyString("location")
	if create {
		_, err = s.client.CreateItem(ctx, pk, data, nil)
		if cosmosStatus(err) == http.StatusConflict {
			return fmerr.ErrLocationExists.WithMessage("location %q already exists", doc.Location)
		}
	} else {
		_, err = s.client.ReplaceItem(ctx, pk, doc.ID, data, nil)
	}
	if err != nil {
		return fmt.Errorf("writing location item: %w", err)
	}
	return nil
}

func (s *CosmosStore) CreateLocation(ctx context.Context, loc *LocationRecord) error {
	now := time.Now().UTC()
	created := loc.CreatedAt
	if created.IsZero() {
		created = now
	}
	doc := &cosmosLocation{
		ID:        cosmosDocLocation(loc.ID),
		Type:      "location",
		Location:  loc.ID,
		Code:      loc.Code,
		Name:      loc.Name,
		Site:      loc.Site,
		Active:    true,
		CreatedAt: created.Format(cosmosTimeFormat),
		UpdatedAt: now.Format(cosmosTimeFormat),
	}
	return s.writeLocationDoc(ctx, doc, true)
}

func (s *CosmosStore) GetLocation(ctx context.Context, id string) (*LocationRecord, error) {
	doc, err := s.readLocationDoc(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.record(), nil
}

func (s *CosmosStore) ListLocations(ctx context.Context) ([]LocationRecord, error) {
	pager := s.client.NewQueryItemsPager(
		"SELECT * FROM c WHERE c.type = 'location'",
		azcosmos.NewPartitionKeyString("location"), nil)

	var out []LocationRecord
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("querying locations: %w", err)
		}
		for _, raw := range page.Items {
			var doc cosmosLocation
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("decoding location item: %w", err)
			}
			out = append(out, *doc.record())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *CosmosStore) DeleteLocation(ctx context.Context, id string) error {
	doc, err := s.readLocationDoc(ctx, id)
	if err != nil {
		return err
	}
	doc.Active = false
	doc.UpdatedAt = time.Now().UTC().Format(cosmosTimeFormat)
	return s.writeLocationDoc(ctx, doc, false)
}

func (s *CosmosStore) ExistsByCode(ctx context.Context, code string) (bool, error) {
	_, err := s.client.ReadItem(ctx, azcosmos.NewPartitionKeyString("retired"), cosmosDocRetired(code), nil)
	if err == nil {
		return true, nil
	}
	if cosmosStatus(err) != http.StatusNotFound {
		return false, fmt.Errorf("checking retired code: %w", err)
	}

	loc, err := s.queryByCode(ctx, code, false)
	if err != nil {
		return false, err
	}
	return loc != nil, nil
}

func (s *CosmosStore) FindByCode(ctx context.Context, code string) (*LocationRecord, error) {
	loc, err := s.queryByCode(ctx, code, true)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, fmerr.ErrCodeNotFound.WithMessage("code %q not bound", code)
	}
	return loc, nil
}

// queryByCode finds the location holding the given code, optionally
// restricted to active records. Returns nil when no item matches.
func (s *CosmosStore) queryByCode(ctx context.Context, code string, activeOnly bool) (*LocationRecord, error) {
	query := "SELECT * FROM c WHERE c.type = 'location' AND c.code = @code"
	if activeOnly {
		query += " AND c.active = true"
	}
	pager := s.client.NewQueryItemsPager(query,
		azcosmos.NewPartitionKeyString("location"),
		&azcosmos.QueryOptions{
			QueryParameters: []azcosmos.QueryParameter{{Name: "@code", Value: code}},
		})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("querying code: %w", err)
		}
		for _, raw := range page.Items {
			var doc cosmosLocation
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("decoding location item: %w", err)
			}
			return doc.record(), nil
		}
	}
	return nil, nil
}

func (s *CosmosStore) ListRetiredCodes(ctx context.Context) ([]string, error) {
	pager := s.client.NewQueryItemsPager(
		"SELECT * FROM c WHERE c.type = 'retired'",
		azcosmos.NewPartitionKeyString("retired"), nil)

	var out []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("querying retired codes: %w", err)
		}
		for _, raw := range page.Items {
			var doc struct {
				Code string `json:"code"`
			}
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("decoding retired item: %w", err)
			}
			out = append(out, doc.Code)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *CosmosStore) RetireCode(ctx context.Context, code string) error {
	retired := map[string]any{
		"id":         cosmosDocRetired(code),
		"type":       "retired",
		"code":       code,
		"retired_at": time.Now().UTC().Format(cosmosTimeFormat),
	}
	data, err := json.Marshal(retired)
	if err != nil {
		return fmt.Errorf("encoding retired item: %w", err)
	}
	if _, err := s.client.UpsertItem(ctx, azcosmos.NewPartitionKeyString("retired"), data, nil); err != nil {
		return fmt.Errorf("retiring code: %w", err)
	}
	return nil
}

func (s *CosmosStore) BindCode(ctx context.Context, locationID, code string) error {
	doc, err := s.readLocationDoc(ctx, locationID)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(cosmosTimeFormat)
	if old := doc.Code; old != "" {
		retired := map[string]any{
			"id":         cosmosDocRetired(old),
			"type":       "retired",
			"code":       old,
			"retired_at": now,
		}
		data, err := json.Marshal(retired)
		if err != nil {
			return fmt.Errorf("encoding retired item: %w", err)
		}
		if _, err := s.client.UpsertItem(ctx, azcosmos.NewPartitionKeyString("retired"), data, nil); err != nil {
			return fmt.Errorf("retiring old code: %w", err)
		}
	}

	doc.Code = code
	doc.UpdatedAt = now
	return s.writeLocationDoc(ctx, doc, false)
}
