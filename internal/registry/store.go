// Package registry defines the interface and implementations for FieldMark's
// location registry, which tracks location records and the codes bound to
// them. The registry is the persistence collaborator behind code minting
// (existence checks) and scan resolution (lookups).
package registry

import (
	"context"
	"io"
	"time"
)

// LocationRecord represents a single physical location and its bound code.
type LocationRecord struct {
	// ID is the stable location identifier assigned by the caller.
	ID string `json:"id"`
	// Code is the location code currently bound to this record. Codes are
	// globally unique across active and inactive records.
	Code string `json:"code"`
	// Name is the human-readable location name.
	Name string `json:"name"`
	// Site groups locations by building or campus.
	Site string `json:"site,omitempty"`
	// Active marks whether the location is in service. Inactive records are
	// retained so their codes stay burned.
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the interface for all registry operations required by
// FieldMark. Implementations must be safe for concurrent use.
type Store interface {
	io.Closer

	// Ping checks connectivity to the registry backend.
	Ping(ctx context.Context) error

	// CreateLocation creates a new location record. Fails with
	// ErrLocationExists if the ID is already registered.
	CreateLocation(ctx context.Context, loc *LocationRecord) error

	// GetLocation retrieves a location record by ID. Fails with
	// ErrLocationNotFound if no record exists.
	GetLocation(ctx context.Context, id string) (*LocationRecord, error)

	// ListLocations returns all location records ordered by ID.
	ListLocations(ctx context.Context) ([]LocationRecord, error)

	// DeleteLocation marks a location inactive. The record and its code are
	// retained so the code can never be re-minted.
	DeleteLocation(ctx context.Context, id string) error

	// ExistsByCode checks whether the given code is taken: bound to any
	// record, active or inactive, or retired by a past regeneration.
	ExistsByCode(ctx context.Context, code string) (bool, error)

	// FindByCode retrieves the active location bound to the given code.
	// Fails with ErrCodeNotFound if no active record holds it.
	FindByCode(ctx context.Context, code string) (*LocationRecord, error)

	// BindCode atomically replaces the code bound to a location. The old
	// code is recorded as retired: it can never be minted again and no
	// longer resolves. Fails with ErrLocationNotFound if no record exists.
	BindCode(ctx context.Context, locationID, code string) error

	// ListRetiredCodes returns all retired codes in lexical order. Used by
	// snapshot export so a restored registry keeps old codes burned.
	ListRetiredCodes(ctx context.Context) ([]string, error)

	// RetireCode marks a code as permanently burned without binding it
	// anywhere. Retiring an already-retired code is a no-op.
	RetireCode(ctx context.Context, code string) error
}
