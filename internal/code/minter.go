package code

import (
	"context"
	"fmt"
	"log/slog"

	fmerr "github.com/fieldmark/fieldmark/internal/errors"
	"github.com/fieldmark/fieldmark/internal/metrics"
)

// Checker is the existence-check collaborator the minter verifies candidate
// codes against. Implemented by the location registry.
type Checker interface {
	ExistsByCode(ctx context.Context, code string) (bool, error)
}

// Binder atomically replaces the code bound to a location. The old value
// becomes permanently invalid. Implemented by the location registry.
type Binder interface {
	BindCode(ctx context.Context, locationID, code string) error
}

// Minter produces verified-unique location codes. Uniqueness is enforced
// optimistically: the random suffix space is large enough that collisions
// are negligible, and the bounded retry loop exists as a backstop, not as
// the primary correctness mechanism. Minter has no shared mutable state;
// concurrent mint calls need no coordination.
type Minter struct {
	checker Checker
	// maxAttempts is the per-mint retry budget.
	maxAttempts int
	// maxBatch is the hard ceiling for MintBatch.
	maxBatch int
}

// NewMinter creates a Minter that verifies candidates against the given
// checker. maxAttempts <= 0 selects the default budget of 10; maxBatch <= 0
// selects the default ceiling of 100.
func NewMinter(checker Checker, maxAttempts, maxBatch int) *Minter {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if maxBatch <= 0 {
		maxBatch = 100
	}
	return &Minter{
		checker:     checker,
		maxAttempts: maxAttempts,
		maxBatch:    maxBatch,
	}
}

// Mint generates a new code with the given prefix, verified free against
// the registry. It never returns a colliding code: if every candidate in
// the attempt budget is taken, it fails with ErrGenerationExhausted.
func (m *Minter) Mint(ctx context.Context, prefix string) (string, error) {
	if !ValidPrefix(prefix) {
		return "", fmerr.ErrInvalidPrefix.WithMessage("invalid code prefix %q", prefix)
	}

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		candidate, err := newCandidate(prefix)
		if err != nil {
			return "", err
		}
		// Self-check: a generation bug must never leak a malformed code.
		if !Valid(candidate) {
			return "", fmt.Errorf("generated candidate %q failed shape check", candidate)
		}

		exists, err := m.checker.ExistsByCode(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("checking candidate uniqueness: %w", err)
		}
		if !exists {
			metrics.MintAttemptsTotal.WithLabelValues("free").Inc()
			return candidate, nil
		}
		metrics.MintAttemptsTotal.WithLabelValues("collision").Inc()
		slog.Warn("mint candidate collision", "prefix", prefix, "attempt", attempt)
	}

	metrics.MintExhaustedTotal.Inc()
	return "", fmerr.ErrGenerationExhausted.WithMessage(
		"no free code for prefix %q after %d attempts", prefix, m.maxAttempts)
}

// MintBatch mints n codes sequentially, each with its own retry budget.
// The batch is all-or-nothing: if any mint exhausts its budget the whole
// call fails and no codes are returned. Codes minted before the failure are
// discarded; they were never bound to a location, so dropping them is safe.
func (m *Minter) MintBatch(ctx context.Context, prefix string, n int) ([]string, error) {
	if n <= 0 {
		return nil, fmerr.ErrInvalidCode.WithMessage("batch size must be positive, got %d", n)
	}
	if n > m.maxBatch {
		return nil, fmerr.ErrBatchTooLarge.WithMessage(
			"batch size %d exceeds maximum %d", n, m.maxBatch)
	}

	codes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		c, err := m.Mint(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("minting code %d of %d: %w", i+1, n, err)
		}
		codes = append(codes, c)
	}
	return codes, nil
}

// Regenerate mints a fresh code and binds it to the location, atomically
// superseding the old value. The old code becomes permanently invalid.
func (m *Minter) Regenerate(ctx context.Context, binder Binder, locationID, prefix string) (string, error) {
	fresh, err := m.Mint(ctx, prefix)
	if err != nil {
		return "", err
	}
	if err := binder.BindCode(ctx, locationID, fresh); err != nil {
		return "", fmt.Errorf("binding regenerated code: %w", err)
	}
	slog.Info("code regenerated", "location", locationID, "code", fresh)
	return fresh, nil
}
