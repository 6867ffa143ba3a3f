package code

import (
	"context"
	"errors"
	"regexp"
	"testing"

	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

// fakeChecker scripts the existence-check collaborator. It reports true for
// the first `taken` candidates, then false, and counts every call.
type fakeChecker struct {
	taken int
	calls int
	err   error
}

func (f *fakeChecker) ExistsByCode(ctx context.Context, code string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.calls <= f.taken, nil
}

// fakeBinder records BindCode calls.
type fakeBinder struct {
	locationID string
	code       string
	err        error
}

func (f *fakeBinder) BindCode(ctx context.Context, locationID, code string) error {
	f.locationID = locationID
	f.code = code
	return f.err
}

func TestValid(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"LOC-ab3D9kX7Q2mN", true},
		{"A-abcdefghijkl", true},
		{"WAREHOUSE-a_b-cD3fGh1J", true},
		{"lowercase-badbadbadbad", false},
		{"LOC-short", false},
		{"LOC-toolongtoolongg", false},
		{"LOC_ab3D9kX7Q2mN", false},
		{"-ab3D9kX7Q2mN", false},
		{"LOC-ab3D9kX7Q2m!", false},
		{"", false},
		{"not-a-valid-code", false},
	}
	for _, tc := range cases {
		if got := Valid(tc.in); got != tc.want {
			t.Errorf("Valid(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestMintShape(t *testing.T) {
	m := NewMinter(&fakeChecker{}, 0, 0)
	got, err := m.Mint(context.Background(), "LOC")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	shape := regexp.MustCompile(`^LOC-[A-Za-z0-9_-]{12}$`)
	if !shape.MatchString(got) {
		t.Errorf("Mint produced %q, want match of %v", got, shape)
	}
	if !Valid(got) {
		t.Errorf("Valid(%q) = false for minted code", got)
	}
}

func TestMintUniqueness(t *testing.T) {
	m := NewMinter(&fakeChecker{}, 0, 0)
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		c, err := m.Mint(context.Background(), "LOC")
		if err != nil {
			t.Fatalf("Mint #%d: %v", i, err)
		}
		if seen[c] {
			t.Fatalf("Mint produced duplicate code %q", c)
		}
		seen[c] = true
	}
}

func TestMintRejectsPrefix(t *testing.T) {
	m := NewMinter(&fakeChecker{}, 0, 0)
	for _, prefix := range []string{"", "loc", "LOC1", "L-C", "löc"} {
		if _, err := m.Mint(context.Background(), prefix); !errors.Is(err, fmerr.ErrInvalidPrefix) {
			t.Errorf("Mint(%q) error = %v, want ErrInvalidPrefix", prefix, err)
		}
	}
}

func TestMintBoundedRetry(t *testing.T) {
	// First 3 candidates are taken, 4th is free: mint succeeds and the
	// existence check ran exactly 4 times.
	chk := &fakeChecker{taken: 3}
	m := NewMinter(chk, 10, 0)
	c, err := m.Mint(context.Background(), "LOC")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if !Valid(c) {
		t.Errorf("minted code %q is invalid", c)
	}
	if chk.calls != 4 {
		t.Errorf("existence check called %d times, want 4", chk.calls)
	}
}

func TestMintExhaustion(t *testing.T) {
	chk := &fakeChecker{taken: 1 << 30}
	m := NewMinter(chk, 10, 0)
	c, err := m.Mint(context.Background(), "LOC")
	if !errors.Is(err, fmerr.ErrGenerationExhausted) {
		t.Fatalf("Mint error = %v, want ErrGenerationExhausted", err)
	}
	if c != "" {
		t.Errorf("exhausted Mint returned code %q, want empty", c)
	}
	if chk.calls != 10 {
		t.Errorf("existence check called %d times, want 10", chk.calls)
	}
}

func TestMintCheckerError(t *testing.T) {
	chk := &fakeChecker{err: errors.New("registry down")}
	m := NewMinter(chk, 10, 0)
	if _, err := m.Mint(context.Background(), "LOC"); err == nil {
		t.Fatal("Mint succeeded despite checker error")
	}
	if chk.calls != 1 {
		t.Errorf("existence check called %d times, want 1 (no retry on store error)", chk.calls)
	}
}

func TestMintBatch(t *testing.T) {
	m := NewMinter(&fakeChecker{}, 0, 100)
	codes, err := m.MintBatch(context.Background(), "LOC", 25)
	if err != nil {
		t.Fatalf("MintBatch: %v", err)
	}
	if len(codes) != 25 {
		t.Fatalf("MintBatch returned %d codes, want 25", len(codes))
	}
	seen := make(map[string]bool)
	for _, c := range codes {
		if !Valid(c) {
			t.Errorf("batch code %q is invalid", c)
		}
		if seen[c] {
			t.Errorf("batch contains duplicate %q", c)
		}
		seen[c] = true
	}
}

func TestMintBatchCeiling(t *testing.T) {
	m := NewMinter(&fakeChecker{}, 0, 100)
	if _, err := m.MintBatch(context.Background(), "LOC", 101); !errors.Is(err, fmerr.ErrBatchTooLarge) {
		t.Errorf("MintBatch(101) error = %v, want ErrBatchTooLarge", err)
	}
	if _, err := m.MintBatch(context.Background(), "LOC", 0); err == nil {
		t.Error("MintBatch(0) succeeded, want error")
	}
}

func TestMintBatchAllOrNothing(t *testing.T) {
	// The checker frees exactly two candidates, then reports permanent
	// collisions. The batch must fail as a whole with no partial result.
	m := NewMinter(&scriptedChecker{free: 2}, 3, 100)
	codes, err := m.MintBatch(context.Background(), "LOC", 5)
	if !errors.Is(err, fmerr.ErrGenerationExhausted) {
		t.Fatalf("MintBatch error = %v, want ErrGenerationExhausted", err)
	}
	if codes != nil {
		t.Errorf("failed batch returned %d codes, want none", len(codes))
	}
}

// scriptedChecker reports the first `free` candidates free, then every
// candidate taken.
type scriptedChecker struct {
	free  int
	freed int
}

func (s *scriptedChecker) ExistsByCode(ctx context.Context, code string) (bool, error) {
	if s.freed < s.free {
		s.freed++
		return false, nil
	}
	return true, nil
}

func TestRegenerate(t *testing.T) {
	m := NewMinter(&fakeChecker{}, 0, 0)
	binder := &fakeBinder{}
	c, err := m.Regenerate(context.Background(), binder, "loc-123", "LOC")
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if binder.locationID != "loc-123" || binder.code != c {
		t.Errorf("BindCode called with (%q, %q), want (%q, %q)",
			binder.locationID, binder.code, "loc-123", c)
	}
}

func TestRegenerateBindFailure(t *testing.T) {
	m := NewMinter(&fakeChecker{}, 0, 0)
	binder := &fakeBinder{err: errors.New("location missing")}
	if _, err := m.Regenerate(context.Background(), binder, "loc-404", "LOC"); err == nil {
		t.Fatal("Regenerate succeeded despite bind failure")
	}
}
