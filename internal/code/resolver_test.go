package code

import (
	"context"
	"testing"
)

func newTestResolver() *Resolver {
	return NewResolver([]string{"location", "locations", "inspection", "l"})
}

func TestResolveDirect(t *testing.T) {
	r := newTestResolver()
	got := r.Resolve("LOC-ab3D9kX7Q2mN")
	if got.Kind != KindDirect || got.Code != "LOC-ab3D9kX7Q2mN" {
		t.Errorf("Resolve(bare code) = %+v, want direct LOC-ab3D9kX7Q2mN", got)
	}
}

func TestResolveEmbeddedURL(t *testing.T) {
	r := newTestResolver()
	got := r.Resolve("https://app.example/inspection/LOC-ab3D9kX7Q2mN")
	if got.Kind != KindEmbedded || got.Code != "LOC-ab3D9kX7Q2mN" {
		t.Errorf("Resolve(url) = %+v, want embedded LOC-ab3D9kX7Q2mN", got)
	}
}

func TestResolveEmbeddedPathFragment(t *testing.T) {
	r := newTestResolver()
	cases := []string{
		"/locations/LOC-ab3D9kX7Q2mN",
		"app/location/LOC-ab3D9kX7Q2mN",
		"https://app.example/org/42/l/LOC-ab3D9kX7Q2mN?src=label",
	}
	for _, in := range cases {
		got := r.Resolve(in)
		if got.Kind != KindEmbedded || got.Code != "LOC-ab3D9kX7Q2mN" {
			t.Errorf("Resolve(%q) = %+v, want embedded LOC-ab3D9kX7Q2mN", in, got)
		}
	}
}

func TestResolveUnrecognized(t *testing.T) {
	r := newTestResolver()
	cases := []string{
		"not-a-valid-code",
		"",
		"   ",
		"https://app.example/about",
		// Recognized category but malformed code after it.
		"https://app.example/inspection/loc-bad",
		// Valid code after an unrecognized segment.
		"https://app.example/widgets/LOC-ab3D9kX7Q2mN",
		"LOC-ab3D9kX7Q2mN extra",
	}
	for _, in := range cases {
		got := r.Resolve(in)
		if got.Kind != KindUnrecognized {
			t.Errorf("Resolve(%q) = %+v, want unrecognized", in, got)
		}
		if got.Code != "" {
			t.Errorf("Resolve(%q) fabricated code %q", in, got.Code)
		}
	}
}

func TestResolveRoundTrip(t *testing.T) {
	// Minted codes survive embedding in a reference and resolve back.
	m := NewMinter(&fakeChecker{}, 0, 0)
	r := newTestResolver()
	for i := 0; i < 20; i++ {
		c, err := m.Mint(context.Background(), "LOC")
		if err != nil {
			t.Fatalf("Mint: %v", err)
		}
		if got := r.Resolve("https://app.example/inspection/" + c); got.Kind != KindEmbedded || got.Code != c {
			t.Errorf("embedded round-trip of %q = %+v", c, got)
		}
		if got := r.Resolve(c); got.Kind != KindDirect || got.Code != c {
			t.Errorf("direct round-trip of %q = %+v", c, got)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindDirect.String() != "direct" || KindEmbedded.String() != "embedded" || KindUnrecognized.String() != "unrecognized" {
		t.Error("Kind.String() wire names changed")
	}
}
