package code

import (
	"net/url"
	"strings"
)

// Kind classifies the outcome of resolving a scanned payload.
type Kind int

const (
	// KindUnrecognized means the payload carries no valid location code.
	KindUnrecognized Kind = iota
	// KindDirect means the payload is itself a bare location code.
	KindDirect
	// KindEmbedded means the payload is a structured reference carrying a
	// location code after a recognized category segment.
	KindEmbedded
)

// String returns the wire name of the resolution kind.
func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindEmbedded:
		return "embedded"
	default:
		return "unrecognized"
	}
}

// Resolution is the tagged result of resolving a scanned payload. Code is
// set only when Kind is KindDirect or KindEmbedded; "no match" is a
// distinguishable case rather than an empty string.
type Resolution struct {
	Kind Kind
	Code string
}

// Resolver parses raw scanned strings into location codes. The zero value
// is not usable; construct with NewResolver.
type Resolver struct {
	// categories are the path segments recognized as preceding an embedded
	// code in a structured reference, e.g. ".../inspection/LOC-xxxx".
	categories map[string]bool
}

// NewResolver creates a Resolver recognizing the given category segments.
// Matching is case-insensitive on the category segment.
func NewResolver(categories []string) *Resolver {
	set := make(map[string]bool, len(categories))
	for _, c := range categories {
		set[strings.ToLower(c)] = true
	}
	return &Resolver{categories: set}
}

// Resolve interprets a raw scanned payload. Embedded extraction is tried
// first, then a whole-string direct match. Garbage input always yields
// KindUnrecognized, never a fabricated code.
func (r *Resolver) Resolve(raw string) Resolution {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Resolution{Kind: KindUnrecognized}
	}

	if c, ok := r.extractEmbedded(raw); ok {
		return Resolution{Kind: KindEmbedded, Code: c}
	}
	if Valid(raw) {
		return Resolution{Kind: KindDirect, Code: raw}
	}
	return Resolution{Kind: KindUnrecognized}
}

// extractEmbedded scans the path segments of a structured reference for a
// recognized category segment immediately followed by a valid code. URLs
// are reduced to their path; plain path fragments work as-is.
func (r *Resolver) extractEmbedded(raw string) (string, bool) {
	path := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" && (u.Scheme != "" || u.Host != "") {
		path = u.Path
	}

	segs := strings.Split(path, "/")
	for i := 0; i+1 < len(segs); i++ {
		if !r.categories[strings.ToLower(segs[i])] {
			continue
		}
		if candidate := segs[i+1]; Valid(candidate) {
			return candidate, true
		}
	}
	return "", false
}
