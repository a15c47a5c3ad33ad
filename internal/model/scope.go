package model

import (
	"fmt"
	"strings"
)

// Scope is the boundary of one crawl run: same host as Base, a path that
// descends from Base's path, and at most MaxDepth segments deeper.
// A Scope is immutable once created.
type Scope struct {
	// Base is the canonical seed URL.
	Base CanonicalURL `json:"base"`

	// MaxDepth is the number of path segments a URL may add to Base.
	// 0 means only the seed page itself.
	MaxDepth int `json:"max_depth"`
}

// NewScope validates a user-supplied seed and depth.
// It returns an error wrapping ErrInvalidInput when the seed is not an
// absolute http(s) URL or when maxDepth is negative.
func NewScope(seed string, maxDepth int) (Scope, error) {
	base, err := ParseURL(seed)
	if err != nil {
		return Scope{}, err
	}
	if maxDepth < 0 {
		return Scope{}, fmt.Errorf("%w: depth must be non-negative, got %d", ErrInvalidInput, maxDepth)
	}
	return Scope{Base: base, MaxDepth: maxDepth}, nil
}

// InScope reports whether u lies inside the scope.
//
// The scheme is ignored, so http and https on the same host are
// equivalent. The path check is segment-wise: "/foobar" is not below
// "/foo".
func (s Scope) InScope(u CanonicalURL) bool {
	if !u.IsWeb() || !strings.EqualFold(u.Host, s.Base.Host) {
		return false
	}
	d, ok := s.Depth(u)
	return ok && d <= s.MaxDepth
}

// Depth returns how many path segments u adds to the base path.
// ok is false when u's path does not descend from the base path.
// The host is not checked.
func (s Scope) Depth(u CanonicalURL) (depth int, ok bool) {
	baseSegs := s.Base.Segments()
	segs := u.Segments()
	if len(segs) < len(baseSegs) {
		return 0, false
	}
	for i, seg := range baseSegs {
		if segs[i] != seg {
			return 0, false
		}
	}
	return len(segs) - len(baseSegs), true
}
