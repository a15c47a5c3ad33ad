package model

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// CanonicalURL is a URL reduced to scheme, host and path.
// Query strings, fragments and path parameters are always stripped and
// trailing slashes are removed (the root path stays "/").
//
// Two CanonicalURLs identify the same resource iff Scheme, Host and Path
// are equal; use Equal or Key rather than ==, because the value also
// remembers whether the original reference ended with a slash. That flag
// is only used to build request URLs and to resolve relative references
// the way a browser would ("img.png" on "/dir/" is "/dir/img.png").
type CanonicalURL struct {
	// Scheme is the lower-cased URL scheme ("http", "https", "mailto", ...).
	Scheme string

	// Host is the lower-cased host, including a non-default port.
	Host string

	// Path is the decoded path without trailing slash.
	Path string

	// escaped is the escaped path, kept only when it contains an encoded
	// slash ("%2F") that Path cannot tell apart from a separator.
	escaped string

	// slash records a trailing slash removed during canonicalization.
	slash bool
}

// ParseURL parses an absolute http(s) URL into canonical form.
// It is used for user-supplied seeds, where a relative or non-web URL
// is an input error rather than something to degrade gracefully.
func ParseURL(raw string) (CanonicalURL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return CanonicalURL{}, fmt.Errorf("%w: %q is not a valid URL: %w", ErrInvalidInput, raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return CanonicalURL{}, fmt.Errorf("%w: %q must use http or https", ErrInvalidInput, raw)
	}
	if u.Hostname() == "" {
		return CanonicalURL{}, fmt.Errorf("%w: %q has no host", ErrInvalidInput, raw)
	}
	return fromURL(u), nil
}

// MustParseURL is like ParseURL but panics on error.
// It simplifies tests and package-level constants.
func MustParseURL(raw string) CanonicalURL {
	c, err := ParseURL(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// Canonicalize resolves raw against base and returns its canonical form.
//
// A reference without a host is resolved relative to base (RFC 3986:
// dot segments collapse, a leading "/" replaces the whole path, an empty
// reference yields base). A reference with its own host is taken as
// absolute. Query, fragment and ";params" are dropped in both cases.
//
// Canonicalize never fails: input that cannot be parsed degrades to base,
// and non-web references such as "mailto:x@y" keep their scheme with an
// empty host so that scope checks reject them.
func Canonicalize(base CanonicalURL, raw string) CanonicalURL {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return base
	}

	if ref.Opaque != "" {
		return CanonicalURL{
			Scheme: strings.ToLower(ref.Scheme),
			Path:   ref.Opaque,
		}
	}

	ref.RawQuery = ""
	ref.ForceQuery = false
	ref.Fragment = ""
	ref.RawFragment = ""
	ref.User = nil
	ref.Path = stripParams(ref.Path)
	ref.RawPath = stripParams(ref.RawPath)

	return fromURL(base.URL().ResolveReference(ref))
}

// fromURL builds the canonical form of an absolute URL.
func fromURL(u *url.URL) CanonicalURL {
	scheme := strings.ToLower(u.Scheme)
	host := canonicalHost(scheme, u.Host)

	if ep := stripParams(u.EscapedPath()); hasEncodedSlash(ep) {
		trimmed := strings.ReplaceAll(strings.TrimRight(ep, "/"), "%2f", "%2F")
		if decoded, err := url.PathUnescape(trimmed); err == nil {
			return CanonicalURL{
				Scheme:  scheme,
				Host:    host,
				Path:    decoded,
				escaped: trimmed,
				slash:   strings.HasSuffix(ep, "/"),
			}
		}
	}

	p := stripParams(u.Path)
	if p == "" {
		p = "/"
	}

	trimmed := strings.TrimRight(p, "/")
	slash := trimmed != p && trimmed != ""
	if trimmed == "" {
		trimmed = "/"
	}

	return CanonicalURL{
		Scheme: scheme,
		Host:   host,
		Path:   trimmed,
		slash:  slash,
	}
}

// hasEncodedSlash reports whether an escaped path contains "%2F".
func hasEncodedSlash(escaped string) bool {
	return strings.Contains(strings.ToUpper(escaped), "%2F")
}

// canonicalHost lower-cases host and drops the scheme's default port.
func canonicalHost(scheme, host string) string {
	host = strings.ToLower(host)
	h, port, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		if strings.Contains(h, ":") {
			return "[" + h + "]"
		}
		return h
	}
	return host
}

// stripParams removes ";params" from every path segment.
func stripParams(p string) string {
	if !strings.Contains(p, ";") {
		return p
	}
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		if idx := strings.IndexByte(seg, ';'); idx >= 0 {
			segments[i] = seg[:idx]
		}
	}
	return strings.Join(segments, "/")
}

// URL returns the URL used to request c and to resolve references found
// on it. The trailing slash of the original reference is restored.
func (c CanonicalURL) URL() *url.URL {
	if c.Host == "" && c.Scheme != "" && c.Scheme != "http" && c.Scheme != "https" {
		return &url.URL{Scheme: c.Scheme, Opaque: c.Path}
	}
	p, raw := c.Path, c.escaped
	if c.slash && p != "/" {
		p += "/"
		if raw != "" {
			raw += "/"
		}
	}
	return &url.URL{Scheme: c.Scheme, Host: c.Host, Path: p, RawPath: raw}
}

// RequestString returns the URL string to send over the wire.
func (c CanonicalURL) RequestString() string {
	return c.URL().String()
}

// String returns the canonical form, e.g. "https://example.com/a/b".
func (c CanonicalURL) String() string {
	if c.Host == "" && c.Scheme != "" && c.Scheme != "http" && c.Scheme != "https" {
		return c.Scheme + ":" + c.Path
	}
	u := url.URL{Scheme: c.Scheme, Host: c.Host, Path: c.Path, RawPath: c.escaped}
	return u.String()
}

// Key returns the identity of c, suitable as a map key.
func (c CanonicalURL) Key() string {
	return c.String()
}

// Equal reports whether c and other identify the same resource.
func (c CanonicalURL) Equal(other CanonicalURL) bool {
	return c.Scheme == other.Scheme && c.Host == other.Host && c.Path == other.Path &&
		c.escaped == other.escaped
}

// IsZero reports whether c is the zero value.
func (c CanonicalURL) IsZero() bool {
	return c.Scheme == "" && c.Host == "" && c.Path == ""
}

// IsWeb reports whether c is an absolute http or https URL.
func (c CanonicalURL) IsWeb() bool {
	return (c.Scheme == "http" || c.Scheme == "https") && c.Host != ""
}

// Segments returns the non-empty, decoded path segments of c.
// An encoded slash stays inside its segment.
func (c CanonicalURL) Segments() []string {
	if c.escaped == "" {
		return pathSegments(c.Path)
	}
	segs := pathSegments(c.escaped)
	for i, seg := range segs {
		if dec, err := url.PathUnescape(seg); err == nil {
			segs[i] = dec
		}
	}
	return segs
}

// Basename returns the last path segment, or "" for the root path.
func (c CanonicalURL) Basename() string {
	segs := c.Segments()
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// MarshalText encodes c in canonical form.
func (c CanonicalURL) MarshalText() ([]byte, error) {
	if c.IsZero() {
		return []byte{}, nil
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a canonical URL produced by MarshalText.
func (c *CanonicalURL) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*c = CanonicalURL{}
		return nil
	}
	u, err := url.Parse(string(text))
	if err != nil {
		return err
	}
	if u.Opaque != "" {
		*c = CanonicalURL{Scheme: strings.ToLower(u.Scheme), Path: u.Opaque}
		return nil
	}
	*c = fromURL(u)
	return nil
}

// pathSegments splits a slash-separated path, skipping empty segments.
func pathSegments(p string) []string {
	parts := strings.Split(p, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}
