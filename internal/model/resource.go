package model

import (
	"slices"
	"strings"
)

// DefaultExtensions are the resource extensions downloaded when none are
// configured.
var DefaultExtensions = []string{"jpg", "jpeg", "png", "gif", "bmp"}

// ExtensionSet is a set of lower-case file extensions without leading dot.
type ExtensionSet map[string]struct{}

// NewExtensionSet builds an ExtensionSet. Entries are trimmed, lower-cased
// and stripped of a leading dot; empty entries are ignored.
func NewExtensionSet(exts ...string) ExtensionSet {
	set := make(ExtensionSet, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			set[ext] = struct{}{}
		}
	}
	return set
}

// Matches reports whether the last path segment of u ends with ".ext" for
// some ext in the set. The comparison is case-insensitive and the segment
// must have a name in front of the extension.
func (s ExtensionSet) Matches(u CanonicalURL) bool {
	name := strings.ToLower(u.Basename())
	for ext := range s {
		suffix := "." + ext
		if len(name) > len(suffix) && strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Sorted returns the extensions in lexical order.
func (s ExtensionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for ext := range s {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

// ResourceURL is a discovered URL eligible for download.
type ResourceURL struct {
	// URL is the canonical resource URL.
	URL CanonicalURL `json:"url"`

	// Source is the page the reference was found on.
	Source CanonicalURL `json:"source"`
}

// MatchResources canonicalizes raw references found on page and keeps the
// http(s) ones whose file name matches exts. The result is de-duplicated
// and keeps the order of first appearance. No network access is done.
func MatchResources(page CanonicalURL, raw []string, exts ExtensionSet) []ResourceURL {
	seen := make(map[string]bool, len(raw))
	resources := make([]ResourceURL, 0)
	for _, ref := range raw {
		u := Canonicalize(page, ref)
		if !u.IsWeb() || !exts.Matches(u) {
			continue
		}
		if seen[u.Key()] {
			continue
		}
		seen[u.Key()] = true
		resources = append(resources, ResourceURL{URL: u, Source: page})
	}
	return resources
}

// MergeResources appends the resources of next that are not yet in dst.
func MergeResources(dst []ResourceURL, next ...ResourceURL) []ResourceURL {
	seen := make(map[string]bool, len(dst))
	for _, r := range dst {
		seen[r.URL.Key()] = true
	}
	for _, r := range next {
		if seen[r.URL.Key()] {
			continue
		}
		seen[r.URL.Key()] = true
		dst = append(dst, r)
	}
	return dst
}
