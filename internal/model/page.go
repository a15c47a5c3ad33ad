package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// Page is a URL yielded by the crawl.
//
// Pages fetched during traversal carry their raw references in Links so
// the resource step does not need to fetch them again. The seed of a
// depth-0 crawl is yielded without being fetched and has Parsed == false.
type Page struct {
	// URL is the canonical page URL. After an in-scope redirect this is
	// the redirect target.
	URL CanonicalURL `json:"url"`

	// RedirectedFrom lists the URLs that redirected to this page, in order.
	RedirectedFrom []CanonicalURL `json:"redirected_from,omitempty"`

	// StatusCode is the HTTP status of the final response.
	StatusCode int `json:"status_code,omitempty"`

	// ContentType is the Content-Type header of the final response.
	ContentType string `json:"content_type,omitempty"`

	// Title is the page title from the <title> tag.
	// Empty for non-HTML content.
	Title string `json:"title,omitempty"`

	// Hash is the SHA-256 of the response body.
	// Used to spot identical pages in the crawl history.
	Hash string `json:"hash,omitempty"`

	// Links holds the raw href/src references found on the page.
	Links []string `json:"-"`

	// Parsed is true when the page body was fetched and parsed.
	Parsed bool `json:"parsed"`
}

// ComputeHash sets Hash from body. An empty body clears the hash.
func (p *Page) ComputeHash(body []byte) {
	if len(body) == 0 {
		p.Hash = ""
		return
	}
	sum := sha256.Sum256(body)
	p.Hash = hex.EncodeToString(sum[:])
}
