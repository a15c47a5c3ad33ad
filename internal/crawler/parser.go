package crawler

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// referenceSelector matches every element whose reference is collected.
const referenceSelector = "a[href], link[href], img[src]"

// Parser extracts raw references from HTML pages.
//
// Design decision: the document is parsed with golang.org/x/net/html and
// queried through goquery. The tokenizer copes with the malformed markup
// found on real sites, and a CSS selector states exactly which attributes
// are collected. References are returned unresolved: canonicalization and
// scope checks belong to the caller, who knows the page URL and the scope.
type Parser struct{}

// ParseResult holds the references found on one page.
type ParseResult struct {
	// Title is the text of the first <title> element.
	Title string

	// Links are the href values of <a> and <link> elements.
	Links []string

	// Images are the src values of <img> elements.
	Images []string

	// all keeps every reference in document order.
	all []string
}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads an HTML document and collects its references.
// Values are trimmed and de-duplicated, keeping the first occurrence.
func (p *Parser) Parse(r io.Reader) (*ParseResult, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	result := &ParseResult{
		Title:  strings.TrimSpace(doc.Find("title").First().Text()),
		Links:  make([]string, 0),
		Images: make([]string, 0),
		all:    make([]string, 0),
	}

	seenLinks := make(map[string]bool)
	seenImages := make(map[string]bool)
	seenAll := make(map[string]bool)

	doc.Find(referenceSelector).Each(func(_ int, s *goquery.Selection) {
		attr := "href"
		if goquery.NodeName(s) == "img" {
			attr = "src"
		}
		val, ok := s.Attr(attr)
		val = strings.TrimSpace(val)
		if !ok || val == "" {
			return
		}

		if attr == "src" {
			if !seenImages[val] {
				seenImages[val] = true
				result.Images = append(result.Images, val)
			}
		} else if !seenLinks[val] {
			seenLinks[val] = true
			result.Links = append(result.Links, val)
		}

		if !seenAll[val] {
			seenAll[val] = true
			result.all = append(result.all, val)
		}
	})

	return result, nil
}

// All returns every collected reference in document order.
func (r *ParseResult) All() []string {
	out := make([]string, len(r.all))
	copy(out, r.all)
	return out
}
