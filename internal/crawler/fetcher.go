package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/nao1215/spider/internal/model"
)

// DefaultUserAgent is sent when no User-Agent is configured.
const DefaultUserAgent = "spider/1.0 (+https://github.com/nao1215/spider)"

// DefaultMaxBodySize bounds how much of a page body is read.
const DefaultMaxBodySize int64 = 10 * 1024 * 1024 // 10MB

// utf8BOM is skipped before looking for the doctype.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// doctypePrefix is compared case-insensitively against the start of the body.
var doctypePrefix = []byte("<!doctype html")

// Fetcher performs single page requests.
//
// Design decision: Fetch never follows redirects. The 3xx response is
// returned as a Redirect outcome so that the Spider can decide, with the
// crawl scope and the frontier at hand, whether the target may be visited.
// The *http.Client passed to NewFetcher must therefore return
// http.ErrUseLastResponse from CheckRedirect (httpclient.Client does).
type Fetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	logger      *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum number of body bytes read per page.
// Longer bodies are truncated.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFetcher creates a Fetcher using client.
func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch issues one GET for u and classifies the response.
// It never returns an error directly; failures are FetchHTTPError or
// FetchNetworkError outcomes whose Err is a *model.CrawlError.
func (f *Fetcher) Fetch(ctx context.Context, u model.CanonicalURL) model.FetchOutcome {
	target := u.RequestString()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return model.FetchOutcome{
			Kind: model.FetchNetworkError,
			Err:  model.NewCrawlError(target, model.ErrNetwork, err),
		}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return model.FetchOutcome{
			Kind: model.FetchNetworkError,
			Err:  model.NewCrawlError(target, model.ErrNetwork, err),
		}
	}
	defer resp.Body.Close()

	f.logger.Debug("fetched page", "url", target, "status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusOK:
		return f.classifyBody(target, resp)
	case isRedirect(resp.StatusCode):
		location := resp.Header.Get("Location")
		if location == "" {
			return httpError(target, resp.StatusCode, "redirect without Location header")
		}
		return model.FetchOutcome{
			Kind:       model.FetchRedirect,
			StatusCode: resp.StatusCode,
			Target:     location,
		}
	default:
		return httpError(target, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
}

// classifyBody handles a 200 response.
func (f *Fetcher) classifyBody(target string, resp *http.Response) model.FetchOutcome {
	contentType := resp.Header.Get("Content-Type")
	out := model.FetchOutcome{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
	}

	if !isHTMLContentType(contentType) {
		out.Kind = model.FetchNonHTML
		out.Err = model.NewCrawlError(target, model.ErrNonHTMLContent, fmt.Errorf("%q", contentType))
		return out
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		out.Kind = model.FetchNetworkError
		out.Err = model.NewCrawlError(target, model.ErrNetwork, fmt.Errorf("failed to read body: %w", err))
		return out
	}

	if !hasDoctype(body) {
		out.Kind = model.FetchNonHTML
		out.Err = model.NewCrawlError(target, model.ErrNotHTMLBody, nil)
		return out
	}

	out.Kind = model.FetchHTML
	out.Body = body
	return out
}

// httpError builds a FetchHTTPError outcome.
func httpError(target string, status int, reason string) model.FetchOutcome {
	return model.FetchOutcome{
		Kind:       model.FetchHTTPError,
		StatusCode: status,
		Err:        model.NewCrawlError(target, model.ErrHTTPStatus, fmt.Errorf("%d %s", status, reason)),
	}
}

// isRedirect reports whether status is one of the redirects the crawl follows.
func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

// isHTMLContentType reports whether the Content-Type header names text/html.
func isHTMLContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html"
}

// hasDoctype reports whether body starts with an HTML doctype, ignoring a
// UTF-8 BOM, leading whitespace and case.
func hasDoctype(body []byte) bool {
	body = bytes.TrimPrefix(body, utf8BOM)
	body = bytes.TrimLeft(body, " \t\r\n\f")
	if len(body) < len(doctypePrefix) {
		return false
	}
	return bytes.EqualFold(body[:len(doctypePrefix)], doctypePrefix)
}
