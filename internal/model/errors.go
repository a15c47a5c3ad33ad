package model

import (
	"errors"
	"sync"
)

// Crawl error kinds.
// Every per-URL failure is reported as a *CrawlError whose Kind is one of
// these sentinels, so callers can use errors.Is to classify failures while
// the underlying cause stays reachable through the same chain.
//
// Only ErrInvalidInput is fatal, and only before crawling starts; the other
// kinds are logged and the crawl continues with the remaining URLs.
var (
	// ErrInvalidInput is returned for a bad seed URL or depth.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNetwork covers DNS failures, refused connections and timeouts.
	ErrNetwork = errors.New("network error")

	// ErrHTTPStatus is an unexpected HTTP status (anything but 200 or an
	// in-scope redirect).
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrOutOfScopeRedirect is a redirect whose target is outside the scope.
	// Such redirects are never followed.
	ErrOutOfScopeRedirect = errors.New("redirect outside crawl scope")

	// ErrRedirectLimit is returned when a redirect chain exceeds the
	// configured number of hops.
	ErrRedirectLimit = errors.New("too many redirects")

	// ErrNonHTMLContent marks a page served with a non-HTML content type.
	// The page is not parsed for links.
	ErrNonHTMLContent = errors.New("cannot parse content-type")

	// ErrNotHTMLBody marks a page that claims text/html but whose body does
	// not start with an HTML doctype.
	ErrNotHTMLBody = errors.New("not HTML")

	// ErrDownloadFailure is returned when a resource cannot be saved.
	ErrDownloadFailure = errors.New("download failed")
)

// CrawlError is a per-URL failure.
type CrawlError struct {
	// URL is the URL that failed.
	URL string

	// Kind is one of the sentinel errors above.
	Kind error

	// Cause is the underlying error, if any.
	Cause error
}

// NewCrawlError creates a CrawlError.
func NewCrawlError(url string, kind, cause error) *CrawlError {
	return &CrawlError{URL: url, Kind: kind, Cause: cause}
}

// Error implements the error interface.
// The URL is not part of the message; sinks record it separately.
func (e *CrawlError) Error() string {
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Cause.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *CrawlError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// ErrorSink receives per-URL failures.
// Implementations must be safe for concurrent use because fetches and
// downloads run on worker pools.
type ErrorSink interface {
	// Record stores one failure for url.
	Record(url string, cause error)
}

// ErrorSinkFunc adapts a function to the ErrorSink interface.
type ErrorSinkFunc func(url string, cause error)

// Record calls f(url, cause).
func (f ErrorSinkFunc) Record(url string, cause error) {
	f(url, cause)
}

// MultiSink fans a failure out to several sinks.
type MultiSink []ErrorSink

// Record forwards the failure to every non-nil sink.
func (m MultiSink) Record(url string, cause error) {
	for _, s := range m {
		if s != nil {
			s.Record(url, cause)
		}
	}
}

// MemorySink keeps failures in memory. It is mostly useful in tests.
type MemorySink struct {
	mu      sync.Mutex
	entries []RecordedError
}

// Record appends the failure.
func (m *MemorySink) Record(url string, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, NewRecordedError(url, cause))
}

// Entries returns a copy of the recorded failures in arrival order.
func (m *MemorySink) Entries() []RecordedError {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedError, len(m.entries))
	copy(out, m.entries)
	return out
}

// RecordedError is the serializable form of a failure.
type RecordedError struct {
	// URL is the URL that failed.
	URL string `json:"url"`

	// Kind is the message of the error kind, e.g. "network error".
	Kind string `json:"kind,omitempty"`

	// Message is the full error message.
	Message string `json:"message"`
}

// NewRecordedError converts an error into its serializable form.
func NewRecordedError(url string, err error) RecordedError {
	rec := RecordedError{URL: url}
	if err == nil {
		return rec
	}
	rec.Message = err.Error()
	var ce *CrawlError
	if errors.As(err, &ce) && ce.Kind != nil {
		rec.Kind = ce.Kind.Error()
	}
	return rec
}
