package model

// FetchKind classifies the response to a single page request.
type FetchKind int

const (
	// FetchHTML is a 200 response with an HTML body.
	FetchHTML FetchKind = iota

	// FetchNonHTML is a 200 response that is not parsed for links.
	FetchNonHTML

	// FetchRedirect is a 3xx response carrying a Location header.
	FetchRedirect

	// FetchHTTPError is any other HTTP status.
	FetchHTTPError

	// FetchNetworkError is a transport-level failure.
	FetchNetworkError
)

// String returns a short lower-case name for the kind.
func (k FetchKind) String() string {
	switch k {
	case FetchHTML:
		return "html"
	case FetchNonHTML:
		return "non-html"
	case FetchRedirect:
		return "redirect"
	case FetchHTTPError:
		return "http-error"
	case FetchNetworkError:
		return "network-error"
	default:
		return "unknown"
	}
}

// FetchOutcome is the tagged result of Fetcher.Fetch.
// Which fields are meaningful depends on Kind:
//
//	FetchHTML         StatusCode, ContentType, Body
//	FetchNonHTML      StatusCode, ContentType, Err (ErrNonHTMLContent or ErrNotHTMLBody)
//	FetchRedirect     StatusCode, Target (raw Location header)
//	FetchHTTPError    StatusCode, Err
//	FetchNetworkError Err
type FetchOutcome struct {
	Kind        FetchKind
	StatusCode  int
	ContentType string
	Body        []byte
	Target      string
	Err         error
}

// Yields reports whether the fetched URL counts as a discovered page.
// Redirects and failures contribute nothing.
func (o FetchOutcome) Yields() bool {
	return o.Kind == FetchHTML || o.Kind == FetchNonHTML
}
