package model

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// DownloadResult is the outcome of downloading one resource.
type DownloadResult struct {
	// Resource is the resource that was requested.
	Resource ResourceURL

	// Path is where the resource was saved. Empty on failure.
	Path string

	// Size is the number of bytes written.
	Size int64

	// Err is nil when the resource was saved.
	Err error
}

// Saved reports whether the resource was written to disk.
func (r DownloadResult) Saved() bool {
	return r.Err == nil
}

// downloadResultJSON is the wire form of DownloadResult.
type downloadResultJSON struct {
	Resource ResourceURL `json:"resource"`
	Path     string      `json:"path,omitempty"`
	Size     int64       `json:"size,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// MarshalJSON encodes Err as its message.
func (r DownloadResult) MarshalJSON() ([]byte, error) {
	out := downloadResultJSON{Resource: r.Resource, Path: r.Path, Size: r.Size}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores Err from its message.
// The restored error keeps the message but not the original error chain.
func (r *DownloadResult) UnmarshalJSON(data []byte) error {
	var in downloadResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Resource = in.Resource
	r.Path = in.Path
	r.Size = in.Size
	r.Err = nil
	if in.Error != "" {
		r.Err = errors.New(in.Error)
	}
	return nil
}

// CrawlReport aggregates the results of crawling one seed.
// It is filled step by step by the pipeline and then rendered by the
// report writers and stored in the crawl history.
type CrawlReport struct {
	// Scope is the crawl boundary, including the seed.
	Scope Scope `json:"scope"`

	// Extensions are the resource extensions that were matched.
	Extensions []string `json:"extensions"`

	// OutputDir is the directory resources were saved to.
	OutputDir string `json:"output_dir"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Pages are the URLs yielded by the crawl, in traversal order.
	Pages []*Page `json:"pages"`

	// Resources are the matched resource URLs, de-duplicated.
	Resources []ResourceURL `json:"resources"`

	// Downloads holds one result per resource, in the order of Resources.
	Downloads []DownloadResult `json:"downloads"`

	// Errors are the per-URL failures recorded during the run.
	Errors []RecordedError `json:"errors,omitempty"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// TimedOut is set when the crawl deadline stopped the run early.
	// Pages, resources and downloads then hold partial results.
	TimedOut bool `json:"timed_out"`

	// Error is the last step error, if any.
	Error error `json:"-"`

	// ErrorMessage is Error's message, kept for serialization.
	ErrorMessage string `json:"error,omitempty"`

	mu sync.Mutex
}

// NewCrawlReport creates an empty report for scope.
func NewCrawlReport(scope Scope) *CrawlReport {
	return &CrawlReport{
		Scope:     scope,
		StartedAt: time.Now(),
		Pages:     make([]*Page, 0),
		Resources: make([]ResourceURL, 0),
		Downloads: make([]DownloadResult, 0),
		Errors:    make([]RecordedError, 0),
	}
}

// Seed returns the canonical seed URL as a string.
func (r *CrawlReport) Seed() string {
	return r.Scope.Base.String()
}

// Record implements ErrorSink so the report can collect failures directly.
func (r *CrawlReport) Record(url string, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, NewRecordedError(url, cause))
}

// ErrorCount returns the number of recorded failures.
func (r *CrawlReport) ErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Errors)
}

// PagesFound returns the number of pages yielded by the crawl.
func (r *CrawlReport) PagesFound() int {
	return len(r.Pages)
}

// ResourcesFound returns the number of matched resources.
func (r *CrawlReport) ResourcesFound() int {
	return len(r.Resources)
}

// Downloaded returns the number of resources saved to disk.
func (r *CrawlReport) Downloaded() int {
	n := 0
	for _, d := range r.Downloads {
		if d.Saved() {
			n++
		}
	}
	return n
}

// FailedDownloads returns the number of resources that could not be saved.
func (r *CrawlReport) FailedDownloads() int {
	return len(r.Downloads) - r.Downloaded()
}

// Duration returns how long the run took. It is zero until FinishedAt is set.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
