package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/spider/internal/model"
)

// DefaultMaxSize is the largest resource saved when no limit is configured.
const DefaultMaxSize int64 = 100 * 1024 * 1024 // 100MB

// DefaultConcurrency is the number of parallel downloads.
const DefaultConcurrency = 4

// errTooLarge is the cause of a download that exceeds the size limit.
var errTooLarge = errors.New("resource exceeds size limit")

// Downloader saves resources into one directory.
type Downloader struct {
	client      *http.Client
	dir         string
	userAgent   string
	maxSize     int64
	concurrency int
	sink        model.ErrorSink
	logger      *slog.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(d *Downloader) {
		d.userAgent = ua
	}
}

// WithMaxSize sets the largest resource size in bytes.
func WithMaxSize(size int64) Option {
	return func(d *Downloader) {
		if size > 0 {
			d.maxSize = size
		}
	}
}

// WithConcurrency sets how many resources are downloaded in parallel.
func WithConcurrency(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithErrorSink sets where failed downloads are recorded.
func WithErrorSink(sink model.ErrorSink) Option {
	return func(d *Downloader) {
		if sink != nil {
			d.sink = sink
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDownloader creates a Downloader writing into dir.
// The client must not follow redirects; see httpclient.Client.
func NewDownloader(client *http.Client, dir string, opts ...Option) *Downloader {
	d := &Downloader{
		client:      client,
		dir:         dir,
		maxSize:     DefaultMaxSize,
		concurrency: DefaultConcurrency,
		sink:        model.MultiSink{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dir returns the output directory.
func (d *Downloader) Dir() string {
	return d.dir
}

// Prepare creates the output directory if it does not exist.
func (d *Downloader) Prepare() error {
	if err := os.MkdirAll(d.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", d.dir, err)
	}
	return nil
}

// Download fetches r and saves it. Failures are returned in the result's
// Err, wrapped as model.ErrDownloadFailure, and recorded to the sink.
// Nothing is retried.
func (d *Downloader) Download(ctx context.Context, r model.ResourceURL) model.DownloadResult {
	result := model.DownloadResult{Resource: r}
	target := r.URL.RequestString()

	fail := func(cause error) model.DownloadResult {
		result.Err = model.NewCrawlError(r.URL.String(), model.ErrDownloadFailure, cause)
		d.sink.Record(r.URL.String(), result.Err)
		d.logger.Debug("download failed", "url", r.URL.String(), "error", cause)
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fail(err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if loc := resp.Header.Get("Location"); loc != "" {
			return fail(fmt.Errorf("%d redirect to %s not followed", resp.StatusCode, loc))
		}
		return fail(fmt.Errorf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}
	if resp.ContentLength > d.maxSize {
		return fail(fmt.Errorf("%w: %d > %d bytes", errTooLarge, resp.ContentLength, d.maxSize))
	}

	f, path, err := createUnique(d.dir, FileName(r.URL))
	if err != nil {
		return fail(err)
	}

	n, err := io.Copy(f, io.LimitReader(resp.Body, d.maxSize+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		err = fmt.Errorf("failed to write %s: %w", path, err)
	case n > d.maxSize:
		err = fmt.Errorf("%w: more than %d bytes", errTooLarge, d.maxSize)
	case closeErr != nil:
		err = fmt.Errorf("failed to close %s: %w", path, closeErr)
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			d.logger.Warn("failed to remove partial download", "path", path, "error", rmErr)
		}
		return fail(err)
	}

	result.Path = path
	result.Size = n
	d.logger.Debug("downloaded resource", "url", r.URL.String(), "path", path, "bytes", n)
	return result
}

// DownloadAll downloads resources on a bounded worker pool and returns one
// result per resource, in input order. Once ctx is done the remaining
// resources fail with the context error without being requested; downloads
// already started run to completion.
func (d *Downloader) DownloadAll(ctx context.Context, resources []model.ResourceURL) []model.DownloadResult {
	results := make([]model.DownloadResult, len(resources))
	if len(resources) == 0 {
		return results
	}

	if err := d.Prepare(); err != nil {
		for i, r := range resources {
			results[i] = model.DownloadResult{
				Resource: r,
				Err:      model.NewCrawlError(r.URL.String(), model.ErrDownloadFailure, err),
			}
			d.sink.Record(r.URL.String(), results[i].Err)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, r := range resources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = model.DownloadResult{
					Resource: r,
					Err:      model.NewCrawlError(r.URL.String(), model.ErrDownloadFailure, err),
				}
				d.sink.Record(r.URL.String(), results[i].Err)
				return nil
			}
			results[i] = d.Download(context.WithoutCancel(ctx), r)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // failures are carried in the results

	return results
}
