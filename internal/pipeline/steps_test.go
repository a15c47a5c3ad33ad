package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/spider/internal/crawler"
	"github.com/nao1215/spider/internal/database"
	"github.com/nao1215/spider/internal/httpclient"
	"github.com/nao1215/spider/internal/model"
)

// gallerySite serves a small site with images:
//
//	/                 links to /gallery/, shows /logo.png (missing)
//	/gallery/         shows cat.jpg twice, links to big.PNG
//	/gallery/cat.jpg  image/jpeg
//	/gallery/big.PNG  image/png
func gallerySite(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			time.Sleep(delay)
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<!DOCTYPE html><html><head><title>Home</title></head><body>
<img src="/logo.png"><a href="/gallery/">gallery</a></body></html>`))
		case "/gallery/", "/gallery":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<!DOCTYPE html><html><body>
<img src="cat.jpg"><img src="cat.jpg?v=2"><a href="big.PNG">big</a></body></html>`))
		case "/gallery/cat.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("meow"))
		case "/gallery/big.PNG":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("big picture"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *httpclient.Client {
	t.Helper()

	client, err := httpclient.NewClient(httpclient.WithTimeout(5 * time.Second))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func siteReport(t *testing.T, seed string, depth int, outDir string) *model.CrawlReport {
	t.Helper()

	report := newReport(t, seed, depth)
	report.Extensions = []string{"jpg", "png"}
	report.OutputDir = outDir
	return report
}

func resourceURLs(report *model.CrawlReport) []string {
	out := make([]string, len(report.Resources))
	for i, r := range report.Resources {
		out[i] = r.URL.String()
	}
	return out
}

func TestDefaultPipelineRecursive(t *testing.T) {
	t.Parallel()

	srv := gallerySite(t, 0)
	outDir := filepath.Join(t.TempDir(), "data")
	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var sink model.MemorySink
	p := DefaultPipeline(newClient(t), nil,
		WithPipelineConcurrency(2),
		WithPipelineErrorSink(&sink),
		WithPipelineDB(db),
	)
	if got := p.StepNames(); !slices.Equal(got, []string{StepCrawl, StepScrape, StepDownload, StepPersist}) {
		t.Fatalf("unexpected steps %v", got)
	}

	report := siteReport(t, srv.URL, 2, outDir)
	if err := p.Execute(context.Background(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pages := make([]string, len(report.Pages))
	for i, pg := range report.Pages {
		pages[i] = strings.TrimPrefix(pg.URL.String(), srv.URL)
	}
	if want := []string{"/", "/gallery", "/gallery/big.PNG"}; !slices.Equal(pages, want) {
		t.Errorf("pages = %v, want %v", pages, want)
	}

	wantResources := []string{srv.URL + "/logo.png", srv.URL + "/gallery/cat.jpg", srv.URL + "/gallery/big.PNG"}
	if got := resourceURLs(report); !slices.Equal(got, wantResources) {
		t.Errorf("resources = %v, want %v", got, wantResources)
	}

	if report.Downloaded() != 2 || report.FailedDownloads() != 1 {
		t.Errorf("expected 2 saved and 1 failed, got %d and %d", report.Downloaded(), report.FailedDownloads())
	}
	for name, want := range map[string]string{"cat.jpg": "meow", "big.PNG": "big picture"} {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Errorf("expected %s to be saved: %v", name, err)
			continue
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", name, data, want)
		}
	}

	// big.PNG is recorded as non-HTML, logo.png as a failed download.
	if report.ErrorCount() != 2 || len(sink.Entries()) != 2 {
		t.Errorf("expected 2 errors in report and sink, got %d and %d", report.ErrorCount(), len(sink.Entries()))
	}

	history, err := db.GetCrawlHistory(context.Background(), report.Seed())
	if err != nil {
		t.Fatalf("GetCrawlHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].Summary.Downloaded != 2 {
		t.Errorf("unexpected history %+v", history)
	}
}

func TestDefaultPipelineDepthZeroScrapesSeed(t *testing.T) {
	t.Parallel()

	srv := gallerySite(t, 0)
	report := siteReport(t, srv.URL+"/gallery/", 0, t.TempDir())

	p := DefaultPipeline(newClient(t), nil)
	if err := p.Execute(context.Background(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.PagesFound() != 1 || !report.Pages[0].Parsed {
		t.Fatalf("expected the seed to be scraped, got %+v", report.Pages)
	}
	want := []string{srv.URL + "/gallery/cat.jpg", srv.URL + "/gallery/big.PNG"}
	if got := resourceURLs(report); !slices.Equal(got, want) {
		t.Errorf("resources = %v, want %v", got, want)
	}
	if report.Downloaded() != 2 {
		t.Errorf("expected 2 downloads, got %d", report.Downloaded())
	}
}

func TestDefaultPipelineSeedFailure(t *testing.T) {
	t.Parallel()

	srv := gallerySite(t, 0)
	report := siteReport(t, srv.URL+"/missing", 0, t.TempDir())

	if err := DefaultPipeline(newClient(t), nil).Execute(context.Background(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.ResourcesFound() != 0 || len(report.Downloads) != 0 {
		t.Errorf("expected nothing to download, got %d resources", report.ResourcesFound())
	}
	if report.ErrorCount() != 1 || !strings.Contains(report.Errors[0].Message, "404") {
		t.Errorf("expected the 404 to be recorded, got %+v", report.Errors)
	}
}

func TestCrawlStepDeadlineKeepsPartialResult(t *testing.T) {
	t.Parallel()

	srv := gallerySite(t, 200*time.Millisecond)
	fetcher := crawler.NewFetcher(newClient(t).NewHTTPClient())
	step := NewCrawlStep(fetcher, WithCrawlTimeout(50*time.Millisecond))

	report := siteReport(t, srv.URL, 3, t.TempDir())
	if err := step.Do(context.Background(), report); err != nil {
		t.Fatalf("expected the deadline to be absorbed, got %v", err)
	}
	if !report.TimedOut {
		t.Error("expected report to be marked as timed out")
	}
	if report.PagesFound() != 1 {
		t.Errorf("expected the in-flight seed to be kept, got %d pages", report.PagesFound())
	}
}

func TestCrawlStepCancelledContext(t *testing.T) {
	t.Parallel()

	srv := gallerySite(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	step := NewCrawlStep(crawler.NewFetcher(newClient(t).NewHTTPClient()))
	err := step.Do(ctx, siteReport(t, srv.URL, 2, t.TempDir()))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCollectResources(t *testing.T) {
	t.Parallel()

	exts := model.NewExtensionSet("png")
	pages := []*model.Page{
		{URL: model.MustParseURL("https://example.com/"), StatusCode: 200, Links: []string{"/a.png", "/b.txt"}},
		{URL: model.MustParseURL("https://example.com/c.png"), StatusCode: 200},
		{URL: model.MustParseURL("https://example.com/unfetched.png")},
		{URL: model.MustParseURL("https://example.com/dup"), StatusCode: 200, Links: []string{"a.png"}},
	}

	got := CollectResources(pages, exts)
	want := []string{"https://example.com/a.png", "https://example.com/c.png"}
	if len(got) != len(want) {
		t.Fatalf("expected %d resources, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i].URL.String() != want[i] {
			t.Errorf("resource %d = %q, want %q", i, got[i].URL, want[i])
		}
	}
}
