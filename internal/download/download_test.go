package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/spider/internal/model"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/moved.png":
			http.Redirect(w, r, "/cat.png", http.StatusFound)
		case r.URL.Path == "/missing.png":
			http.NotFound(w, r)
		case r.URL.Path == "/big.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
		case r.URL.Path == "/stream.png":
			// no Content-Length: the limit has to be enforced while copying
			flusher, _ := w.(http.Flusher)
			for range 8 {
				_, _ = w.Write([]byte(strings.Repeat("y", 256)))
				if flusher != nil {
					flusher.Flush()
				}
			}
		default:
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("data:" + r.URL.Path))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func noRedirectClient() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func resource(t *testing.T, base, path string) model.ResourceURL {
	t.Helper()

	u, err := model.ParseURL(base + path)
	if err != nil {
		t.Fatalf("ParseURL failed: %v", err)
	}
	return model.ResourceURL{URL: u, Source: model.MustParseURL(base)}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "plain file", url: "https://example.com/img/cat.png", want: "cat.png"},
		{name: "percent-encoded space", url: "https://example.com/my%20cat.jpg", want: "my cat.jpg"},
		{name: "backslash is replaced", url: "https://example.com/a%5Cb.gif", want: "a_b.gif"},
		{name: "root path", url: "https://example.com/", want: "index"},
		{name: "decomposed unicode is composed", url: "https://example.com/cafe%CC%81.png", want: "café.png"},
		{name: "control character", url: "https://example.com/a%07b.bmp", want: "a_b.bmp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := FileName(model.MustParseURL(tt.url)); got != tt.want {
				t.Errorf("FileName(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}

	t.Run("long names keep their extension", func(t *testing.T) {
		t.Parallel()

		long := strings.Repeat("a", 300) + ".jpeg"
		got := FileName(model.MustParseURL("https://example.com/" + long))
		if len(got) > maxFileNameBytes || !strings.HasSuffix(got, ".jpeg") {
			t.Errorf("unexpected name %q (%d bytes)", got, len(got))
		}
	})
}

func TestCandidateName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		n    int
		want string
	}{
		{"cat.png", 0, "cat.png"},
		{"cat.png", 1, "cat_1.png"},
		{"cat.tar.gz", 2, "cat.tar_2.gz"},
		{"index", 3, "index_3"},
		{".htaccess", 1, ".htaccess_1"},
	}
	for _, tt := range tests {
		if got := candidateName(tt.name, tt.n); got != tt.want {
			t.Errorf("candidateName(%q, %d) = %q, want %q", tt.name, tt.n, got, tt.want)
		}
	}
}

func TestDownload(t *testing.T) {
	t.Parallel()

	server := newServer(t)

	t.Run("saves the resource", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		d := NewDownloader(noRedirectClient(), dir)
		result := d.Download(context.Background(), resource(t, server.URL, "/cat.png"))
		if !result.Saved() {
			t.Fatalf("download failed: %v", result.Err)
		}
		if result.Path != filepath.Join(dir, "cat.png") {
			t.Errorf("unexpected path %q", result.Path)
		}
		data, err := os.ReadFile(result.Path)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if string(data) != "data:/cat.png" || result.Size != int64(len(data)) {
			t.Errorf("unexpected content %q (size %d)", data, result.Size)
		}
	})

	t.Run("never overwrites an existing file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		existing := filepath.Join(dir, "cat.png")
		if err := os.WriteFile(existing, []byte("keep me"), 0o600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		d := NewDownloader(noRedirectClient(), dir)
		first := d.Download(context.Background(), resource(t, server.URL, "/cat.png"))
		second := d.Download(context.Background(), resource(t, server.URL, "/other/cat.png"))
		if !first.Saved() || !second.Saved() {
			t.Fatalf("downloads failed: %v, %v", first.Err, second.Err)
		}
		if filepath.Base(first.Path) != "cat_1.png" || filepath.Base(second.Path) != "cat_2.png" {
			t.Errorf("unexpected names %q, %q", first.Path, second.Path)
		}

		data, err := os.ReadFile(existing)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if string(data) != "keep me" {
			t.Errorf("existing file was overwritten: %q", data)
		}
	})

	t.Run("redirect is a failure", func(t *testing.T) {
		t.Parallel()

		var sink model.MemorySink
		dir := t.TempDir()
		d := NewDownloader(noRedirectClient(), dir, WithErrorSink(&sink))
		result := d.Download(context.Background(), resource(t, server.URL, "/moved.png"))
		if !errors.Is(result.Err, model.ErrDownloadFailure) {
			t.Fatalf("expected ErrDownloadFailure, got %v", result.Err)
		}
		if len(sink.Entries()) != 1 {
			t.Errorf("expected the failure to be recorded, got %+v", sink.Entries())
		}
		assertEmptyDir(t, dir)
	})

	t.Run("HTTP error is a failure", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		d := NewDownloader(noRedirectClient(), dir)
		result := d.Download(context.Background(), resource(t, server.URL, "/missing.png"))
		if !errors.Is(result.Err, model.ErrDownloadFailure) {
			t.Fatalf("expected ErrDownloadFailure, got %v", result.Err)
		}
		if result.Path != "" {
			t.Errorf("expected no path, got %q", result.Path)
		}
		assertEmptyDir(t, dir)
	})

	t.Run("oversized resource with Content-Length", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		d := NewDownloader(noRedirectClient(), dir, WithMaxSize(1024))
		result := d.Download(context.Background(), resource(t, server.URL, "/big.png"))
		if !errors.Is(result.Err, errTooLarge) {
			t.Fatalf("expected errTooLarge, got %v", result.Err)
		}
		assertEmptyDir(t, dir)
	})

	t.Run("oversized streamed resource removes the partial file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		d := NewDownloader(noRedirectClient(), dir, WithMaxSize(1024))
		result := d.Download(context.Background(), resource(t, server.URL, "/stream.png"))
		if !errors.Is(result.Err, errTooLarge) {
			t.Fatalf("expected errTooLarge, got %v", result.Err)
		}
		assertEmptyDir(t, dir)
	})

	t.Run("network failure", func(t *testing.T) {
		t.Parallel()

		closed := httptest.NewServer(http.NotFoundHandler())
		base := closed.URL
		closed.Close()

		d := NewDownloader(noRedirectClient(), t.TempDir())
		result := d.Download(context.Background(), resource(t, base, "/cat.png"))
		if !errors.Is(result.Err, model.ErrDownloadFailure) {
			t.Errorf("expected ErrDownloadFailure, got %v", result.Err)
		}
	})
}

func TestDownloadAll(t *testing.T) {
	t.Parallel()

	server := newServer(t)

	t.Run("results keep input order and names stay unique", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "nested", "out")
		resources := make([]model.ResourceURL, 0, 20)
		for i := range 20 {
			// every resource has the same file name
			resources = append(resources, resource(t, server.URL, "/set"+strconv.Itoa(i)+"/same.png"))
		}
		resources = append(resources, resource(t, server.URL, "/missing.png"))

		d := NewDownloader(noRedirectClient(), dir, WithConcurrency(8))
		results := d.DownloadAll(context.Background(), resources)
		if len(results) != len(resources) {
			t.Fatalf("expected %d results, got %d", len(resources), len(results))
		}

		paths := make(map[string]bool)
		for i, r := range results {
			if !r.Resource.URL.Equal(resources[i].URL) {
				t.Errorf("result %d is for %s, want %s", i, r.Resource.URL, resources[i].URL)
			}
			if i == len(results)-1 {
				if r.Saved() {
					t.Error("expected the missing resource to fail")
				}
				continue
			}
			if !r.Saved() {
				t.Errorf("download %d failed: %v", i, r.Err)
				continue
			}
			if paths[r.Path] {
				t.Errorf("path %s used twice", r.Path)
			}
			paths[r.Path] = true

			data, err := os.ReadFile(r.Path)
			if err != nil {
				t.Fatalf("failed to read %s: %v", r.Path, err)
			}
			if string(data) != "data:"+resources[i].URL.Path {
				t.Errorf("%s holds %q, want content of %s", r.Path, data, resources[i].URL.Path)
			}
		}
	})

	t.Run("cancelled context fails every resource without requests", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		requests := 0
		counting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			mu.Lock()
			requests++
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
		defer counting.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		d := NewDownloader(noRedirectClient(), t.TempDir())
		results := d.DownloadAll(ctx, []model.ResourceURL{
			resource(t, counting.URL, "/a.png"),
			resource(t, counting.URL, "/b.png"),
		})
		for _, r := range results {
			if !errors.Is(r.Err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", r.Err)
			}
		}
		mu.Lock()
		defer mu.Unlock()
		if requests != 0 {
			t.Errorf("expected no requests, got %d", requests)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "never-created")
		d := NewDownloader(noRedirectClient(), dir)
		if results := d.DownloadAll(context.Background(), nil); len(results) != 0 {
			t.Errorf("expected no results, got %d", len(results))
		}
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Error("output directory must not be created without resources")
		}
	})
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty directory, found %d entries", len(entries))
	}
}
