package log

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/spider/internal/model"
)

func TestFileSink(t *testing.T) {
	t.Parallel()

	t.Run("writes entries in the error log format", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "spider.log")
		sink := NewFileSink(path, nil)
		sink.Record("https://example.com/missing", model.NewCrawlError("https://example.com/missing", model.ErrHTTPStatus, errors.New("404 Not Found")))
		sink.Record("https://example.com/x", nil)
		if err := sink.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read log: %v", err)
		}
		want := "URL: https://example.com/missing\nError: unexpected HTTP status: 404 Not Found\n\n" +
			"URL: https://example.com/x\nError: unknown error\n\n"
		if string(data) != want {
			t.Errorf("log = %q, want %q", data, want)
		}
		if sink.Count() != 2 {
			t.Errorf("expected 2 entries, got %d", sink.Count())
		}
	})

	t.Run("appends to an existing log", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "spider.log")
		if err := os.WriteFile(path, []byte("previous\n"), 0o600); err != nil {
			t.Fatalf("failed to seed log: %v", err)
		}
		sink := NewFileSink(path, nil)
		sink.Record("https://example.com/", model.ErrNetwork)
		if err := sink.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read log: %v", err)
		}
		if !strings.HasPrefix(string(data), "previous\nURL: https://example.com/") {
			t.Errorf("unexpected log content %q", data)
		}
	})

	t.Run("no file is created without failures", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "spider.log")
		sink := NewFileSink(path, nil)
		if err := sink.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("expected no log file, stat error: %v", err)
		}
	})

	t.Run("unwritable path does not panic", func(t *testing.T) {
		t.Parallel()

		sink := NewFileSink(filepath.Join(t.TempDir(), "missing", "dir", "spider.log"), nil)
		sink.Record("https://example.com/", model.ErrNetwork)
		if sink.Count() != 0 {
			t.Errorf("expected no entries, got %d", sink.Count())
		}
	})

	t.Run("concurrent entries do not interleave", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		sink := NewWriterSink(&buf)

		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sink.Record(fmt.Sprintf("https://example.com/%d", i), model.ErrNetwork)
			}()
		}
		wg.Wait()

		entries := strings.Split(strings.TrimSuffix(buf.String(), "\n\n"), "\n\n")
		if len(entries) != 50 {
			t.Fatalf("expected 50 entries, got %d", len(entries))
		}
		for _, e := range entries {
			lines := strings.Split(e, "\n")
			if len(lines) != 2 || !strings.HasPrefix(lines[0], "URL: ") || lines[1] != "Error: network error" {
				t.Errorf("malformed entry %q", e)
			}
		}
	})
}

func TestLoggerSink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewLoggerSink(NewSecureLogger(&buf, false))
	sink.Record("https://example.com/a", model.ErrNotHTMLBody)

	output := buf.String()
	if !strings.Contains(output, "https://example.com/a") || !strings.Contains(output, "not HTML") {
		t.Errorf("unexpected output %q", output)
	}
}

func TestDiscardSink(t *testing.T) {
	t.Parallel()

	var sink model.ErrorSink = DiscardSink{}
	sink.Record("https://example.com/", model.ErrNetwork)
}
