package main

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePNG(t *testing.T, path string) {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 5, 7))); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestMetadataCmd(t *testing.T) {
	t.Parallel()

	t.Run("prints image and non-image files", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		img := filepath.Join(dir, "pixel.png")
		txt := filepath.Join(dir, "notes.txt")
		writePNG(t, img)
		if err := os.WriteFile(txt, []byte("hello"), 0o600); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		cmd := NewMetadataCmd()
		var out, errOut bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&errOut)
		cmd.SetArgs([]string{"--no-color", img, txt, filepath.Join(dir, "missing.jpg")})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := out.String()
		for _, want := range []string{"pixel", "PNG", "5x7", txt + " is not an image"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, output)
			}
		}
		if !strings.Contains(errOut.String(), "1 of 3 path(s) skipped") {
			t.Errorf("expected skipped notice, got %q", errOut.String())
		}
	})

	t.Run("fails when nothing can be inspected", func(t *testing.T) {
		t.Parallel()

		cmd := NewMetadataCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{t.TempDir()})

		if err := cmd.Execute(); err == nil {
			t.Error("expected an error for a directory")
		}
	})
}
