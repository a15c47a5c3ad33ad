package download

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/spider/internal/model"
)

// defaultFileName is used when a URL has no usable last path segment.
const defaultFileName = "index"

// maxFileNameBytes keeps generated names below common file system limits,
// leaving room for a collision suffix.
const maxFileNameBytes = 200

// maxCollisions bounds the numeric suffixes tried for one name.
const maxCollisions = 10000

// errTooManyCollisions is returned when every candidate name is taken.
var errTooManyCollisions = errors.New("too many files with the same name")

// FileName returns the local file name for u: its last path segment,
// NFC-normalized, with path separators and control characters replaced.
// URL paths are already percent-decoded by the canonicalizer.
func FileName(u model.CanonicalURL) string {
	name := norm.NFC.String(u.Basename())

	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case r == utf8.RuneError || unicode.IsControl(r):
			return '_'
		default:
			return r
		}
	}, name)
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == ".." {
		return defaultFileName
	}
	return truncateName(name)
}

// truncateName shortens name to maxFileNameBytes, keeping the extension
// and valid UTF-8.
func truncateName(name string) string {
	if len(name) <= maxFileNameBytes {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) > maxFileNameBytes/2 {
		ext = ""
	}
	stem := strings.TrimSuffix(name, ext)
	limit := maxFileNameBytes - len(ext)
	for limit > 0 && !utf8.RuneStart(stem[limit]) {
		limit--
	}
	return stem[:limit] + ext
}

// candidateName returns name for n == 0 and "stem_n.ext" otherwise.
func candidateName(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	if ext == name {
		// dot files such as ".htaccess" have no stem
		ext = ""
	}
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
}

// createUnique creates a new file named name in dir, or the first free
// "stem_N.ext" variant. The existence check and the creation are one
// atomic O_EXCL open, so concurrent callers never share a file.
func createUnique(dir, name string) (*os.File, string, error) {
	for n := range maxCollisions {
		path := filepath.Join(dir, candidateName(name, n))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // path is built from a sanitized name
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("failed to create %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("%w: %s", errTooManyCollisions, name)
}
