package metadata

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF for DecodeConfig
	_ "image/jpeg" // register JPEG for DecodeConfig
	_ "image/png"  // register PNG for DecodeConfig
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	exif "github.com/dsoprea/go-exif/v3"
)

// DefaultMaxEXIFSize is how many bytes of an image are searched for EXIF data.
const DefaultMaxEXIFSize = 32 * 1024 * 1024

var (
	// ErrNotRegularFile is returned for directories, devices and missing paths.
	ErrNotRegularFile = errors.New("not a regular file")

	// ErrNotImage is stored in Info.ImageErr when the file is not an image
	// in a supported format.
	ErrNotImage = errors.New("not an image")
)

// Tag is one EXIF entry.
type Tag struct {
	IFD   string
	Name  string
	Value string
}

// Info is what Inspect learned about a file.
type Info struct {
	Path      string
	Name      string
	Extension string
	Mode      fs.FileMode
	Size      int64
	ModTime   time.Time

	// Format is the image format ("jpeg", "png", "gif"). Empty for non-images.
	Format string
	Width  int
	Height int

	// ImageErr is set when the file could not be read as an image.
	// General information is still valid.
	ImageErr error

	// EXIF holds the tags in file order. Empty when the image has none.
	EXIF []Tag
}

// IsImage reports whether the file was recognized as an image.
func (i *Info) IsImage() bool {
	return i.Format != ""
}

// Inspector reads file metadata.
type Inspector struct {
	maxEXIFSize int64
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithMaxEXIFSize limits how much of an image is read to find EXIF data.
func WithMaxEXIFSize(n int64) Option {
	return func(in *Inspector) {
		if n > 0 {
			in.maxEXIFSize = n
		}
	}
}

// NewInspector creates an Inspector.
func NewInspector(opts ...Option) *Inspector {
	in := &Inspector{maxEXIFSize: DefaultMaxEXIFSize}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Inspect returns the metadata of the file at path.
//
// Only a path that is not a regular file is an error. A file that is not
// an image yields general information with ImageErr set.
func (in *Inspector) Inspect(path string) (*Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotRegularFile, err)
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegularFile, path)
	}

	ext := filepath.Ext(path)
	info := &Info{
		Path:      path,
		Name:      strings.TrimSuffix(filepath.Base(path), ext),
		Extension: ext,
		Mode:      st.Mode(),
		Size:      st.Size(),
		ModTime:   st.ModTime(),
	}

	f, err := os.Open(path) //nolint:gosec // user supplied path is the point
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		info.ImageErr = fmt.Errorf("%w: %w", ErrNotImage, err)
		return info, nil
	}
	info.Format = format
	info.Width = cfg.Width
	info.Height = cfg.Height

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind %s: %w", path, err)
	}
	data, err := io.ReadAll(io.LimitReader(f, in.maxEXIFSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	info.EXIF = readEXIF(data)
	return info, nil
}

// readEXIF returns the EXIF tags found in data. Missing or broken EXIF
// data yields no tags.
func readEXIF(data []byte) []Tag {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return nil
	}
	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil
	}

	tags := make([]Tag, 0, len(entries))
	for _, e := range entries {
		tags = append(tags, Tag{
			IFD:   e.IfdPath,
			Name:  e.TagName,
			Value: strings.TrimRight(e.Formatted, "\x00"),
		})
	}
	return tags
}
