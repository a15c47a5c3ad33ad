package metadata

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// MaxValueLen is the display width of an EXIF value.
const MaxValueLen = 30

// Printer writes Info as two aligned sections, general information and EXIF.
type Printer struct {
	out     io.Writer
	heading *color.Color
	warning *color.Color
}

// NewPrinter creates a Printer. Headings are bold when colored is true.
func NewPrinter(out io.Writer, colored bool) *Printer {
	p := &Printer{
		out:     out,
		heading: color.New(color.FgWhite, color.Bold),
		warning: color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{p.heading, p.warning} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Print renders info.
func (p *Printer) Print(info *Info) error {
	var sb strings.Builder

	sb.WriteString(p.heading.Sprint("GENERAL INFORMATION"))
	sb.WriteString("\n\n")
	row(&sb, "Filename", info.Name)
	row(&sb, "Extension", info.Extension)
	row(&sb, "Mode", fmt.Sprintf("%o", uint32(info.Mode.Perm())))
	row(&sb, "Size", fmt.Sprintf("%d", info.Size))
	row(&sb, "Last Modified", info.ModTime.Format("2006-01-02 15:04"))

	if !info.IsImage() {
		sb.WriteString(p.warning.Sprintf("\n%s is not an image\n", info.Path))
		sb.WriteString("\n")
		_, err := io.WriteString(p.out, sb.String())
		return err
	}

	row(&sb, "Format", strings.ToUpper(info.Format))
	row(&sb, "Resolution", fmt.Sprintf("%dx%d", info.Width, info.Height))

	if len(info.EXIF) > 0 {
		sb.WriteString("\n")
		sb.WriteString(p.heading.Sprint("EXIF INFORMATION"))
		sb.WriteString("\n\n")
		for _, t := range info.EXIF {
			row(&sb, t.Name, truncate(t.Value, MaxValueLen))
		}
	}
	sb.WriteString("\n")

	_, err := io.WriteString(p.out, sb.String())
	return err
}

func row(sb *strings.Builder, key, value string) {
	fmt.Fprintf(sb, "%-40s %s\n", key, value)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
