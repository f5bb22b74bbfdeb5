// Package export renders a campaign journal to PDF or Markdown. Callers
// pass the notes the viewer is allowed to see; nothing here re-checks
// visibility.
package export

import (
	"errors"

	"lorekeeper/api/internal/campaign"
	"lorekeeper/api/internal/note"
)

// Format represents the export output format
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "markdown"
)

// Request contains parameters for an export operation
type Request struct {
	Campaign campaign.Campaign
	Notes    []note.Note
	Format   Format
	// IncludeHistory adds each note's edit trail to the output.
	IncludeHistory bool
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrUnsupportedFormat indicates an unknown export format.
	ErrUnsupportedFormat = errors.New("export format unsupported")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
