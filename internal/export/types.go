// Package export renders a project to standalone HTML, PDF or DOCX and can
// publish the result to object storage.
package export

import (
	"errors"
	"html/template"
	"time"
)

type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// ParseFormat maps a user-supplied format name to a Format. An empty name
// selects HTML.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatPDF, FormatDOCX:
		return Format(name), nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Request contains parameters for an export operation.
type Request struct {
	ProjectID string
	// Version is empty for the current state or a history revision hash.
	Version string
	Format  Format
}

// Section is one rendered entry of the export: the project root or a node.
type Section struct {
	ID       string
	Title    string
	Path     string
	Depth    int
	Folder   bool
	Body     template.HTML
	Elements int
}

// Document is the data handed to the page template.
type Document struct {
	ID        string
	Title     string
	Owner     string
	UpdatedAt time.Time
	Version   string
	Sections  []Section
}

type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrVersionUnavailable indicates a revision was requested without a
	// history backend.
	ErrVersionUnavailable = errors.New("export version unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
	// ErrPublishDisabled indicates no object storage is configured.
	ErrPublishDisabled = errors.New("export publishing disabled")
)
