package export

import (
	"context"
	"fmt"
	"time"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
)

// Source loads the current state of a project.
type Source interface {
	Get(ctx context.Context, id string) (project.Project, error)
}

// Versions loads a past revision of a project.
type Versions interface {
	At(projectID, hash string) (project.Project, error)
}

type Service struct {
	source    Source
	versions  Versions
	publisher *Publisher
	now       func() time.Time
}

// NewService creates an export service. versions and publisher may be nil.
func NewService(source Source, versions Versions, publisher *Publisher) *Service {
	return &Service{source: source, versions: versions, publisher: publisher, now: time.Now}
}

// Export loads the requested project revision and renders it.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	var (
		p   project.Project
		err error
	)
	if req.Version != "" {
		if s.versions == nil {
			return nil, ErrVersionUnavailable
		}
		p, err = s.versions.At(req.ProjectID, req.Version)
	} else {
		p, err = s.source.Get(ctx, req.ProjectID)
	}
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", req.ProjectID, err)
	}
	return s.Render(ctx, p, req.Version, req.Format)
}

// Render produces the export of p in the given format.
func (s *Service) Render(ctx context.Context, p project.Project, version string, format Format) (*Result, error) {
	html, err := RenderHTML(BuildDocument(project.EnsureProjectDefaults(p), version))
	if err != nil {
		return nil, err
	}
	base := sanitizeFilename(p.Name)

	switch format {
	case "", FormatHTML:
		return &Result{Data: []byte(html), Filename: base + ".html", MimeType: "text/html; charset=utf-8"}, nil
	case FormatPDF:
		data, err := renderPDF(ctx, html)
		if err != nil {
			return nil, err
		}
		return &Result{Data: data, Filename: base + ".pdf", MimeType: "application/pdf"}, nil
	case FormatDOCX:
		data, err := renderDOCX(ctx, html)
		if err != nil {
			return nil, err
		}
		return &Result{
			Data:     data,
			Filename: base + ".docx",
			MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Publish uploads result under the project's prefix and returns a
// time-limited download link.
func (s *Service) Publish(ctx context.Context, projectID string, result *Result) (string, error) {
	if s.publisher == nil {
		return "", ErrPublishDisabled
	}
	key := fmt.Sprintf("%s/%s-%s", projectID, s.now().UTC().Format("20060102T150405Z"), result.Filename)
	return s.publisher.Publish(ctx, key, result)
}
