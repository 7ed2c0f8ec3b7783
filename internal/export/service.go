package export

import (
	"fmt"
	"time"

	"pulse/api/internal/store"
)

// Service turns session snapshots into downloadable reports.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Export renders the snapshot in the requested format. An empty format
// defaults to Markdown. Export never mutates the snapshot.
func (s *Service) Export(snap store.SessionSnapshot, format Format, exportedAt time.Time) (*Result, error) {
	switch format {
	case FormatMarkdown, "":
		markdown := RenderMarkdown(snap, exportedAt)
		return &Result{
			Data:     []byte(markdown),
			Filename: Filename(snap.Code, exportedAt, "md"),
			MimeType: "text/markdown",
		}, nil
	case FormatPDF:
		html, err := renderReportHTML(snap, exportedAt)
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		return exportPDF(html, Filename(snap.Code, exportedAt, "pdf"))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
