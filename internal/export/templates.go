package export

import (
	"bytes"
	"html/template"
	"time"

	"pulse/api/internal/store"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"formatDate": func(t time.Time) string {
		return t.Format("Jan 2, 2006 15:04 MST")
	},
}).Parse(reportHTML))

type reportData struct {
	Code       string
	CreatedAt  time.Time
	ExportedAt time.Time
	Feedbacks  []store.FeedbackItem
}

// renderReportHTML builds the printable HTML document the PDF exporter
// feeds to headless Chrome.
func renderReportHTML(snap store.SessionSnapshot, exportedAt time.Time) (string, error) {
	data := reportData{
		Code:       snap.Code,
		CreatedAt:  snap.CreatedAt,
		ExportedAt: exportedAt,
		Feedbacks:  Rank(snap.Feedbacks),
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reportHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Workshop Feedback {{.Code}}</title>
<style>
  body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; color: #1a1a1a; margin: 0; }
  header { border-bottom: 2px solid #1a1a1a; padding-bottom: 12px; margin-bottom: 24px; }
  h1 { font-size: 24px; margin: 0 0 8px; }
  .meta { color: #555; font-size: 12px; }
  .item { margin-bottom: 20px; page-break-inside: avoid; }
  .item h2 { font-size: 16px; margin: 0 0 4px; }
  .votes { color: #555; font-size: 13px; }
  ul.comments { margin: 8px 0 0 16px; padding: 0; font-size: 13px; }
  ul.comments li { margin-bottom: 2px; }
</style>
</head>
<body>
<header>
  <h1>Workshop Feedback Session</h1>
  <div class="meta">
    Session {{.Code}} ·
    Created {{formatDate .CreatedAt}} ·
    Exported {{formatDate .ExportedAt}}
  </div>
</header>
<main>
{{range $i, $item := .Feedbacks}}
  <section class="item">
    <h2>{{$item.Text}}</h2>
    <div class="votes">{{$item.Votes}} votes</div>
    {{if $item.Comments}}
    <ul class="comments">
      {{range $item.Comments}}<li>{{.Text}} (&uarr;{{.Votes}})</li>{{end}}
    </ul>
    {{end}}
  </section>
{{else}}
  <p>No feedback was submitted in this session.</p>
{{end}}
</main>
</body>
</html>`
