package statushttp

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/arxtract/arxtract/internal/status"
)

const indexPage = `<!DOCTYPE html>
<html>
<head>
<title>Extraction Progress</title>
<style>
body { font-family: Arial, sans-serif; margin: 40px; line-height: 1.6; }
h1, h2 { color: #2c3e50; }
table { border-collapse: collapse; margin-top: 10px; }
th, td { border: 1px solid #ddd; padding: 6px 12px; text-align: right; }
th:first-child, td:first-child { text-align: left; }
.progress-bar { width: 100%; background-color: #f0f0f0; padding: 3px; border-radius: 3px;
  box-shadow: inset 0 1px 3px rgba(0, 0, 0, .2); }
.progress { width: {{.Percent}}%; height: 20px; background-color: #4CAF50; border-radius: 3px; }
</style>
</head>
<body>
<h1>Extraction Progress</h1>
<div class="progress-bar"><div class="progress"></div></div>
<p>Documents: {{.Documents}}</p>
<p>Complete: {{.Complete}}</p>
<p>Remaining: {{.Remaining}}</p>
<p>Completion: {{.Percent}}%</p>
<p>Page artifacts observed: {{.Pages}}</p>
<p>Malformed artifact names: {{.Malformed}}</p>
<p>Time elapsed: {{.Elapsed}}</p>
<p>Generated at: {{.GeneratedAt}}</p>
<h2>Progress by bucket</h2>
<table>
<tr><th>Bucket</th><th>Documents</th><th>Complete</th><th>In progress</th><th>Not started</th><th>Failed</th></tr>
{{range .Buckets}}<tr><td>{{.Bucket}}</td><td>{{.Documents}}</td><td>{{.Complete}}</td><td>{{.InProgress}}</td><td>{{.NotStarted}}</td><td>{{.Failed}}</td></tr>
{{end}}</table>
</body>
</html>
`

var indexTemplate = template.Must(template.New("index").Parse(indexPage))

type bucketRow struct {
	Bucket     string
	Documents  int
	Complete   int
	InProgress int
	NotStarted int
	Failed     int
}

type indexData struct {
	Documents   int
	Complete    int
	Remaining   int
	Pages       int
	Malformed   int
	Percent     string
	Elapsed     string
	GeneratedAt string
	Buckets     []bucketRow
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	rec, err := s.source()
	if err != nil {
		slog.Error("failed to scan corpus", "error", err)
		http.Error(w, "failed to scan corpus", http.StatusInternalServerError)
		return
	}
	snap := rec.Snapshot()
	data := indexData{
		Documents:   snap.Documents,
		Complete:    snap.Counts[status.Complete],
		Remaining:   snap.Documents - snap.Counts[status.Complete],
		Pages:       snap.Pages,
		Malformed:   snap.Malformed,
		Percent:     fmt.Sprintf("%.2f", snap.CompletePercent()),
		Elapsed:     formatElapsed(time.Since(s.started)),
		GeneratedAt: snap.GeneratedAt.Format(time.RFC3339),
	}
	for _, b := range snap.Buckets {
		data.Buckets = append(data.Buckets, bucketRow{
			Bucket:     b.Bucket,
			Documents:  b.Documents,
			Complete:   b.Counts[status.Complete],
			InProgress: b.Counts[status.InProgress],
			NotStarted: b.Counts[status.NotStarted],
			Failed:     b.Counts[status.Failed],
		})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		slog.Error("failed to render status page", "error", err)
	}
}

func formatElapsed(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%d days, %d hours, and %d minutes", days, hours, minutes)
}
