package report

import (
	"bytes"
	"fmt"
	"html/template"
	"path/filepath"
	"time"

	"github.com/ahrdadan/ytflow/internal/runner"
)

// HTMLReporter writes a standalone HTML page. Artifact links are relative to the page.
type HTMLReporter struct {
	Path string
}

func (r *HTMLReporter) Name() string {
	return "html"
}

func (r *HTMLReporter) Report(run *runner.Run) error {
	base := filepath.Dir(r.Path)
	funcs := template.FuncMap{
		"duration": func(d time.Duration) string {
			return d.Round(time.Millisecond).String()
		},
		"rel": func(path string) string {
			if rel, err := filepath.Rel(base, path); err == nil {
				return filepath.ToSlash(rel)
			}
			return path
		},
		"attempt": func(n int) int {
			return n + 1
		},
	}

	tmpl, err := template.New("report").Funcs(funcs).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse report template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, map[string]interface{}{
		"Run":     run.Snapshot(),
		"Summary": run.Summary(),
	})
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return writeFile(r.Path, buf.Bytes())
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>ytflow report {{.Run.ID}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; color: #222; }
.passed { color: #1a7f37; } .failed { color: #cf222e; } .flaky { color: #9a6700; } .skipped { color: #6e7781; }
table { border-collapse: collapse; width: 100%; }
td, th { text-align: left; padding: .4rem .6rem; border-bottom: 1px solid #ddd; vertical-align: top; }
pre { white-space: pre-wrap; margin: .2rem 0; }
</style>
</head>
<body>
<h1>Run {{.Run.ID}} <span class="{{.Run.Status}}">{{.Run.Status}}</span></h1>
<p>{{.Summary.Total}} scenarios: {{.Summary.Passed}} passed, {{.Summary.Failed}} failed, {{.Summary.Flaky}} flaky, {{.Summary.Skipped}} skipped. Engine {{.Run.Engine}}, base URL {{.Run.BaseURL}}.</p>
<table>
<tr><th>Scenario</th><th>Status</th><th>Duration</th><th>Attempts</th></tr>
{{range .Run.Results}}
<tr>
<td>{{.ScenarioID}}{{range .Tags}} <code>{{.}}</code>{{end}}</td>
<td class="{{.Status}}">{{.Status}}</td>
<td>{{duration .Duration}}</td>
<td>
{{range .Attempts}}
<div>#{{attempt .Number}} <span class="{{.Status}}">{{.Status}}</span> {{duration .Duration}}
{{if .Error}}<pre>[{{.ErrorKind}}] {{.Error}}</pre>{{end}}
{{range .Logs}}<pre>{{.}}</pre>{{end}}
{{range .Artifacts}}<a href="{{rel .Path}}">{{.Kind}}</a> {{end}}
</div>
{{end}}
</td>
</tr>
{{end}}
</table>
</body>
</html>
`
