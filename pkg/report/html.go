package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"time"
)

//go:embed report.html.tmpl
var htmlTemplate string

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"duration": func(m Millis) string {
		return m.Duration().Round(time.Millisecond).String()
	},
}).Parse(htmlTemplate))

// WriteHTML renders the run as a self-contained HTML page.
func WriteHTML(w io.Writer, run *Run) error {
	if err := reportTemplate.Execute(w, run); err != nil {
		return fmt.Errorf("failed to render HTML report: %w", err)
	}
	return nil
}

// SaveHTML writes the HTML report to path.
func SaveHTML(path string, run *Run) error {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, run); err != nil {
		return err
	}
	return save(path, buf.Bytes())
}
