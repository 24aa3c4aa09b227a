package report

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

const timeLayout = "2006-01-02 15:04:05"

var pageTemplate = template.Must(template.New("index").Funcs(template.FuncMap{
	"formatPct": func(coverage float64) string {
		return fmt.Sprintf("%.1f%%", coverage)
	},
	"formatInt": func(n int) string {
		return humanize.Comma(int64(n))
	},
	"formatDelta": func(delta float64) string {
		return fmt.Sprintf("%+.1f pp", delta)
	},
	"deltaClass": func(delta float64) string {
		switch {
		case delta > 0.05:
			return "up"
		case delta < -0.05:
			return "down"
		}
		return "flat"
	},
	"formatTime": func(t time.Time) string {
		return t.Format(timeLayout)
	},
}).Parse(pageHTML))

// Render writes the HTML page for a summary
func Render(w io.Writer, s *Summary) error {
	data := struct {
		*Summary
		LineChange      float64
		HasLineChange   bool
		BranchChange    float64
		HasBranchChange bool
	}{Summary: s}
	data.LineChange, data.HasLineChange = s.LineDelta()
	data.BranchChange, data.HasBranchChange = s.BranchDelta()

	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	return nil
}

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>📊 {{.Title}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; color: #333; }
        .header { background: #f0f0f0; padding: 20px; border-radius: 8px; }
        .header p { margin: 4px 0; color: #555; }
        .notes { margin-top: 20px; padding: 12px 16px; border-left: 4px solid #667eea; background: #f8f9ff; }
        .metric { display: inline-block; margin: 10px; padding: 15px; background: #e8f4fd; border-radius: 5px; min-width: 200px; }
        .metric .delta { font-size: 13px; font-weight: bold; }
        .delta.up { color: #28a745; }
        .delta.down { color: #dc3545; }
        .delta.flat { color: #666; }
        .high { background: #d4edda; }
        .medium { background: #fff3cd; }
        .low { background: #f8d7da; }
        table { width: 100%; border-collapse: collapse; margin-top: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f2f2f2; }
        td.num { text-align: right; font-family: 'Courier New', monospace; }
        tfoot td { font-weight: bold; background: #fafafa; }
        .package { color: #666; font-size: 12px; }
        .empty { color: #999; font-style: italic; }
        footer { margin-top: 40px; padding-top: 20px; border-top: 1px solid #ddd; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>📊 {{.Title}}</h1>
        <p>Generated at: {{formatTime .GeneratedAt}}</p>
        {{- if .SourceFile}}
        <p>Source: <code>{{.SourceFile}}</code></p>
        {{- end}}
        {{- if not .SourceTimestamp.IsZero}}
        <p>Coverage collected at: {{formatTime .SourceTimestamp}}</p>
        {{- end}}
    </div>
    {{- if .Notes}}

    <div class="notes">{{.Notes}}</div>
    {{- end}}

    <div class="metric {{.LineLevel}}">
        <h3>📈 Line Coverage</h3>
        <h2>{{formatPct .LineCoverage}}</h2>
        {{- if .HasLineChange}}
        <span class="delta {{deltaClass .LineChange}}">{{formatDelta .LineChange}} since {{formatTime .Previous.GeneratedAt}}</span>
        {{- end}}
    </div>

    <div class="metric {{.BranchLevel}}">
        <h3>🌿 Branch Coverage</h3>
        <h2>{{formatPct .BranchCoverage}}</h2>
        {{- if .HasBranchChange}}
        <span class="delta {{deltaClass .BranchChange}}">{{formatDelta .BranchChange}} since {{formatTime .Previous.GeneratedAt}}</span>
        {{- end}}
    </div>

    <h2>📋 Coverage by Class</h2>
    <table>
        <thead>
            <tr>
                <th>Class</th>
                <th>Package</th>
                <th>Covered Lines</th>
                <th>Total Lines</th>
                <th>Coverage %</th>
            </tr>
        </thead>
        <tbody>
        {{- range .Classes}}
            <tr class="{{.Level}}">
                <td title="{{.FullName}}">{{.Name}}</td>
                <td class="package">{{.Package}}</td>
                <td class="num">{{formatInt .Covered}}</td>
                <td class="num">{{formatInt .Total}}</td>
                <td class="num">{{formatPct .Coverage}}</td>
            </tr>
        {{- else}}
            <tr><td colspan="5" class="empty">No classes with executable lines</td></tr>
        {{- end}}
        </tbody>
        {{- if .Classes}}
        <tfoot>
            <tr>
                <td colspan="2">Total ({{len .Classes}} classes)</td>
                <td class="num">{{formatInt .CoveredLines}}</td>
                <td class="num">{{formatInt .TotalLines}}</td>
                <td class="num"></td>
            </tr>
        </tfoot>
        {{- end}}
    </table>

    <footer>
        <p>Generated by coverage-report</p>
    </footer>
</body>
</html>
`
