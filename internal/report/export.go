package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"strconv"

	"github.com/modelcrucible/crucible/internal/result"
)

// ExportOptions selects the serialization format and level of detail.
type ExportOptions struct {
	Format                 string // "json", "csv" or "html"
	IncludeDetails         bool
	IncludeRecommendations bool
}

var ErrUnknownFormat = fmt.Errorf("unknown export format")

// Export serializes a report. Output is deterministic for identical input:
// category iteration follows breakdown insertion order and regressions
// keep their original order.
func Export(r *result.EvalReport, opts ExportOptions) (string, error) {
	switch opts.Format {
	case "json", "":
		return exportJSON(r, opts)
	case "csv":
		return exportCSV(r, opts)
	case "html":
		return exportHTML(r, opts)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
}

func exportJSON(r *result.EvalReport, opts ExportOptions) (string, error) {
	out := *r
	if !opts.IncludeDetails {
		out.RunSummaries = nil
		out.ScoringResults = nil
	}
	if !opts.IncludeRecommendations {
		out.Recommendations = nil
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling report: %w", err)
	}
	return string(data), nil
}

func exportCSV(r *result.EvalReport, opts ExportOptions) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"category", "total_tests", "passed", "failed", "accuracy", "pass_rate", "avg_score", "avg_latency_ms", "total_cost_usd"}); err != nil {
		return "", err
	}
	writeRow := func(name string, total, passed, failed int, accuracy, passRate, avgScore, avgLatency, cost float64) error {
		return w.Write([]string{
			name,
			strconv.Itoa(total),
			strconv.Itoa(passed),
			strconv.Itoa(failed),
			formatFloat(roundPct(accuracy)),
			formatFloat(roundPct(passRate)),
			formatFloat(avgScore),
			formatFloat(avgLatency),
			formatFloat(cost),
		})
	}
	m := r.Metrics
	if err := writeRow("overall", m.TotalTests, m.Passed, m.Failed, m.Accuracy, m.PassRate, m.AvgScore, m.AvgLatencyMs, m.TotalCostUSD); err != nil {
		return "", err
	}
	for _, c := range m.Categories {
		if err := writeRow(c.Category, c.TotalTests, c.Passed, c.Failed, c.Accuracy, c.PassRate, c.AvgScore, c.AvgLatencyMs, c.TotalCostUSD); err != nil {
			return "", err
		}
	}

	if opts.IncludeDetails && len(r.Regressions) > 0 {
		w.Flush()
		buf.WriteString("\n")
		if err := w.Write([]string{"metric", "category", "baseline", "current", "percent_change", "severity"}); err != nil {
			return "", err
		}
		for _, reg := range r.Regressions {
			if err := w.Write([]string{
				reg.Metric,
				reg.Category,
				formatFloat(reg.BaselineValue),
				formatFloat(reg.CurrentValue),
				formatFloat(roundPct(reg.PercentChange)),
				string(reg.Severity),
			}); err != nil {
				return "", err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("writing csv: %w", err)
	}
	return buf.String(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var htmlTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Evaluation Report {{.Report.JobID}}</title>
<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
table { border-collapse: collapse; margin-bottom: 2em; }
th, td { border: 1px solid #ccc; padding: 6px 12px; text-align: left; }
th { background: #f4f4f4; }
.severity-critical { color: #fff; background: #c0392b; }
.severity-major { color: #fff; background: #e67e22; }
.severity-minor { background: #f1c40f; }
.card { border: 1px solid #ccc; border-left: 6px solid #888; padding: 8px 16px; margin-bottom: 1em; }
.card-high { border-left-color: #c0392b; }
.card-medium { border-left-color: #e67e22; }
.card-low { border-left-color: #f1c40f; }
.card-info { border-left-color: #2980b9; }
</style>
</head>
<body>
<h1>Evaluation Report</h1>
<p>Job {{.Report.JobID}} &mdash; generated {{.Report.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}</p>

<h2>Summary</h2>
<table>
<tr><th>Status</th><td>{{.Report.Summary.Status}}</td></tr>
<tr><th>Total tests</th><td>{{.Report.Summary.TotalTests}}</td></tr>
<tr><th>Passed</th><td>{{.Report.Summary.Passed}}</td></tr>
<tr><th>Failed</th><td>{{.Report.Summary.Failed}}</td></tr>
<tr><th>Accuracy</th><td>{{printf "%.2f%%" .Report.Summary.Accuracy}}</td></tr>
<tr><th>Average score</th><td>{{printf "%.3f" .Report.Summary.AvgScore}}</td></tr>
<tr><th>Total cost</th><td>{{printf "$%.4f" .Report.Summary.TotalCostUSD}}</td></tr>
</table>

{{if .Report.Metrics.Categories}}
<h2>Categories</h2>
<table>
<tr><th>Category</th><th>Tests</th><th>Passed</th><th>Accuracy</th><th>Avg score</th><th>Avg latency (ms)</th><th>Cost</th></tr>
{{range .Report.Metrics.Categories}}
<tr><td>{{.Category}}</td><td>{{.TotalTests}}</td><td>{{.Passed}}</td><td>{{printf "%.2f%%" .Accuracy}}</td><td>{{printf "%.3f" .AvgScore}}</td><td>{{printf "%.1f" .AvgLatencyMs}}</td><td>{{printf "$%.4f" .TotalCostUSD}}</td></tr>
{{end}}
</table>
{{end}}

{{if .Report.Regressions}}
<h2>Regressions</h2>
<table>
<tr><th>Metric</th><th>Category</th><th>Baseline</th><th>Current</th><th>Change</th><th>Severity</th></tr>
{{range .Report.Regressions}}
<tr><td>{{.Metric}}</td><td>{{.Category}}</td><td>{{printf "%.2f" .BaselineValue}}</td><td>{{printf "%.2f" .CurrentValue}}</td><td>{{printf "%+.2f%%" .PercentChange}}</td><td class="severity-{{.Severity}}">{{.Severity}}</td></tr>
{{end}}
</table>
{{end}}

{{if .IncludeRecommendations}}
<h2>Recommendations</h2>
{{range .Report.Recommendations}}
<div class="card card-{{.Severity}}">
<strong>{{.Message}}</strong>
<p>{{.Action}}</p>
</div>
{{end}}
{{end}}
</body>
</html>
`))

func exportHTML(r *result.EvalReport, opts ExportOptions) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Report                 *result.EvalReport
		IncludeRecommendations bool
	}{r, opts.IncludeRecommendations}
	if err := htmlTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering html: %w", err)
	}
	return buf.String(), nil
}
