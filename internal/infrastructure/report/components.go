package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
)

const reportTimeLayout = "2006-01-02 15:04:05"

const reportStyle = `body{font-family:Arial,sans-serif;margin:24px;color:#222}
h1{border-bottom:2px solid #2b6cb0;padding-bottom:6px}
table{border-collapse:collapse;width:100%;margin-bottom:24px}
th,td{border:1px solid #ddd;padding:6px 8px;text-align:left;font-size:13px}
th{background:#f0f4f8}
.warn{color:#b7791f}.crit{color:#c53030}.ok{color:#2f855a}
code{font-size:12px}`

// htmlWriter копит первую ошибку записи
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) textf(format string, args ...interface{}) {
	h.text(fmt.Sprintf(format, args...))
}

func (h *htmlWriter) row(cells ...string) {
	h.raw("<tr>")
	for _, c := range cells {
		h.raw("<td>")
		h.text(c)
		h.raw("</td>")
	}
	h.raw("</tr>")
}

func (h *htmlWriter) header(cells ...string) {
	h.raw("<tr>")
	for _, c := range cells {
		h.raw("<th>")
		h.text(c)
		h.raw("</th>")
	}
	h.raw("</tr>")
}

func page(title string, body func(h *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`)
		h.text(title)
		h.raw(`</title><style>`)
		h.raw(reportStyle)
		h.raw(`</style></head><body>`)
		body(h)
		h.raw(`</body></html>`)
		if h.err == nil {
			h.err = ctx.Err()
		}
		return h.err
	})
}

// HealthReport отчет о состоянии базы: метрики, медленные запросы, алерты, рекомендации
func HealthReport(input port.HealthReportInput) templ.Component {
	return page("Database Health Report", func(h *htmlWriter) {
		h.raw("<h1>Database Health Report</h1><p>Generated: ")
		h.text(input.GeneratedAt.Format(reportTimeLayout))
		h.raw("</p>")

		h.raw("<h2>Current Metrics</h2>")
		if input.Latest == nil || input.Latest.Len() == 0 {
			h.raw("<p>No metrics collected yet.</p>")
		} else {
			h.raw("<table>")
			h.header("Metric", "Value", "Unit", "Threshold", "Status")
			for _, name := range valueobject.AllMetricNames() {
				value, ok := input.Latest.Value(name)
				if !ok {
					continue
				}
				threshold, status := "-", "ok"
				if limit, has := input.Thresholds[name.String()]; has {
					threshold = fmt.Sprintf("%.2f", limit)
					if value > limit {
						status = "breached"
					}
				}
				h.row(name.String(), fmt.Sprintf("%.2f", value), name.Unit(), threshold, status)
			}
			h.raw("</table>")
		}

		h.raw("<h2>Slow Queries</h2>")
		if len(input.SlowQueries) == 0 {
			h.raw("<p>No slow query statistics available.</p>")
		} else {
			h.raw("<table>")
			h.header("Query", "Calls", "Mean (ms)", "Total (ms)", "Rows")
			for _, q := range input.SlowQueries {
				h.row(truncate(q.Query, 200), fmt.Sprint(q.Calls), fmt.Sprintf("%.2f", q.MeanTimeMS), fmt.Sprintf("%.2f", q.TotalTimeMS), fmt.Sprint(q.RowsProcessed))
			}
			h.raw("</table>")
		}

		h.raw("<h2>Active Alerts</h2>")
		if len(input.ActiveAlerts) == 0 {
			h.raw(`<p class="ok">No active alerts.</p>`)
		} else {
			h.raw("<table>")
			h.header("Time", "Severity", "Category", "Message")
			for _, a := range input.ActiveAlerts {
				h.row(a.CreatedAt().Format(reportTimeLayout), strings.ToUpper(a.Severity().String()), a.Category(), a.Message())
			}
			h.raw("</table>")
		}

		h.raw("<h2>Recommendations</h2><ul>")
		for _, rec := range input.Recommendations {
			h.raw("<li>")
			h.text(rec)
			h.raw("</li>")
		}
		h.raw("</ul>")
	})
}

// PerformanceReport отчет о производительности за N дней
func PerformanceReport(input port.PerformanceReportInput) templ.Component {
	title := fmt.Sprintf("Performance Report (last %d days)", input.Days)
	return page(title, func(h *htmlWriter) {
		h.raw("<h1>")
		h.text(title)
		h.raw("</h1><p>Generated: ")
		h.text(input.GeneratedAt.Format(reportTimeLayout))
		h.raw("</p>")

		h.raw("<h2>Table Usage</h2>")
		if len(input.Tables) == 0 {
			h.raw("<p>No table statistics available.</p>")
		} else {
			h.raw("<table>")
			h.header("Table", "Seq scans", "Index scans", "Live rows", "Dead rows", "Size (MB)", "Last vacuum", "Last analyze")
			for _, t := range input.Tables {
				h.row(t.Table, fmt.Sprint(t.SeqScans), fmt.Sprint(t.IndexScans), fmt.Sprint(t.LiveRows), fmt.Sprint(t.DeadRows),
					fmt.Sprintf("%.2f", t.SizeMB), formatOptionalTime(t.LastVacuum), formatOptionalTime(t.LastAnalyze))
			}
			h.raw("</table>")
		}

		h.raw("<h2>Daily Activity</h2>")
		if len(input.Activity) == 0 {
			h.raw("<p>No samples collected in this period.</p>")
		} else {
			h.raw("<table>")
			h.header("Day", "Samples", "Avg queries/s", "Max connections", "Avg slow queries")
			for _, d := range input.Activity {
				h.row(d.Day.Format("2006-01-02"), fmt.Sprint(d.Samples), fmt.Sprintf("%.2f", d.AvgQueriesPerSecond), fmt.Sprintf("%.0f", d.MaxConnections), fmt.Sprintf("%.2f", d.AvgSlowQueries))
			}
			h.raw("</table>")
		}

		h.raw("<h2>Collected Snapshots</h2><p>")
		h.textf("%d snapshots in the reporting window.", len(input.History))
		h.raw("</p>")
	})
}

func formatOptionalTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(reportTimeLayout)
}

func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
