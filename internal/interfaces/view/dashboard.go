package view

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/dreschagin/dbops-agent/internal/application/dto"
)

// DashboardModel данные главной страницы
type DashboardModel struct {
	Status  *dto.StatusResponseDTO
	Alerts  *dto.AlertsResponseDTO
	Tasks   *dto.SchedulerStatusDTO
	Reports []dto.ReportDTO
}

const timeLayout = "2006-01-02 15:04:05"

const dashboardStyle = `body{font-family:Arial,sans-serif;margin:0;background:#f5f7fa;color:#222}
header{background:#1a365d;color:#fff;padding:12px 24px}
main{display:grid;grid-template-columns:1fr 1fr;gap:16px;padding:16px 24px}
section{background:#fff;border-radius:6px;padding:12px 16px;box-shadow:0 1px 2px rgba(0,0,0,.1)}
table{border-collapse:collapse;width:100%}th,td{padding:4px 6px;border-bottom:1px solid #eee;font-size:13px;text-align:left}
.badge{padding:2px 6px;border-radius:4px;font-size:11px;color:#fff}
.low{background:#3182ce}.medium{background:#d69e2e}.high{background:#dd6b20}.critical{background:#c53030}
.on{color:#2f855a}.off{color:#a0aec0}button{font-size:12px}`

// клиентский скрипт: live обновление метрик и действия над задачами
const dashboardScript = `(function(){
var proto=location.protocol==="https:"?"wss://":"ws://";
var ws=new WebSocket(proto+location.host+"/ws");
ws.onmessage=function(ev){var msg=JSON.parse(ev.data);
if(msg.type==="snapshot"){var m=msg.data.metrics;Object.keys(m).forEach(function(k){var el=document.getElementById("metric-"+k);if(el){el.textContent=m[k].toFixed(2);}});
var st=document.getElementById("overall-status");if(st&&msg.data.summary){st.textContent=msg.data.summary.overall_status;}}
if(msg.type==="alert"||msg.type==="task"){var log=document.getElementById("events");var li=document.createElement("li");li.textContent=new Date().toLocaleTimeString()+" "+msg.type+": "+JSON.stringify(msg.data).slice(0,160);log.prepend(li);}};
window.dbopsPost=function(url,body){fetch(url,{method:"POST",headers:{"Content-Type":"application/x-www-form-urlencoded"},body:body||""}).then(function(r){return r.json();}).then(function(j){alert(j.message);location.reload();});};
})();`

type writer struct {
	w   io.Writer
	err error
}

func (h *writer) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *writer) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *writer) cell(s string) {
	h.raw("<td>")
	h.text(s)
	h.raw("</td>")
}

// Dashboard главная страница агента
func Dashboard(model DashboardModel) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &writer{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>DB Operations Agent</title><style>`)
		h.raw(dashboardStyle)
		h.raw(`</style></head><body><header><h2>DB Operations Agent</h2>`)
		statusLine(h, model.Status)
		h.raw(`</header><main>`)

		metricsSection(h, model.Status)
		alertsSection(h, model.Alerts)
		tasksSection(h, model.Tasks)
		actionsSection(h, model.Reports)

		h.raw(`<section><h3>Live events</h3><ul id="events"></ul></section></main><script>`)
		h.raw(dashboardScript)
		h.raw(`</script></body></html>`)
		return h.err
	})
}

func statusLine(h *writer, status *dto.StatusResponseDTO) {
	if status == nil {
		return
	}
	h.raw(`<div>Database: `)
	h.text(onOff(status.DatabaseConnected, "connected", "unreachable"))
	h.raw(` | Monitoring: `)
	h.text(onOff(status.MonitoringActive, "active", "stopped"))
	h.raw(` | Scheduler: `)
	h.text(onOff(status.SchedulerActive, "active", "stopped"))
	h.raw(` | Status: <span id="overall-status">-</span></div>`)
}

func metricsSection(h *writer, status *dto.StatusResponseDTO) {
	h.raw(`<section><h3>Current metrics</h3>`)
	if status == nil || len(status.Metrics) == 0 {
		h.raw(`<p>No metrics collected yet.</p></section>`)
		return
	}

	names := make([]string, 0, len(status.Metrics))
	for name := range status.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	h.raw(`<table><tr><th>Metric</th><th>Value</th></tr>`)
	for _, name := range names {
		h.raw(`<tr>`)
		h.cell(name)
		h.raw(`<td id="metric-`)
		h.text(name)
		h.raw(`">`)
		h.text(fmt.Sprintf("%.2f", status.Metrics[name]))
		h.raw(`</td></tr>`)
	}
	h.raw(`</table></section>`)
}

func alertsSection(h *writer, alerts *dto.AlertsResponseDTO) {
	h.raw(`<section><h3>Active alerts</h3>`)
	if alerts == nil || alerts.AlertCount == 0 {
		h.raw(`<p class="on">No active alerts.</p></section>`)
		return
	}

	h.raw(`<table><tr><th>Time</th><th>Severity</th><th>Category</th><th>Message</th></tr>`)
	for _, a := range alerts.Alerts {
		h.raw(`<tr>`)
		h.cell(a.Timestamp.Format(timeLayout))
		h.raw(`<td><span class="badge `)
		h.text(a.Severity)
		h.raw(`">`)
		h.text(strings.ToUpper(a.Severity))
		h.raw(`</span></td>`)
		h.cell(a.Category)
		h.cell(a.Message)
		h.raw(`</tr>`)
	}
	h.raw(`</table></section>`)
}

func tasksSection(h *writer, tasks *dto.SchedulerStatusDTO) {
	h.raw(`<section><h3>Scheduled tasks</h3>`)
	if tasks == nil || len(tasks.Tasks) == 0 {
		h.raw(`<p>No tasks registered.</p></section>`)
		return
	}

	h.raw(`<table><tr><th>Task</th><th>Schedule</th><th>Next run</th><th>Runs</th><th>Errors</th><th></th></tr>`)
	for _, task := range tasks.Tasks {
		h.raw(`<tr><td class="`)
		h.text(onOff(task.Enabled, "on", "off"))
		h.raw(`">`)
		h.text(task.Name)
		h.raw(`</td>`)
		h.cell(task.ScheduleType + " " + task.ScheduleValue)
		h.cell(formatOptional(task.NextRun))
		h.cell(fmt.Sprint(task.RunCount))
		h.cell(fmt.Sprint(task.ErrorCount))

		id := templ.EscapeString(task.ID)
		h.raw(`<td><button onclick="dbopsPost('/api/task/` + id + `/toggle')">`)
		h.text(onOff(task.Enabled, "Disable", "Enable"))
		h.raw(`</button> <button onclick="dbopsPost('/api/task/` + id + `/run')">Run</button></td></tr>`)
	}
	h.raw(`</table></section>`)
}

func actionsSection(h *writer, reports []dto.ReportDTO) {
	h.raw(`<section><h3>Maintenance</h3>`)
	h.raw(`<button onclick="dbopsPost('/api/backup')">Backup now</button> `)
	h.raw(`<button onclick="dbopsPost('/api/optimize')">Optimize tables</button> `)
	h.raw(`<button onclick="dbopsPost('/api/generate_report','type=health')">Health report</button> `)
	h.raw(`<button onclick="dbopsPost('/api/generate_report','type=performance')">Performance report</button>`)

	h.raw(`<h4>Reports</h4>`)
	if len(reports) == 0 {
		h.raw(`<p>No reports generated yet.</p></section>`)
		return
	}
	h.raw(`<ul>`)
	for _, r := range reports {
		h.raw(`<li><a href="/download/report/`)
		h.text(r.Name)
		h.raw(`">`)
		h.text(r.Name)
		h.raw(`</a> (`)
		h.text(r.Timestamp.Format(timeLayout))
		h.raw(`)</li>`)
	}
	h.raw(`</ul></section>`)
}

func onOff(v bool, on, off string) string {
	if v {
		return on
	}
	return off
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(timeLayout)
}
