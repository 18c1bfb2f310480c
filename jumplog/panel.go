package jumplog

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/gjump/entrylog"
)

// panelTmpl lists entries newest last. Times are rendered server-side in the
// local zone; jump and clear call the JSON API.
var panelTmpl = template.Must(template.New("panel").Funcs(template.FuncMap{
	"localTime": func(ms int64) string {
		return time.UnixMilli(ms).Local().Format("15:04:05")
	},
}).Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>gjump</title>
<style>
body{font:14px system-ui,sans-serif;margin:0;padding:8px;max-width:420px}
form{display:flex;gap:4px;margin-bottom:8px}
input{flex:1}
li{cursor:pointer;padding:4px;border-bottom:1px solid #ddd;list-style:none}
li:hover{background:#f3f3f3}
time{color:#888;margin-right:6px}
ul{padding:0;margin:0}
</style></head>
<body>
<form method="get" action="/"><input name="q" value="{{.Query}}" placeholder="filter"><button>Filter</button>
<button type="button" onclick="if(confirm('Clear all captured entries?'))fetch('/api/entries',{method:'DELETE'}).then(()=>location.reload())">Clear</button></form>
{{if .Error}}<p>{{.Error}}</p>{{end}}
<ul>
{{range .Entries}}<li data-id="{{.ID}}" onclick="fetch('/api/entries/'+encodeURIComponent(this.dataset.id)+'/jump',{method:'POST'}).then(r=>{if(!r.ok)r.json().then(e=>alert(e.error))})"><time>{{localTime .Time}}</time>{{.Text}}</li>
{{else}}<li>No entries.</li>
{{end}}</ul>
</body></html>`))

type panelData struct {
	Query   string
	Entries []entrylog.Entry
	Error   string
}

func panelHandler(nav Navigator, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := panelData{Query: r.URL.Query().Get("q")}
		entries, err := nav.Entries(r.Context(), data.Query)
		if err != nil {
			data.Error = err.Error()
		}
		data.Entries = entries

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := panelTmpl.Execute(w, data); err != nil {
			logger.Warn("jumplog: render panel", "error", err)
		}
	}
}
