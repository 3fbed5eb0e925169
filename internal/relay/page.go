package relay

import (
	"html/template"
	"net/http"

	"github.com/osse101/adlink/internal/event"
	"github.com/osse101/adlink/internal/logger"
)

var pageTemplate = template.Must(template.New("relay").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 3rem auto; max-width: 28rem; text-align: center; color: #1f2937; }
h1 { font-size: 1.25rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{- if .Payload}}
<script>
(function () {
  var payload = {{.Payload}};
  if (window.opener && !window.opener.closed) {
    window.opener.postMessage(payload, {{.TargetOrigin}});
  }
  setTimeout(function () { window.close(); }, 1500);
})();
</script>
{{- end}}
</body>
</html>
`))

type pageData struct {
	Title        string
	Message      string
	Payload      *event.CallbackPayloadV1
	TargetOrigin string
}

func renderPage(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		logger.FromContext(r.Context()).Error(LogMsgRenderFailed, "error", err)
	}
}
