package web

import (
	"html/template"

	"github.com/lisanmuaddib/allowance-go/pkg/approval"
)

var templateFuncs = template.FuncMap{
	"busy": func(s approval.State) bool { return s.Busy() },
}

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Approve max allowance</title>
<style>
body { font-family: sans-serif; max-width: 40rem; margin: 2rem auto; }
.error { background: #fdd; padding: .5rem; }
.success { background: #dfd; padding: .5rem; word-break: break-all; }
.notice { background: #ffd; padding: .5rem; }
form { margin: 1rem 0; }
</style>
</head>
<body>
<h1>Approve max allowance</h1>

{{with .Notice}}<p class="notice">{{.}}</p>{{end}}

<section>
{{if .Account}}
  <p>Connected with <b>{{.Connector}}</b>: <code>{{.Account}}</code></p>
  <form method="post" action="/disconnect"><button type="submit">Disconnect</button></form>
{{else}}
  {{range .Connectors}}
  <form method="post" action="/connect">
    <input type="hidden" name="connector" value="{{.}}">
    <button type="submit">Connect {{.}}</button>
  </form>
  {{else}}
  <p>No wallet connectors configured.</p>
  {{end}}
{{end}}
</section>

<form method="post" action="/network">
  <label>Network
  <select name="chain_id">
  {{range .Networks}}
    <option value="{{.ChainID}}"{{if .Active}} selected{{end}}>{{.Name}} ({{.ChainID}})</option>
  {{end}}
  </select>
  </label>
  <button type="submit">Switch</button>
</form>

<p>Router: {{if .Router}}<code>{{.Router}}</code>{{else}}none on this network{{end}}</p>

<form method="post" action="/approve">
  <label>Token address <input name="token" size="44" value="{{.Snapshot.Token}}" placeholder="0x..."></label>
  <button type="submit"{{if or .Running (busy .Snapshot.State)}} disabled{{end}}>Approve</button>
</form>

{{with .Allowance}}<p>Current allowance: {{.}}</p>{{end}}

{{if .Snapshot.Error}}<p class="error">{{.Snapshot.Error}}</p>{{end}}
{{if .Snapshot.TxHash}}
<p class="success">Submitted: {{if .TxURL}}<a href="{{.TxURL}}">{{.Snapshot.TxHash}}</a>{{else}}{{.Snapshot.TxHash}}{{end}}</p>
{{end}}
<p><small>State: {{.Snapshot.State}}</small></p>
</body>
</html>
`
