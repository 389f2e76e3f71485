package render

const pageTemplates = `
{{define "head"}}
<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; background: #0e1117; color: #fafafa; }
h1 { font-size: 1.5rem; }
a { color: #79b8ff; }
table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
th, td { padding: 0.5rem 0.9rem; text-align: right; border-bottom: 1px solid #31333f; }
th { text-align: right; color: #a3a8b8; font-weight: 600; }
th:first-child, td:first-child { text-align: left; }
tr.flash { animation: flash 1s linear infinite; }
@keyframes flash { 50% { background: #3d1f1f; } }
td.up { color: #09ab3b; }
td.down { color: #ff2b2b; }
td.flat { color: #a3a8b8; }
td.overdue { color: #ffa421; font-weight: 700; }
span.stale { color: #a3a8b8; font-size: 0.8rem; }
tr.avg td { border-top: 2px solid #31333f; font-weight: 700; }
form.bar { margin-top: 1.5rem; display: flex; gap: 0.75rem; flex-wrap: wrap; align-items: center; }
input, select, button { background: #262730; color: #fafafa; border: 1px solid #31333f; border-radius: 4px; padding: 0.4rem 0.6rem; }
button { cursor: pointer; }
.error { color: #ff2b2b; margin: 0.5rem 0; }
.notice { color: #09ab3b; margin: 0.5rem 0; }
.muted { color: #a3a8b8; font-size: 0.85rem; }
</style>
</head>
<body>
{{end}}

{{define "dashboard"}}{{template "head" .}}
<meta http-equiv="refresh" content="{{.RefreshSeconds}}">
<h1>📊 Live Prices with P2L</h1>
<p class="muted">Signed in as {{.Username}}{{if .IsAdmin}} · <a href="/admin/users">Manage users</a>{{end}} · <a href="/logout">Log out</a> · {{clock .GeneratedAt}}</p>
{{if .Notice}}<p class="notice">{{.Notice}}</p>{{end}}
{{if .NoData}}
<p class="error">No data: the quote source returned nothing for this cycle. Table and averages are withheld until data arrives.</p>
{{else}}
<form class="bar" method="get" action="/">
  <label>Sort by
    <select name="sort" onchange="this.form.submit()">
      <option value="default" {{if eq .SortOption "default"}}selected{{end}}>Default</option>
      <option value="rundown" {{if eq .SortOption "rundown"}}selected{{end}}>Run Down 🔽</option>
      <option value="change" {{if eq .SortOption "change"}}selected{{end}}>Change % 🔽</option>
    </select>
  </label>
  <button formmethod="post" formaction="/api/refresh">🔄 Refresh now</button>
</form>
<table>
  <tr><th>Stock</th><th>Live</th><th>Reference</th><th>Change</th><th>Change %</th><th>P2L %</th><th>Run Down</th></tr>
  {{range .Rows}}
  <tr{{if .Alerting}} class="flash"{{end}}>
    <td>{{.Ticker}}{{if .Stale}} <span class="stale">(stale)</span>{{end}}</td>
    <td>{{money .Last}}</td>
    <td>{{money .Reference}}</td>
    <td class="{{changeClass .Change}}">{{money .Change}}</td>
    <td class="{{changeClass .Change}}">{{nullpct .ChangePercent}}</td>
    <td class="{{changeClass .P2LPercent}}">{{pct .P2LPercent}}</td>
    {{if .OverGrace}}<td class="overdue">🟠 {{.RunDownMinutes}}</td>{{else}}<td>{{.RunDownMinutes}}</td>{{end}}
  </tr>
  {{end}}
  <tr class="avg"><td>Average P2L</td><td></td><td></td><td></td><td></td><td class="{{changeClass .AvgP2L}}">{{pct .AvgP2L}}</td><td></td></tr>
</table>
{{end}}
<form class="bar" method="post" action="/settings">
  <label>Watch-list <input name="watchlist" value="{{.Watchlist}}" placeholder="TICKER1, TICKER2" size="30"></label>
  <label>Threshold % <input name="threshold" value="{{.Threshold}}" size="5"></label>
  <label><input type="checkbox" name="sound" {{if .SoundEnabled}}checked{{end}}> Sound</label>
  <label><input type="checkbox" name="telegram" {{if .TelegramOn}}checked{{end}}> Telegram</label>
  <button type="submit">Save</button>
</form>
{{if .Sound}}
<audio id="alert-sound" src="{{.Sound.Src}}" autoplay></audio>
<script>
(function () {
  var audio = document.getElementById("alert-sound");
  var remaining = {{.Sound.Repeats}} - 1;
  audio.addEventListener("ended", function () {
    if (remaining > 0) { remaining--; audio.play(); }
  });
})();
</script>
{{end}}
</body></html>{{end}}

{{define "login"}}{{template "head" .}}
<h1>📊 Live Prices with P2L</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form class="bar" method="post" action="/login">
  <label>Username <input name="username" autofocus></label>
  <label>Password <input name="password" type="password"></label>
  <button type="submit">Log in</button>
</form>
</body></html>{{end}}

{{define "users"}}{{template "head" .}}
<h1>👥 User management</h1>
<p class="muted">Signed in as {{.Username}} · <a href="/">Back to dashboard</a></p>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Notice}}<p class="notice">{{.Notice}}</p>{{end}}
<table>
  <tr><th>Username</th><th>Role</th><th></th></tr>
  {{range .Users}}
  <tr>
    <td>{{.Username}}</td>
    <td>{{.Role}}</td>
    <td>
      {{if ne .Username "admin"}}
      <form method="post" action="/admin/users/delete" style="display:inline">
        <input type="hidden" name="username" value="{{.Username}}">
        <button type="submit">Delete</button>
      </form>
      {{end}}
    </td>
  </tr>
  {{end}}
</table>
<h2>Add user</h2>
<form class="bar" method="post" action="/admin/users">
  <label>Username <input name="username"></label>
  <label>Password <input name="password" type="password"></label>
  <label>Role
    <select name="role">
      <option value="user">user</option>
      <option value="admin">admin</option>
    </select>
  </label>
  <button type="submit">Add</button>
</form>
<h2>Change password</h2>
<form class="bar" method="post" action="/admin/users/password">
  <label>Username <input name="username"></label>
  <label>New password <input name="password" type="password"></label>
  <button type="submit">Update</button>
</form>
</body></html>{{end}}
`
