package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/touchwake/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
	"delay": func(d time.Duration) string {
		if d == 0 {
			return "until resume"
		}
		return fmt.Sprintf("%dms", d.Milliseconds())
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Touch Wake</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.awake { color: green; font-weight: bold; }
.waiting { color: orange; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Touch Wake<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>State</h2>
<table>
<tr><th>Mode</th><td id="mode" class="{{if eq .Mode "AWAKE"}}awake{{else if eq .Mode "SUSPENDED_DIGITIZER_OFF"}}off{{else}}waiting{{end}}">{{.Mode}}</td></tr>
<tr><th>Enabled</th><td id="enabled">{{yesno .State.Enabled}}</td></tr>
<tr><th>Suspended</th><td id="suspended">{{yesno .State.Suspended}}</td></tr>
<tr><th>Touch kept on</th><td id="keep-awake">{{yesno .State.KeepAwake}}</td></tr>
<tr><th>Screen-off by key</th><td>{{if .State.TimedOut}}no{{else}}yes{{end}}</td></tr>
<tr><th>Touch-off delay</th><td id="delay">{{delay .State.Delay}}</td></tr>
<tr><th>Wake lock</th><td>{{if .State.WakeLockHeld}}held{{else}}released{{end}}</td></tr>
<tr><th>Last event</th><td id="last-event">{{if .LastEvent}}{{.LastEvent}}{{else}}none{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}none{{end}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Suspends</th><td>{{.State.Counts.Suspends}}</td></tr>
<tr><th>Resumes</th><td>{{.State.Counts.Resumes}}</td></tr>
<tr><th>Touch-offs</th><td>{{.State.Counts.TouchOffs}}</td></tr>
<tr><th>Wakes</th><td>{{.State.Counts.Wakes}}</td></tr>
<tr><th>Dropped touches</th><td>{{.State.Counts.DroppedTouches}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Digitizer</th><td>{{.Config.Digitizer}}</td></tr>
<tr><th>Wake lock kind</th><td>{{.Config.WakeLock}}</td></tr>
<tr><th>Suspend source</th><td>{{.Config.SuspendSource}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/enabled">enabled</a> | <a href="/delay">delay</a> | <a href="/version">version</a> | <a href="/debug">debug</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var modeEl = document.getElementById("mode");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function yesno(b) { return b ? "yes" : "no"; }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");

    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(e) {
      try {
        var msg = JSON.parse(e.data).touchwake;
        if (!msg) { return; }
        modeEl.textContent = msg.mode;
        modeEl.className = msg.mode === "AWAKE" ? "awake" : msg.mode === "SUSPENDED_DIGITIZER_OFF" ? "off" : "waiting";
        document.getElementById("enabled").textContent = yesno(msg.enabled);
        document.getElementById("suspended").textContent = yesno(msg.suspended);
        document.getElementById("keep-awake").textContent = yesno(msg.keep_awake);
        document.getElementById("last-event").textContent = msg.event;
      } catch (err) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() and State.Mode() methods but the template is
	// simpler with plain fields.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Mode   string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Mode:     string(snap.State.Mode()),
	}
	indexTmpl.Execute(w, data)
}
