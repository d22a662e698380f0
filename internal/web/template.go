package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/torchd/internal/pattern"
	"github.com/sweeney/torchd/internal/status"
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
	"onOff": status.StateString,
	"seconds": func(d time.Duration) string {
		return fmt.Sprintf("%.1fs", d.Seconds())
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Torch</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
form { display: inline-block; margin: 0 4px 4px 0; }
button { font-family: monospace; padding: 6px 12px; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.notice { color: #b00; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Torch{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

{{if not .HasDevice}}<p class="notice">No flash available</p>{{end}}
{{with .LastNotice}}<p class="notice">{{.Message}} ({{.Time.UTC.Format "15:04:05"}})</p>{{end}}

<h2>State</h2>
<table>
<tr><th>Flash</th><td id="flash-state" class="{{if .FlashOn}}on{{else}}off{{end}}">{{onOff .FlashOn}}</td></tr>
<tr><th>Strobe</th><td class="{{if .Strobing}}on{{else}}off{{end}}">{{onOff .Strobing}}</td></tr>
<tr><th>SOS</th><td class="{{if .SOSActive}}on{{else}}off{{end}}">{{if .SOSActive}}sending{{else}}idle{{end}}</td></tr>
<tr><th>Timer</th><td>{{if .TimerRemaining}}off in {{seconds .TimerRemaining}}{{else}}none{{end}}</td></tr>
<tr><th>Device</th><td>{{if .HasDevice}}{{.DeviceID}}{{else}}none{{end}}</td></tr>
</table>

<h2>Controls{{if .AuthRequired}} (login required){{end}}</h2>
<form method="post" action="/api/flash"><input type="hidden" name="on" value="{{not .FlashOn}}"><button>Flash {{if .FlashOn}}off{{else}}on{{end}}</button></form>
<form method="post" action="/api/strobe"><input type="hidden" name="on" value="{{not .Strobing}}"><button>Strobe {{if .Strobing}}off{{else}}on{{end}}</button></form>
<form method="post" action="/api/sos"><button>SOS</button></form>
<br>
{{range .Presets}}<form method="post" action="/api/timer"><input type="hidden" name="duration_ms" value="{{.Milliseconds}}"><button>Off in {{.}}</button></form>{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Torch ON</th><td>{{.Counts.Torch.On}}</td></tr>
<tr><th>Torch OFF</th><td>{{.Counts.Torch.Off}}</td></tr>
<tr><th>Notices</th><td>{{.Counts.Torch.Notices}}</td></tr>
<tr><th>Strobe runs</th><td>{{.Counts.Patterns.StrobeRuns}}</td></tr>
<tr><th>SOS runs</th><td>{{.Counts.Patterns.SOSRuns}}</td></tr>
<tr><th>Timers fired</th><td>{{.Counts.Patterns.TimersFired}}</td></tr>
<tr><th>Shakes</th><td>{{.Counts.Shakes}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Platform</th><td>{{.Config.Platform}}</td></tr>
<tr><th>Strobe interval</th><td>{{.Config.StrobeMs}}ms</td></tr>
<tr><th>Shake</th><td>{{if eq .Config.SensorPollMs 0}}disabled{{else}}&gt; {{.Config.ShakeThreshold}} m/s² ({{.Config.ShakeMode}}, poll {{.Config.SensorPollMs}}ms, cooldown {{.Config.ShakeCooldownMs}}ms){{end}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="https://unpkg.com/mqtt@5/dist/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "torchd/torch/state";
  var dot = document.getElementById("live-dot");
  var el = document.getElementById("flash-state");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.torch) {
        el.textContent = msg.torch.state;
        el.className = msg.torch.state === "ON" ? "on" : "off";
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, authRequired bool) {
	// Snapshot has Uptime() and TimerRemaining() methods but the template
	// needs plain fields.
	data := struct {
		status.Snapshot
		Uptime         time.Duration
		TimerRemaining time.Duration
		Presets        []time.Duration
		AuthRequired   bool
	}{
		Snapshot:       snap,
		Uptime:         snap.Uptime(),
		TimerRemaining: snap.TimerRemaining(),
		Presets:        pattern.TimerPresets,
		AuthRequired:   authRequired,
	}
	indexTmpl.Execute(w, data)
}
