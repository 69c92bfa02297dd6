package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/nixie-clock/internal/status"
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
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Nixie Clock</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.tubes { font-size: 2.4em; color: #ff8c1a; background: #111; padding: 0.2em 0.4em; letter-spacing: 0.2em; white-space: pre; }
.on { color: green; font-weight: bold; }
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
<h1>Nixie Clock{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<p class="tubes" id="tubes">{{.Clock.Shown}}</p>

<h2>Clock</h2>
<table>
<tr><th>Power</th><td class="{{if .Clock.On}}on{{else}}off{{end}}">{{if .Clock.On}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>Mode</th><td id="mode">{{orUnknown (printf "%s" .Clock.Mode)}}</td></tr>
<tr><th>Time</th><td id="time">{{.Clock.Time}}</td></tr>
<tr><th>Divergence</th><td id="divergence">{{orUnknown .Clock.Divergence}}</td></tr>
<tr><th>Cycles</th><td>{{.Clock.Cycles}}</td></tr>
<tr><th>Next sweep</th><td>cycle {{.Clock.NextSweep}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Adjust enter</th><td>{{.Counts.AdjustEnter}}</td></tr>
<tr><th>Adjust exit</th><td>{{.Counts.AdjustExit}}</td></tr>
<tr><th>Time set</th><td>{{.Counts.TimeSet}}</td></tr>
<tr><th>Sweeps</th><td>{{.Counts.Sweeps}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Core clock</th><td>{{.Config.MHz}}MHz</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Long press</th><td>{{.Config.LongPressMs}}ms</td></tr>
<tr><th>Sweep interval</th><td>{{.Config.SweepIntervalMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> <a href="/metrics">metrics</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "home/nixie-clock/events";
  var dot = document.getElementById("live-dot");
  var modeEl = document.getElementById("mode");
  var timeEl = document.getElementById("time");
  var divEl = document.getElementById("divergence");

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
      if (!msg.clock) {
        return;
      }
      if (msg.clock.event === "ADJUST_ENTER") {
        modeEl.textContent = "ADJUSTING";
      } else if (msg.clock.event === "ADJUST_EXIT") {
        modeEl.textContent = "NORMAL";
      }
      if (msg.clock.time) {
        timeEl.textContent = msg.clock.time;
      }
      if (msg.clock.divergence) {
        divEl.textContent = msg.clock.divergence;
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
