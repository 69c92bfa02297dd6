package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Clock         ClockJSON    `json:"clock"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ClockJSON is the JSON representation of the controller state.
type ClockJSON struct {
	Power      string `json:"power"`
	Mode       string `json:"mode"`
	Display    string `json:"display"`
	Time       string `json:"time"`
	Divergence string `json:"divergence,omitempty"`
	Cycles     uint64 `json:"cycles"`
	NextSweep  uint64 `json:"next_sweep_cycle"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	AdjustEnter int `json:"adjust_enter"`
	AdjustExit  int `json:"adjust_exit"`
	TimeSet     int `json:"time_set"`
	Sweeps      int `json:"sweeps"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	MHz             uint64 `json:"mhz"`
	DebounceMs      int64  `json:"debounce_ms"`
	LongPressMs     int64  `json:"long_press_ms"`
	SweepIntervalMs int64  `json:"sweep_interval_ms"`
	HeartbeatMs     int64  `json:"heartbeat_ms"`
	Broker          string `json:"broker"`
	HTTPPort        string `json:"http_port"`
	WSBroker        string `json:"ws_broker,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	power := "OFF"
	if snap.Clock.On {
		power = "ON"
	}
	mode := string(snap.Clock.Mode)
	if mode == "" {
		mode = "UNKNOWN"
	}

	return StatusInner{
		Clock: ClockJSON{
			Power:      power,
			Mode:       mode,
			Display:    snap.Clock.Shown,
			Time:       snap.Clock.Time.String(),
			Divergence: snap.Clock.Divergence,
			Cycles:     snap.Clock.Cycles,
			NextSweep:  snap.Clock.NextSweep,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			AdjustEnter: snap.Counts.AdjustEnter,
			AdjustExit:  snap.Counts.AdjustExit,
			TimeSet:     snap.Counts.TimeSet,
			Sweeps:      snap.Counts.Sweeps,
		},
		Config: ConfigJSON{
			MHz:             snap.Config.MHz,
			DebounceMs:      snap.Config.DebounceMs,
			LongPressMs:     snap.Config.LongPressMs,
			SweepIntervalMs: snap.Config.SweepIntervalMs,
			HeartbeatMs:     snap.Config.HeartbeatMs,
			Broker:          snap.Config.Broker,
			HTTPPort:        snap.Config.HTTPPort,
			WSBroker:        snap.Config.WSBroker,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
