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
	Event          string       `json:"event,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	Torch          string       `json:"torch"`
	Strobe         bool         `json:"strobe"`
	SOS            bool         `json:"sos"`
	TimerDeadline  string       `json:"timer_deadline,omitempty"`
	TimerRemaining int64        `json:"timer_remaining_ms"`
	Device         string       `json:"device"`
	Ready          bool         `json:"ready"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
	StartTime      string       `json:"start_time"`
	Timestamp      string       `json:"timestamp"`
	MQTT           MQTTStatus   `json:"mqtt"`
	Counts         CountsJSON   `json:"event_counts"`
	LastNotice     *NoticeJSON  `json:"last_notice,omitempty"`
	Network        *NetworkJSON `json:"network,omitempty"`
	Config         ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of activity counts.
type CountsJSON struct {
	TorchOn     int `json:"torch_on"`
	TorchOff    int `json:"torch_off"`
	Notices     int `json:"notices"`
	StrobeRuns  int `json:"strobe_runs"`
	SOSRuns     int `json:"sos_runs"`
	TimersFired int `json:"timers_fired"`
	Shakes      int `json:"shakes"`
}

// NoticeJSON is the JSON representation of the last notice.
type NoticeJSON struct {
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
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
	Platform        string  `json:"platform"`
	StrobeMs        int64   `json:"strobe_ms"`
	ShakeThreshold  float64 `json:"shake_threshold"`
	ShakeCooldownMs int64   `json:"shake_cooldown_ms"`
	ShakeMode       string  `json:"shake_mode"`
	SensorPollMs    int64   `json:"sensor_poll_ms"`
	HeartbeatMs     int64   `json:"heartbeat_ms"`
	Broker          string  `json:"broker"`
	HTTPPort        string  `json:"http_port"`
	WSBroker        string  `json:"ws_broker,omitempty"`
}

// StateString renders a torch state the way events and status report it.
func StateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func buildInner(snap Snapshot) StatusInner {
	device := snap.DeviceID
	if !snap.HasDevice {
		device = "NONE"
	}

	inner := StatusInner{
		Torch:          StateString(snap.FlashOn),
		Strobe:         snap.Strobing,
		SOS:            snap.SOSActive,
		TimerRemaining: snap.TimerRemaining().Milliseconds(),
		Device:         device,
		Ready:          snap.HasDevice,
		UptimeSeconds:  int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:      snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:      snap.Now.UTC().Format(time.RFC3339),
		MQTT:           MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			TorchOn:     snap.Counts.Torch.On,
			TorchOff:    snap.Counts.Torch.Off,
			Notices:     snap.Counts.Torch.Notices,
			StrobeRuns:  snap.Counts.Patterns.StrobeRuns,
			SOSRuns:     snap.Counts.Patterns.SOSRuns,
			TimersFired: snap.Counts.Patterns.TimersFired,
			Shakes:      snap.Counts.Shakes,
		},
		Config: ConfigJSON{
			Platform:        snap.Config.Platform,
			StrobeMs:        snap.Config.StrobeMs,
			ShakeThreshold:  snap.Config.ShakeThreshold,
			ShakeCooldownMs: snap.Config.ShakeCooldownMs,
			ShakeMode:       snap.Config.ShakeMode,
			SensorPollMs:    snap.Config.SensorPollMs,
			HeartbeatMs:     snap.Config.HeartbeatMs,
			Broker:          snap.Config.Broker,
			HTTPPort:        snap.Config.HTTPPort,
			WSBroker:        snap.Config.WSBroker,
		},
	}
	if !snap.TimerDeadline.IsZero() {
		inner.TimerDeadline = snap.TimerDeadline.UTC().Format(time.RFC3339Nano)
	}
	if n := snap.LastNotice; n != nil {
		inner.LastNotice = &NoticeJSON{
			Message:   n.Message,
			Timestamp: n.Time.UTC().Format(time.RFC3339),
		}
		if n.Err != nil {
			inner.LastNotice.Error = n.Err.Error()
		}
	}
	return inner
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
