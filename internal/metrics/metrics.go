// Package metrics provides Prometheus metrics for the torch daemon.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/torchd/internal/events"
)

var (
	torchOn = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "torchd",
		Name:      "torch_on",
		Help:      "1 if the torch is lit",
	})

	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "torchd",
		Name:      "transitions_total",
		Help:      "Torch state transitions by source",
	}, []string{"source", "state"})

	notices = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "torchd",
		Name:      "notices_total",
		Help:      "User-visible notices raised",
	})

	patternRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "torchd",
		Name:      "pattern_runs_total",
		Help:      "Strobe, SOS and timer starts",
	}, []string{"pattern"})

	patternActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "torchd",
		Name:      "pattern_active",
		Help:      "1 while a pattern is running",
	}, []string{"pattern"})

	shakes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "torchd",
		Name:      "shakes_total",
		Help:      "Shakes detected",
	})

	mqttConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "torchd",
		Subsystem: "mqtt",
		Name:      "connected",
		Help:      "1 while connected to the MQTT broker",
	})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Attach subscribes the metrics to bus. Returns a function that detaches them.
func Attach(bus *events.Bus) func() {
	unsubs := []func(){
		bus.OnTorch(func(e events.TorchEvent) {
			torchOn.Set(boolFloat(e.On))
			transitions.WithLabelValues(string(e.Source), stateLabel(e.On)).Inc()
		}),
		bus.OnNotice(func(events.NoticeEvent) {
			notices.Inc()
		}),
		bus.OnPattern(func(e events.PatternEvent) {
			kind := string(e.Kind)
			patternActive.WithLabelValues(kind).Set(boolFloat(e.Active))
			if e.Active {
				patternRuns.WithLabelValues(kind).Inc()
			}
		}),
		bus.OnShake(func(events.ShakeEvent) {
			shakes.Inc()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// SetMQTTConnected records the broker connection state.
func SetMQTTConnected(connected bool) {
	mqttConnected.Set(boolFloat(connected))
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func stateLabel(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
