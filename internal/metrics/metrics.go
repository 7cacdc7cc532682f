// Package metrics holds the client's Prometheus collectors.
// Labels are bounded: no per-player or per-entity label values.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Frame loop
	frameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_frame_duration_seconds",
		Help:    "Time spent in a scene frame tick",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02},
	})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_render_duration_seconds",
		Help:    "Time spent rasterizing a frame",
		Buckets: []float64{0.005, 0.01, 0.02, 0.033, 0.05, 0.1},
	})

	applyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_snapshot_apply_duration_seconds",
		Help:    "Time spent applying a snapshot diff",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01},
	})

	// Scene contents
	entityCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_entities",
		Help: "Current number of reconciled entities",
	})

	effectCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_effects_active",
		Help: "Transient effects currently running",
	})

	animationCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_animations_active",
		Help: "Pose animations currently in flight",
	})

	liveResources = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_gpu_resources_live",
		Help: "Allocated meshes, materials and textures not yet disposed",
	})

	entityChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_entity_changes_total",
		Help: "Entity lifecycle changes applied by the reconciler",
	}, []string{"change"}) // Bounded: "created", "updated", "removed"

	// Network
	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_messages_received_total",
		Help: "Inbound messages by kind",
	}, []string{"kind"}) // Bounded: protocol kinds plus "unknown"

	decodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_decode_errors_total",
		Help: "Inbound frames that failed to decode",
	})

	inputSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_input_sent_total",
		Help: "Input payloads transmitted upstream",
	})

	inputDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_input_dropped_total",
		Help: "Input payloads not transmitted",
	}, []string{"reason"}) // Bounded: "throttled", "send_failed", "superseded"

	connected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_connected",
		Help: "1 while the session is joined",
	})

	// Debug HTTP
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arena_http_request_duration_seconds",
		Help:    "Debug API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern

	requestRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_http_rejected_total",
		Help: "Debug API requests rejected",
	}, []string{"reason"}) // Bounded: "rate_limit", "auth"
)

// RecordFrame records frame tick timing
func RecordFrame(d time.Duration) {
	frameDuration.Observe(d.Seconds())
}

// RecordRender records rasterization timing
func RecordRender(d time.Duration) {
	renderDuration.Observe(d.Seconds())
}

// RecordApply records snapshot apply timing and the diff sizes
func RecordApply(d time.Duration, created, updated, removed int) {
	applyDuration.Observe(d.Seconds())
	entityChanges.WithLabelValues("created").Add(float64(created))
	entityChanges.WithLabelValues("updated").Add(float64(updated))
	entityChanges.WithLabelValues("removed").Add(float64(removed))
}

// UpdateScene sets the scene gauges
func UpdateScene(entities, effects, animations, resources int) {
	entityCount.Set(float64(entities))
	effectCount.Set(float64(effects))
	animationCount.Set(float64(animations))
	liveResources.Set(float64(resources))
}

// RecordMessage counts an inbound message by kind
func RecordMessage(kind string) {
	messagesReceived.WithLabelValues(kind).Inc()
}

// RecordDecodeError counts a frame that failed to decode
func RecordDecodeError() {
	decodeErrors.Inc()
}

// RecordInputSent counts a transmitted input payload
func RecordInputSent() {
	inputSent.Inc()
}

// RecordInputDropped counts a payload that was not transmitted.
// reason must be one of: "throttled", "send_failed", "superseded"
func RecordInputDropped(reason string) {
	inputDropped.WithLabelValues(reason).Inc()
}

// SetConnected updates the connection gauge
func SetConnected(ok bool) {
	if ok {
		connected.Set(1)
		return
	}
	connected.Set(0)
}

// RecordRequest records debug API request latency
func RecordRequest(method, endpoint string, d time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

// RecordRejected counts a rejected debug API request.
// reason must be one of: "rate_limit", "auth"
func RecordRejected(reason string) {
	requestRejected.WithLabelValues(reason).Inc()
}

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}
