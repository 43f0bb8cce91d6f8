package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Engine holds the Prometheus collectors of the comment engine.
// A nil *Engine is valid and records nothing, which keeps tests free of
// registry setup.
type Engine struct {
	Registry *prometheus.Registry

	enqueued   *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	dispatched *prometheus.CounterVec
	fallbacks  *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	depth      *prometheus.GaugeVec
	sessions   prometheus.Gauge
}

// NewEngine registers the engine collectors plus Go and process collectors
// on a fresh registry.
func NewEngine() *Engine {
	reg := prometheus.NewRegistry()
	e := &Engine{
		Registry: reg,
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "live_comments_enqueued_total",
			Help: "Comments admitted to a session queue.",
		}, []string{"platform"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "live_comments_rejected_total",
			Help: "Comments refused at ingest, by reason.",
		}, []string{"reason"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "live_dispatch_total",
			Help: "Finished dispatches by originating tier and final state.",
		}, []string{"tier", "state"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "live_dispatch_fallback_total",
			Help: "Tier fallback transitions.",
		}, []string{"from", "to"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "live_dispatch_seconds",
			Help:    "Latency of a single tier attempt.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"tier"}),
		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "live_queue_depth",
			Help: "Entries waiting in a session queue.",
		}, []string{"session"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "live_sessions_active",
			Help: "Open livestream sessions.",
		}),
	}
	reg.MustRegister(
		e.enqueued, e.rejected, e.dispatched, e.fallbacks, e.latency, e.depth, e.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return e
}

func (e *Engine) Enqueued(platform string) {
	if e == nil {
		return
	}
	e.enqueued.WithLabelValues(platform).Inc()
}

func (e *Engine) Rejected(reason string) {
	if e == nil {
		return
	}
	e.rejected.WithLabelValues(reason).Inc()
}

func (e *Engine) Dispatched(tier, state string) {
	if e == nil {
		return
	}
	e.dispatched.WithLabelValues(tier, state).Inc()
}

func (e *Engine) Fallback(from, to string) {
	if e == nil {
		return
	}
	e.fallbacks.WithLabelValues(from, to).Inc()
}

func (e *Engine) ObserveAttempt(tier string, seconds float64) {
	if e == nil {
		return
	}
	e.latency.WithLabelValues(tier).Observe(seconds)
}

func (e *Engine) QueueDepth(session string, depth int) {
	if e == nil {
		return
	}
	e.depth.WithLabelValues(session).Set(float64(depth))
}

// SessionOpened and SessionClosed track live sessions; SessionClosed also
// drops the session's depth series.
func (e *Engine) SessionOpened() {
	if e == nil {
		return
	}
	e.sessions.Inc()
}

func (e *Engine) SessionClosed(session string) {
	if e == nil {
		return
	}
	e.sessions.Dec()
	e.depth.DeleteLabelValues(session)
}
