package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voxelnav"

// Recorder holds the navigation metrics on a private registry so several
// agents (or tests) in one process do not collide.
type Recorder struct {
	reg *prometheus.Registry

	searches    *prometheus.CounterVec
	expansions  prometheus.Counter
	follows     *prometheus.CounterVec
	recalcs     prometheus.Counter
	waypoints   prometheus.Gauge
	searchTicks prometheus.Histogram
}

func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Finished path searches by outcome.",
		}, []string{"outcome"}),
		expansions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_expansions_total",
			Help:      "Search nodes expanded.",
		}),
		follows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "follow_terminal_total",
			Help:      "Follower terminal results by result and reason.",
		}, []string{"result", "reason"}),
		recalcs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recalculations_total",
			Help:      "Searches restarted because a partial path was half consumed.",
		}),
		waypoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "follower_waypoints",
			Help:      "Waypoints left on the active follower.",
		}),
		searchTicks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_ticks",
			Help:      "Ticks from search start to a final result.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
	}
	r.reg.MustRegister(r.searches, r.expansions, r.follows, r.recalcs, r.waypoints, r.searchTicks)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Recorder) SearchFinished(outcome string, ticks int) {
	r.searches.WithLabelValues(outcome).Inc()
	r.searchTicks.Observe(float64(ticks))
}

func (r *Recorder) Expanded(n int) {
	if n > 0 {
		r.expansions.Add(float64(n))
	}
}

func (r *Recorder) FollowTerminal(result, reason string) {
	r.follows.WithLabelValues(result, reason).Inc()
}

func (r *Recorder) Recalculated() { r.recalcs.Inc() }

func (r *Recorder) Waypoints(n int) { r.waypoints.Set(float64(n)) }
