// Package metrics exposes the sync engine's runtime counters over HTTP for
// Prometheus to scrape.
//
// Dependency grounded on the example pack's ghjramos-aistore, which carries
// github.com/prometheus/client_golang as its metrics stack; this repo has no
// comparable metrics file of its own to imitate line-by-line, so the
// counters/histograms below follow client_golang's own idiomatic
// promauto/promhttp wiring.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collectors bundles every metric this repo's sync engine reports.
type Collectors struct {
	SnapshotsSent     prometheus.Counter
	SnapshotsReceived prometheus.Counter
	SnapshotsDropped  *prometheus.CounterVec // label "reason": duplicate_or_out_of_order, own_echo, malformed_op (one per failed op)
	OpsRelayed        prometheus.Counter
	FlushLatency      prometheus.Histogram
	ConnectedPeers    prometheus.Gauge
}

// NewCollectors registers every collector against reg and returns them.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		SnapshotsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "syncengine",
			Name:      "snapshots_sent_total",
			Help:      "Snapshots sent to peers.",
		}),
		SnapshotsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "syncengine",
			Name:      "snapshots_received_total",
			Help:      "Snapshots received from peers.",
		}),
		SnapshotsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncengine",
			Name:      "snapshots_dropped_total",
			Help:      "Snapshots dropped before being applied, by reason.",
		}, []string{"reason"}),
		OpsRelayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "syncengine",
			Name:      "ops_relayed_total",
			Help:      "Operations re-broadcast to other peers after being applied from a remote snapshot.",
		}),
		FlushLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "syncengine",
			Name:      "flush_latency_seconds",
			Help:      "Time spent building and sending one FlushDirty pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		ConnectedPeers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "syncengine",
			Name:      "connected_peers",
			Help:      "Currently connected peers (server only).",
		}),
	}
}

// ObserveFlush is a convenience around FlushLatency for timing a FlushDirty
// call: defer c.ObserveFlush(time.Now())().
func (c *Collectors) ObserveFlush(start time.Time) func() {
	return func() {
		c.FlushLatency.Observe(time.Since(start).Seconds())
	}
}

// Server serves /metrics on its own bind address, independent of the game
// transport's listener.
type Server struct {
	http *http.Server
	log  *zap.Logger
}

// NewServer wraps a registry's HTTP handler at addr.
func NewServer(addr string, reg *prometheus.Registry, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &Server{
		http: &http.Server{Addr: addr, Handler: mux},
		log:  log,
	}
}

// Serve blocks until the listener fails or Shutdown is called.
func (s *Server) Serve() error {
	s.log.Info("metrics server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the metrics HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
