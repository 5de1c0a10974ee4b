// Package metrics exposes Prometheus collectors for the alert pipeline.
//
// Labels are closed enums (result, type, priority, channel) so cardinality
// stays fixed no matter how large the inventory grows.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logx "preppertrack/pkg/logx"
)

const namespace = "preppertrack"

var (
	// Scans counts derivation scans by result ("ok" | "error").
	Scans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Notification derivation scans.",
		},
		[]string{"result"},
	)

	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of a derivation scan.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	// NotificationsAdded counts records newly merged into the store.
	NotificationsAdded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_added_total",
			Help:      "Notification records newly added to the store.",
		},
		[]string{"type", "priority"},
	)

	// Deliveries counts side-channel outcomes: channel is native|sound|email,
	// result is sent|skipped|failed.
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Delivery gate outcomes per channel.",
		},
		[]string{"channel", "result"},
	)

	// Imports counts import lifecycle steps: staged|confirmed|partial|cancelled|expired|rejected.
	Imports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Import staging and confirmation outcomes.",
		},
		[]string{"result"},
	)

	UnreadNotifications = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notifications_unread",
			Help:      "Unread notifications after the last scan.",
		},
	)
)

func init() {
	prometheus.MustRegister(Scans, ScanDuration, NotificationsAdded, Deliveries, Imports, UnreadNotifications)
}

// Server serves /metrics on a dedicated listener.
type Server struct {
	addr string
	log  logx.Logger
	srv  *http.Server
}

func NewServer(addr string, log logx.Logger, opts ...ServerOption) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	var o serverOptions
	for _, fn := range opts {
		fn(&o)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", withToken(o.token, promhttp.Handler().ServeHTTP))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if o.pprof {
		mountPprof(mux, o.token)
	}
	return &Server{
		addr: addr,
		log:  log,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("metrics listener started", logx.String("addr", s.addr))
		errCh <- s.srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		err := s.srv.Shutdown(shutCtx)
		<-errCh
		return err
	}
}

// Handler exposes the /metrics mux for tests and embedding.
func (s *Server) Handler() http.Handler { return s.srv.Handler }
