// Package service exposes the run's prometheus metrics over HTTP while the
// action is running.
package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/ethereum-optimism/infra/op-vstest/metrics"
)

const shutdownTimeout = 5 * time.Second

// Service serves /metrics and /healthz on a single listener.
type Service struct {
	log      log.Logger
	addr     string
	gatherer prometheus.Gatherer
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// New creates a Service listening on host:port. A nil gatherer serves the
// default registry.
func New(logger log.Logger, host string, port int, gatherer prometheus.Gatherer) *Service {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Service{
		log:      logger,
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		gatherer: gatherer,
	}
}

// Handler returns the HTTP handler the service serves.
func (s *Service) Handler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK")) //nolint:errcheck
	}).Methods(http.MethodGet)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(router)
}

// Start binds the listener and serves in the background.
func (s *Service) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.done = make(chan struct{})

	s.log.Info("starting metrics server", "addr", ln.Addr().String())
	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("error serving metrics", "err", err)
			metrics.RecordErrorDetails("metrics_server", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Service) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown stops the server. It is a no-op when the server never started.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(ctx)
	<-s.done
	s.log.Info("metrics server stopped")
	return err
}
