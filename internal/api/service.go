package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/netmond/internal/netmon"
)

// Service exposes the monitor over HTTP: status queries, reachability
// probes, a WebSocket event stream, and Prometheus metrics.
type Service struct {
	address string
	port    int

	monitor *netmon.Monitor
}

func NewService(host string, port int) *Service {
	return &Service{
		address: host,
		port:    port,
	}
}

// AttachMonitor must be called before Start.
func (s *Service) AttachMonitor(m *netmon.Monitor) {
	s.monitor = m
}

// Start serves the API until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Infof("Starting netmond API service at %s:%d", s.address, s.port)
	defer log.Info("Stopping netmond API service")

	if s.monitor == nil {
		log.Error("AttachMonitor was not called before Start")
		<-ctx.Done()
		return nil
	}

	server := &http.Server{
		Addr:    net.JoinHostPort(s.address, strconv.Itoa(s.port)),
		Handler: s.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api listen: %w", err)
		}
		return nil
	}
}

func (s *Service) Close() error {
	return nil
}

func (s *Service) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/reach", s.handleReach)
	mux.HandleFunc("/ws/events", func(w http.ResponseWriter, r *http.Request) {
		StreamEvents(s, w, r)
	})
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state := s.monitor.State()
	w.Header().Add("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	err := enc.Encode(StatusResponse{
		Available:  state.Available,
		Generation: state.Generation,
		Backend:    s.monitor.BackendName(),
		ChangedAt:  state.At,
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode status: %v", err), http.StatusInternalServerError)
	}
}

func (s *Service) handleReach(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ReachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	ep, err := netmon.ParseEndpoint(req.Target)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if req.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	start := time.Now()
	probeErr := s.monitor.CanReach(ctx, ep)

	resp := ReachResponse{
		Target:     req.Target,
		Reachable:  probeErr == nil,
		Outcome:    outcomeString(probeErr),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if probeErr != nil {
		resp.Error = probeErr.Error()
	}

	w.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
	}
}

func outcomeString(err error) string {
	var invalid *netmon.InvalidEndpointError
	switch {
	case err == nil:
		return "reachable"
	case errors.Is(err, netmon.ErrUnreachable):
		return "unreachable"
	case netmon.IsCancelled(err):
		return "cancelled"
	case errors.Is(err, netmon.ErrPlatformUnavailable):
		return "platform-unavailable"
	case errors.As(err, &invalid):
		return "invalid-endpoint"
	default:
		return "error"
	}
}
