// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solsniper-bot/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/solsniper-bot/internal/logger"
)

const (
	defaultLogLimit = 100
	checkTimeout    = 3 * time.Second
)

// Check is one named readiness probe, e.g. the RPC node or the store.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// LogSource is the in-memory log tail.
type LogSource interface {
	GetRecentLogs(limit int) []logger.LogEntry
}

type Config struct {
	Addr    string
	Metrics http.Handler
	Checks  []Check
	Logs    LogSource // optional

	// Nodes reports the RPC pool; optional.
	Nodes  func() []rpc.NodeStats
	Logger *zap.Logger
}

// Server is the operator HTTP endpoint: metrics, health and recent logs.
type Server struct {
	http   *http.Server
	logger *zap.Logger
}

func New(cfg Config) *Server {
	log := cfg.Logger.Named("http")
	return &Server{
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewRouter(cfg),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log,
	}
}

// NewRouter builds the chi router; exposed for tests.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	r.Get("/healthz", healthHandler(cfg.Checks))
	if cfg.Logs != nil {
		r.Get("/debug/logs", logsHandler(cfg.Logs))
	}
	if cfg.Nodes != nil {
		r.Get("/debug/rpc", nodesHandler(cfg.Nodes))
	}
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Ops HTTP listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func healthHandler(checks []Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		code := http.StatusOK
		for _, check := range checks {
			if err := check.Run(ctx); err != nil {
				resp.Checks[check.Name] = err.Error()
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[check.Name] = "ok"
		}
		writeJSON(w, code, resp)
	}
}

func logsHandler(source LogSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultLogLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}
		writeJSON(w, http.StatusOK, source.GetRecentLogs(limit))
	}
}

type nodeView struct {
	URL          string  `json:"url"`
	Active       bool    `json:"active"`
	Successes    uint64  `json:"successes"`
	Failures     uint64  `json:"failures"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

func nodesHandler(nodes func() []rpc.NodeStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := nodes()
		out := make([]nodeView, 0, len(stats))
		for _, n := range stats {
			out = append(out, nodeView{
				URL:          n.URL,
				Active:       n.Active,
				Successes:    n.Successes,
				Failures:     n.Failures,
				AvgLatencyMS: float64(n.AvgLatency.Microseconds()) / 1000,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
