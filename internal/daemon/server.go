// Package daemon runs the background rotation listener: an HTTP server
// that queues rotations on signal, plus a supervisor managing the
// detached process through a pid file.
package daemon

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/keystone-dev/keystone/internal/audit"
	"github.com/keystone-dev/keystone/internal/config"
	"github.com/keystone-dev/keystone/internal/logging"
	"github.com/keystone-dev/keystone/internal/metrics"
	"github.com/keystone-dev/keystone/internal/rotation"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server handles rotation signals over HTTP. Each (env, secret) pair is
// debounced by the configured cooldown so a flapping client cannot
// trigger rotation storms.
type Server struct {
	cfg    *config.Config
	logger *logging.Logger
	engine *rotation.Engine

	mu          sync.Mutex
	lastSignals map[string]time.Time
}

// NewServer creates a signal server around an engine. The engine must
// auto-approve confirmations since there is no operator at a terminal.
func NewServer(cfg *config.Config, logger *logging.Logger, engine *rotation.Engine) *Server {
	engine.Confirm = func(string) (bool, error) { return true, nil }
	return &Server{
		cfg:         cfg,
		logger:      logger,
		engine:      engine,
		lastSignals: make(map[string]time.Time),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/audit", s.handleAudit)
	r.Post("/rotate", s.handleRotate)
	r.Post("/rollback", s.handleRollback)
	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	metrics.Init()

	srv := &http.Server{
		Addr:              s.cfg.DaemonBind,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Daemon listening on %s", s.cfg.DaemonBind)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type signalRequest struct {
	Secret   string `json:"secret_name"`
	Env      string `json:"env"`
	Service  string `json:"service,omitempty"`
	Redeploy bool   `json:"redeploy,omitempty"`
}

type poolSnapshot struct {
	Available int `json:"available"`
	Active    int `json:"active"`
	Exhausted int `json:"exhausted"`
}

type signalResponse struct {
	Success          bool          `json:"success"`
	Message          string        `json:"message"`
	RequestID        string        `json:"request_id,omitempty"`
	RemainingSeconds int           `json:"remaining_seconds"`
	Pool             *poolSnapshot `json:"pool,omitempty"`
}

// debounce reports whether a signal for (env, secret) falls inside the
// cooldown window of the previous accepted signal. Accepted signals are
// recorded before returning so concurrent requests serialize here.
func (s *Server) debounce(env, secret string) (remaining int, accepted bool) {
	key := env + "-" + secret
	cooldownWindow := time.Duration(s.cfg.CooldownSeconds) * time.Second

	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastSignals[key]; ok {
		if elapsed := time.Since(last); elapsed < cooldownWindow {
			// Round up so the final sub-second of the window still
			// reports a positive remaining time.
			remaining := int(math.Ceil((cooldownWindow - elapsed).Seconds()))
			if remaining < 1 {
				remaining = 1
			}
			return remaining, false
		}
	}
	s.lastSignals[key] = time.Now()
	return 0, true
}

func (s *Server) poolStatus(secret string) *poolSnapshot {
	if !s.engine.Pools().Exists(secret) {
		return nil
	}
	pool, err := s.engine.Pools().Load(secret)
	if err != nil {
		return nil
	}
	available, active, exhausted := pool.CountByStatus()
	return &poolSnapshot{Available: available, Active: active, Exhausted: exhausted}
}

// acceptSignal runs the shared debounce/audit/queue sequence for both
// signal endpoints. The work function runs in the background; its
// failures go to the process log only.
func (s *Server) acceptSignal(w http.ResponseWriter, r *http.Request, action string, work func(ctx context.Context, req signalRequest) error) {
	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, signalResponse{Message: "invalid JSON body"})
		return
	}
	if req.Secret == "" || req.Env == "" {
		writeJSON(w, http.StatusBadRequest, signalResponse{Message: "secret_name and env are required"})
		return
	}

	remaining, accepted := s.debounce(req.Env, req.Secret)
	if !accepted {
		metrics.RecordSignal(req.Env, false)
		writeJSON(w, http.StatusTooManyRequests, signalResponse{
			Message:          "Cooldown active: " + strconv.Itoa(remaining) + "s remaining",
			RemainingSeconds: remaining,
		})
		return
	}

	metrics.RecordSignal(req.Env, true)
	if err := s.engine.Audit().Append(audit.ActionSignal, req.Secret, req.Env, req.Service, true, "***"); err != nil {
		s.logger.Warn("Failed to record signal audit entry: %v", err)
	}

	jobID := uuid.NewString()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := work(ctx, req); err != nil {
			s.logger.Error("Background %s %s for %s failed: %v", action, jobID, req.Secret, err)
			return
		}
		s.logger.Info("Background %s %s for %s complete", action, jobID, req.Secret)
	}()

	writeJSON(w, http.StatusAccepted, signalResponse{
		Success:   true,
		Message:   capitalize(action) + " queued",
		RequestID: jobID,
		Pool:      s.poolStatus(req.Secret),
	})
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	s.acceptSignal(w, r, "rotation", func(ctx context.Context, req signalRequest) error {
		return s.engine.Rotate(ctx, rotation.RotateOptions{
			Secret:     req.Secret,
			Env:        req.Env,
			Service:    req.Service,
			Redeploy:   req.Redeploy,
			FromSignal: true,
		})
	})
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	s.acceptSignal(w, r, "rollback", func(ctx context.Context, req signalRequest) error {
		return s.engine.Rollback(ctx, rotation.RollbackOptions{
			Secret:   req.Secret,
			Env:      req.Env,
			Service:  req.Service,
			Redeploy: req.Redeploy,
		})
	})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	query := audit.Query{
		Secret: r.URL.Query().Get("secret_name"),
		Env:    r.URL.Query().Get("env"),
	}
	if last := r.URL.Query().Get("last"); last != "" {
		n, err := strconv.Atoi(last)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, signalResponse{Message: "invalid last parameter"})
			return
		}
		query.Last = n
	}

	entries, err := s.engine.Audit().Read(query)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, signalResponse{Message: err.Error()})
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
