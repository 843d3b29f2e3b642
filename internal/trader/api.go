package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// OperationalText is served at the root for uptime checks.
const OperationalText = "MEX BALANCER BOT - OPERATIONAL"

// APIServer provides an HTTP interface for the position monitor.
type APIServer struct {
	server *http.Server
	engine *Engine
	logger *zap.Logger
}

// NewAPIServer creates a new APIServer listening on port.
func NewAPIServer(engine *Engine, port int, logger *zap.Logger) *APIServer {
	s := &APIServer{
		engine: engine,
		logger: logger.Named("api-server"),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router returns the HTTP routes.
func (s *APIServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.rootHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/status", s.statusHandler).Methods(http.MethodGet)
	return r
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

// StatusResponse is the body of /api/status.
type StatusResponse struct {
	UUID            string `json:"uuid"`
	Name            string `json:"name"`
	Strategy        string `json:"strategy"`
	StartTime       string `json:"start_time"`
	Uptime          string `json:"uptime"`
	Monitoring      bool   `json:"monitoring"`
	ActivePositions int    `json:"active_positions"`
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := StatusResponse{
		UUID:            s.engine.UUID,
		Name:            s.engine.Name,
		Strategy:        s.engine.strategy.Name(),
		StartTime:       s.engine.StartTime.Format(time.RFC3339),
		Uptime:          time.Since(s.engine.StartTime).Round(time.Second).String(),
		Monitoring:      s.engine.IsRunning(),
		ActivePositions: s.engine.ActiveCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("Failed to write status response", zap.Error(err))
		http.Error(w, "Failed to encode status", http.StatusInternalServerError)
	}
}

func (s *APIServer) rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, OperationalText)
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}
