package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mex-balancer-bot-go/internal/database"
	"mex-balancer-bot-go/internal/models"
	"mex-balancer-bot-go/internal/security"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxTradesLimit = 500

// TradeReader is the read side of the trade store used by the dashboard.
type TradeReader interface {
	RecentTrades(ctx context.Context, limit int) ([]models.Trade, error)
	ClosedTrades(ctx context.Context, userID int64) ([]models.Trade, error)
}

var _ TradeReader = (*database.Store)(nil)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log       *zap.Logger
	store     TradeReader
	jwtSecret string
	now       func() time.Time
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, store TradeReader, jwtSecret string) *APIHandler {
	return &APIHandler{log: log, store: store, jwtSecret: jwtSecret, now: time.Now}
}

// Router wires the public health check and the admin-only API.
func (h *APIHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet, http.MethodHead)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.requireAdmin)
	api.HandleFunc("/trades", h.TradesHandler).Methods(http.MethodGet)
	api.HandleFunc("/statistics", h.StatisticsHandler).Methods(http.MethodGet)
	return r
}

// requireAdmin rejects requests without a valid admin bearer token.
func (h *APIHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		adminID, err := security.ParseAdminToken(h.jwtSecret, strings.TrimSpace(token))
		if err != nil {
			h.log.Warn("Rejected API request", zap.String("path", r.URL.Path), zap.Error(err))
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		h.log.Debug("Admin API request", zap.Int64("admin_id", adminID), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

// HealthHandler reports liveness.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TradesHandler returns the newest trades, limited by ?limit= (default 50).
func (h *APIHandler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxTradesLimit)
	}

	trades, err := h.store.RecentTrades(r.Context(), limit)
	if err != nil {
		h.log.Error("Failed to get trades from database", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get trades")
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

// StatisticsHandler returns 24h and all-time figures over closed trades.
func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	trades, err := h.store.ClosedTrades(r.Context(), 0)
	if err != nil {
		h.log.Error("Failed to get trades for statistics", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to calculate statistics")
		return
	}
	writeJSON(w, http.StatusOK, database.ComputeStatistics(trades, h.now()))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
