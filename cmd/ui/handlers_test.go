package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mex-balancer-bot-go/internal/database"
	"mex-balancer-bot-go/internal/models"
	"mex-balancer-bot-go/internal/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "ui-secret"

type MockTradeReader struct {
	mock.Mock
}

func (m *MockTradeReader) RecentTrades(ctx context.Context, limit int) ([]models.Trade, error) {
	args := m.Called(ctx, limit)
	trades, _ := args.Get(0).([]models.Trade)
	return trades, args.Error(1)
}

func (m *MockTradeReader) ClosedTrades(ctx context.Context, userID int64) ([]models.Trade, error) {
	args := m.Called(ctx, userID)
	trades, _ := args.Get(0).([]models.Trade)
	return trades, args.Error(1)
}

func setupHandler(t *testing.T) (*APIHandler, *MockTradeReader, string) {
	store := new(MockTradeReader)
	h := NewAPIHandler(zap.NewNop(), store, testSecret)
	token, err := security.IssueAdminToken(testSecret, 1, time.Hour)
	require.NoError(t, err)
	return h, store, token
}

func do(h *APIHandler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, req)
	return rr
}

func TestHealthHandler_NoAuth(t *testing.T) {
	h, _, _ := setupHandler(t)

	rr := do(h, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestAPI_RequiresAdminToken(t *testing.T) {
	h, store, _ := setupHandler(t)
	otherSecret, err := security.IssueAdminToken("another-secret", 1, time.Hour)
	require.NoError(t, err)
	expired, err := security.IssueAdminToken(testSecret, 1, -time.Minute)
	require.NoError(t, err)

	testCases := []struct {
		name  string
		path  string
		token string
	}{
		{"MissingTrades", "/api/trades", ""},
		{"MissingStatistics", "/api/statistics", ""},
		{"WrongSecret", "/api/trades", otherSecret},
		{"Expired", "/api/statistics", expired},
		{"Garbage", "/api/trades", "not-a-jwt"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(h, tc.path, tc.token)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
	store.AssertNotCalled(t, "RecentTrades", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "ClosedTrades", mock.Anything, mock.Anything)
}

func TestTradesHandler(t *testing.T) {
	t.Run("DefaultLimit", func(t *testing.T) {
		// Arrange
		h, store, token := setupHandler(t)
		trades := []models.Trade{{UserID: 7, TokenAddress: "mint", AmountSOL: 0.1, TxSignature: "sig", Status: models.StatusActive}}
		store.On("RecentTrades", mock.Anything, 0).Return(trades, nil)

		// Act
		rr := do(h, "/api/trades", token)

		// Assert
		require.Equal(t, http.StatusOK, rr.Code)
		var got []models.Trade
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "sig", got[0].TxSignature)
		store.AssertExpectations(t)
	})

	t.Run("LimitIsCapped", func(t *testing.T) {
		h, store, token := setupHandler(t)
		store.On("RecentTrades", mock.Anything, maxTradesLimit).Return([]models.Trade{}, nil)

		rr := do(h, "/api/trades?limit=100000", token)

		assert.Equal(t, http.StatusOK, rr.Code)
		store.AssertExpectations(t)
	})

	t.Run("BadLimit", func(t *testing.T) {
		h, _, token := setupHandler(t)

		for _, q := range []string{"abc", "0", "-3"} {
			rr := do(h, "/api/trades?limit="+q, token)
			assert.Equal(t, http.StatusBadRequest, rr.Code, q)
		}
	})

	t.Run("StoreError", func(t *testing.T) {
		h, store, token := setupHandler(t)
		store.On("RecentTrades", mock.Anything, 10).Return(nil, errors.New("db down"))

		rr := do(h, "/api/trades?limit=10", token)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestStatisticsHandler(t *testing.T) {
	// Arrange
	h, store, token := setupHandler(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	recent := models.Trade{Status: models.StatusClosed, ProfitSOL: 0.5, FeePaid: 0.05}
	recent.UpdatedAt = now.Add(-time.Hour)
	old := models.Trade{Status: models.StatusClosed, ProfitSOL: -0.2}
	old.UpdatedAt = now.Add(-72 * time.Hour)
	store.On("ClosedTrades", mock.Anything, int64(0)).Return([]models.Trade{recent, old}, nil)

	// Act
	rr := do(h, "/api/statistics", token)

	// Assert
	require.Equal(t, http.StatusOK, rr.Code)
	var stats database.Statistics
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.AllTime.TotalTrades)
	assert.Equal(t, int64(1), stats.AllTime.ProfitableTrades)
	assert.InDelta(t, 0.3, stats.AllTime.TotalProfit, 1e-9)
	assert.InDelta(t, 0.5, stats.AllTime.WinRate, 1e-9)
	assert.Equal(t, int64(1), stats.Since24h.TotalTrades)
	assert.InDelta(t, 0.05, stats.Since24h.FeesPaid, 1e-9)
}

func TestStatisticsHandler_StoreError(t *testing.T) {
	h, store, token := setupHandler(t)
	store.On("ClosedTrades", mock.Anything, int64(0)).Return(nil, gorm.ErrInvalidDB)

	rr := do(h, "/api/statistics", token)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"failed to calculate statistics"}`, rr.Body.String())
}
