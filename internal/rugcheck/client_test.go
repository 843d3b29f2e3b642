package rugcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mex-balancer-bot-go/internal/config"
	"mex-balancer-bot-go/internal/httpclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const mint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

func setupTestServer(handler http.Handler, apiKey string) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	c := NewClient(&config.RugCheck{BaseURL: server.URL, ApiKey: apiKey}, zap.NewNop(),
		httpclient.WithBaseBackoff(time.Millisecond))
	return c, server
}

func TestReport(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/tokens/"+mint+"/report", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"mint": "` + mint + `",
				"tokenMeta": {"name": "Bonk", "symbol": "BONK"},
				"score": 1200,
				"score_normalised": 12,
				"risks": [{"name": "Low Liquidity", "description": "Low amount of LP Providers", "level": "warn", "score": 500}],
				"topHolders": [{"address": "a", "pct": 5}, {"address": "b", "pct": 3.5}],
				"totalHolders": 950,
				"mintAuthority": null,
				"freezeAuthority": "Freeze111",
				"totalMarketLiquidity": 15234.5,
				"rugged": false
			}`))
		})
		c, server := setupTestServer(handler, "secret")
		defer server.Close()

		// Act
		report, err := c.Report(context.Background(), mint)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "BONK", report.TokenMeta.Symbol)
		assert.Equal(t, 12.0, report.RiskScore())
		assert.Equal(t, "Low amount of LP Providers", report.DangerReason())
		assert.InDelta(t, 8.5, report.Top10Percent(), 1e-9)
		assert.Equal(t, 950, report.HolderCount())
		assert.False(t, report.HasMintAuthority())
		assert.True(t, report.HasFreezeAuthority())
		assert.InDelta(t, 15234.5, report.TotalMarketLiquidity, 1e-9)
	})

	t.Run("NotFound", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		})
		c, server := setupTestServer(handler, "")
		defer server.Close()

		_, err := c.Report(context.Background(), mint)

		require.Error(t, err)
		assert.True(t, httpclient.IsStatus(err, http.StatusNotFound))
	})
}

func TestReportHelpers(t *testing.T) {
	t.Run("RawScoreFallback", func(t *testing.T) {
		r := &Report{Score: 73}
		assert.Equal(t, 73.0, r.RiskScore())
		assert.Equal(t, "", r.DangerReason())
	})

	t.Run("Top10OnlyCountsLargest", func(t *testing.T) {
		r := &Report{}
		for i := 0; i < 12; i++ {
			r.TopHolders = append(r.TopHolders, Holder{Pct: float64(i + 1)})
		}
		// 12+11+...+3
		assert.InDelta(t, 75.0, r.Top10Percent(), 1e-9)
		assert.Equal(t, 12, r.HolderCount())
	})

	t.Run("DangerReasonFallsBackToName", func(t *testing.T) {
		r := &Report{Risks: []Risk{{Name: "Mutable metadata"}}}
		assert.Equal(t, "Mutable metadata", r.DangerReason())
	})
}
