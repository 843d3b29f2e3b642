package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mex-balancer-bot-go/internal/httpclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func TestDASClient_GetAsset(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "abc", r.URL.Query().Get("api-key"))
			var req dasRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "getAsset", req.Method)
			assert.Equal(t, "Mint111", req.Params["id"])
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"mex-balancer","result":{
				"id":"Mint111","mutable":true,"burnt":false,
				"content":{"metadata":{"name":"Bonk","symbol":"BONK"}},
				"token_info":{"decimals":5,"supply":8800000000000,"price_info":{"price_per_token":0.0000231,"currency":"USDC"}},
				"authorities":[{"address":"Auth111","scopes":["full"]}]}}`))
		}))
		defer server.Close()
		c := NewDASClient(server.URL+"/?api-key=abc", zap.NewNop(),
			httpclient.WithLimiter(rate.NewLimiter(rate.Inf, 1)))

		// Act
		asset, err := c.GetAsset(context.Background(), "Mint111")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "Bonk", asset.Name())
		assert.Equal(t, "BONK", asset.Symbol())
		assert.Equal(t, uint8(5), asset.TokenInfo.Decimals)
		assert.InDelta(t, 0.0000231, asset.PriceUSD(), 1e-12)
		require.Len(t, asset.Authorities, 1)
	})

	for _, contentType := range []string{"application/json", "text/plain; charset=utf-8", ""} {
		t.Run("RPCError/"+contentType, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if contentType != "" {
					w.Header().Set("Content-Type", contentType)
				}
				_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"mex-balancer","error":{"code":-32000,"message":"Asset Not Found"}}`))
			}))
			defer server.Close()
			c := NewDASClient(server.URL, zap.NewNop(), httpclient.WithLimiter(rate.NewLimiter(rate.Inf, 1)))

			_, err := c.GetAsset(context.Background(), "Mint111")

			assert.ErrorContains(t, err, "Asset Not Found")
		})
	}
}
