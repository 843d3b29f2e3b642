package chain

import (
	"context"
	"fmt"
	"net/http"

	"mex-balancer-bot-go/internal/httpclient"

	"go.uber.org/zap"
)

// AssetFetcher returns token metadata from a DAS-compatible endpoint.
type AssetFetcher interface {
	GetAsset(ctx context.Context, mint string) (*Asset, error)
}

// Asset is the subset of a Helius DAS getAsset result the bot uses.
type Asset struct {
	ID      string `json:"id"`
	Mutable bool   `json:"mutable"`
	Burnt   bool   `json:"burnt"`
	Content struct {
		Metadata struct {
			Name   string `json:"name"`
			Symbol string `json:"symbol"`
		} `json:"metadata"`
	} `json:"content"`
	TokenInfo struct {
		Decimals  uint8  `json:"decimals"`
		Supply    uint64 `json:"supply"`
		PriceInfo *struct {
			PricePerToken float64 `json:"price_per_token"`
			Currency      string  `json:"currency"`
		} `json:"price_info"`
	} `json:"token_info"`
	Authorities []struct {
		Address string   `json:"address"`
		Scopes  []string `json:"scopes"`
	} `json:"authorities"`
}

// Name returns the token name from metadata.
func (a *Asset) Name() string { return a.Content.Metadata.Name }

// Symbol returns the token symbol from metadata.
func (a *Asset) Symbol() string { return a.Content.Metadata.Symbol }

// PriceUSD returns the indexed USD price, or 0 when the asset has none.
func (a *Asset) PriceUSD() float64 {
	if a.TokenInfo.PriceInfo == nil {
		return 0
	}
	return a.TokenInfo.PriceInfo.PricePerToken
}

// DASClient queries the Helius Digital Asset Standard API.
type DASClient struct {
	exec   *httpclient.Executor
	logger *zap.Logger
}

var _ AssetFetcher = (*DASClient)(nil)

// NewDASClient creates a DAS client for rpcURL, which carries the api-key query parameter.
func NewDASClient(rpcURL string, logger *zap.Logger, opts ...httpclient.Option) *DASClient {
	logger = logger.Named("das")
	return &DASClient{exec: httpclient.New(rpcURL, 10, 5, logger, opts...), logger: logger}
}

type dasRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	Params  map[string]string `json:"params"`
}

type dasResponse struct {
	Result *Asset `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GetAsset fetches metadata for mint.
func (c *DASClient) GetAsset(ctx context.Context, mint string) (*Asset, error) {
	body := dasRequest{
		JSONRPC: "2.0",
		ID:      "mex-balancer",
		Method:  "getAsset",
		Params:  map[string]string{"id": mint},
	}
	req := c.exec.JSON(ctx).
		SetBody(body).
		SetResult(&dasResponse{})

	resp, err := c.exec.Do(ctx, http.MethodPost, "", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get asset %s: %w", mint, err)
	}

	result := resp.Result().(*dasResponse)
	if result.Error != nil {
		return nil, fmt.Errorf("getAsset error (%d): %s", result.Error.Code, result.Error.Message)
	}
	if result.Result == nil {
		return nil, fmt.Errorf("asset %s not found", mint)
	}
	return result.Result, nil
}
