package jito

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"mex-balancer-bot-go/internal/config"
	"mex-balancer-bot-go/internal/httpclient"

	"go.uber.org/zap"
)

const bundlesPath = "/api/v1/bundles"

// MaxBundleSize is the block engine's limit on transactions per bundle.
const MaxBundleSize = 5

// BundleSender submits signed transactions as an atomic bundle.
type BundleSender interface {
	SendBundle(ctx context.Context, txs []string) (string, error)
	GetBundleStatus(ctx context.Context, bundleID string) (*BundleStatus, error)
}

// Client talks to the Jito block engine JSON-RPC API.
type Client struct {
	exec   *httpclient.Executor
	logger *zap.Logger
}

var _ BundleSender = (*Client)(nil)

// NewClient creates a block engine client.
func NewClient(cfg *config.Jito, logger *zap.Logger, opts ...httpclient.Option) *Client {
	logger = logger.Named("jito")
	// The public block engine allows one request per second per IP.
	return &Client{exec: httpclient.New(cfg.BaseURL, 1, 1, logger, opts...), logger: logger}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type sendBundleResponse struct {
	Result string    `json:"result"`
	Error  *rpcError `json:"error"`
}

// SendBundle submits base64-encoded signed transactions and returns the bundle id.
func (c *Client) SendBundle(ctx context.Context, txs []string) (string, error) {
	if len(txs) == 0 {
		return "", errors.New("bundle is empty")
	}
	if len(txs) > MaxBundleSize {
		return "", fmt.Errorf("bundle has %d transactions, max %d", len(txs), MaxBundleSize)
	}

	body := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendBundle",
		Params:  []interface{}{txs, map[string]string{"encoding": "base64"}},
	}
	req := c.exec.JSON(ctx).
		SetBody(body).
		SetResult(&sendBundleResponse{})

	resp, err := c.exec.Do(ctx, http.MethodPost, bundlesPath, req)
	if err != nil {
		return "", fmt.Errorf("failed to send bundle: %w", err)
	}

	result := resp.Result().(*sendBundleResponse)
	if result.Error != nil {
		return "", fmt.Errorf("bundle rejected (%d): %s", result.Error.Code, result.Error.Message)
	}
	if result.Result == "" {
		return "", errors.New("block engine returned no bundle id")
	}
	c.logger.Info("Bundle submitted", zap.String("bundle_id", result.Result), zap.Int("txs", len(txs)))
	return result.Result, nil
}

// BundleStatus is the landing state of a submitted bundle.
type BundleStatus struct {
	BundleID           string   `json:"bundle_id"`
	Transactions       []string `json:"transactions"`
	Slot               uint64   `json:"slot"`
	ConfirmationStatus string   `json:"confirmation_status"`
}

// Landed reports whether the bundle reached confirmed or finalized commitment.
func (s *BundleStatus) Landed() bool {
	return s != nil && (s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized")
}

type bundleStatusResponse struct {
	Result struct {
		Value []BundleStatus `json:"value"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// GetBundleStatus returns the status of a bundle, or nil if it has not landed.
func (c *Client) GetBundleStatus(ctx context.Context, bundleID string) (*BundleStatus, error) {
	body := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getBundleStatuses",
		Params:  []interface{}{[]string{bundleID}},
	}
	req := c.exec.JSON(ctx).
		SetBody(body).
		SetResult(&bundleStatusResponse{})

	resp, err := c.exec.Do(ctx, http.MethodPost, bundlesPath, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get bundle status: %w", err)
	}

	result := resp.Result().(*bundleStatusResponse)
	if result.Error != nil {
		return nil, fmt.Errorf("bundle status error (%d): %s", result.Error.Code, result.Error.Message)
	}
	if len(result.Result.Value) == 0 {
		return nil, nil
	}
	return &result.Result.Value[0], nil
}
