package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"mex-balancer-bot-go/internal/config"
	"mex-balancer-bot-go/internal/httpclient"

	"go.uber.org/zap"
)

const (
	SOLMint         = "So11111111111111111111111111111111111111112"
	SwapModeExactIn = "ExactIn"
)

// ErrNoRoute is returned when Jupiter cannot route the requested swap.
var ErrNoRoute = errors.New("no swap route found")

// RestClientInterface defines the interface for the Jupiter swap API client.
type RestClientInterface interface {
	Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error)
	Swap(ctx context.Context, req SwapRequest) (*SwapResponse, error)
}

// RestClient is a client for the Jupiter swap API.
// It implements the RestClientInterface.
type RestClient struct {
	exec   *httpclient.Executor
	logger *zap.Logger
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

// NewRestClient creates a new Jupiter REST API client.
func NewRestClient(cfg *config.Jupiter, logger *zap.Logger, opts ...httpclient.Option) *RestClient {
	logger = logger.Named("jupiter")
	exec := httpclient.New(cfg.BaseURL, cfg.RateLimit, cfg.RateLimitBurst, logger, opts...)
	if cfg.ApiKey != "" {
		exec.SetHeader("x-api-key", cfg.ApiKey)
	}
	return &RestClient{exec: exec, logger: logger}
}

// QuoteRequest selects an ExactIn route from InputMint to OutputMint.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64 // raw base units of InputMint
	SlippageBps int
}

// QuoteResponse is a Jupiter route quote. Raw keeps the original body because
// the swap endpoint expects the quote back unmodified.
type QuoteResponse struct {
	InputMint            string  `json:"inputMint"`
	InAmount             string  `json:"inAmount"`
	OutputMint           string  `json:"outputMint"`
	OutAmount            string  `json:"outAmount"`
	OtherAmountThreshold string  `json:"otherAmountThreshold"`
	SwapMode             string  `json:"swapMode"`
	SlippageBps          int     `json:"slippageBps"`
	PriceImpactPct       string  `json:"priceImpactPct"`
	ContextSlot          uint64  `json:"contextSlot"`
	TimeTaken            float64 `json:"timeTaken"`

	Raw json.RawMessage `json:"-"`
}

// InAmountValue parses InAmount.
func (q *QuoteResponse) InAmountValue() uint64 {
	v, _ := strconv.ParseUint(q.InAmount, 10, 64)
	return v
}

// OutAmountValue parses OutAmount.
func (q *QuoteResponse) OutAmountValue() uint64 {
	v, _ := strconv.ParseUint(q.OutAmount, 10, 64)
	return v
}

// PriceImpact parses PriceImpactPct as a percentage (Jupiter reports a fraction).
func (q *QuoteResponse) PriceImpact() float64 {
	v, _ := strconv.ParseFloat(q.PriceImpactPct, 64)
	return v * 100
}

// errorResponse is the body Jupiter returns on a rejected request.
type errorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// Quote fetches the best route for an ExactIn swap.
func (c *RestClient) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	if req.Amount == 0 {
		return nil, errors.New("quote amount must be positive")
	}

	r := c.exec.R(ctx).
		SetQueryParam("inputMint", req.InputMint).
		SetQueryParam("outputMint", req.OutputMint).
		SetQueryParam("amount", strconv.FormatUint(req.Amount, 10)).
		SetQueryParam("slippageBps", strconv.Itoa(req.SlippageBps)).
		SetQueryParam("swapMode", SwapModeExactIn)

	resp, err := c.exec.Do(ctx, http.MethodGet, "/quote", r)
	if err != nil {
		if isNoRoute(err) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrNoRoute, req.InputMint, req.OutputMint)
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	body := resp.Body()
	var quote QuoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}
	if quote.OutAmount == "" {
		return nil, fmt.Errorf("%w: empty quote", ErrNoRoute)
	}
	quote.Raw = append(json.RawMessage(nil), body...)

	c.logger.Debug("Quote received",
		zap.String("input", req.InputMint),
		zap.String("output", req.OutputMint),
		zap.String("in", quote.InAmount),
		zap.String("out", quote.OutAmount),
	)
	return &quote, nil
}

func isNoRoute(err error) bool {
	var apiErr *httpclient.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		return false
	}
	var body errorResponse
	if json.Unmarshal([]byte(apiErr.Body), &body) != nil {
		return false
	}
	return strings.Contains(body.ErrorCode, "ROUTE") ||
		strings.Contains(strings.ToLower(body.Error), "route") ||
		body.ErrorCode == "TOKEN_NOT_TRADABLE"
}

// SwapRequest builds a swap transaction from a quote.
type SwapRequest struct {
	Quote               *QuoteResponse
	UserPublicKey       string
	PriorityFeeLamports uint64
	JitoTipLamports     uint64 // when set, replaces the priority fee with a Jito tip
}

// SwapResponse carries the unsigned, base64-encoded versioned transaction.
type SwapResponse struct {
	SwapTransaction           string `json:"swapTransaction"`
	LastValidBlockHeight      uint64 `json:"lastValidBlockHeight"`
	PrioritizationFeeLamports uint64 `json:"prioritizationFeeLamports"`
}

type swapBody struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports interface{}     `json:"prioritizationFeeLamports,omitempty"`
}

// Swap asks Jupiter to build the swap transaction for a quote.
func (c *RestClient) Swap(ctx context.Context, req SwapRequest) (*SwapResponse, error) {
	if req.Quote == nil || len(req.Quote.Raw) == 0 {
		return nil, errors.New("swap requires a quote")
	}

	body := swapBody{
		QuoteResponse:           req.Quote.Raw,
		UserPublicKey:           req.UserPublicKey,
		WrapAndUnwrapSol:        true,
		DynamicComputeUnitLimit: true,
	}
	switch {
	case req.JitoTipLamports > 0:
		body.PrioritizationFeeLamports = map[string]uint64{"jitoTipLamports": req.JitoTipLamports}
	case req.PriorityFeeLamports > 0:
		body.PrioritizationFeeLamports = req.PriorityFeeLamports
	}

	r := c.exec.JSON(ctx).
		SetBody(body).
		SetResult(&SwapResponse{})

	resp, err := c.exec.Do(ctx, http.MethodPost, "/swap", r)
	if err != nil {
		c.logger.Error("Failed to build swap transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to build swap: %w", err)
	}

	result := resp.Result().(*SwapResponse)
	if result.SwapTransaction == "" {
		return nil, errors.New("swap response missing transaction")
	}
	return result, nil
}
