package rugcheck

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"mex-balancer-bot-go/internal/config"
	"mex-balancer-bot-go/internal/httpclient"

	"go.uber.org/zap"
)

const reportPath = "/v1/tokens/{mint}/report"

// RestClientInterface defines the interface for the RugCheck API client.
type RestClientInterface interface {
	Report(ctx context.Context, mint string) (*Report, error)
}

// Client is a client for the RugCheck token report API.
type Client struct {
	exec   *httpclient.Executor
	logger *zap.Logger
}

var _ RestClientInterface = (*Client)(nil)

// NewClient creates a RugCheck client. The API key, when present, is sent as a bearer token.
func NewClient(cfg *config.RugCheck, logger *zap.Logger, opts ...httpclient.Option) *Client {
	logger = logger.Named("rugcheck")
	exec := httpclient.New(cfg.BaseURL, cfg.RateLimit, cfg.RateLimitBurst, logger, opts...)
	if cfg.ApiKey != "" {
		exec.SetHeader("Authorization", "Bearer "+cfg.ApiKey)
	}
	return &Client{exec: exec, logger: logger}
}

// Risk is one finding in a report.
type Risk struct {
	Name        string  `json:"name"`
	Value       string  `json:"value"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	Level       string  `json:"level"`
}

// Holder is a top token holder.
type Holder struct {
	Address string  `json:"address"`
	Owner   string  `json:"owner"`
	Pct     float64 `json:"pct"`
	Insider bool    `json:"insider"`
}

// TokenMeta is the token's on-chain metadata.
type TokenMeta struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// Report is the RugCheck report for a mint.
type Report struct {
	Mint                 string    `json:"mint"`
	TokenMeta            TokenMeta `json:"tokenMeta"`
	Score                float64   `json:"score"`
	ScoreNormalised      *float64  `json:"score_normalised"`
	Risks                []Risk    `json:"risks"`
	TopHolders           []Holder  `json:"topHolders"`
	TotalHolders         int       `json:"totalHolders"`
	MintAuthority        *string   `json:"mintAuthority"`
	FreezeAuthority      *string   `json:"freezeAuthority"`
	TotalMarketLiquidity float64   `json:"totalMarketLiquidity"`
	Rugged               bool      `json:"rugged"`
}

// RiskScore prefers the normalised 0-100 score and falls back to the raw score.
func (r *Report) RiskScore() float64 {
	if r.ScoreNormalised != nil {
		return *r.ScoreNormalised
	}
	return r.Score
}

// Top10Percent sums the share held by the ten largest holders.
func (r *Report) Top10Percent() float64 {
	holders := append([]Holder(nil), r.TopHolders...)
	sort.Slice(holders, func(i, j int) bool { return holders[i].Pct > holders[j].Pct })
	if len(holders) > 10 {
		holders = holders[:10]
	}
	var total float64
	for _, h := range holders {
		total += h.Pct
	}
	return total
}

// DangerReason describes the first reported risk.
func (r *Report) DangerReason() string {
	if len(r.Risks) == 0 {
		return ""
	}
	if r.Risks[0].Description != "" {
		return r.Risks[0].Description
	}
	return r.Risks[0].Name
}

// HasMintAuthority reports whether new supply can still be minted.
func (r *Report) HasMintAuthority() bool {
	return r.MintAuthority != nil && *r.MintAuthority != ""
}

// HasFreezeAuthority reports whether holder accounts can be frozen.
func (r *Report) HasFreezeAuthority() bool {
	return r.FreezeAuthority != nil && *r.FreezeAuthority != ""
}

// HolderCount returns the total holder count, or the number of listed holders.
func (r *Report) HolderCount() int {
	if r.TotalHolders > 0 {
		return r.TotalHolders
	}
	return len(r.TopHolders)
}

// Report fetches the full risk report for a mint.
func (c *Client) Report(ctx context.Context, mint string) (*Report, error) {
	req := c.exec.JSON(ctx).
		SetPathParam("mint", mint).
		SetResult(&Report{})

	resp, err := c.exec.Do(ctx, http.MethodGet, reportPath, req)
	if err != nil {
		c.logger.Warn("RugCheck report failed", zap.String("mint", mint), zap.Error(err))
		return nil, fmt.Errorf("failed to get rugcheck report for %s: %w", mint, err)
	}

	report := resp.Result().(*Report)
	if report.Mint == "" {
		report.Mint = mint
	}
	return report, nil
}
