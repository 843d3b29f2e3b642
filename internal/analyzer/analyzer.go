package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"mex-balancer-bot-go/internal/chain"
	"mex-balancer-bot-go/internal/config"
	"mex-balancer-bot-go/internal/jupiter"
	"mex-balancer-bot-go/internal/rugcheck"

	"go.uber.org/zap"
)

const (
	defaultMaxRiskScore  = 50
	defaultMaxSellTax    = 10
	defaultRoundTripSOL  = 0.01
	roundTripSlippageBps = 100
)

// Analysis is the safety verdict for a token. The zero-information result is unsafe.
type Analysis struct {
	Mint            string
	Name            string
	Symbol          string
	IsSafe          bool
	RiskScore       float64
	SafetyScore     float64
	DangerReason    string
	LiquidityUSD    float64
	PriceUSD        float64
	HolderCount     int
	MintAuthority   bool
	FreezeAuthority bool
	Top10Percent    float64
	IsHoneypot      bool
	SellTax         float64
	PriceImpact     float64
	Rugged          bool
}

// DisplayName returns the symbol, name or a shortened mint.
func (a *Analysis) DisplayName() string {
	switch {
	case a.Symbol != "":
		return a.Symbol
	case a.Name != "":
		return a.Name
	case len(a.Mint) > 8:
		return a.Mint[:4] + "..." + a.Mint[len(a.Mint)-4:]
	default:
		return a.Mint
	}
}

// TokenAnalyzer scores tokens before a snipe is allowed.
type TokenAnalyzer interface {
	FullAnalysis(ctx context.Context, mint string) *Analysis
}

// Analyzer combines the RugCheck report, DAS metadata and a Jupiter round-trip quote.
type Analyzer struct {
	cfg    config.Analyzer
	rug    rugcheck.RestClientInterface
	assets chain.AssetFetcher
	jup    jupiter.RestClientInterface
	logger *zap.Logger
}

var _ TokenAnalyzer = (*Analyzer)(nil)

// New creates an Analyzer. assets and jup may be nil to skip metadata and the honeypot check.
func New(cfg config.Analyzer, rug rugcheck.RestClientInterface, assets chain.AssetFetcher, jup jupiter.RestClientInterface, logger *zap.Logger) *Analyzer {
	if cfg.MaxRiskScore <= 0 {
		cfg.MaxRiskScore = defaultMaxRiskScore
	}
	if cfg.MaxSellTaxPct <= 0 {
		cfg.MaxSellTaxPct = defaultMaxSellTax
	}
	if cfg.RoundTripSOL <= 0 {
		cfg.RoundTripSOL = defaultRoundTripSOL
	}
	return &Analyzer{cfg: cfg, rug: rug, assets: assets, jup: jup, logger: logger.Named("analyzer")}
}

// FullAnalysis never fails: anything it cannot verify leaves the token unsafe.
func (a *Analyzer) FullAnalysis(ctx context.Context, mint string) *Analysis {
	res := &Analysis{
		Mint:            mint,
		RiskScore:       100,
		MintAuthority:   true,
		FreezeAuthority: true,
		Top10Percent:    100,
	}

	report, err := a.rug.Report(ctx, mint)
	if err != nil {
		a.logger.Error("Risk report failed", zap.String("mint", mint), zap.Error(err))
		res.DangerReason = fmt.Sprintf("risk report unavailable: %v", err)
		return res
	}

	res.RiskScore = report.RiskScore()
	res.IsSafe = res.RiskScore < a.cfg.MaxRiskScore
	res.DangerReason = report.DangerReason()
	res.Name = report.TokenMeta.Name
	res.Symbol = report.TokenMeta.Symbol
	res.HolderCount = report.HolderCount()
	res.Top10Percent = report.Top10Percent()
	res.MintAuthority = report.HasMintAuthority()
	res.FreezeAuthority = report.HasFreezeAuthority()
	res.LiquidityUSD = report.TotalMarketLiquidity
	res.SafetyScore = math.Max(0, 100-res.RiskScore)

	if report.Rugged {
		res.Rugged = true
		res.IsSafe = false
		res.DangerReason = "Token has been rugged"
	}

	if a.assets != nil {
		if asset, err := a.assets.GetAsset(ctx, mint); err != nil {
			a.logger.Debug("Asset metadata unavailable", zap.String("mint", mint), zap.Error(err))
		} else {
			if asset.Name() != "" {
				res.Name = asset.Name()
			}
			if asset.Symbol() != "" {
				res.Symbol = asset.Symbol()
			}
			res.PriceUSD = asset.PriceUSD()
		}
	}

	if a.jup != nil {
		a.roundTrip(ctx, res)
	}

	a.logger.Info("Token analysed",
		zap.String("mint", mint),
		zap.Bool("safe", res.IsSafe),
		zap.Float64("risk", res.RiskScore),
		zap.Float64("sell_tax", res.SellTax),
	)
	return res
}

// roundTrip quotes a small buy and sells the result back to estimate the sell tax.
func (a *Analyzer) roundTrip(ctx context.Context, res *Analysis) {
	sampleLamports := chain.SOLToLamports(a.cfg.RoundTripSOL)

	buy, err := a.jup.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   jupiter.SOLMint,
		OutputMint:  res.Mint,
		Amount:      sampleLamports,
		SlippageBps: roundTripSlippageBps,
	})
	if err != nil {
		if errors.Is(err, jupiter.ErrNoRoute) {
			res.IsSafe = false
			res.DangerReason = "No liquidity: no buy route"
			return
		}
		a.logger.Warn("Round-trip buy quote failed", zap.String("mint", res.Mint), zap.Error(err))
		return
	}
	tokens := buy.OutAmountValue()
	if tokens == 0 {
		res.IsSafe = false
		res.DangerReason = "No liquidity: no buy route"
		return
	}

	sell, err := a.jup.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   res.Mint,
		OutputMint:  jupiter.SOLMint,
		Amount:      tokens,
		SlippageBps: roundTripSlippageBps,
	})
	if err != nil {
		if errors.Is(err, jupiter.ErrNoRoute) {
			res.IsHoneypot = true
			res.IsSafe = false
			res.DangerReason = "Honeypot detected! No sell route"
			return
		}
		a.logger.Warn("Round-trip sell quote failed", zap.String("mint", res.Mint), zap.Error(err))
		return
	}

	res.PriceImpact = buy.PriceImpact() + sell.PriceImpact()
	back := sell.OutAmountValue()
	if back == 0 {
		res.IsHoneypot = true
		res.IsSafe = false
		res.DangerReason = "Honeypot detected! Sell returns nothing"
		return
	}

	spent := buy.InAmountValue()
	if spent == 0 {
		spent = sampleLamports
	}
	loss := (float64(spent) - float64(back)) / float64(spent) * 100
	res.SellTax = math.Max(0, loss-res.PriceImpact)
	if res.SellTax > a.cfg.MaxSellTaxPct {
		res.IsSafe = false
		res.DangerReason = fmt.Sprintf("Honeypot detected! Sell tax: %.1f%%", res.SellTax)
	}
}
