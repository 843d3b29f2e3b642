package sniper

import (
	"context"
	"errors"
	"fmt"

	"mex-balancer-bot-go/internal/chain"
	"mex-balancer-bot-go/internal/config"
	"mex-balancer-bot-go/internal/jito"
	"mex-balancer-bot-go/internal/jupiter"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SimulatedPrefix marks signatures of dry-run trades.
const SimulatedPrefix = "SIM-"

var (
	ErrNoLiquidity = errors.New("no liquidity for token")
	ErrZeroBalance = errors.New("no token balance to sell")
)

// TradeExecutor buys and sells tokens against SOL from the trading wallet.
type TradeExecutor interface {
	Snipe(ctx context.Context, mint string, amountSOL float64, slippageBps int) (*SnipeResult, error)
	Sell(ctx context.Context, mint string, rawAmount uint64, slippageBps int) (*SellResult, error)
	TokenValue(ctx context.Context, mint string, rawAmount uint64) (float64, error)
	WalletBalance(ctx context.Context) (float64, error)
	WalletAddress() string
}

// SnipeResult describes a completed buy.
type SnipeResult struct {
	Signature     string
	BundleID      string
	AmountSOL     float64
	TokenAmount   uint64
	TokenDecimals uint8
	EntryPrice    float64 // SOL per whole token
	PriceImpact   float64
	Simulated     bool
}

// TokensUI returns the bought amount in whole tokens.
func (r *SnipeResult) TokensUI() float64 {
	return chain.ToUIAmount(r.TokenAmount, r.TokenDecimals)
}

// SellResult describes a completed sell.
type SellResult struct {
	Signature  string
	BundleID   string
	AmountSold uint64
	OutSOL     float64
	Simulated  bool
}

// Sniper executes Jupiter swaps, optionally landing them through a Jito bundle.
type Sniper struct {
	jup             jupiter.RestClientInterface
	chain           chain.Client
	bundles         jito.BundleSender
	dryRun          bool
	priorityFee     uint64
	jitoTip         uint64
	sellSlippageBps int
	logger          *zap.Logger
}

var _ TradeExecutor = (*Sniper)(nil)

// New creates a Sniper. bundles may be nil to send transactions over RPC only.
func New(trading config.Trading, jup config.Jupiter, jitoCfg config.Jito, jupClient jupiter.RestClientInterface, client chain.Client, bundles jito.BundleSender, logger *zap.Logger) *Sniper {
	s := &Sniper{
		jup:             jupClient,
		chain:           client,
		bundles:         bundles,
		dryRun:          trading.DryRun,
		priorityFee:     jup.PriorityFeeLamports,
		sellSlippageBps: trading.SellSlippageBps,
		logger:          logger.Named("sniper"),
	}
	if bundles != nil {
		s.jitoTip = jitoCfg.TipLamports
	}
	if s.sellSlippageBps <= 0 {
		s.sellSlippageBps = 300
	}
	return s
}

// Snipe buys mint with amountSOL.
func (s *Sniper) Snipe(ctx context.Context, mint string, amountSOL float64, slippageBps int) (*SnipeResult, error) {
	lamports := chain.SOLToLamports(amountSOL)
	if lamports == 0 {
		return nil, fmt.Errorf("invalid amount %.9f SOL", amountSOL)
	}

	quote, err := s.jup.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   jupiter.SOLMint,
		OutputMint:  mint,
		Amount:      lamports,
		SlippageBps: slippageBps,
	})
	if err != nil {
		if errors.Is(err, jupiter.ErrNoRoute) {
			return nil, fmt.Errorf("%w: %v", ErrNoLiquidity, err)
		}
		return nil, fmt.Errorf("failed to get buy quote: %w", err)
	}
	tokens := quote.OutAmountValue()
	if tokens == 0 {
		return nil, ErrNoLiquidity
	}

	decimals, err := s.chain.TokenDecimals(ctx, mint)
	if err != nil {
		return nil, err
	}

	res := &SnipeResult{
		AmountSOL:     amountSOL,
		TokenAmount:   tokens,
		TokenDecimals: decimals,
		PriceImpact:   quote.PriceImpact(),
	}
	res.EntryPrice = amountSOL / res.TokensUI()

	if s.dryRun {
		res.Signature = SimulatedPrefix + uuid.NewString()
		res.Simulated = true
		s.logger.Info("Simulated buy", zap.String("mint", mint), zap.Float64("amount_sol", amountSOL), zap.Uint64("tokens", tokens))
		return res, nil
	}

	res.Signature, res.BundleID, err = s.execute(ctx, quote)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Buy executed",
		zap.String("mint", mint),
		zap.Float64("amount_sol", amountSOL),
		zap.Uint64("tokens", tokens),
		zap.String("signature", res.Signature),
	)
	return res, nil
}

// Sell swaps up to rawAmount of mint back to SOL, capped at the wallet balance.
func (s *Sniper) Sell(ctx context.Context, mint string, rawAmount uint64, slippageBps int) (*SellResult, error) {
	if slippageBps <= 0 {
		slippageBps = s.sellSlippageBps
	}
	if !s.dryRun {
		balance, err := s.chain.TokenBalance(ctx, mint)
		if err != nil {
			return nil, err
		}
		if rawAmount > balance {
			s.logger.Warn("Sell amount exceeds balance", zap.String("mint", mint), zap.Uint64("requested", rawAmount), zap.Uint64("balance", balance))
			rawAmount = balance
		}
	}
	if rawAmount == 0 {
		return nil, ErrZeroBalance
	}

	quote, err := s.jup.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   mint,
		OutputMint:  jupiter.SOLMint,
		Amount:      rawAmount,
		SlippageBps: slippageBps,
	})
	if err != nil {
		if errors.Is(err, jupiter.ErrNoRoute) {
			return nil, fmt.Errorf("%w: %v", ErrNoLiquidity, err)
		}
		return nil, fmt.Errorf("failed to get sell quote: %w", err)
	}

	res := &SellResult{AmountSold: rawAmount, OutSOL: chain.LamportsToSOL(quote.OutAmountValue())}
	if s.dryRun {
		res.Signature = SimulatedPrefix + uuid.NewString()
		res.Simulated = true
		return res, nil
	}

	res.Signature, res.BundleID, err = s.execute(ctx, quote)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Sell executed", zap.String("mint", mint), zap.Uint64("amount", rawAmount), zap.Float64("out_sol", res.OutSOL))
	return res, nil
}

// TokenValue quotes rawAmount of mint in SOL.
func (s *Sniper) TokenValue(ctx context.Context, mint string, rawAmount uint64) (float64, error) {
	if rawAmount == 0 {
		return 0, nil
	}
	quote, err := s.jup.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   mint,
		OutputMint:  jupiter.SOLMint,
		Amount:      rawAmount,
		SlippageBps: s.sellSlippageBps,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to value %s: %w", mint, err)
	}
	return chain.LamportsToSOL(quote.OutAmountValue()), nil
}

// WalletBalance returns the trading wallet balance in SOL.
func (s *Sniper) WalletBalance(ctx context.Context) (float64, error) {
	return s.chain.Balance(ctx)
}

// WalletAddress returns the trading wallet address.
func (s *Sniper) WalletAddress() string {
	return s.chain.WalletAddress()
}

func (s *Sniper) execute(ctx context.Context, quote *jupiter.QuoteResponse) (string, string, error) {
	swap, err := s.jup.Swap(ctx, jupiter.SwapRequest{
		Quote:               quote,
		UserPublicKey:       s.chain.WalletAddress(),
		PriorityFeeLamports: s.priorityFee,
		JitoTipLamports:     s.jitoTip,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to build swap: %w", err)
	}

	if s.bundles == nil {
		sig, err := s.chain.SignAndSend(ctx, swap.SwapTransaction)
		if err != nil {
			return sig, "", err
		}
		return sig, "", nil
	}

	signed, sig, err := s.chain.SignTransaction(swap.SwapTransaction)
	if err != nil {
		return "", "", err
	}
	bundleID, err := s.bundles.SendBundle(ctx, []string{signed})
	if err != nil {
		s.logger.Warn("Bundle rejected, sending over RPC", zap.Error(err))
		if sig, err = s.chain.SendSigned(ctx, signed); err != nil {
			return "", "", err
		}
		return sig, "", s.chain.Confirm(ctx, sig)
	}

	err = s.chain.Confirm(ctx, sig)
	if !errors.Is(err, chain.ErrConfirmTimeout) {
		return sig, bundleID, err
	}

	// The same signed transaction can be resent without risk of a second fill.
	status, statusErr := s.bundles.GetBundleStatus(ctx, bundleID)
	if statusErr != nil {
		s.logger.Warn("Bundle status unavailable", zap.String("bundle_id", bundleID), zap.Error(statusErr))
	}
	if status.Landed() {
		s.logger.Info("Bundle landed", zap.String("bundle_id", bundleID), zap.Uint64("slot", status.Slot))
		return sig, bundleID, nil
	}
	s.logger.Warn("Bundle not landed, sending over RPC", zap.String("bundle_id", bundleID))
	if sig, err = s.chain.SendSigned(ctx, signed); err != nil {
		return "", bundleID, err
	}
	return sig, bundleID, s.chain.Confirm(ctx, sig)
}
