package fees

import (
	"context"
	"fmt"

	"mex-balancer-bot-go/internal/chain"
	"mex-balancer-bot-go/internal/config"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Projection assumptions for a typical week of trading.
var (
	projectedWinRate   = decimal.NewFromFloat(0.6)
	projectedAvgProfit = decimal.NewFromFloat(0.30)
	weeksPerMonth      = decimal.NewFromInt(4)
	hundred            = decimal.NewFromInt(100)
)

// Collector charges the platform fee on realized profit.
type Collector interface {
	CalculateFee(profitSOL float64) float64
	Collect(ctx context.Context, feeSOL float64) (string, error)
}

// Manager calculates and transfers platform fees.
type Manager struct {
	percent decimal.Decimal
	wallet  string
	chain   chain.Client
	dryRun  bool
	logger  *zap.Logger
}

var _ Collector = (*Manager)(nil)

// NewManager creates a fee manager sending fees from the trading wallet to cfg.Wallet.
// Without cfg.Wallet the trading wallet itself receives payments.
func NewManager(cfg config.Fees, client chain.Client, dryRun bool, logger *zap.Logger) *Manager {
	wallet := cfg.Wallet
	if wallet == "" && client != nil {
		wallet = client.WalletAddress()
	}
	return &Manager{
		percent: decimal.NewFromFloat(cfg.Percent),
		wallet:  wallet,
		chain:   client,
		dryRun:  dryRun,
		logger:  logger.Named("fees"),
	}
}

// Percent returns the fee rate in percent.
func (m *Manager) Percent() float64 {
	return m.percent.InexactFloat64()
}

// Wallet returns the fee destination address.
func (m *Manager) Wallet() string {
	return m.wallet
}

// CalculateFee returns the fee owed on a profit. Losses are never charged.
func (m *Manager) CalculateFee(profitSOL float64) float64 {
	if profitSOL <= 0 {
		return 0
	}
	return decimal.NewFromFloat(profitSOL).Mul(m.percent).Div(hundred).InexactFloat64()
}

// Collect transfers feeSOL to the fee wallet and returns the transfer signature.
// It does nothing for a zero fee, in dry-run, or when fees would go back to the trading wallet.
func (m *Manager) Collect(ctx context.Context, feeSOL float64) (string, error) {
	lamports := chain.SOLToLamports(feeSOL)
	if lamports == 0 || m.wallet == "" {
		return "", nil
	}
	if m.dryRun {
		m.logger.Info("Dry run, fee not transferred", zap.Float64("fee_sol", feeSOL))
		return "", nil
	}
	if m.chain == nil || m.wallet == m.chain.WalletAddress() {
		return "", nil
	}

	sig, err := m.chain.Transfer(ctx, m.wallet, lamports)
	if err != nil {
		return "", fmt.Errorf("failed to collect fee of %.6f SOL: %w", feeSOL, err)
	}
	m.logger.Info("Fee collected", zap.Float64("fee_sol", feeSOL), zap.String("signature", sig))
	return sig, nil
}

// Projection estimates platform revenue from a week of user volume.
type Projection struct {
	WeeklyVolumeSOL    float64
	ProjectedProfitSOL float64
	PlatformFeesSOL    float64
	UserNetProfitSOL   float64
	MonthlyFeesSOL     float64
}

// Projections assumes a 60% win rate with 30% average profit on winners.
func (m *Manager) Projections(weeklyVolumeSOL float64) Projection {
	volume := decimal.NewFromFloat(weeklyVolumeSOL)
	profits := volume.Mul(projectedWinRate).Mul(projectedAvgProfit)
	fees := profits.Mul(m.percent).Div(hundred)

	return Projection{
		WeeklyVolumeSOL:    weeklyVolumeSOL,
		ProjectedProfitSOL: profits.InexactFloat64(),
		PlatformFeesSOL:    fees.InexactFloat64(),
		UserNetProfitSOL:   profits.Sub(fees).InexactFloat64(),
		MonthlyFeesSOL:     fees.Mul(weeksPerMonth).InexactFloat64(),
	}
}
