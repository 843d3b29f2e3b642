package trader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"mex-balancer-bot-go/internal/chain"
	"mex-balancer-bot-go/internal/config"
	"mex-balancer-bot-go/internal/database"
	"mex-balancer-bot-go/internal/fees"
	"mex-balancer-bot-go/internal/models"
	"mex-balancer-bot-go/internal/sniper"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PositionStore persists the lifecycle of monitored trades.
type PositionStore interface {
	AllActiveTrades(ctx context.Context) ([]models.Trade, error)
	UpdateTradePnL(ctx context.Context, tradeID uint, pnl, highest float64) error
	MarkTakeProfit(ctx context.Context, tradeID uint, tp database.TakeProfit) error
	CloseTrade(ctx context.Context, tradeID uint, exit database.TradeExit) error
}

var _ PositionStore = (*database.Store)(nil)

// Notifier delivers trade updates to users and the public channel.
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, text string) error
	NotifyChannel(ctx context.Context, text string, silent bool) error
}

// Engine monitors open positions and executes the exit strategy.
type Engine struct {
	UUID      string
	Name      string
	StartTime time.Time

	logger   *zap.Logger
	store    PositionStore
	executor sniper.TradeExecutor
	fees     fees.Collector
	notifier Notifier
	strategy ExitStrategy
	interval time.Duration
	slippage int

	mu        sync.RWMutex
	positions map[uint]*Position
	running   atomic.Bool
}

// NewEngine creates a position monitor using the strategy named in cfg.
func NewEngine(logger *zap.Logger, cfg config.Trading, store PositionStore, executor sniper.TradeExecutor, collector fees.Collector, notifier Notifier) (*Engine, error) {
	strategy, err := NewStrategy(cfg.Strategy, cfg)
	if err != nil {
		return nil, err
	}
	interval := cfg.PollEvery()
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Engine{
		UUID:      uuid.NewString(),
		Name:      "mex-balancer-autotrader",
		StartTime: time.Now(),
		logger:    logger.Named("engine"),
		store:     store,
		executor:  executor,
		fees:      collector,
		notifier:  notifier,
		strategy:  strategy,
		interval:  interval,
		slippage:  cfg.SellSlippageBps,
		positions: make(map[uint]*Position),
	}, nil
}

// Strategy returns the active exit strategy.
func (e *Engine) Strategy() ExitStrategy {
	return e.strategy
}

// IsRunning reports whether the monitor loop is active.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// Run restores open trades and checks every position on each tick until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("Initializing position monitor...", zap.String("strategy", e.strategy.Name()))
	if err := e.restore(ctx); err != nil {
		e.logger.Error("Failed to restore active positions", zap.Error(err))
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.running.Store(true)
	defer e.running.Store(false)
	e.logger.Info("Starting monitor loop", zap.Duration("interval", e.interval), zap.Int("positions", e.ActiveCount()))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping position monitor...")
			return
		case <-ticker.C:
			e.CheckPositions(ctx)
		}
	}
}

func (e *Engine) restore(ctx context.Context) error {
	trades, err := e.store.AllActiveTrades(ctx)
	if err != nil {
		return err
	}
	for _, t := range trades {
		e.AddPosition(PositionFromTrade(t))
	}
	e.logger.Info("Restored active positions", zap.Int("count", len(trades)))
	return nil
}

// AddPosition starts monitoring p.
func (e *Engine) AddPosition(p *Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.positions[p.TradeID] = p
	e.logger.Info("Added position", zap.Uint("trade_id", p.TradeID), zap.String("mint", p.Mint), zap.Int64("user_id", p.UserID))
}

// RemovePosition stops monitoring a trade.
func (e *Engine) RemovePosition(tradeID uint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.positions, tradeID)
}

// Positions returns copies of the monitored positions ordered by trade id.
func (e *Engine) Positions() []Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TradeID < out[j].TradeID })
	return out
}

// ActiveCount returns the number of monitored positions.
func (e *Engine) ActiveCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.positions)
}

func (e *Engine) save(p *Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.positions[p.TradeID]; ok {
		*cur = *p
	}
}

// CheckPositions runs one monitoring cycle over every position.
func (e *Engine) CheckPositions(ctx context.Context) {
	for _, p := range e.Positions() {
		if ctx.Err() != nil {
			return
		}
		pos := p
		if err := e.checkPosition(ctx, &pos); err != nil {
			e.logger.Error("Position check failed", zap.Uint("trade_id", pos.TradeID), zap.Error(err))
		}
	}
}

func (e *Engine) checkPosition(ctx context.Context, p *Position) error {
	if p.exit != nil {
		return e.recordClose(ctx, p)
	}
	invested := p.Invested()
	if invested == 0 {
		return nil
	}

	value, err := e.executor.TokenValue(ctx, p.Mint, p.TokenAmount)
	if err != nil {
		return err
	}

	p.PnL = (value - invested) / invested * 100
	if p.PnL > p.HighestPnL {
		p.HighestPnL = p.PnL
	}

	d := e.strategy.Decide(p)
	switch d.Action {
	case SellAll:
		return e.closePosition(ctx, p, d.Reason)
	case SellPartial:
		return e.partialSell(ctx, p, d)
	}

	e.save(p)
	return e.store.UpdateTradePnL(ctx, p.TradeID, p.PnL, p.HighestPnL)
}

func (e *Engine) closePosition(ctx context.Context, p *Position, reason string) error {
	l := e.logger.With(zap.Uint("trade_id", p.TradeID), zap.String("mint", p.Mint), zap.String("reason", reason))

	var out float64
	var sig string
	res, err := e.executor.Sell(ctx, p.Mint, p.TokenAmount, e.slippage)
	switch {
	case errors.Is(err, sniper.ErrZeroBalance):
		l.Warn("No tokens left in wallet, closing position without proceeds")
	case err != nil:
		return fmt.Errorf("sell failed: %w", err)
	default:
		out = res.OutSOL
		sig = res.Signature
	}

	exitPrice := 0.0
	if sold := p.TokensUI(); sold > 0 {
		exitPrice = out / sold
	}

	profit := p.RealizedSOL + out - p.AmountSOL
	fee := e.fees.CalculateFee(profit)
	if fee > 0 {
		if _, err := e.fees.Collect(ctx, fee); err != nil {
			l.Error("Fee collection failed", zap.Float64("fee_sol", fee), zap.Error(err))
			fee = 0
		}
	}

	p.exit = &pendingExit{
		reason:    reason,
		signature: sig,
		profit:    profit,
		record: database.TradeExit{
			ExitPrice: exitPrice,
			PnL:       p.PnL,
			FeePaid:   fee,
			ProfitSOL: profit - fee,
		},
	}
	p.TokenAmount = 0
	return e.recordClose(ctx, p)
}

// recordClose closes the trade record of a sold position. On a store error the
// position stays monitored and only the write is retried on the next cycle.
func (e *Engine) recordClose(ctx context.Context, p *Position) error {
	x := p.exit
	l := e.logger.With(zap.Uint("trade_id", p.TradeID), zap.String("mint", p.Mint), zap.String("reason", x.reason))

	err := e.store.CloseTrade(ctx, p.TradeID, x.record)
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, database.ErrAlreadyClosed):
		l.Warn("Trade record already closed or missing", zap.Error(err))
	case err != nil:
		e.save(p)
		return fmt.Errorf("failed to close trade record: %w", err)
	}
	e.RemovePosition(p.TradeID)
	l.Info("Position closed", zap.Float64("pnl", p.PnL), zap.Float64("profit_sol", x.profit), zap.Float64("fee_sol", x.record.FeePaid))

	msg := fmt.Sprintf("🔴 *%s EXECUTED*\n\nToken: `%s`\nExit P&L: %+.2f%%\nProfit: %+.4f SOL\nFee: %.4f SOL\nTX: `%s`",
		x.reason, p.Mint, p.PnL, x.record.ProfitSOL, x.record.FeePaid, x.signature)
	e.notify(ctx, p.UserID, msg)
	return nil
}

func (e *Engine) partialSell(ctx context.Context, p *Position, d Decision) error {
	amount := uint64(float64(p.TokenAmount) * d.Portion)
	if amount == 0 {
		return nil
	}

	res, err := e.executor.Sell(ctx, p.Mint, amount, e.slippage)
	if err != nil {
		return fmt.Errorf("partial sell failed: %w", err)
	}

	if res.AmountSold >= p.TokenAmount {
		p.TokenAmount = 0
	} else {
		p.TokenAmount -= res.AmountSold
	}
	p.RealizedSOL += res.OutSOL
	switch d.Level {
	case 1:
		p.TP1Hit = true
	case 2:
		p.TP2Hit = true
	}

	if err := e.store.MarkTakeProfit(ctx, p.TradeID, database.TakeProfit{
		Level:       d.Level,
		Remaining:   p.TokenAmount,
		RealizedSOL: p.RealizedSOL,
		PnL:         p.PnL,
	}); err != nil {
		e.logger.Error("Failed to record take profit", zap.Uint("trade_id", p.TradeID), zap.Error(err))
	}
	e.save(p)

	msg := fmt.Sprintf("🟢 *%s EXECUTED (%.0f%%)*\n\nToken: `%s`\nCurrent P&L: %+.2f%%\nSold for: %.4f SOL\nRemaining: %s tokens\nTrailing stop activated",
		d.Reason, d.Portion*100, p.Mint, p.PnL, res.OutSOL, chain.FormatTokens(p.TokensUI()))
	e.notify(ctx, p.UserID, msg)
	return nil
}

func (e *Engine) notify(ctx context.Context, userID int64, msg string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.NotifyUser(ctx, userID, msg); err != nil {
		e.logger.Warn("Failed to notify user", zap.Int64("user_id", userID), zap.Error(err))
	}
	if err := e.notifier.NotifyChannel(ctx, "📊 *TRADE UPDATE*\n"+msg, false); err != nil {
		e.logger.Warn("Failed to notify channel", zap.Error(err))
	}
}

// ValueOf returns the current SOL value and PnL of a position.
func (e *Engine) ValueOf(ctx context.Context, p Position) (float64, float64, error) {
	value, err := e.executor.TokenValue(ctx, p.Mint, p.TokenAmount)
	if err != nil {
		return 0, 0, err
	}
	invested := p.Invested()
	if invested == 0 {
		return value, 0, nil
	}
	return value, (value - invested) / invested * 100, nil
}
