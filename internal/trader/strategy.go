package trader

import (
	"fmt"

	"mex-balancer-bot-go/internal/config"
)

// Action is what a strategy wants done with a position.
type Action int

const (
	Hold Action = iota
	SellPartial
	SellAll
)

func (a Action) String() string {
	switch a {
	case SellPartial:
		return "sell_partial"
	case SellAll:
		return "sell_all"
	default:
		return "hold"
	}
}

// Decision is the outcome of evaluating a position.
type Decision struct {
	Action  Action
	Portion float64 // fraction of the remaining tokens, SellPartial only
	Level   int     // take-profit level reached, 0 otherwise
	Reason  string
}

// ExitStrategy decides when to take profit or cut losses.
type ExitStrategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Decide evaluates a position whose PnL and HighestPnL are already current.
	Decide(p *Position) Decision
}

// NewStrategy returns the exit strategy registered under name.
func NewStrategy(name string, cfg config.Trading) (ExitStrategy, error) {
	switch name {
	case "", TieredStrategyName:
		return NewTieredStrategy(cfg), nil
	case FixedStrategyName:
		return NewFixedStrategy(cfg), nil
	default:
		return nil, fmt.Errorf("unknown strategy: %s", name)
	}
}

const (
	TieredStrategyName = "tiered"
	FixedStrategyName  = "fixed"
)

// TieredStrategy sells in stages: a stop loss, a partial first take profit,
// a full second take profit, and a trailing stop once the peak is high enough.
type TieredStrategy struct {
	stopLoss           float64
	takeProfit1        float64
	takeProfit1Portion float64
	takeProfit2        float64
	trailingActivation float64
	trailingDistance   float64
}

// NewTieredStrategy creates a TieredStrategy from the trading thresholds.
func NewTieredStrategy(cfg config.Trading) *TieredStrategy {
	portion := cfg.TakeProfit1Portion
	if portion <= 0 || portion >= 1 {
		portion = 0.5
	}
	return &TieredStrategy{
		stopLoss:           cfg.StopLossPct,
		takeProfit1:        cfg.TakeProfit1Pct,
		takeProfit1Portion: portion,
		takeProfit2:        cfg.TakeProfit2Pct,
		trailingActivation: cfg.TrailingActivationPct,
		trailingDistance:   cfg.TrailingDistancePct,
	}
}

func (s *TieredStrategy) Name() string { return TieredStrategyName }

func (s *TieredStrategy) Decide(p *Position) Decision {
	pnl := p.PnL
	switch {
	case pnl <= -s.stopLoss:
		return Decision{Action: SellAll, Reason: "STOP LOSS"}
	case pnl >= s.takeProfit1 && !p.TP1Hit:
		return Decision{Action: SellPartial, Portion: s.takeProfit1Portion, Level: 1, Reason: "TP1"}
	case pnl >= s.takeProfit2 && p.TP1Hit && !p.TP2Hit:
		return Decision{Action: SellAll, Level: 2, Reason: "TP2"}
	case p.HighestPnL > s.trailingActivation && pnl < p.HighestPnL-s.trailingDistance:
		return Decision{Action: SellAll, Reason: "TRAILING STOP"}
	}
	return Decision{Action: Hold}
}

// FixedStrategy exits the whole position at the stop loss or the first take profit.
type FixedStrategy struct {
	stopLoss   float64
	takeProfit float64
}

// NewFixedStrategy creates a FixedStrategy from the trading thresholds.
func NewFixedStrategy(cfg config.Trading) *FixedStrategy {
	return &FixedStrategy{stopLoss: cfg.StopLossPct, takeProfit: cfg.TakeProfit1Pct}
}

func (s *FixedStrategy) Name() string { return FixedStrategyName }

func (s *FixedStrategy) Decide(p *Position) Decision {
	switch {
	case p.PnL <= -s.stopLoss:
		return Decision{Action: SellAll, Reason: "STOP LOSS"}
	case p.PnL >= s.takeProfit:
		return Decision{Action: SellAll, Level: 1, Reason: "TAKE PROFIT"}
	}
	return Decision{Action: Hold}
}
