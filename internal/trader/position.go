package trader

import (
	"time"

	"mex-balancer-bot-go/internal/chain"
	"mex-balancer-bot-go/internal/database"
	"mex-balancer-bot-go/internal/models"
)

// Position is an open trade under auto-sell supervision.
type Position struct {
	TradeID     uint
	UserID      int64
	Mint        string
	AmountSOL   float64
	EntryPrice  float64
	TokenAmount uint64 // remaining raw units
	Decimals    uint8
	RealizedSOL float64
	PnL         float64
	HighestPnL  float64
	TP1Hit      bool
	TP2Hit      bool
	OpenedAt    time.Time

	exit *pendingExit // sold, close not yet recorded
}

// pendingExit is a completed sell whose trade record still has to be closed.
type pendingExit struct {
	reason    string
	signature string
	record    database.TradeExit
	profit    float64
}

// PositionFromTrade builds a Position from a persisted trade.
func PositionFromTrade(t models.Trade) *Position {
	return &Position{
		TradeID:     t.ID,
		UserID:      t.UserID,
		Mint:        t.TokenAddress,
		AmountSOL:   t.AmountSOL,
		EntryPrice:  t.EntryPrice,
		TokenAmount: uint64(t.TokenAmount),
		Decimals:    t.TokenDecimals,
		RealizedSOL: t.RealizedSOL,
		PnL:         t.PnLPercent,
		HighestPnL:  t.HighestPnL,
		TP1Hit:      t.TP1Hit,
		TP2Hit:      t.TP2Hit,
		OpenedAt:    t.CreatedAt,
	}
}

// TokensUI returns the remaining amount in whole tokens.
func (p *Position) TokensUI() float64 {
	return chain.ToUIAmount(p.TokenAmount, p.Decimals)
}

// Invested returns the SOL cost basis of the remaining tokens.
func (p *Position) Invested() float64 {
	return p.EntryPrice * p.TokensUI()
}
