package models

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Trade statuses.
const (
	StatusActive = "active"
	StatusClosed = "closed"
)

var ErrNegativeAmount = errors.New("trade amounts must be non-negative")

// Trade is one snipe and its lifecycle until the position is fully sold.
// TokenAmount is the remaining position in raw base units.
type Trade struct {
	gorm.Model
	UserID          int64     `gorm:"index;not null" json:"user_id"`
	TokenAddress    string    `gorm:"index;not null" json:"token_address"`
	AmountSOL       float64   `gorm:"column:amount_sol;not null" json:"amount_sol"`
	EntryPrice      float64   `json:"entry_price"` // SOL per token
	ExitPrice       float64   `json:"exit_price"`
	TokenAmount     RawAmount `gorm:"type:varchar(20)" json:"token_amount"`
	TokenDecimals   uint8     `json:"token_decimals"`
	TxSignature     string    `gorm:"uniqueIndex;not null" json:"tx_signature"`
	Status          string    `gorm:"index;not null" json:"status"`
	FeePaid         float64   `json:"fee_paid"`
	PnLPercent      float64   `gorm:"column:pnl_percent" json:"pnl_percent"`
	HighestPnL      float64   `gorm:"column:highest_pnl" json:"highest_pnl"`
	RealizedSOL     float64   `gorm:"column:realized_sol" json:"realized_sol"`
	ProfitSOL       float64   `gorm:"column:profit_sol" json:"profit_sol"`
	AutoSellEnabled bool      `json:"auto_sell_enabled"`
	TP1Hit          bool      `gorm:"column:tp1_hit" json:"tp1_hit"`
	TP2Hit          bool      `gorm:"column:tp2_hit" json:"tp2_hit"`
	IsSimulation    bool      `json:"is_simulation"`
}

// BeforeCreate defaults the status of new trades to active.
func (t *Trade) BeforeCreate(tx *gorm.DB) error {
	if t.Status == "" {
		t.Status = StatusActive
	}
	return nil
}

// BeforeSave enforces the non-negative amount invariant.
func (t *Trade) BeforeSave(tx *gorm.DB) error {
	if t.AmountSOL < 0 || t.EntryPrice < 0 || t.ExitPrice < 0 || t.FeePaid < 0 || t.RealizedSOL < 0 {
		return ErrNegativeAmount
	}
	switch t.Status {
	case "", StatusActive, StatusClosed:
	default:
		return fmt.Errorf("invalid trade status %q", t.Status)
	}
	return nil
}
