package database

import (
	"time"

	"mex-balancer-bot-go/internal/models"
)

// StatsDetail holds calculated statistics for a given period.
type StatsDetail struct {
	TotalTrades      int64   `json:"total_trades"`
	ProfitableTrades int64   `json:"profitable_trades"`
	WinRate          float64 `json:"win_rate"`
	TotalProfit      float64 `json:"total_profit"`
	FeesPaid         float64 `json:"fees_paid"`
}

// Statistics is the 24h and all-time breakdown of closed trades.
type Statistics struct {
	Since24h StatsDetail `json:"since_24h"`
	AllTime  StatsDetail `json:"all_time"`
}

func (d *StatsDetail) add(t models.Trade) {
	d.TotalTrades++
	if t.ProfitSOL > 0 {
		d.ProfitableTrades++
	}
	d.TotalProfit += t.ProfitSOL
	d.FeesPaid += t.FeePaid
}

func (d *StatsDetail) finish() {
	if d.TotalTrades > 0 {
		d.WinRate = float64(d.ProfitableTrades) / float64(d.TotalTrades)
	}
}

// ComputeStatistics folds closed trades into 24h and all-time figures relative to now.
// Open trades are ignored.
func ComputeStatistics(trades []models.Trade, now time.Time) Statistics {
	since24h := now.Add(-24 * time.Hour)

	var stats Statistics
	for _, trade := range trades {
		if trade.Status != models.StatusClosed {
			continue
		}
		stats.AllTime.add(trade)
		if trade.UpdatedAt.After(since24h) {
			stats.Since24h.add(trade)
		}
	}
	stats.AllTime.finish()
	stats.Since24h.finish()
	return stats
}
