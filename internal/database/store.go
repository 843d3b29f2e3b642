package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mex-balancer-bot-go/internal/models"

	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyClosed = errors.New("trade already closed")
)

// Store is the persistence layer for trades and users.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store on an open connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for read-only tooling.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// EnsureUser returns the user row, creating it on first contact and refreshing the username.
func (s *Store) EnsureUser(ctx context.Context, userID int64, username string) (*models.User, error) {
	user := models.User{UserID: userID}
	err := s.db.WithContext(ctx).
		Where(models.User{UserID: userID}).
		Attrs(models.User{Username: username, Tier: models.TierFree}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user %d: %w", userID, err)
	}

	if username != "" && user.Username != username {
		if err := s.db.WithContext(ctx).Model(&user).Update("username", username).Error; err != nil {
			return nil, fmt.Errorf("failed to update username for %d: %w", userID, err)
		}
	}
	return &user, nil
}

// GetUser loads a user by Telegram id.
func (s *Store) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return &user, nil
}

// RecordTrade inserts a new active trade and bumps the owner's trade counter atomically.
func (s *Store) RecordTrade(ctx context.Context, trade *models.Trade) (uint, error) {
	if trade.Status == "" {
		trade.Status = models.StatusActive
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(trade).Error; err != nil {
			return fmt.Errorf("failed to insert trade: %w", err)
		}

		user := models.User{UserID: trade.UserID}
		if err := tx.Where(models.User{UserID: trade.UserID}).
			Attrs(models.User{Tier: models.TierFree}).
			FirstOrCreate(&user).Error; err != nil {
			return fmt.Errorf("failed to load trade owner: %w", err)
		}
		return tx.Model(&models.User{}).
			Where("user_id = ?", trade.UserID).
			UpdateColumn("total_trades", gorm.Expr("total_trades + ?", 1)).Error
	})
	if err != nil {
		return 0, err
	}
	return trade.ID, nil
}

// ActivePositions returns a user's open trades, newest first.
func (s *Store) ActivePositions(ctx context.Context, userID int64) ([]models.Trade, error) {
	var trades []models.Trade
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.StatusActive).
		Order("created_at desc").
		Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get active positions: %w", err)
	}
	return trades, nil
}

// AllActiveTrades returns every open trade with auto-sell enabled, oldest first.
func (s *Store) AllActiveTrades(ctx context.Context) ([]models.Trade, error) {
	var trades []models.Trade
	err := s.db.WithContext(ctx).
		Where("status = ? AND auto_sell_enabled = ?", models.StatusActive, true).
		Order("created_at asc").
		Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get active trades: %w", err)
	}
	return trades, nil
}

// UpdateTradePnL stores the latest mark-to-market of an open trade.
func (s *Store) UpdateTradePnL(ctx context.Context, tradeID uint, pnl, highest float64) error {
	res := s.db.WithContext(ctx).Model(&models.Trade{}).
		Where("id = ? AND status = ?", tradeID, models.StatusActive).
		Updates(map[string]interface{}{"pnl_percent": pnl, "highest_pnl": highest})
	if res.Error != nil {
		return fmt.Errorf("failed to update pnl for trade %d: %w", tradeID, res.Error)
	}
	return nil
}

// TakeProfit describes a partial exit.
type TakeProfit struct {
	Level       int
	Remaining   uint64
	RealizedSOL float64
	PnL         float64
}

// MarkTakeProfit records a partial sell at the given take-profit level.
func (s *Store) MarkTakeProfit(ctx context.Context, tradeID uint, tp TakeProfit) error {
	if tp.RealizedSOL < 0 {
		return models.ErrNegativeAmount
	}
	updates := map[string]interface{}{
		"token_amount": models.RawAmount(tp.Remaining),
		"realized_sol": tp.RealizedSOL,
		"pnl_percent":  tp.PnL,
	}
	switch tp.Level {
	case 1:
		updates["tp1_hit"] = true
	case 2:
		updates["tp2_hit"] = true
	default:
		return fmt.Errorf("unknown take-profit level %d", tp.Level)
	}

	res := s.db.WithContext(ctx).Model(&models.Trade{}).
		Where("id = ? AND status = ?", tradeID, models.StatusActive).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to mark take-profit for trade %d: %w", tradeID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TradeExit is the final state of a closed trade.
type TradeExit struct {
	ExitPrice float64
	PnL       float64
	FeePaid   float64
	ProfitSOL float64
}

// CloseTrade finalizes a trade and folds its result into the owner's counters.
func (s *Store) CloseTrade(ctx context.Context, tradeID uint, exit TradeExit) error {
	if exit.ExitPrice < 0 || exit.FeePaid < 0 {
		return models.ErrNegativeAmount
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var trade models.Trade
		if err := tx.First(&trade, tradeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load trade %d: %w", tradeID, err)
		}
		if trade.Status == models.StatusClosed {
			return fmt.Errorf("trade %d: %w", tradeID, ErrAlreadyClosed)
		}

		if err := tx.Model(&trade).Updates(map[string]interface{}{
			"exit_price":   exit.ExitPrice,
			"pnl_percent":  exit.PnL,
			"fee_paid":     exit.FeePaid,
			"profit_sol":   exit.ProfitSOL,
			"token_amount": models.RawAmount(0),
			"status":       models.StatusClosed,
		}).Error; err != nil {
			return fmt.Errorf("failed to close trade %d: %w", tradeID, err)
		}

		userUpdates := map[string]interface{}{
			"total_pnl_sol": gorm.Expr("total_pnl_sol + ?", exit.ProfitSOL),
		}
		if exit.ProfitSOL > 0 {
			userUpdates["profitable_trades"] = gorm.Expr("profitable_trades + ?", 1)
		}
		return tx.Model(&models.User{}).
			Where("user_id = ?", trade.UserID).
			UpdateColumns(userUpdates).Error
	})
}

// CountTradesSince counts the trades a user opened after since.
func (s *Store) CountTradesSince(ctx context.Context, userID int64, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Trade{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return count, nil
}

// SetUserTier changes a user's subscription; a nil expiry never lapses.
func (s *Store) SetUserTier(ctx context.Context, userID int64, tier string, expires *time.Time) error {
	if !models.ValidTier(tier) {
		return fmt.Errorf("unknown tier %q", tier)
	}
	if _, err := s.EnsureUser(ctx, userID, ""); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{"tier": tier, "tier_expires_at": expires}).Error
}

// ClosedTrades returns closed trades, for one user when userID is non-zero.
func (s *Store) ClosedTrades(ctx context.Context, userID int64) ([]models.Trade, error) {
	q := s.db.WithContext(ctx).Where("status = ?", models.StatusClosed)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	var trades []models.Trade
	if err := q.Order("updated_at desc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to get closed trades: %w", err)
	}
	return trades, nil
}

// RecentTrades returns the newest trades of all users.
func (s *Store) RecentTrades(ctx context.Context, limit int) ([]models.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	var trades []models.Trade
	if err := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to get recent trades: %w", err)
	}
	return trades, nil
}

// RevenueStats sums fees collected on trades closed after a point in time.
type RevenueStats struct {
	ClosedTrades int64   `json:"closed_trades"`
	FeesSOL      float64 `json:"fees_sol"`
	VolumeSOL    float64 `json:"volume_sol"`
}

// Revenue aggregates fee income for trades closed since the given time.
func (s *Store) Revenue(ctx context.Context, since time.Time) (RevenueStats, error) {
	var out RevenueStats
	err := s.db.WithContext(ctx).Model(&models.Trade{}).
		Select("COUNT(*) AS closed_trades, COALESCE(SUM(fee_paid), 0) AS fees_sol, COALESCE(SUM(amount_sol), 0) AS volume_sol").
		Where("status = ? AND updated_at >= ?", models.StatusClosed, since).
		Scan(&out).Error
	if err != nil {
		return RevenueStats{}, fmt.Errorf("failed to compute revenue: %w", err)
	}
	return out, nil
}

// VolumeSince sums SOL invested in trades opened after since.
func (s *Store) VolumeSince(ctx context.Context, since time.Time) (float64, error) {
	var volume float64
	err := s.db.WithContext(ctx).Model(&models.Trade{}).
		Select("COALESCE(SUM(amount_sol), 0)").
		Where("created_at >= ?", since).
		Scan(&volume).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute volume: %w", err)
	}
	return volume, nil
}

// Overview is the admin dashboard summary.
type Overview struct {
	Users           int64   `json:"users"`
	PaidUsers       int64   `json:"paid_users"`
	TotalTrades     int64   `json:"total_trades"`
	ActivePositions int64   `json:"active_positions"`
	VolumeSOL       float64 `json:"volume_sol"`
	FeesSOL         float64 `json:"fees_sol"`
}

// Overview summarizes users and trades across the whole bot.
func (s *Store) Overview(ctx context.Context) (Overview, error) {
	var out Overview
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.User{}).Count(&out.Users).Error; err != nil {
		return out, fmt.Errorf("failed to count users: %w", err)
	}
	if err := db.Model(&models.User{}).Where("tier <> ?", models.TierFree).Count(&out.PaidUsers).Error; err != nil {
		return out, fmt.Errorf("failed to count paid users: %w", err)
	}
	if err := db.Model(&models.Trade{}).Count(&out.TotalTrades).Error; err != nil {
		return out, fmt.Errorf("failed to count trades: %w", err)
	}
	if err := db.Model(&models.Trade{}).Where("status = ?", models.StatusActive).Count(&out.ActivePositions).Error; err != nil {
		return out, fmt.Errorf("failed to count active positions: %w", err)
	}

	var sums struct {
		VolumeSOL float64
		FeesSOL   float64
	}
	if err := db.Model(&models.Trade{}).
		Select("COALESCE(SUM(amount_sol), 0) AS volume_sol, COALESCE(SUM(fee_paid), 0) AS fees_sol").
		Scan(&sums).Error; err != nil {
		return out, fmt.Errorf("failed to sum trades: %w", err)
	}
	out.VolumeSOL = sums.VolumeSOL
	out.FeesSOL = sums.FeesSOL
	return out, nil
}
