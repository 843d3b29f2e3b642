package models

import "time"

// Subscription tiers.
const (
	TierFree  = "free"
	TierPro   = "pro"
	TierWhale = "whale"
)

// ValidTier reports whether tier is a known subscription tier.
func ValidTier(tier string) bool {
	switch tier {
	case TierFree, TierPro, TierWhale:
		return true
	}
	return false
}

// User holds aggregate trading counters and the subscription of a Telegram user.
type User struct {
	UserID           int64      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Username         string     `json:"username"`
	WalletAddress    string     `json:"wallet_address"`
	TotalTrades      int        `gorm:"not null;default:0" json:"total_trades"`
	ProfitableTrades int        `gorm:"not null;default:0" json:"profitable_trades"`
	TotalPnLSOL      float64    `gorm:"column:total_pnl_sol" json:"total_pnl_sol"`
	Tier             string     `gorm:"not null;default:free" json:"tier"`
	TierExpiresAt    *time.Time `json:"tier_expires_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// EffectiveTier returns the tier in force at now; paid tiers lapse to free once expired.
func (u *User) EffectiveTier(now time.Time) string {
	if u.Tier == "" || u.Tier == TierFree {
		return TierFree
	}
	if u.TierExpiresAt != nil && now.After(*u.TierExpiresAt) {
		return TierFree
	}
	return u.Tier
}
