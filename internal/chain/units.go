package chain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

var lamportsPerSOL = decimal.NewFromInt(LamportsPerSOL)

// SOLToLamports converts a SOL amount to lamports, rounding down.
func SOLToLamports(sol float64) uint64 {
	if sol <= 0 {
		return 0
	}
	return uint64(decimal.NewFromFloat(sol).Mul(lamportsPerSOL).Floor().IntPart())
}

// LamportsToSOL converts lamports to SOL.
func LamportsToSOL(lamports uint64) float64 {
	return fromUint64(lamports).Div(lamportsPerSOL).InexactFloat64()
}

// ToUIAmount scales a raw token amount by its mint decimals.
func ToUIAmount(raw uint64, decimals uint8) float64 {
	return fromUint64(raw).Shift(-int32(decimals)).InexactFloat64()
}

// FormatTokens renders a UI token amount compactly: 1.50M, 12.30K or 0.123456.
func FormatTokens(ui float64) string {
	switch {
	case ui >= 1e6:
		return fmt.Sprintf("%.2fM", ui/1e6)
	case ui >= 1e3:
		return fmt.Sprintf("%.2fK", ui/1e3)
	default:
		return fmt.Sprintf("%.6f", ui)
	}
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
