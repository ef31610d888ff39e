package risk

import (
	"strings"

	"github.com/shopspring/decimal"

	"positionGuard/config"
	"positionGuard/internal/domain"
)

// SkipReason explains why a position was filtered out before any action.
type SkipReason string

const (
	SkipNone      SkipReason = ""
	SkipSymbol    SkipReason = "symbol_filtered"
	SkipTooSmall  SkipReason = "below_min_size"
	SkipOversized SkipReason = "above_max_value"
)

// NormalizeSymbol folds case and drops the "-" separator so that BTCUSDT and
// btc-usdt compare equal.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), "-", ""))
}

func containsSymbol(list []string, symbol string) bool {
	want := NormalizeSymbol(symbol)
	for _, s := range list {
		if NormalizeSymbol(s) == want {
			return true
		}
	}
	return false
}

// SymbolAllowed applies the allow-list (when non-empty) and then the deny-list.
func SymbolAllowed(cfg *config.Config, symbol string) bool {
	if len(cfg.EnabledSymbols) > 0 && !containsSymbol(cfg.EnabledSymbols, symbol) {
		return false
	}
	return !containsSymbol(cfg.DisabledSymbols, symbol)
}

// Screen runs the position filters in order and returns the first that rejects it.
func Screen(cfg *config.Config, pos *domain.Position) SkipReason {
	if !SymbolAllowed(cfg, pos.Symbol) {
		return SkipSymbol
	}
	notional := pos.AbsNotional()
	if notional < cfg.MinPositionSize {
		return SkipTooSmall
	}
	if notional > cfg.RiskManagement.MaxPositionValue {
		return SkipOversized
	}
	return SkipNone
}

// StopLossPrice returns the protective stop for a position: below entry for a
// long, above entry for a short.
func StopLossPrice(entry float64, side domain.PositionSide, offset float64) float64 {
	e := decimal.NewFromFloat(entry)
	o := decimal.NewFromFloat(offset)
	one := decimal.NewFromInt(1)
	if side == domain.Short {
		return e.Mul(one.Add(o)).InexactFloat64()
	}
	return e.Mul(one.Sub(o)).InexactFloat64()
}

// ProfitFraction returns the unrealized move relative to entry in the
// position's favour. Zero when either price is missing.
func ProfitFraction(pos *domain.Position) float64 {
	if pos.EntryPrice == 0 || pos.MarkPrice == 0 {
		return 0
	}
	entry := decimal.NewFromFloat(pos.EntryPrice)
	mark := decimal.NewFromFloat(pos.MarkPrice)
	diff := mark.Sub(entry)
	if pos.Side == domain.Short {
		diff = entry.Sub(mark)
	}
	return diff.Div(entry).InexactFloat64()
}

// SplitQuantity splits an absolute size into the part closed at profit and the
// part left running.
func SplitQuantity(absQty, closePercent float64) (closeQty, remainQty float64) {
	q := decimal.NewFromFloat(absQty)
	c := q.Mul(decimal.NewFromFloat(closePercent))
	return c.InexactFloat64(), q.Sub(c).InexactFloat64()
}
