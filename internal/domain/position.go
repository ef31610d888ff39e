package domain

import "math"

// Position represents one open derivative position as reported by the exchange.
// It is rebuilt on every poll and never persisted.
type Position struct {
	Symbol       string       // Exchange symbol (e.g., "ETH-USDT")
	Side         PositionSide // LONG or SHORT, always resolved (never BOTH)
	RawSide      PositionSide // Position side as reported, sent back on orders
	Quantity     float64      // Signed size: positive for long, negative for short
	EntryPrice   float64      // Average entry price
	MarkPrice    float64      // Current mark price
	Notional     float64      // Signed position value in quote currency
	Leverage     int          // Current leverage
	UnrealizedPL float64      // Unrealized profit/loss
}

// AbsQuantity returns the unsigned position size.
func (p *Position) AbsQuantity() float64 {
	return math.Abs(p.Quantity)
}

// AbsNotional returns the unsigned position value.
func (p *Position) AbsNotional() float64 {
	return math.Abs(p.Notional)
}

// IsOpen reports whether the position still carries size.
func (p *Position) IsOpen() bool {
	return p.Quantity != 0
}
