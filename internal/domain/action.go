package domain

import "time"

// ActionKind identifies what the manager did to a position.
type ActionKind string

const (
	ActionStopLoss     ActionKind = "STOP_LOSS"
	ActionPartialClose ActionKind = "PARTIAL_CLOSE"
	ActionBreakEven    ActionKind = "BREAK_EVEN"
	ActionCancelStop   ActionKind = "CANCEL_STOP"
)

// Action is one journaled decision, executed or simulated in dry-run mode.
type Action struct {
	ID           int64
	Kind         ActionKind
	Symbol       string
	PositionSide PositionSide
	OrderSide    OrderSide
	Quantity     float64
	Price        float64 // Stop price for stop orders, zero for market orders
	OrderID      int64
	DryRun       bool
	CreatedAt    time.Time
}
