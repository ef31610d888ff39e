package domain

import "time"

// Order is a resting or just-submitted exchange order.
type Order struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	PositionSide  PositionSide
	Type          OrderType
	Quantity      float64
	StopPrice     float64 // Zero when the order carries no trigger
	TimeInForce   string
	Status        string
	UpdatedAt     time.Time
}

// IsStopLoss reports whether the order counts as the position's stop-loss.
// Any STOP_MARKET order or any order with a stop price qualifies, whoever placed it.
func (o *Order) IsStopLoss() bool {
	return o.Type == OrderTypeStopMarket || o.StopPrice > 0
}
