package ports

import (
	"context"
	"time"

	"positionGuard/internal/domain"
)

// OrderRequest describes a new order. Extra carries exchange parameters that the
// manager passes through untouched (e.g. workingType).
type OrderRequest struct {
	Symbol       string
	Side         domain.OrderSide
	PositionSide domain.PositionSide // Empty lets the exchange default apply
	Type         domain.OrderType
	Quantity     float64
	Price        float64 // Optional, zero is omitted
	StopPrice    float64 // Optional, zero is omitted
	TimeInForce  string  // Optional
	ReduceOnly   bool
	Extra        map[string]string
}

// OrderResponse represents the essential details returned after placing or cancelling an order.
type OrderResponse struct {
	OrderID       int64     // Exchange's order ID
	ClientOrderID string    // Client order ID sent with the request
	Symbol        string    // Symbol for the order
	Side          string    // Order side (BUY, SELL)
	Type          string    // Order type (e.g., MARKET, STOP_MARKET)
	Status        string    // Order status (e.g., NEW, FILLED, CANCELLED)
	OrigQuantity  float64   // Original quantity requested
	ExecutedQty   float64   // Quantity filled
	AvgPrice      float64   // Average filled price
	StopPrice     float64   // Trigger price, if any
	Timestamp     time.Time // Time the response was generated
}

// ExchangeClient defines the exchange operations the position manager relies on.
// Implementations return typed records decoded at the API boundary; a non-zero
// exchange response code surfaces as an error wrapping one of the ports errors.
type ExchangeClient interface {
	// GetPositions returns every position with non-zero quantity.
	GetPositions(ctx context.Context) ([]domain.Position, error)

	// GetOpenOrders returns the resting orders for one symbol.
	GetOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error)

	// PlaceOrder submits a new order.
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error)

	// CancelOrder cancels an existing open order by its ID.
	CancelOrder(ctx context.Context, symbol string, orderID int64) (*OrderResponse, error)
}
