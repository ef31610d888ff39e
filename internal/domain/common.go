package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// PositionSide is the direction of an open position.
type PositionSide string

const (
	Long  PositionSide = "LONG"
	Short PositionSide = "SHORT"
	Both  PositionSide = "BOTH" // one-way mode, direction comes from the quantity sign
)

// CloseSide returns the order side that reduces a position of this direction.
func (s PositionSide) CloseSide() OrderSide {
	if s == Short {
		return Buy
	}
	return Sell
}

// OrderType represents the exchange order type.
type OrderType string

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeLimit      OrderType = "LIMIT"
	OrderTypeStopMarket OrderType = "STOP_MARKET"
)

// TimeInForce values accepted by the exchange.
const (
	TimeInForceGTC = "GTC"
)

// NotifyLevel is the severity attached to an operator notification.
type NotifyLevel string

const (
	LevelInfo    NotifyLevel = "INFO"
	LevelSuccess NotifyLevel = "SUCCESS"
	LevelWarning NotifyLevel = "WARNING"
	LevelError   NotifyLevel = "ERROR"
)
