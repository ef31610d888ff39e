package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrder_IsStopLoss(t *testing.T) {
	tests := []struct {
		name  string
		order Order
		want  bool
	}{
		{name: "stop market", order: Order{Type: OrderTypeStopMarket}, want: true},
		{name: "limit with stop price", order: Order{Type: OrderTypeLimit, StopPrice: 95}, want: true},
		{name: "plain limit", order: Order{Type: OrderTypeLimit, StopPrice: 0}, want: false},
		{name: "market", order: Order{Type: OrderTypeMarket}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.order.IsStopLoss())
		})
	}
}

func TestPositionSide_CloseSide(t *testing.T) {
	assert.Equal(t, Sell, Long.CloseSide())
	assert.Equal(t, Buy, Short.CloseSide())
}

func TestPosition_Abs(t *testing.T) {
	p := Position{Quantity: -2.5, Notional: -250}
	assert.Equal(t, 2.5, p.AbsQuantity())
	assert.Equal(t, 250.0, p.AbsNotional())
	assert.True(t, p.IsOpen())
}
