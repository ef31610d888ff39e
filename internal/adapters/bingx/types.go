package bingx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"positionGuard/internal/domain"
	"positionGuard/internal/ports"
)

// envelope is the {code, msg, data} wrapper around every response.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// flexFloat accepts numbers encoded either as JSON numbers or as strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", string(b), err)
	}
	*f = flexFloat(v)
	return nil
}

// flexInt accepts integer ids encoded either as JSON numbers or as strings.
type flexInt int64

func (i *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*i = 0
		return nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", string(b), err)
	}
	*i = flexInt(v)
	return nil
}

type positionDTO struct {
	Symbol           string    `json:"symbol"`
	PositionSide     string    `json:"positionSide"`
	PositionAmt      flexFloat `json:"positionAmt"`
	AvgPrice         flexFloat `json:"avgPrice"`
	EntryPrice       flexFloat `json:"entryPrice"`
	MarkPrice        flexFloat `json:"markPrice"`
	PositionValue    flexFloat `json:"positionValue"`
	Notional         flexFloat `json:"notional"`
	Leverage         flexInt   `json:"leverage"`
	UnrealizedProfit flexFloat `json:"unrealizedProfit"`
}

// toDomain resolves the direction and sign of the position. In one-way mode
// (BOTH or empty) the direction comes from the sign of positionAmt.
func (p positionDTO) toDomain() domain.Position {
	qty := float64(p.PositionAmt)
	raw := domain.PositionSide(p.PositionSide)

	side := domain.Long
	switch raw {
	case domain.Short:
		side = domain.Short
	case domain.Long:
		side = domain.Long
	default:
		if qty < 0 {
			side = domain.Short
		}
	}
	if (side == domain.Short && qty > 0) || (side == domain.Long && qty < 0) {
		qty = -qty
	}

	entry := float64(p.EntryPrice)
	if entry == 0 {
		entry = float64(p.AvgPrice)
	}
	mark := float64(p.MarkPrice)

	notional := float64(p.PositionValue)
	if notional == 0 {
		notional = float64(p.Notional)
	}
	if notional == 0 {
		notional = qty * mark
	}
	if notional < 0 {
		notional = -notional
	}
	if qty < 0 {
		notional = -notional
	}

	return domain.Position{
		Symbol:       p.Symbol,
		Side:         side,
		RawSide:      raw,
		Quantity:     qty,
		EntryPrice:   entry,
		MarkPrice:    mark,
		Notional:     notional,
		Leverage:     int(p.Leverage),
		UnrealizedPL: float64(p.UnrealizedProfit),
	}
}

type orderDTO struct {
	OrderID       flexInt   `json:"orderId"`
	ClientOrderID string    `json:"clientOrderId"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	PositionSide  string    `json:"positionSide"`
	Type          string    `json:"type"`
	OrigQty       flexFloat `json:"origQty"`
	Quantity      flexFloat `json:"quantity"`
	ExecutedQty   flexFloat `json:"executedQty"`
	AvgPrice      flexFloat `json:"avgPrice"`
	StopPrice     flexFloat `json:"stopPrice"`
	TimeInForce   string    `json:"timeInForce"`
	Status        string    `json:"status"`
	UpdateTime    flexInt   `json:"updateTime"`
}

func (o orderDTO) qty() float64 {
	if o.OrigQty != 0 {
		return float64(o.OrigQty)
	}
	return float64(o.Quantity)
}

func (o orderDTO) toDomain() domain.Order {
	var updated time.Time
	if o.UpdateTime > 0 {
		updated = time.UnixMilli(int64(o.UpdateTime))
	}
	return domain.Order{
		OrderID:       int64(o.OrderID),
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          domain.OrderSide(o.Side),
		PositionSide:  domain.PositionSide(o.PositionSide),
		Type:          domain.OrderType(o.Type),
		Quantity:      o.qty(),
		StopPrice:     float64(o.StopPrice),
		TimeInForce:   o.TimeInForce,
		Status:        o.Status,
		UpdatedAt:     updated,
	}
}

func (o orderDTO) toResponse(now time.Time) *ports.OrderResponse {
	ts := now
	if o.UpdateTime > 0 {
		ts = time.UnixMilli(int64(o.UpdateTime))
	}
	return &ports.OrderResponse{
		OrderID:       int64(o.OrderID),
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          o.Side,
		Type:          o.Type,
		Status:        o.Status,
		OrigQuantity:  o.qty(),
		ExecutedQty:   float64(o.ExecutedQty),
		AvgPrice:      float64(o.AvgPrice),
		StopPrice:     float64(o.StopPrice),
		Timestamp:     ts,
	}
}

// decodePositions accepts data as a bare array.
func decodePositions(data json.RawMessage) ([]positionDTO, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var rows []positionDTO
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// decodeOrders accepts data either as {"orders": [...]} or as a bare array.
func decodeOrders(data json.RawMessage) ([]orderDTO, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var rows []orderDTO
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	var wrapped struct {
		Orders []orderDTO `json:"orders"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Orders, nil
}

// decodeOrder accepts data either as {"order": {...}} or as the order itself.
func decodeOrder(data json.RawMessage) (orderDTO, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return orderDTO{}, nil
	}
	var wrapped struct {
		Order *orderDTO `json:"order"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return orderDTO{}, err
	}
	if wrapped.Order != nil {
		return *wrapped.Order, nil
	}
	var o orderDTO
	if err := json.Unmarshal(data, &o); err != nil {
		return orderDTO{}, err
	}
	return o, nil
}
