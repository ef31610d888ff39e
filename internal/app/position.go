package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"positionGuard/config"
	"positionGuard/internal/domain"
	"positionGuard/internal/metrics"
	"positionGuard/internal/ports"
	"positionGuard/internal/risk"
)

// handlePosition processes one position and absorbs its failure: any error or
// panic counts once toward the error threshold and is reported, then the cycle
// moves on.
func (s *PositionManager) handlePosition(ctx context.Context, cfg *config.Config, pos *domain.Position, c *risk.Counters) {
	err := s.processPosition(ctx, cfg, pos, c)
	if err == nil || ctx.Err() != nil {
		return
	}
	c.RecordError()
	metrics.ErrorsTotal.WithLabelValues("position").Inc()
	s.logger.Error(ctx, err, "Failed to process position", map[string]interface{}{
		"symbol":     pos.Symbol,
		"side":       pos.Side,
		"errorCount": c.ErrorCount,
	})
	s.notifier.Notify(ctx, domain.LevelError, fmt.Sprintf("Error processing %s %s: %v", pos.Symbol, pos.Side, err))
}

func (s *PositionManager) processPosition(ctx context.Context, cfg *config.Config, pos *domain.Position, c *risk.Counters) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing %s: %v", pos.Symbol, r)
		}
	}()

	fields := map[string]interface{}{
		"symbol":   pos.Symbol,
		"side":     pos.Side,
		"quantity": pos.Quantity,
		"notional": pos.Notional,
	}
	switch reason := risk.Screen(cfg, pos); reason {
	case risk.SkipSymbol, risk.SkipTooSmall:
		metrics.PositionsSkipped.WithLabelValues(string(reason)).Inc()
		s.logger.Debug(ctx, "Position skipped", mergeFields(fields, map[string]interface{}{"reason": reason}))
		return nil
	case risk.SkipOversized:
		metrics.PositionsSkipped.WithLabelValues(string(reason)).Inc()
		limit := cfg.RiskManagement.MaxPositionValue
		s.logger.Warn(ctx, "Position exceeds max_position_value, no action taken", mergeFields(fields, map[string]interface{}{"limit": limit}))
		s.notifier.Notify(ctx, domain.LevelWarning, fmt.Sprintf("%s %s position value %.2f exceeds limit %.2f, left untouched",
			pos.Symbol, pos.Side, pos.AbsNotional(), limit))
		return nil
	}

	orders, err := s.exchange.GetOpenOrders(ctx, pos.Symbol)
	if err != nil {
		// Without order state a stop-loss could be duplicated; skip this position.
		return fmt.Errorf("fetch open orders for %s: %w", pos.Symbol, err)
	}

	var errs []error
	if err := s.ensureStopLoss(ctx, cfg, pos, orders, c); err != nil {
		errs = append(errs, err)
	}

	profit := risk.ProfitFraction(pos)
	s.logger.Debug(ctx, "Position evaluated", mergeFields(fields, map[string]interface{}{"profit": profit}))
	if profit >= cfg.ProfitThreshold {
		if err := s.takeProfit(ctx, cfg, pos, profit, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func hasStopLoss(orders []domain.Order) bool {
	for i := range orders {
		if orders[i].IsStopLoss() {
			return true
		}
	}
	return false
}

// ensureStopLoss places a protective STOP_MARKET order unless a stop-shaped
// order already rests on the symbol.
func (s *PositionManager) ensureStopLoss(ctx context.Context, cfg *config.Config, pos *domain.Position, orders []domain.Order, c *risk.Counters) error {
	op := "ensureStopLoss"
	if hasStopLoss(orders) {
		s.logger.Debug(ctx, op+": Stop-loss already present", map[string]interface{}{"symbol": pos.Symbol})
		return nil
	}
	if pos.EntryPrice <= 0 {
		return fmt.Errorf("%s for %s: %w: entry price unknown", op, pos.Symbol, ports.ErrInvalidRequest)
	}

	action := &domain.Action{
		Kind:         domain.ActionStopLoss,
		Symbol:       pos.Symbol,
		PositionSide: pos.Side,
		OrderSide:    pos.Side.CloseSide(),
		Quantity:     pos.AbsQuantity(),
		Price:        risk.StopLossPrice(pos.EntryPrice, pos.Side, cfg.StopLossOffset),
		DryRun:       cfg.DryRun,
	}
	fields := actionFields(action)

	if cfg.DryRun {
		s.logger.Info(ctx, "[DRY RUN] Would place stop-loss", fields)
		s.record(ctx, action)
		return nil
	}

	resp, err := s.exchange.PlaceOrder(ctx, stopOrder(pos, action.Quantity, action.Price))
	if err != nil {
		s.logger.Error(ctx, err, op+": Failed to place stop-loss", fields)
		return fmt.Errorf("place stop-loss for %s: %w", pos.Symbol, err)
	}
	action.OrderID = resp.OrderID
	c.RecordTrade()
	s.logger.Info(ctx, op+": Stop-loss placed", mergeFields(fields, map[string]interface{}{"orderID": resp.OrderID}))
	s.notifier.Notify(ctx, domain.LevelInfo, fmt.Sprintf("Stop-loss set for %s %s: %s @ %s",
		pos.Symbol, pos.Side, fmtNum(action.Quantity), fmtNum(action.Price)))
	s.record(ctx, action)
	return nil
}

// takeProfit closes part of a profitable position and moves the protection for
// the remainder to break-even.
func (s *PositionManager) takeProfit(ctx context.Context, cfg *config.Config, pos *domain.Position, profit float64, c *risk.Counters) error {
	op := "takeProfit"
	closeQty, remainQty := risk.SplitQuantity(pos.AbsQuantity(), cfg.PartialClosePercent)

	partial := &domain.Action{
		Kind:         domain.ActionPartialClose,
		Symbol:       pos.Symbol,
		PositionSide: pos.Side,
		OrderSide:    pos.Side.CloseSide(),
		Quantity:     closeQty,
		DryRun:       cfg.DryRun,
	}
	fields := mergeFields(actionFields(partial), map[string]interface{}{"profit": profit})

	if cfg.DryRun {
		s.logger.Info(ctx, "[DRY RUN] Would partially close position", fields)
		s.record(ctx, partial)
		breakEven := &domain.Action{
			Kind:         domain.ActionBreakEven,
			Symbol:       pos.Symbol,
			PositionSide: pos.Side,
			OrderSide:    pos.Side.CloseSide(),
			Quantity:     remainQty,
			Price:        pos.EntryPrice,
			DryRun:       true,
		}
		s.logger.Info(ctx, "[DRY RUN] Would move stop-loss to break-even", actionFields(breakEven))
		s.record(ctx, breakEven)
		return nil
	}

	req := ports.OrderRequest{
		Symbol:       pos.Symbol,
		Side:         partial.OrderSide,
		PositionSide: pos.RawSide,
		Type:         domain.OrderTypeMarket,
		Quantity:     closeQty,
		// Hedge mode rejects reduceOnly; there the position side already makes the order reducing.
		ReduceOnly: !hedged(pos),
	}
	resp, err := s.exchange.PlaceOrder(ctx, req)
	if err != nil {
		s.logger.Error(ctx, err, op+": Failed to partially close position", fields)
		return fmt.Errorf("partial close for %s: %w", pos.Symbol, err)
	}
	partial.OrderID = resp.OrderID
	c.RecordTrade()
	s.logger.Info(ctx, op+": Position partially closed", mergeFields(fields, map[string]interface{}{"orderID": resp.OrderID}))
	s.notifier.Notify(ctx, domain.LevelSuccess, fmt.Sprintf("Partial close %s %s: %s closed (%.0f%%) at %.2f%% profit",
		pos.Symbol, pos.Side, fmtNum(closeQty), cfg.PartialClosePercent*100, profit*100))
	s.record(ctx, partial)

	if err := s.sleep(ctx, s.settleDelay); err != nil {
		return err
	}
	return s.moveStopToBreakEven(ctx, pos, remainQty)
}

// moveStopToBreakEven cancels every stop-shaped order on the symbol and places
// a new stop at the entry price for the remaining size.
func (s *PositionManager) moveStopToBreakEven(ctx context.Context, pos *domain.Position, remainQty float64) error {
	op := "moveStopToBreakEven"
	orders, err := s.exchange.GetOpenOrders(ctx, pos.Symbol)
	if err != nil {
		return fmt.Errorf("%s: fetch open orders for %s: %w", op, pos.Symbol, err)
	}

	var errs []error
	for _, o := range orders {
		if !o.IsStopLoss() {
			continue
		}
		if err := s.cancelOrderWarn(ctx, pos.Symbol, o.OrderID, string(o.Type)); err != nil {
			errs = append(errs, fmt.Errorf("cancel stop %d for %s: %w", o.OrderID, pos.Symbol, err))
			continue
		}
		s.record(ctx, &domain.Action{
			Kind:         domain.ActionCancelStop,
			Symbol:       pos.Symbol,
			PositionSide: pos.Side,
			OrderSide:    o.Side,
			Quantity:     o.Quantity,
			Price:        o.StopPrice,
			OrderID:      o.OrderID,
		})
	}

	if remainQty <= 0 {
		return errors.Join(errs...)
	}

	action := &domain.Action{
		Kind:         domain.ActionBreakEven,
		Symbol:       pos.Symbol,
		PositionSide: pos.Side,
		OrderSide:    pos.Side.CloseSide(),
		Quantity:     remainQty,
		Price:        pos.EntryPrice,
	}
	fields := actionFields(action)
	resp, err := s.exchange.PlaceOrder(ctx, stopOrder(pos, remainQty, pos.EntryPrice))
	if err != nil {
		s.logger.Error(ctx, err, op+": Failed to place break-even stop", fields)
		errs = append(errs, fmt.Errorf("place break-even stop for %s: %w", pos.Symbol, err))
		return errors.Join(errs...)
	}
	action.OrderID = resp.OrderID
	s.logger.Info(ctx, op+": Stop-loss moved to break-even", mergeFields(fields, map[string]interface{}{"orderID": resp.OrderID}))
	s.notifier.Notify(ctx, domain.LevelInfo, fmt.Sprintf("Stop-loss for %s %s moved to break-even %s for %s",
		pos.Symbol, pos.Side, fmtNum(pos.EntryPrice), fmtNum(remainQty)))
	s.record(ctx, action)
	return errors.Join(errs...)
}

// cancelOrderWarn attempts to cancel an order and logs a warning on failure.
func (s *PositionManager) cancelOrderWarn(ctx context.Context, symbol string, orderID int64, orderType string) error {
	op := "cancelOrderWarn"
	s.logger.Info(ctx, op+": Attempting to cancel order", map[string]interface{}{"symbol": symbol, "orderID": orderID, "type": orderType})
	_, err := s.exchange.CancelOrder(ctx, symbol, orderID)
	if err != nil {
		// Ignore "Order does not exist" errors, as it might have already been filled or cancelled.
		if errors.Is(err, ports.ErrOrderNotFound) {
			s.logger.Warn(ctx, op+": Order not found, likely already filled or cancelled", map[string]interface{}{"orderID": orderID, "type": orderType})
			return nil
		}
		s.logger.Error(ctx, err, op+": Failed to cancel order", map[string]interface{}{"orderID": orderID, "type": orderType})
		return err
	}
	s.logger.Info(ctx, op+": Order cancelled successfully", map[string]interface{}{"orderID": orderID, "type": orderType})
	return nil
}

// record journals an action. Journal failures are logged only.
func (s *PositionManager) record(ctx context.Context, a *domain.Action) {
	metrics.ActionsTotal.WithLabelValues(string(a.Kind), metrics.Mode(a.DryRun)).Inc()
	if s.journal == nil {
		return
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	if _, err := s.journal.Record(ctx, a); err != nil {
		s.logger.Warn(ctx, "Failed to journal action", map[string]interface{}{"kind": a.Kind, "symbol": a.Symbol, "error": err.Error()})
	}
}

func stopOrder(pos *domain.Position, qty, stopPrice float64) ports.OrderRequest {
	return ports.OrderRequest{
		Symbol:       pos.Symbol,
		Side:         pos.Side.CloseSide(),
		PositionSide: pos.RawSide,
		Type:         domain.OrderTypeStopMarket,
		Quantity:     qty,
		StopPrice:    stopPrice,
		TimeInForce:  domain.TimeInForceGTC,
	}
}

func hedged(pos *domain.Position) bool {
	return pos.RawSide == domain.Long || pos.RawSide == domain.Short
}

func actionFields(a *domain.Action) map[string]interface{} {
	f := map[string]interface{}{
		"action":   a.Kind,
		"symbol":   a.Symbol,
		"side":     a.OrderSide,
		"quantity": fmtNum(a.Quantity),
	}
	if a.Price > 0 {
		f["price"] = fmtNum(a.Price)
	}
	return f
}

func mergeFields(base, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func fmtNum(v float64) string {
	return decimal.NewFromFloat(v).Round(8).String()
}
