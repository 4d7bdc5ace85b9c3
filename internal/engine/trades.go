package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"footprint-trading-bot/internal/footprint"
	"footprint-trading-bot/internal/market"
	"footprint-trading-bot/internal/store"
)

// monitorTrades walks every open trade, closing the ones whose stop or
// target has been hit and refreshing unrealized PnL on the rest. The stop
// is checked before the target so a bar that sweeps both exits at a loss.
func (e *Engine) monitorTrades(ctx context.Context) {
	for _, trade := range e.ActiveTrades() {
		price, err := e.gateway.CurrentPrice(ctx, trade.Instrument)
		if err != nil {
			e.logger.Error().Err(err).
				Str("instrument", trade.Instrument).
				Str("kind", string(market.ErrorKindOf(err))).
				Msg("Price fetch failed")
			if market.IsRateLimited(err) {
				// Back off until the next cycle instead of hammering the venue.
				return
			}
			continue
		}

		switch {
		case stopLossHit(trade, price):
			e.closeTrade(ctx, trade, price, store.ExitStopLoss)
		case takeProfitHit(trade, price):
			e.closeTrade(ctx, trade, price, store.ExitTargetHit)
		default:
			trade.PnL = computePnL(trade, price)
			if err := e.store.UpdateTrade(ctx, trade); err != nil {
				e.logger.Error().Err(err).Str("trade_id", trade.ID).Msg("Failed to persist trade update")
			}
			e.updateOpenTrade(trade)
			e.bus.PublishTradeUpdate(trade.ID, trade.Instrument, price, trade.PnL)
		}
	}
}

// closeTrade exits a position. The venue close runs first: if it fails the
// trade stays open and the next cycle retries.
func (e *Engine) closeTrade(ctx context.Context, trade *store.Trade, price float64, reason string) {
	result, err := e.gateway.ClosePosition(ctx, trade.Instrument)
	if err != nil {
		e.logger.Error().Err(err).Str("trade_id", trade.ID).Msg("Position close failed, will retry")
		e.bus.PublishError("engine", "position close failed", err)
		return
	}
	if !result.Success {
		e.logger.Warn().Str("trade_id", trade.ID).Msg("Position close rejected, will retry")
		return
	}

	// Exit fields are written under the lock: the trade may be the shared
	// struct in openTrades, read concurrently by ActiveTrades.
	now := time.Now()
	e.mu.Lock()
	trade.Status = store.TradeStatusClosed
	trade.PnL = computePnL(trade, price)
	trade.ExitPrice = &price
	trade.ExitTime = &now
	trade.ExitReason = reason
	delete(e.openTrades, trade.ID)
	e.mu.Unlock()

	if err := e.store.UpdateTrade(ctx, trade); err != nil {
		e.logger.Error().Err(err).Str("trade_id", trade.ID).Msg("Failed to persist trade close")
	}

	if trade.SetupID != "" {
		if err := e.setups.Complete(trade.SetupID); err != nil {
			e.logger.Warn().Err(err).Str("setup_id", trade.SetupID).Msg("Failed to complete setup")
		} else if err := e.store.UpdateSetupStatus(ctx, trade.SetupID, footprint.StatusCompleted); err != nil {
			e.logger.Error().Err(err).Str("setup_id", trade.SetupID).Msg("Failed to persist completion")
		}
	}

	e.logger.Info().
		Str("trade_id", trade.ID).
		Str("reason", reason).
		Float64("exit", price).
		Float64("pnl", trade.PnL).
		Msg("Trade closed")
	e.bus.PublishTradeClosed(trade.ID, trade.Instrument, reason, price, trade.PnL)
}

// cancelTrade unwinds a position whose setup left the waiting state between
// order placement and activation. The venue close runs first; if it fails
// the trade stays open and the monitor loop manages its exit instead.
func (e *Engine) cancelTrade(ctx context.Context, trade *store.Trade) {
	result, err := e.gateway.ClosePosition(ctx, trade.Instrument)
	if err != nil {
		e.logger.Error().Err(err).
			Str("trade_id", trade.ID).
			Str("kind", string(market.ErrorKindOf(err))).
			Msg("Cancel close failed, trade stays monitored")
		return
	}
	if !result.Success {
		e.logger.Warn().Str("trade_id", trade.ID).Msg("Cancel close rejected, trade stays monitored")
		return
	}

	now := time.Now()
	e.mu.Lock()
	trade.Status = store.TradeStatusCancelled
	trade.ExitTime = &now
	delete(e.openTrades, trade.ID)
	e.mu.Unlock()

	if err := e.store.UpdateTrade(ctx, trade); err != nil {
		e.logger.Error().Err(err).Str("trade_id", trade.ID).Msg("Failed to persist trade cancellation")
	}

	e.logger.Info().Str("trade_id", trade.ID).Str("instrument", trade.Instrument).Msg("Trade cancelled")
	e.bus.PublishTradeClosed(trade.ID, trade.Instrument, store.TradeStatusCancelled, trade.EntryPrice, 0)
}

// CloseTrade manually exits an open trade at the current market price.
func (e *Engine) CloseTrade(ctx context.Context, tradeID string) error {
	e.mu.RLock()
	trade, ok := e.openTrades[tradeID]
	e.mu.RUnlock()
	if !ok {
		return store.ErrNotFound
	}

	price, err := e.gateway.CurrentPrice(ctx, trade.Instrument)
	if err != nil {
		return err
	}
	e.closeTrade(ctx, trade, price, store.ExitManual)

	e.mu.RLock()
	_, stillOpen := e.openTrades[tradeID]
	e.mu.RUnlock()
	if stillOpen {
		return fmt.Errorf("close position for trade %s did not complete", tradeID)
	}
	return nil
}

func (e *Engine) openTrade(setup *footprint.Setup, entryPrice, quantity float64) *store.Trade {
	trade := &store.Trade{
		ID:         uuid.New().String(),
		SetupID:    setup.ID,
		Instrument: setup.Instrument,
		Side:       setup.Side(),
		Quantity:   quantity,
		EntryPrice: entryPrice,
		StopLoss:   setup.StopLoss,
		TakeProfit: setup.Targets[0],
		Status:     store.TradeStatusOpen,
		EntryTime:  time.Now(),
	}

	e.mu.Lock()
	e.openTrades[trade.ID] = trade
	e.mu.Unlock()
	return trade
}

// adoptTrade takes ownership of a trade opened outside the setup path so
// the monitoring loop manages its exit. Persistence failures are logged;
// the in-memory trade is still monitored.
func (e *Engine) adoptTrade(ctx context.Context, trade *store.Trade) {
	e.mu.Lock()
	e.openTrades[trade.ID] = trade
	e.mu.Unlock()

	if err := e.store.SaveTrade(ctx, trade); err != nil {
		e.logger.Error().Err(err).Str("trade_id", trade.ID).Msg("Failed to persist trade")
	}
}

func (e *Engine) updateOpenTrade(trade *store.Trade) {
	e.mu.Lock()
	if t, ok := e.openTrades[trade.ID]; ok {
		t.PnL = trade.PnL
	}
	e.mu.Unlock()
}

func stopLossHit(trade *store.Trade, price float64) bool {
	if trade.StopLoss == 0 {
		return false
	}
	if trade.Side == market.SideBuy {
		return price <= trade.StopLoss
	}
	return price >= trade.StopLoss
}

func takeProfitHit(trade *store.Trade, price float64) bool {
	if trade.TakeProfit == 0 {
		return false
	}
	if trade.Side == market.SideBuy {
		return price >= trade.TakeProfit
	}
	return price <= trade.TakeProfit
}

func computePnL(trade *store.Trade, price float64) float64 {
	if trade.Side == market.SideBuy {
		return (price - trade.EntryPrice) * trade.Quantity
	}
	return (trade.EntryPrice - price) * trade.Quantity
}
