package market

import "context"

// Gateway defines the venue operations the trading core depends on.
// One implementation exists per venue; the core never branches on venue name.
type Gateway interface {
	// CurrentPrice returns the latest traded price for an instrument.
	CurrentPrice(ctx context.Context, instrument string) (float64, error)

	// HistoricalData returns up to limit candles for the instrument and
	// timeframe, oldest first.
	HistoricalData(ctx context.Context, instrument, timeframe string, limit int) ([]Candle, error)

	// Balances returns per-currency account balances.
	Balances(ctx context.Context) ([]Balance, error)

	// PlaceOrder submits an order and returns the venue's result.
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)

	// ClosePosition closes the open position on an instrument.
	ClosePosition(ctx context.Context, instrument string) (ClosePositionResult, error)
}

// Ensure implementations satisfy the interface.
var (
	_ Gateway = (*BinanceGateway)(nil)
	_ Gateway = (*MockGateway)(nil)
)
