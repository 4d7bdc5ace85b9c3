package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MockGateway is an in-memory Gateway for tests and dry-run mode. Prices,
// candles, balances and failures are scripted by the caller.
type MockGateway struct {
	mu sync.Mutex

	prices     map[string][]float64 // consumed front-to-back; last value repeats
	candles    map[string][]Candle  // keyed by instrument|timeframe
	balances   []Balance
	failures   map[string]error // keyed by op name
	rejectNext bool

	PlacedOrders    []OrderRequest
	ClosedPositions []string
}

// NewMockGateway creates an empty mock with a default account balance.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		prices:  make(map[string][]float64),
		candles: make(map[string][]Candle),
		balances: []Balance{
			{Currency: "USD", Balance: 10000, Equity: 10000, FreeMargin: 10000},
		},
		failures: make(map[string]error),
	}
}

// SetPrice fixes the current price for an instrument.
func (m *MockGateway) SetPrice(instrument string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[instrument] = []float64{price}
}

// SetPriceSequence scripts successive CurrentPrice responses; the final
// value repeats once the sequence is exhausted.
func (m *MockGateway) SetPriceSequence(instrument string, prices ...float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[instrument] = append([]float64(nil), prices...)
}

// SetCandles scripts HistoricalData for an instrument/timeframe.
func (m *MockGateway) SetCandles(instrument, timeframe string, candles []Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles[candleKey(instrument, timeframe)] = candles
}

// SetBalances replaces the scripted account balances.
func (m *MockGateway) SetBalances(balances []Balance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances = balances
}

// FailWith makes the named operation (CurrentPrice, HistoricalData,
// Balances, PlaceOrder, ClosePosition) return err until cleared with nil.
func (m *MockGateway) FailWith(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// RejectNextOrder makes the next PlaceOrder return Success=false without error.
func (m *MockGateway) RejectNextOrder() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectNext = true
}

func candleKey(instrument, timeframe string) string {
	return fmt.Sprintf("%s|%s", instrument, timeframe)
}

func (m *MockGateway) CurrentPrice(_ context.Context, instrument string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["CurrentPrice"]; err != nil {
		return 0, err
	}
	seq, ok := m.prices[instrument]
	if !ok || len(seq) == 0 {
		return 0, NewGatewayError(ErrKindInvalidSymbol, "CurrentPrice", instrument, errors.New("no scripted price"))
	}
	price := seq[0]
	if len(seq) > 1 {
		m.prices[instrument] = seq[1:]
	}
	return price, nil
}

func (m *MockGateway) HistoricalData(_ context.Context, instrument, timeframe string, limit int) ([]Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["HistoricalData"]; err != nil {
		return nil, err
	}
	candles := m.candles[candleKey(instrument, timeframe)]
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	out := make([]Candle, len(candles))
	copy(out, candles)
	return out, nil
}

func (m *MockGateway) Balances(_ context.Context) ([]Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["Balances"]; err != nil {
		return nil, err
	}
	out := make([]Balance, len(m.balances))
	copy(out, m.balances)
	return out, nil
}

func (m *MockGateway) PlaceOrder(_ context.Context, req OrderRequest) (OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["PlaceOrder"]; err != nil {
		return OrderResult{}, err
	}
	if m.rejectNext {
		m.rejectNext = false
		return OrderResult{Success: false}, nil
	}
	m.PlacedOrders = append(m.PlacedOrders, req)

	price := 0.0
	if seq := m.prices[req.Instrument]; len(seq) > 0 {
		price = seq[0]
	}
	return OrderResult{
		Success: true,
		OrderID: fmt.Sprintf("mock-%d", len(m.PlacedOrders)),
		Price:   price,
	}, nil
}

func (m *MockGateway) ClosePosition(_ context.Context, instrument string) (ClosePositionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["ClosePosition"]; err != nil {
		return ClosePositionResult{}, err
	}
	m.ClosedPositions = append(m.ClosedPositions, instrument)
	return ClosePositionResult{Success: true}, nil
}
