package footprint

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"footprint-trading-bot/internal/market"
)

func testFootprint(direction Direction) Footprint {
	return Footprint{
		ID:         "fp-1",
		Instrument: "EUR/USD",
		Timeframe:  SetupTimeframe,
		Origin:     Origin{Low: 100, Base: 110, Timestamp: 42},
		Range:      Range{Floor: 100, Base: 110},
		Strength:   2,
		Direction:  direction,
		IsValid:    true,
	}
}

func TestBuildSetupBullish(t *testing.T) {
	setup := buildSetup(testFootprint(DirectionBullish), BiasBullish, []EntrySignal{{Type: SignalPinbar}}, 105)

	if setup.StopLoss != 99 {
		t.Errorf("stop loss = %v, want floor minus a tenth of the width (99)", setup.StopLoss)
	}
	// Risk is 6, so targets ladder up at 3x, 4x, 5x.
	want := []float64{123, 129, 135}
	for i, target := range setup.Targets {
		if math.Abs(target-want[i]) > 1e-9 {
			t.Errorf("target[%d] = %v, want %v", i, target, want[i])
		}
	}
	if math.Abs(setup.RiskRewardRatio-3) > 1e-9 {
		t.Errorf("risk reward = %v, want 3", setup.RiskRewardRatio)
	}
	if setup.Status != StatusWaiting {
		t.Errorf("status = %s, want waiting", setup.Status)
	}
	if setup.EntryRange.Midpoint != 105 {
		t.Errorf("midpoint = %v, want 105", setup.EntryRange.Midpoint)
	}
	if setup.Side() != market.SideBuy {
		t.Errorf("side = %s, want buy", setup.Side())
	}
}

func TestBuildSetupBearish(t *testing.T) {
	setup := buildSetup(testFootprint(DirectionBearish), BiasBearish, []EntrySignal{{Type: SignalPinbar}}, 105)

	if setup.StopLoss != 111 {
		t.Errorf("stop loss = %v, want base plus a tenth of the width (111)", setup.StopLoss)
	}
	// Bearish targets ladder below the entry.
	want := []float64{87, 81, 75}
	for i, target := range setup.Targets {
		if math.Abs(target-want[i]) > 1e-9 {
			t.Errorf("target[%d] = %v, want %v", i, target, want[i])
		}
	}
	if math.Abs(setup.RiskRewardRatio-3) > 1e-9 {
		t.Errorf("risk reward = %v, want 3", setup.RiskRewardRatio)
	}
	if setup.Side() != market.SideSell {
		t.Errorf("side = %s, want sell", setup.Side())
	}
}

func newTestManager(gateway market.Gateway) *Manager {
	return NewManager(gateway, NewBiasEvaluator(nil), zerolog.Nop())
}

func TestManagerTransitions(t *testing.T) {
	m := newTestManager(market.NewMockGateway())
	setup := buildSetup(testFootprint(DirectionBullish), BiasBullish, []EntrySignal{{Type: SignalPinbar}}, 105)
	m.Restore(setup)

	if err := m.Activate(setup.ID); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if len(m.Active()) != 1 || len(m.Waiting()) != 0 {
		t.Errorf("active/waiting = %d/%d, want 1/0", len(m.Active()), len(m.Waiting()))
	}

	// An active setup cannot be invalidated, only completed.
	if err := m.Invalidate(setup.ID); err == nil {
		t.Error("Invalidate on active setup must fail")
	}
	if err := m.Complete(setup.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got, ok := m.Get(setup.ID)
	if !ok || got.Status != StatusCompleted {
		t.Errorf("completed setup = %v/%v, want readable with completed status", got, ok)
	}
	// Terminal states are final.
	if err := m.Activate(setup.ID); err == nil {
		t.Error("Activate on completed setup must fail")
	}
	// The footprint is free for the next scan.
	if m.tracked(setup.Footprint.Key()) {
		t.Error("completed setup must release its footprint")
	}
}

func TestManagerInvalidateIdempotent(t *testing.T) {
	m := newTestManager(market.NewMockGateway())
	setup := buildSetup(testFootprint(DirectionBullish), BiasBullish, []EntrySignal{{Type: SignalPinbar}}, 105)
	m.Restore(setup)

	if err := m.Invalidate(setup.ID); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if err := m.Invalidate(setup.ID); err != nil {
		t.Errorf("second Invalidate: %v, want no-op", err)
	}
	if setup.Status != StatusInvalidated {
		t.Errorf("status = %s, want invalidated", setup.Status)
	}
}

func TestManagerRestoreSkipsTerminal(t *testing.T) {
	m := newTestManager(market.NewMockGateway())
	setup := buildSetup(testFootprint(DirectionBullish), BiasBullish, []EntrySignal{{Type: SignalPinbar}}, 105)
	setup.Status = StatusCompleted
	m.Restore(setup)
	if _, ok := m.Get(setup.ID); ok {
		t.Error("terminal setup must not be restored")
	}
}

func TestCheckInvalidations(t *testing.T) {
	m := newTestManager(market.NewMockGateway())
	setup := buildSetup(testFootprint(DirectionBullish), BiasBullish, []EntrySignal{{Type: SignalPinbar}}, 105)
	m.Restore(setup)

	if dropped := m.CheckInvalidations("EUR/USD", 105); len(dropped) != 0 {
		t.Errorf("dropped %d setups with price in range, want 0", len(dropped))
	}
	dropped := m.CheckInvalidations("EUR/USD", 111)
	if len(dropped) != 1 || dropped[0].ID != setup.ID {
		t.Fatalf("dropped = %v, want the waiting setup", dropped)
	}
	if setup.Status != StatusInvalidated {
		t.Errorf("status = %s, want invalidated", setup.Status)
	}
}

func TestFindTradingSetupsEndToEnd(t *testing.T) {
	gateway := market.NewMockGateway()
	gateway.SetCandles("EUR/USD", MonthlyTimeframe, monthlyTrend(12, 2))
	gateway.SetCandles("EUR/USD", SetupTimeframe, bullishBreakoutCandles())
	gateway.SetCandles("EUR/USD", MicroTimeframe, []market.Candle{
		candle(0, 104, 104.6, 103.5, 104.5),
		candle(1, 104.5, 105.2, 101.5, 104.9), // pinbar inside [100.9, 106]
		candle(2, 104.9, 105.3, 104.4, 105),
	})
	gateway.SetPrice("EUR/USD", 105)

	m := newTestManager(gateway)
	created, err := m.FindTradingSetups(context.Background(), "EUR/USD")
	if err != nil {
		t.Fatalf("FindTradingSetups: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created %d setups, want 1", len(created))
	}

	setup := created[0]
	if setup.Status != StatusWaiting {
		t.Errorf("status = %s, want waiting", setup.Status)
	}
	if setup.MonthlyBias != BiasBullish {
		t.Errorf("monthly bias = %s, want bullish", setup.MonthlyBias)
	}
	if setup.EntryPrice != 105 {
		t.Errorf("entry price = %v, want 105", setup.EntryPrice)
	}
	if math.Abs(setup.StopLoss-100.39) > 1e-9 {
		t.Errorf("stop loss = %v, want 100.39", setup.StopLoss)
	}
	if len(setup.EntrySignals) == 0 {
		t.Error("setup must carry at least one entry signal")
	}

	// The same footprint is not proposed twice while its setup lives.
	again, err := m.FindTradingSetups(context.Background(), "EUR/USD")
	if err != nil {
		t.Fatalf("second FindTradingSetups: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second scan created %d setups, want 0", len(again))
	}

	// Once terminal, a fresh scan may propose it again.
	if err := m.Invalidate(setup.ID); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	third, err := m.FindTradingSetups(context.Background(), "EUR/USD")
	if err != nil {
		t.Fatalf("third FindTradingSetups: %v", err)
	}
	if len(third) != 1 {
		t.Errorf("third scan created %d setups, want 1", len(third))
	}
}

func TestFindTradingSetupsPriceOutsideRange(t *testing.T) {
	gateway := market.NewMockGateway()
	gateway.SetCandles("EUR/USD", MonthlyTimeframe, monthlyTrend(12, 2))
	gateway.SetCandles("EUR/USD", SetupTimeframe, bullishBreakoutCandles())
	gateway.SetPrice("EUR/USD", 120)

	m := newTestManager(gateway)
	created, err := m.FindTradingSetups(context.Background(), "EUR/USD")
	if err != nil {
		t.Fatalf("FindTradingSetups: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("created %d setups with price outside every range, want 0", len(created))
	}
}
