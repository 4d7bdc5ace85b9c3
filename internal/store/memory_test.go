package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"footprint-trading-bot/internal/footprint"
)

func testSetup(id string, createdAt time.Time) *footprint.Setup {
	return &footprint.Setup{
		ID:         id,
		Instrument: "EUR/USD",
		Footprint: footprint.Footprint{
			ID:         "fp-" + id,
			Instrument: "EUR/USD",
			Timeframe:  "4h",
			Direction:  footprint.DirectionBullish,
			Strength:   1,
			IsValid:    true,
		},
		MonthlyBias: footprint.BiasBullish,
		WeeklyBias:  footprint.BiasPotentiallyReversing,
		EntryRange:  footprint.EntryRange{Floor: 100, Base: 110, Midpoint: 105},
		EntryPrice:  105,
		StopLoss:    99,
		Targets:     []float64{123, 129, 135},
		Status:      footprint.StatusWaiting,
		CreatedAt:   createdAt,
	}
}

func testTrade(id, status string, entryTime time.Time) *Trade {
	return &Trade{
		ID:         id,
		SetupID:    "setup-1",
		Instrument: "EUR/USD",
		Side:       "buy",
		Quantity:   40,
		EntryPrice: 105,
		StopLoss:   99,
		TakeProfit: 123,
		Status:     status,
		EntryTime:  entryTime,
	}
}

func TestMemorySetupRoundtrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	setup := testSetup("s1", time.Now())
	if err := m.SaveSetup(ctx, setup); err != nil {
		t.Fatalf("SaveSetup: %v", err)
	}

	got, err := m.GetSetup(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSetup: %v", err)
	}
	if got.EntryRange.Midpoint != 105 || got.Status != footprint.StatusWaiting {
		t.Errorf("setup = %+v, want saved fields back", got)
	}

	// The stored copy is detached from the caller's pointer.
	setup.Status = footprint.StatusActive
	got, _ = m.GetSetup(ctx, "s1")
	if got.Status != footprint.StatusWaiting {
		t.Error("store must hold its own copy")
	}
}

func TestMemoryUpdateSetupStatus(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.SaveSetup(ctx, testSetup("s1", time.Now())); err != nil {
		t.Fatalf("SaveSetup: %v", err)
	}

	if err := m.UpdateSetupStatus(ctx, "s1", footprint.StatusActive); err != nil {
		t.Fatalf("UpdateSetupStatus: %v", err)
	}
	got, _ := m.GetSetup(ctx, "s1")
	if got.Status != footprint.StatusActive {
		t.Errorf("status = %s, want active", got.Status)
	}

	if err := m.UpdateSetupStatus(ctx, "missing", footprint.StatusActive); !errors.Is(err, ErrNotFound) {
		t.Errorf("update of missing setup = %v, want ErrNotFound", err)
	}
}

func TestMemoryWaitingSetupsOrdered(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now()

	for i := 3; i >= 1; i-- {
		s := testSetup(fmt.Sprintf("s%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := m.SaveSetup(ctx, s); err != nil {
			t.Fatalf("SaveSetup: %v", err)
		}
	}
	if err := m.UpdateSetupStatus(ctx, "s2", footprint.StatusInvalidated); err != nil {
		t.Fatalf("UpdateSetupStatus: %v", err)
	}

	waiting, err := m.WaitingSetups(ctx)
	if err != nil {
		t.Fatalf("WaitingSetups: %v", err)
	}
	if len(waiting) != 2 {
		t.Fatalf("waiting = %d, want 2", len(waiting))
	}
	if waiting[0].ID != "s1" || waiting[1].ID != "s3" {
		t.Errorf("order = [%s, %s], want [s1, s3]", waiting[0].ID, waiting[1].ID)
	}
}

func TestMemoryTradeLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()

	trade := testTrade("t1", TradeStatusOpen, now)
	if err := m.SaveTrade(ctx, trade); err != nil {
		t.Fatalf("SaveTrade: %v", err)
	}

	open, _ := m.OpenTrades(ctx)
	if len(open) != 1 || open[0].ID != "t1" {
		t.Fatalf("open trades = %v, want [t1]", open)
	}

	exitPrice := 123.0
	exitTime := now.Add(time.Hour)
	trade.Status = TradeStatusClosed
	trade.ExitPrice = &exitPrice
	trade.ExitReason = ExitTargetHit
	trade.ExitTime = &exitTime
	trade.PnL = (123 - 105) * 40
	if err := m.UpdateTrade(ctx, trade); err != nil {
		t.Fatalf("UpdateTrade: %v", err)
	}

	open, _ = m.OpenTrades(ctx)
	if len(open) != 0 {
		t.Errorf("open trades after close = %d, want 0", len(open))
	}
	closed, _ := m.ClosedTrades(ctx)
	if len(closed) != 1 || closed[0].ExitReason != ExitTargetHit {
		t.Fatalf("closed trades = %v, want the target_hit close", closed)
	}
	if closed[0].PnL != 720 {
		t.Errorf("pnl = %v, want 720", closed[0].PnL)
	}

	if err := m.UpdateTrade(ctx, testTrade("missing", TradeStatusOpen, now)); !errors.Is(err, ErrNotFound) {
		t.Errorf("update of missing trade = %v, want ErrNotFound", err)
	}
}

func TestMemoryExecutionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now()

	for i := 1; i <= 4; i++ {
		exec := &StrategyExecution{
			ID:          fmt.Sprintf("e%d", i),
			StrategyID:  "strat-1",
			Instrument:  "EUR/USD",
			Action:      "HOLD",
			EvaluatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := m.AppendExecution(ctx, exec); err != nil {
			t.Fatalf("AppendExecution: %v", err)
		}
	}
	m.AppendExecution(ctx, &StrategyExecution{ID: "other", StrategyID: "strat-2", EvaluatedAt: base})

	got, err := m.Executions(ctx, "strat-1", 2)
	if err != nil {
		t.Fatalf("Executions: %v", err)
	}
	if len(got) != 2 || got[0].ID != "e4" || got[1].ID != "e3" {
		t.Errorf("executions = %v, want [e4 e3]", got)
	}

	all, _ := m.Executions(ctx, "", 0)
	if len(all) != 5 {
		t.Errorf("unfiltered executions = %d, want 5", len(all))
	}
}

func TestMemoryGetMissing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if _, err := m.GetSetup(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSetup = %v, want ErrNotFound", err)
	}
	if _, err := m.GetTrade(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTrade = %v, want ErrNotFound", err)
	}
}
