package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
)

func newTestManager() *Manager {
	return NewManager(Config{}, zerolog.Nop())
}

func TestPositionSize(t *testing.T) {
	m := newTestManager()
	// 2% of 10000 is 200 at risk; a 5-point stop distance sizes 40 units.
	if got := m.PositionSize(10000, 100, 95); got != 40 {
		t.Errorf("PositionSize = %v, want 40", got)
	}
}

func TestPositionSizeDegenerate(t *testing.T) {
	m := newTestManager()
	if got := m.PositionSize(10000, 100, 100); got != 0 {
		t.Errorf("PositionSize with zero stop distance = %v, want 0", got)
	}
	if got := m.PositionSize(0, 100, 95); got != 0 {
		t.Errorf("PositionSize with zero balance = %v, want 0", got)
	}
}

func TestRequiredMargin(t *testing.T) {
	m := newTestManager()
	// 40 units at 100 is a 4000 position, 400 margin at 10:1.
	if got := m.RequiredMargin(40, 100); got != 400 {
		t.Errorf("RequiredMargin = %v, want 400", got)
	}
}

func TestApproveFirstTrade(t *testing.T) {
	m := newTestManager()
	quantity, err := m.Approve(10000, 100, 95, nil)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if quantity != 40 {
		t.Errorf("approved quantity = %v, want 40", quantity)
	}
}

func TestApproveSurvivesSizingRoundoff(t *testing.T) {
	m := newTestManager()
	// A stop distance of 3 makes quantity*distance land a hair above the
	// risk budget in floating point; that must not block the trade.
	if _, err := m.Approve(10000, 100, 97, nil); err != nil {
		t.Errorf("Approve: %v, want pass", err)
	}
}

func TestApproveBlocksMaxTrades(t *testing.T) {
	m := newTestManager()
	open := make([]OpenPosition, 5)
	for i := range open {
		open[i] = OpenPosition{EntryPrice: 100, StopLoss: 99, Quantity: 1}
	}
	_, err := m.Approve(10000, 100, 95, open)
	var limitErr *RiskLimitError
	if !errors.As(err, &limitErr) || limitErr.Reason != ReasonMaxTrades {
		t.Fatalf("Approve with 5 open trades = %v, want max_trades block", err)
	}
}

func TestApproveBlocksInsufficientMargin(t *testing.T) {
	m := newTestManager()
	// Balance 500 risks 10; a one-point stop at entry 10000 sizes 10
	// units, needing 10000 margin at 10:1.
	_, err := m.Approve(500, 10000, 9999, nil)
	var limitErr *RiskLimitError
	if !errors.As(err, &limitErr) || limitErr.Reason != ReasonInsufficientMargin {
		t.Fatalf("Approve = %v, want insufficient_margin block", err)
	}
}

func TestApproveBlocksAggregateRisk(t *testing.T) {
	m := newTestManager()
	// One existing full-size position already consumes the 2% budget.
	open := []OpenPosition{{EntryPrice: 100, StopLoss: 95, Quantity: 40}}
	_, err := m.Approve(10000, 100, 95, open)
	var limitErr *RiskLimitError
	if !errors.As(err, &limitErr) || limitErr.Reason != ReasonRiskLimit {
		t.Fatalf("Approve = %v, want risk_limit block", err)
	}
	if !IsRiskLimit(err) {
		t.Error("IsRiskLimit must recognize the block")
	}
}

func TestApproveAllowsRiskFreeOpenPositions(t *testing.T) {
	m := newTestManager()
	// An open trade whose stop sits at breakeven carries no risk and must
	// not count against the budget.
	open := []OpenPosition{{EntryPrice: 100, StopLoss: 100, Quantity: 40}}
	quantity, err := m.Approve(10000, 100, 95, open)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if math.Abs(quantity-40) > 1e-9 {
		t.Errorf("quantity = %v, want 40", quantity)
	}
}

func TestConfigDefaults(t *testing.T) {
	m := NewManager(Config{MaxOpenTrades: 3}, zerolog.Nop())
	cfg := m.Config()
	if cfg.MaxOpenTrades != 3 {
		t.Errorf("MaxOpenTrades = %d, want 3", cfg.MaxOpenTrades)
	}
	if cfg.MaxRiskPerTrade != 0.02 || cfg.Leverage != 10 {
		t.Errorf("defaults = %+v, want 2%% risk and 10:1 leverage", cfg)
	}
}
