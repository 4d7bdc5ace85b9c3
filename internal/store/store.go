// Package store persists setups, trades, and the strategy execution audit
// log.
package store

import (
	"context"
	"errors"
	"time"

	"footprint-trading-bot/internal/footprint"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// Trade statuses. Cancelled marks an entry unwound before its setup ever
// went active; cancelled trades are excluded from performance statistics.
const (
	TradeStatusOpen      = "open"
	TradeStatusClosed    = "closed"
	TradeStatusCancelled = "cancelled"
)

// Exit reasons.
const (
	ExitTargetHit = "target_hit"
	ExitStopLoss  = "stop_loss"
	ExitManual    = "manual"
)

// Trade is one executed position, open or closed.
type Trade struct {
	ID         string     `json:"id"`
	SetupID    string     `json:"setup_id"`
	Instrument string     `json:"instrument"`
	Side       string     `json:"side"`
	Quantity   float64    `json:"quantity"`
	EntryPrice float64    `json:"entry_price"`
	StopLoss   float64    `json:"stop_loss"`
	TakeProfit float64    `json:"take_profit"`
	Status     string     `json:"status"`
	PnL        float64    `json:"pnl"`
	ExitPrice  *float64   `json:"exit_price,omitempty"`
	ExitReason string     `json:"exit_reason,omitempty"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   *time.Time `json:"exit_time,omitempty"`
}

// Open reports whether the trade still holds a position.
func (t *Trade) Open() bool {
	return t.Status == TradeStatusOpen
}

// StrategyExecution is one appended audit record of an evaluated signal.
type StrategyExecution struct {
	ID          string    `json:"id"`
	StrategyID  string    `json:"strategy_id"`
	Instrument  string    `json:"instrument"`
	Action      string    `json:"action"`
	Strength    float64   `json:"strength"`
	Confidence  float64   `json:"confidence"`
	Reason      string    `json:"reason"`
	Executed    bool      `json:"executed"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Store is the persistence contract. Implementations must be safe for
// concurrent use. Callers treat write failures as log-and-continue; the
// in-memory state stays authoritative.
type Store interface {
	SaveSetup(ctx context.Context, setup *footprint.Setup) error
	UpdateSetupStatus(ctx context.Context, id string, status footprint.SetupStatus) error
	GetSetup(ctx context.Context, id string) (*footprint.Setup, error)
	WaitingSetups(ctx context.Context) ([]*footprint.Setup, error)

	SaveTrade(ctx context.Context, trade *Trade) error
	UpdateTrade(ctx context.Context, trade *Trade) error
	GetTrade(ctx context.Context, id string) (*Trade, error)
	OpenTrades(ctx context.Context) ([]*Trade, error)
	ClosedTrades(ctx context.Context) ([]*Trade, error)

	AppendExecution(ctx context.Context, exec *StrategyExecution) error
	Executions(ctx context.Context, strategyID string, limit int) ([]*StrategyExecution, error)

	Close()
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)
