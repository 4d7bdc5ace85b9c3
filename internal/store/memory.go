package store

import (
	"context"
	"sort"
	"sync"

	"footprint-trading-bot/internal/footprint"
)

// Memory is the in-process Store used by tests and when no database is
// configured.
type Memory struct {
	mu         sync.RWMutex
	setups     map[string]footprint.Setup
	trades     map[string]Trade
	executions []StrategyExecution
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		setups: make(map[string]footprint.Setup),
		trades: make(map[string]Trade),
	}
}

func (m *Memory) SaveSetup(_ context.Context, setup *footprint.Setup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setups[setup.ID] = *setup
	return nil
}

func (m *Memory) UpdateSetupStatus(_ context.Context, id string, status footprint.SetupStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	setup, ok := m.setups[id]
	if !ok {
		return ErrNotFound
	}
	setup.Status = status
	m.setups[id] = setup
	return nil
}

func (m *Memory) GetSetup(_ context.Context, id string) (*footprint.Setup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	setup, ok := m.setups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &setup, nil
}

func (m *Memory) WaitingSetups(_ context.Context) ([]*footprint.Setup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*footprint.Setup
	for _, setup := range m.setups {
		if setup.Status == footprint.StatusWaiting {
			s := setup
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SaveTrade(_ context.Context, trade *Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades[trade.ID] = *trade
	return nil
}

func (m *Memory) UpdateTrade(_ context.Context, trade *Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trades[trade.ID]; !ok {
		return ErrNotFound
	}
	m.trades[trade.ID] = *trade
	return nil
}

func (m *Memory) GetTrade(_ context.Context, id string) (*Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	trade, ok := m.trades[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &trade, nil
}

func (m *Memory) OpenTrades(ctx context.Context) ([]*Trade, error) {
	return m.tradesByStatus(TradeStatusOpen), nil
}

func (m *Memory) ClosedTrades(ctx context.Context) ([]*Trade, error) {
	return m.tradesByStatus(TradeStatusClosed), nil
}

func (m *Memory) tradesByStatus(status string) []*Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Trade
	for _, trade := range m.trades {
		if trade.Status == status {
			t := trade
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryTime.Before(out[j].EntryTime) })
	return out
}

func (m *Memory) AppendExecution(_ context.Context, exec *StrategyExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions = append(m.executions, *exec)
	return nil
}

func (m *Memory) Executions(_ context.Context, strategyID string, limit int) ([]*StrategyExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*StrategyExecution
	// Newest first.
	for i := len(m.executions) - 1; i >= 0; i-- {
		if strategyID != "" && m.executions[i].StrategyID != strategyID {
			continue
		}
		e := m.executions[i]
		out = append(out, &e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Close() {}
