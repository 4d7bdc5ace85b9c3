package market

import (
	"context"
	"sync"
	"time"
)

// DefaultMinInterval is the minimum spacing between gateway requests.
const DefaultMinInterval = 100 * time.Millisecond

// Pacer enforces a minimum delay between consecutive gateway calls so a
// monitoring cycle cannot burst past venue rate limits. One Pacer guards one
// gateway; all orchestrator calls go through the same instance.
type Pacer struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastRequest time.Time
}

// NewPacer creates a pacer with the given minimum spacing. Non-positive
// values fall back to DefaultMinInterval.
func NewPacer(minInterval time.Duration) *Pacer {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Pacer{minInterval: minInterval}
}

// Wait blocks until at least the minimum interval has elapsed since the
// previous request, or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	next := p.lastRequest.Add(p.minInterval)
	var delay time.Duration
	if next.After(now) {
		delay = next.Sub(now)
		p.lastRequest = next
	} else {
		p.lastRequest = now
	}
	p.mu.Unlock()

	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PacedGateway wraps a Gateway so every call first passes through a Pacer.
type PacedGateway struct {
	inner Gateway
	pacer *Pacer
}

// NewPacedGateway wraps gw with request pacing.
func NewPacedGateway(gw Gateway, pacer *Pacer) *PacedGateway {
	if pacer == nil {
		pacer = NewPacer(DefaultMinInterval)
	}
	return &PacedGateway{inner: gw, pacer: pacer}
}

func (g *PacedGateway) CurrentPrice(ctx context.Context, instrument string) (float64, error) {
	if err := g.pacer.Wait(ctx); err != nil {
		return 0, err
	}
	return g.inner.CurrentPrice(ctx, instrument)
}

func (g *PacedGateway) HistoricalData(ctx context.Context, instrument, timeframe string, limit int) ([]Candle, error) {
	if err := g.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	return g.inner.HistoricalData(ctx, instrument, timeframe, limit)
}

func (g *PacedGateway) Balances(ctx context.Context) ([]Balance, error) {
	if err := g.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	return g.inner.Balances(ctx)
}

func (g *PacedGateway) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if err := g.pacer.Wait(ctx); err != nil {
		return OrderResult{}, err
	}
	return g.inner.PlaceOrder(ctx, req)
}

func (g *PacedGateway) ClosePosition(ctx context.Context, instrument string) (ClosePositionResult, error) {
	if err := g.pacer.Wait(ctx); err != nil {
		return ClosePositionResult{}, err
	}
	return g.inner.ClosePosition(ctx, instrument)
}

var _ Gateway = (*PacedGateway)(nil)
