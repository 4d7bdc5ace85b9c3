package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"footprint-trading-bot/internal/events"
	"footprint-trading-bot/internal/footprint"
	"footprint-trading-bot/internal/market"
	"footprint-trading-bot/internal/risk"
	"footprint-trading-bot/internal/store"
)

// DefaultInterval is the cycle cadence when the config leaves it unset.
const DefaultInterval = 5 * time.Minute

// Config tunes the engine loop.
type Config struct {
	// Instruments is the watchlist scanned every cycle.
	Instruments []string

	// Interval is the time between cycles.
	Interval time.Duration

	// BaseCurrency names the balance used for sizing, e.g. USDT.
	BaseCurrency string
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.BaseCurrency == "" {
		c.BaseCurrency = "USDT"
	}
	return c
}

// Status is a point-in-time snapshot of the engine.
type Status struct {
	IsRunning        bool      `json:"is_running"`
	ActiveTradeCount int       `json:"active_trade_count"`
	LastUpdate       time.Time `json:"last_update"`
}

// Engine runs the trading loop: monitor open trades, scan for setups,
// execute the ones that pass validation and risk checks. One cycle runs at
// a time; a tick that arrives mid-cycle is skipped.
type Engine struct {
	gateway market.Gateway
	store   store.Store
	risk    *risk.Manager
	setups  *footprint.Manager
	bus     *events.EventBus
	logger  zerolog.Logger
	config  Config

	mu         sync.RWMutex
	running    bool
	inCycle    bool
	lastUpdate time.Time
	openTrades map[string]*store.Trade

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New wires an engine from its collaborators.
func New(gateway market.Gateway, st store.Store, riskMgr *risk.Manager, setups *footprint.Manager, bus *events.EventBus, config Config, logger zerolog.Logger) *Engine {
	return &Engine{
		gateway:    gateway,
		store:      st,
		risk:       riskMgr,
		setups:     setups,
		bus:        bus,
		logger:     logger.With().Str("component", "trading_engine").Logger(),
		config:     config.withDefaults(),
		openTrades: make(map[string]*store.Trade),
	}
}

// Start loads persisted state and launches the cycle loop. The first cycle
// runs immediately. Starting a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.mu.Unlock()

	if err := e.reload(ctx); err != nil {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		return err
	}

	e.wg.Add(1)
	go e.loop()

	e.logger.Info().
		Strs("instruments", e.config.Instruments).
		Dur("interval", e.config.Interval).
		Msg("Trading engine started")
	e.bus.Publish(events.Event{Type: events.EventEngineStarted})
	return nil
}

// Stop halts the loop and waits for an in-flight cycle to finish. Stopping
// a stopped engine is a no-op. Open trades stay open; a later Start reloads
// them from the store.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopChan)
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.Info().Msg("Trading engine stopped")
	e.bus.Publish(events.Event{Type: events.EventEngineStopped})
}

// Running reports whether the loop is live.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Status{
		IsRunning:        e.running,
		ActiveTradeCount: len(e.openTrades),
		LastUpdate:       e.lastUpdate,
	}
}

// ActiveTrades returns copies of the trades the engine currently manages.
func (e *Engine) ActiveTrades() []*store.Trade {
	e.mu.RLock()
	defer e.mu.RUnlock()
	trades := make([]*store.Trade, 0, len(e.openTrades))
	for _, t := range e.openTrades {
		copied := *t
		trades = append(trades, &copied)
	}
	return trades
}

// Performance computes statistics over all closed trades in the store.
func (e *Engine) Performance(ctx context.Context) (Performance, error) {
	closed, err := e.store.ClosedTrades(ctx)
	if err != nil {
		return Performance{}, err
	}
	return ComputePerformance(closed), nil
}

// RunCycle executes one monitoring cycle on demand. Used by the scheduler-
// free deployments and by tests; the loop calls the same path.
func (e *Engine) RunCycle(ctx context.Context) {
	e.mu.Lock()
	if e.inCycle {
		e.mu.Unlock()
		e.logger.Warn().Msg("Cycle already in progress, skipping")
		return
	}
	e.inCycle = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inCycle = false
		e.lastUpdate = time.Now()
		e.mu.Unlock()
	}()

	e.monitorTrades(ctx)
	for _, instrument := range e.config.Instruments {
		e.scanInstrument(ctx, instrument)
	}
	e.executeWaitingSetups(ctx)
}

func (e *Engine) loop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	ctx := context.Background()
	e.RunCycle(ctx)
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.RunCycle(ctx)
		}
	}
}

// reload restores open trades and waiting setups from the store so a
// restart picks up where the previous run left off.
func (e *Engine) reload(ctx context.Context) error {
	open, err := e.store.OpenTrades(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.openTrades = make(map[string]*store.Trade, len(open))
	for _, t := range open {
		e.openTrades[t.ID] = t
	}
	e.mu.Unlock()

	waiting, err := e.store.WaitingSetups(ctx)
	if err != nil {
		return err
	}
	for _, s := range waiting {
		e.setups.Restore(s)
	}

	e.logger.Info().
		Int("open_trades", len(open)).
		Int("waiting_setups", len(waiting)).
		Msg("State restored from store")
	return nil
}

// scanInstrument discovers new setups, persists them, and retires waiting
// setups whose price has left the entry range. Errors are logged and the
// cycle continues with the next instrument.
func (e *Engine) scanInstrument(ctx context.Context, instrument string) {
	created, err := e.setups.FindTradingSetups(ctx, instrument)
	if err != nil {
		e.logger.Error().Err(err).Str("instrument", instrument).Msg("Setup scan failed")
		e.bus.PublishError("engine", "setup scan failed", err)
		return
	}
	for _, setup := range created {
		if err := e.store.SaveSetup(ctx, setup); err != nil {
			e.logger.Error().Err(err).Str("setup_id", setup.ID).Msg("Failed to persist setup")
		}
		e.bus.PublishSetupCreated(setup.ID, setup.Instrument, string(setup.Footprint.Direction), setup.EntryPrice, setup.StopLoss)
	}

	price, err := e.gateway.CurrentPrice(ctx, instrument)
	if err != nil {
		e.logger.Error().Err(err).
			Str("instrument", instrument).
			Str("kind", string(market.ErrorKindOf(err))).
			Msg("Price fetch failed")
		return
	}
	for _, dropped := range e.setups.CheckInvalidations(instrument, price) {
		if err := e.store.UpdateSetupStatus(ctx, dropped.ID, footprint.StatusInvalidated); err != nil {
			e.logger.Error().Err(err).Str("setup_id", dropped.ID).Msg("Failed to persist invalidation")
		}
		e.bus.PublishSetupInvalidated(dropped.ID, instrument, price)
	}
}

// executeWaitingSetups attempts entry on every waiting setup. A setup whose
// price has drifted out of the entry range is invalidated; one that fails
// the risk gate is skipped and retried next cycle.
func (e *Engine) executeWaitingSetups(ctx context.Context) {
	for _, setup := range e.setups.Waiting() {
		e.executeSetup(ctx, setup)
	}
}

func (e *Engine) executeSetup(ctx context.Context, setup *footprint.Setup) {
	price, err := e.gateway.CurrentPrice(ctx, setup.Instrument)
	if err != nil {
		e.logger.Error().Err(err).Str("instrument", setup.Instrument).Msg("Price fetch failed")
		return
	}

	if price < setup.EntryRange.Floor || price > setup.EntryRange.Base {
		if err := e.setups.Invalidate(setup.ID); err == nil {
			if err := e.store.UpdateSetupStatus(ctx, setup.ID, footprint.StatusInvalidated); err != nil {
				e.logger.Error().Err(err).Str("setup_id", setup.ID).Msg("Failed to persist invalidation")
			}
			e.bus.PublishSetupInvalidated(setup.ID, setup.Instrument, price)
		}
		return
	}

	balance, err := e.accountBalance(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Balance fetch failed")
		return
	}

	quantity, err := e.risk.Approve(balance, price, setup.StopLoss, e.openPositions())
	if err != nil {
		if risk.IsRiskLimit(err) {
			e.logger.Warn().Err(err).Str("setup_id", setup.ID).Msg("Setup blocked by risk limits")
		} else {
			e.logger.Error().Err(err).Str("setup_id", setup.ID).Msg("Risk check failed")
		}
		return
	}

	order := market.OrderRequest{
		Instrument: setup.Instrument,
		Side:       setup.Side(),
		Type:       market.OrderTypeMarket,
		Quantity:   quantity,
		StopLoss:   setup.StopLoss,
		TakeProfit: setup.Targets[0],
	}
	result, err := e.gateway.PlaceOrder(ctx, order)
	if err != nil {
		e.logger.Error().Err(err).Str("setup_id", setup.ID).Msg("Order placement failed")
		e.bus.PublishError("engine", "order placement failed", err)
		return
	}
	if !result.Success {
		e.logger.Warn().Str("setup_id", setup.ID).Msg("Order rejected by venue")
		return
	}

	entryPrice := price
	if result.Price > 0 {
		entryPrice = result.Price
	}
	trade := e.openTrade(setup, entryPrice, quantity)

	if err := e.store.SaveTrade(ctx, trade); err != nil {
		e.logger.Error().Err(err).Str("trade_id", trade.ID).Msg("Failed to persist trade")
	}
	if err := e.setups.Activate(setup.ID); err != nil {
		// The setup left the waiting state between the range check and the
		// fill. The position is already on at the venue; unwind it.
		e.logger.Warn().Err(err).Str("setup_id", setup.ID).Msg("Setup no longer waiting, cancelling entry")
		e.cancelTrade(ctx, trade)
		return
	}
	if err := e.store.UpdateSetupStatus(ctx, setup.ID, footprint.StatusActive); err != nil {
		e.logger.Error().Err(err).Str("setup_id", setup.ID).Msg("Failed to persist activation")
	}

	e.logger.Info().
		Str("trade_id", trade.ID).
		Str("instrument", trade.Instrument).
		Str("side", trade.Side).
		Float64("entry", trade.EntryPrice).
		Float64("quantity", trade.Quantity).
		Msg("Trade opened")
	e.bus.PublishTradeOpened(trade.ID, trade.Instrument, trade.Side, trade.EntryPrice, trade.Quantity)
}

// accountBalance resolves the sizing balance from the configured base
// currency. A missing base currency is treated as a zero balance.
func (e *Engine) accountBalance(ctx context.Context) (float64, error) {
	balances, err := e.gateway.Balances(ctx)
	if err != nil {
		return 0, err
	}
	for _, b := range balances {
		if b.Currency == e.config.BaseCurrency {
			return b.Balance, nil
		}
	}
	return 0, nil
}

func (e *Engine) openPositions() []risk.OpenPosition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	positions := make([]risk.OpenPosition, 0, len(e.openTrades))
	for _, t := range e.openTrades {
		positions = append(positions, risk.OpenPosition{
			EntryPrice: t.EntryPrice,
			StopLoss:   t.StopLoss,
			Quantity:   t.Quantity,
		})
	}
	return positions
}
