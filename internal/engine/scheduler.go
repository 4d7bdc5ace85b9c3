package engine

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"footprint-trading-bot/internal/market"
	"footprint-trading-bot/internal/signal"
	"footprint-trading-bot/internal/store"
)

// Auto-execution fires only when the signal clears this confidence.
const autoExecuteConfidence = 70

// Evaluation pulls this many candles; strategies with fewer bars skip.
const evaluationLookback = 100

// StrategyConfig describes one scheduled strategy.
type StrategyConfig struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Instrument      string            `json:"instrument"`
	Timeframe       string            `json:"timeframe"`
	Type            signal.Strategy   `json:"type"`
	Parameters      signal.Parameters `json:"parameters"`
	MaxPositionSize float64           `json:"max_position_size"`
	StopLossPct     float64           `json:"stop_loss_pct"`
	TakeProfitPct   float64           `json:"take_profit_pct"`
	AutoExecute     bool              `json:"auto_execute"`
	Enabled         bool              `json:"enabled"`
}

// scheduledRun is one pending evaluation in the run queue.
type scheduledRun struct {
	at         time.Time
	strategyID string
}

// runQueue is a min-heap of scheduled runs ordered by due time.
type runQueue []scheduledRun

func (q runQueue) Len() int            { return len(q) }
func (q runQueue) Less(i, j int) bool  { return q[i].at.Before(q[j].at) }
func (q runQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *runQueue) Push(x interface{}) { *q = append(*q, x.(scheduledRun)) }
func (q *runQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Scheduler evaluates configured strategies on their timeframe cadence.
// All strategies share one timer driven by a due-time heap, so adding a
// strategy never spawns another goroutine. Trades opened by auto-executed
// signals are handed to the engine, which monitors them alongside
// setup-driven trades.
type Scheduler struct {
	engine *Engine
	logger zerolog.Logger

	mu         sync.Mutex
	strategies map[string]*StrategyConfig
	queue      runQueue
	running    bool
	wakeup     chan struct{}
	stopChan   chan struct{}
	wg         sync.WaitGroup

	now func() time.Time
}

// NewScheduler builds a strategy scheduler on top of an engine.
func NewScheduler(engine *Engine, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		engine:     engine,
		logger:     logger.With().Str("component", "strategy_scheduler").Logger(),
		strategies: make(map[string]*StrategyConfig),
		wakeup:     make(chan struct{}, 1),
		now:        time.Now,
	}
}

// AddStrategy registers a strategy and schedules its first run. A strategy
// without an ID gets one assigned; the ID is returned.
func (s *Scheduler) AddStrategy(cfg StrategyConfig) string {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}

	s.mu.Lock()
	s.strategies[cfg.ID] = &cfg
	if cfg.Enabled {
		heap.Push(&s.queue, scheduledRun{at: s.now(), strategyID: cfg.ID})
	}
	s.mu.Unlock()

	s.poke()
	s.logger.Info().
		Str("strategy_id", cfg.ID).
		Str("instrument", cfg.Instrument).
		Str("timeframe", cfg.Timeframe).
		Str("type", string(cfg.Type)).
		Bool("auto_execute", cfg.AutoExecute).
		Msg("Strategy registered")
	return cfg.ID
}

// RemoveStrategy unregisters a strategy. Pending queue entries for it are
// dropped lazily when they come due.
func (s *Scheduler) RemoveStrategy(id string) {
	s.mu.Lock()
	delete(s.strategies, id)
	s.mu.Unlock()
}

// Strategies returns copies of every registered strategy.
func (s *Scheduler) Strategies() []StrategyConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StrategyConfig, 0, len(s.strategies))
	for _, cfg := range s.strategies {
		out = append(out, *cfg)
	}
	return out
}

// Start launches the scheduling loop. Starting a running scheduler is a
// no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
	s.logger.Info().Msg("Strategy scheduler started")
}

// Stop halts the loop and waits for an in-flight evaluation.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("Strategy scheduler stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ctx := context.Background()
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := s.rearm()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-s.stopChan:
			return
		case <-s.wakeup:
		case <-timer.C:
			s.runDue(ctx)
		}
	}
}

// rearm returns how long to sleep until the next due run. An empty queue
// sleeps until poked.
func (s *Scheduler) rearm() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return time.Hour
	}
	wait := s.queue[0].at.Sub(s.now())
	if wait < 0 {
		wait = 0
	}
	return wait
}

// runDue evaluates every strategy whose time has come and reschedules it
// one timeframe bar later.
func (s *Scheduler) runDue(ctx context.Context) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.queue[0].at.After(s.now()) {
			s.mu.Unlock()
			return
		}
		run := heap.Pop(&s.queue).(scheduledRun)
		cfg, ok := s.strategies[run.strategyID]
		if ok && cfg.Enabled {
			next := s.now().Add(market.TimeframeDuration(cfg.Timeframe))
			heap.Push(&s.queue, scheduledRun{at: next, strategyID: cfg.ID})
		}
		s.mu.Unlock()

		if !ok || !cfg.Enabled {
			continue
		}
		s.Evaluate(ctx, cfg.ID)
	}
}

// poke wakes the loop so it re-reads the queue head.
func (s *Scheduler) poke() {
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

// Evaluate runs one strategy now: fetch candles, generate the signal,
// append the audit record, and auto-execute when configured and the signal
// is confident enough. Every evaluation is recorded, executed or not.
func (s *Scheduler) Evaluate(ctx context.Context, strategyID string) {
	s.mu.Lock()
	cfg, ok := s.strategies[strategyID]
	if !ok {
		s.mu.Unlock()
		return
	}
	strategy := *cfg
	s.mu.Unlock()

	candles, err := s.engine.gateway.HistoricalData(ctx, strategy.Instrument, strategy.Timeframe, evaluationLookback)
	if err != nil {
		s.logger.Error().Err(err).Str("strategy_id", strategy.ID).Msg("Candle fetch failed")
		return
	}
	series := market.NewSeries(candles)
	if series.Len() < 50 {
		s.logger.Warn().
			Str("strategy_id", strategy.ID).
			Int("bars", series.Len()).
			Msg("Not enough candles, skipping evaluation")
		return
	}

	sig := signal.Generate(series, strategy.Type, strategy.Parameters)

	exec := &store.StrategyExecution{
		ID:          uuid.New().String(),
		StrategyID:  strategy.ID,
		Instrument:  strategy.Instrument,
		Action:      string(sig.Action),
		Strength:    sig.Strength,
		Confidence:  sig.Confidence,
		Reason:      sig.Reason,
		EvaluatedAt: s.now(),
	}

	s.logger.Info().
		Str("strategy_id", strategy.ID).
		Str("instrument", strategy.Instrument).
		Str("action", string(sig.Action)).
		Float64("confidence", sig.Confidence).
		Str("reason", sig.Reason).
		Msg("Strategy evaluated")
	s.engine.bus.PublishSignal(strategy.ID, strategy.Instrument, string(sig.Action), sig.Reason, sig.Confidence)

	if strategy.AutoExecute && sig.Action != signal.ActionHold && sig.Confidence >= autoExecuteConfidence {
		exec.Executed = s.execute(ctx, strategy, sig.Action)
	}

	if err := s.engine.store.AppendExecution(ctx, exec); err != nil {
		s.logger.Error().Err(err).Str("strategy_id", strategy.ID).Msg("Failed to persist execution")
	}
}

// execute turns a confident signal into a trade. The stop comes from the
// strategy's stop-loss percent, sizing from the risk manager capped by the
// strategy's max position size. Reports whether an order was placed.
func (s *Scheduler) execute(ctx context.Context, strategy StrategyConfig, action signal.Action) bool {
	price, err := s.engine.gateway.CurrentPrice(ctx, strategy.Instrument)
	if err != nil {
		s.logger.Error().Err(err).Str("strategy_id", strategy.ID).Msg("Price fetch failed")
		return false
	}

	stopPct := strategy.StopLossPct
	if stopPct <= 0 {
		stopPct = 1
	}
	targetPct := strategy.TakeProfitPct
	if targetPct <= 0 {
		targetPct = 2
	}

	var stopLoss, takeProfit float64
	side := market.SideBuy
	if action == signal.ActionSell {
		side = market.SideSell
		stopLoss = price * (1 + stopPct/100)
		takeProfit = price * (1 - targetPct/100)
	} else {
		stopLoss = price * (1 - stopPct/100)
		takeProfit = price * (1 + targetPct/100)
	}

	balance, err := s.engine.accountBalance(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Balance fetch failed")
		return false
	}

	quantity, err := s.engine.risk.Approve(balance, price, stopLoss, s.engine.openPositions())
	if err != nil {
		s.logger.Warn().Err(err).Str("strategy_id", strategy.ID).Msg("Signal blocked by risk limits")
		return false
	}
	if strategy.MaxPositionSize > 0 && quantity > strategy.MaxPositionSize {
		quantity = strategy.MaxPositionSize
	}

	result, err := s.engine.gateway.PlaceOrder(ctx, market.OrderRequest{
		Instrument: strategy.Instrument,
		Side:       side,
		Type:       market.OrderTypeMarket,
		Quantity:   quantity,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("strategy_id", strategy.ID).Msg("Order placement failed")
		s.engine.bus.PublishError("scheduler", "order placement failed", err)
		return false
	}
	if !result.Success {
		s.logger.Warn().Str("strategy_id", strategy.ID).Msg("Order rejected by venue")
		return false
	}

	entryPrice := price
	if result.Price > 0 {
		entryPrice = result.Price
	}
	trade := &store.Trade{
		ID:         uuid.New().String(),
		Instrument: strategy.Instrument,
		Side:       side,
		Quantity:   quantity,
		EntryPrice: entryPrice,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Status:     store.TradeStatusOpen,
		EntryTime:  s.now(),
	}
	s.engine.adoptTrade(ctx, trade)

	s.logger.Info().
		Str("strategy_id", strategy.ID).
		Str("trade_id", trade.ID).
		Str("side", side).
		Float64("entry", entryPrice).
		Float64("quantity", quantity).
		Msg("Strategy trade opened")
	s.engine.bus.PublishTradeOpened(trade.ID, trade.Instrument, side, entryPrice, quantity)
	return true
}
