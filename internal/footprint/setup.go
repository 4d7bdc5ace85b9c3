package footprint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"footprint-trading-bot/internal/market"
)

// SetupStatus is the lifecycle state of a Setup.
type SetupStatus string

const (
	StatusWaiting     SetupStatus = "waiting"
	StatusActive      SetupStatus = "active"
	StatusCompleted   SetupStatus = "completed"
	StatusInvalidated SetupStatus = "invalidated"
)

// Scan parameters for setup discovery.
const (
	SetupTimeframe   = "4h"
	setupLookback    = 200
	MicroTimeframe   = "15m"
	microLookback    = 100
	MonthlyTimeframe = "1M"
	monthlyLookback  = 60

	// stopBuffer pushes the stop loss past the range edge by this share
	// of the range width.
	stopBuffer = 0.1
)

// Reward multiples applied to the risk distance when laddering targets.
var targetMultiples = []float64{3, 4, 5}

// EntryRange is the retest band a setup trades from.
type EntryRange struct {
	Floor    float64 `json:"floor"`
	Base     float64 `json:"base"`
	Midpoint float64 `json:"midpoint"`
}

// Setup is a footprint retest with at least one confirmation, ready to be
// sized and executed.
type Setup struct {
	ID              string        `json:"id"`
	Instrument      string        `json:"instrument"`
	Footprint       Footprint     `json:"footprint"`
	MonthlyBias     Bias          `json:"monthly_bias"`
	WeeklyBias      Bias          `json:"weekly_bias"`
	EntryRange      EntryRange    `json:"entry_range"`
	EntrySignals    []EntrySignal `json:"entry_signals"`
	EntryPrice      float64       `json:"entry_price"`
	RiskRewardRatio float64       `json:"risk_reward_ratio"`
	StopLoss        float64       `json:"stop_loss"`
	Targets         []float64     `json:"targets"`
	Status          SetupStatus   `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Side maps the footprint direction to an order side.
func (s *Setup) Side() string {
	if s.Footprint.Direction == DirectionBullish {
		return market.SideBuy
	}
	return market.SideSell
}

// Terminal reports whether the setup has reached a final state.
func (s *Setup) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusInvalidated
}

// Manager discovers setups and runs their state machine. One live Setup
// per footprint: a footprint whose setup is still waiting or active is not
// re-proposed, and terminal setups free the footprint for a fresh scan.
type Manager struct {
	gateway market.Gateway
	bias    *BiasEvaluator
	logger  zerolog.Logger

	mu          sync.RWMutex
	setups      map[string]*Setup
	byFootprint map[string]string
}

// NewManager builds a setup manager around a market gateway and a bias
// evaluator.
func NewManager(gateway market.Gateway, bias *BiasEvaluator, logger zerolog.Logger) *Manager {
	return &Manager{
		gateway:     gateway,
		bias:        bias,
		logger:      logger.With().Str("component", "setup_manager").Logger(),
		setups:      make(map[string]*Setup),
		byFootprint: make(map[string]string),
	}
}

// FindTradingSetups runs one scan for the instrument: refresh the monthly
// bias, detect footprints on the setup timeframe, and build a Setup for
// every footprint whose range currently holds price and shows at least one
// entry confirmation. Newly created setups start waiting and are returned;
// footprints already tracked by a live setup are skipped.
func (m *Manager) FindTradingSetups(ctx context.Context, instrument string) ([]*Setup, error) {
	monthly, err := m.gateway.HistoricalData(ctx, instrument, MonthlyTimeframe, monthlyLookback)
	if err != nil {
		return nil, fmt.Errorf("fetch monthly candles: %w", err)
	}
	monthlyBias := m.bias.Evaluate(instrument, monthly)

	candles, err := m.gateway.HistoricalData(ctx, instrument, SetupTimeframe, setupLookback)
	if err != nil {
		return nil, fmt.Errorf("fetch %s candles: %w", SetupTimeframe, err)
	}
	footprints := Detect(instrument, SetupTimeframe, candles)

	currentPrice, err := m.gateway.CurrentPrice(ctx, instrument)
	if err != nil {
		return nil, fmt.Errorf("fetch current price: %w", err)
	}

	var micro []market.Candle
	var created []*Setup
	for _, fp := range footprints {
		if !fp.Range.Contains(currentPrice) {
			continue
		}
		if m.tracked(fp.Key()) {
			continue
		}

		// Micro candles are shared across footprints within one scan.
		if micro == nil {
			micro, err = m.gateway.HistoricalData(ctx, instrument, MicroTimeframe, microLookback)
			if err != nil {
				return nil, fmt.Errorf("fetch %s candles: %w", MicroTimeframe, err)
			}
		}

		entrySignals := FindEntrySignals(micro, MicroTimeframe, fp.Range, fp.Direction)
		if len(entrySignals) == 0 {
			continue
		}

		setup := buildSetup(fp, monthlyBias.Bias, entrySignals, currentPrice)
		m.track(setup)
		created = append(created, setup)

		m.logger.Info().
			Str("instrument", instrument).
			Str("setup_id", setup.ID).
			Str("direction", string(fp.Direction)).
			Int("signals", len(entrySignals)).
			Float64("entry", currentPrice).
			Float64("stop", setup.StopLoss).
			Msg("Trading setup created")
	}
	return created, nil
}

func buildSetup(fp Footprint, bias Bias, entrySignals []EntrySignal, currentPrice float64) *Setup {
	width := fp.Range.Width()

	var stopLoss float64
	if fp.Direction == DirectionBullish {
		stopLoss = fp.Range.Floor - width*stopBuffer
	} else {
		stopLoss = fp.Range.Base + width*stopBuffer
	}

	risk := currentPrice - stopLoss
	if risk < 0 {
		risk = -risk
	}

	targets := make([]float64, len(targetMultiples))
	for i, mult := range targetMultiples {
		if fp.Direction == DirectionBullish {
			targets[i] = currentPrice + risk*mult
		} else {
			targets[i] = currentPrice - risk*mult
		}
	}

	riskReward := 0.0
	if risk > 0 {
		reward := targets[0] - currentPrice
		if reward < 0 {
			reward = -reward
		}
		riskReward = reward / risk
	}

	return &Setup{
		ID:          uuid.New().String(),
		Instrument:  fp.Instrument,
		Footprint:   fp,
		MonthlyBias: bias,
		// The weekly read needs its own timeframe analysis; until then it
		// stays neutral.
		WeeklyBias: BiasPotentiallyReversing,
		EntryRange: EntryRange{
			Floor:    fp.Range.Floor,
			Base:     fp.Range.Base,
			Midpoint: (fp.Range.Floor + fp.Range.Base) / 2,
		},
		EntrySignals:    entrySignals,
		EntryPrice:      currentPrice,
		RiskRewardRatio: riskReward,
		StopLoss:        stopLoss,
		Targets:         targets,
		Status:          StatusWaiting,
		CreatedAt:       time.Now(),
	}
}

// Restore re-registers a setup loaded from persistence. Terminal setups
// are ignored.
func (m *Manager) Restore(setup *Setup) {
	if setup.Terminal() {
		return
	}
	m.track(setup)
}

// Activate moves a waiting setup to active. Idempotent on active setups;
// fails on terminal or unknown ones.
func (m *Manager) Activate(id string) error {
	return m.transition(id, StatusActive, func(s SetupStatus) bool {
		return s == StatusWaiting || s == StatusActive
	})
}

// Complete finishes an active setup and releases its footprint.
func (m *Manager) Complete(id string) error {
	return m.transition(id, StatusCompleted, func(s SetupStatus) bool {
		return s == StatusActive || s == StatusCompleted
	})
}

// Invalidate cancels a waiting setup and releases its footprint.
// Idempotent: invalidating an already invalidated setup is a no-op.
func (m *Manager) Invalidate(id string) error {
	return m.transition(id, StatusInvalidated, func(s SetupStatus) bool {
		return s == StatusWaiting || s == StatusInvalidated
	})
}

func (m *Manager) transition(id string, to SetupStatus, allowed func(SetupStatus) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	setup, ok := m.setups[id]
	if !ok {
		return fmt.Errorf("setup %s not tracked", id)
	}
	if setup.Status == to {
		return nil
	}
	if !allowed(setup.Status) {
		return fmt.Errorf("setup %s: cannot move from %s to %s", id, setup.Status, to)
	}

	setup.Status = to
	if setup.Terminal() {
		// The setup stays readable for reporting; only the footprint
		// claim is released so a fresh scan may propose it again.
		delete(m.byFootprint, setup.Footprint.Key())
	}
	return nil
}

// CheckInvalidations drops every waiting setup for the instrument whose
// range no longer holds the given price, and returns the dropped setups.
func (m *Manager) CheckInvalidations(instrument string, currentPrice float64) []*Setup {
	var dropped []*Setup
	for _, setup := range m.Waiting() {
		if setup.Instrument != instrument {
			continue
		}
		if setup.EntryRange.Floor <= currentPrice && currentPrice <= setup.EntryRange.Base {
			continue
		}
		if err := m.Invalidate(setup.ID); err == nil {
			dropped = append(dropped, setup)
			m.logger.Info().
				Str("setup_id", setup.ID).
				Float64("price", currentPrice).
				Msg("Setup invalidated, price left entry range")
		}
	}
	return dropped
}

// Get returns a tracked setup, terminal ones included.
func (m *Manager) Get(id string) (*Setup, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.setups[id]
	return s, ok
}

// Waiting returns all setups still waiting for execution.
func (m *Manager) Waiting() []*Setup {
	return m.list(StatusWaiting)
}

// Active returns all setups with a live position.
func (m *Manager) Active() []*Setup {
	return m.list(StatusActive)
}

func (m *Manager) list(status SetupStatus) []*Setup {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Setup
	for _, s := range m.setups {
		if s.Status == status {
			out = append(out, s)
		}
	}
	return out
}

func (m *Manager) tracked(footprintKey string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byFootprint[footprintKey]
	return ok
}

func (m *Manager) track(setup *Setup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setups[setup.ID] = setup
	m.byFootprint[setup.Footprint.Key()] = setup.ID
}
