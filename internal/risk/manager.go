// Package risk sizes positions and gates trade execution against account
// limits.
package risk

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// Block reasons carried by RiskLimitError.
const (
	ReasonMaxTrades          = "max_trades"
	ReasonInsufficientMargin = "insufficient_margin"
	ReasonRiskLimit          = "risk_limit"
)

// RiskLimitError reports why a trade was blocked. A blocked trade is
// skipped for the current cycle and re-checked on the next one.
type RiskLimitError struct {
	Reason string
	Detail string
}

func (e *RiskLimitError) Error() string {
	return fmt.Sprintf("risk limit: %s (%s)", e.Reason, e.Detail)
}

// IsRiskLimit reports whether err is a risk gate rejection.
func IsRiskLimit(err error) bool {
	_, ok := err.(*RiskLimitError)
	return ok
}

// Config holds risk management limits.
type Config struct {
	MaxRiskPerTrade float64 // account fraction risked per trade
	MaxOpenTrades   int     // maximum concurrent open trades
	Leverage        float64 // margin leverage, e.g. 10 for 10:1
}

// DefaultConfig returns the standard limits: 2% risk, five trades, 10:1.
func DefaultConfig() Config {
	return Config{
		MaxRiskPerTrade: 0.02,
		MaxOpenTrades:   5,
		Leverage:        10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRiskPerTrade <= 0 {
		c.MaxRiskPerTrade = d.MaxRiskPerTrade
	}
	if c.MaxOpenTrades <= 0 {
		c.MaxOpenTrades = d.MaxOpenTrades
	}
	if c.Leverage <= 0 {
		c.Leverage = d.Leverage
	}
	return c
}

// OpenPosition is the slice of an open trade the risk gates need.
type OpenPosition struct {
	EntryPrice float64
	StopLoss   float64
	Quantity   float64
}

// riskAmount is the currency lost if the position stops out.
func (p OpenPosition) riskAmount() float64 {
	return math.Abs(p.EntryPrice-p.StopLoss) * p.Quantity
}

// Manager applies position sizing and the execution gates.
type Manager struct {
	config Config
	logger zerolog.Logger
}

// NewManager builds a risk manager; zero config fields fall back to
// defaults.
func NewManager(config Config, logger zerolog.Logger) *Manager {
	return &Manager{
		config: config.withDefaults(),
		logger: logger.With().Str("component", "risk_manager").Logger(),
	}
}

// Config returns the effective limits.
func (m *Manager) Config() Config {
	return m.config
}

// PositionSize returns the quantity that puts MaxRiskPerTrade of the
// balance at risk between entry and stop. Zero when the stop distance is
// degenerate.
func (m *Manager) PositionSize(balance, entryPrice, stopLoss float64) float64 {
	riskPerUnit := math.Abs(entryPrice - stopLoss)
	if riskPerUnit == 0 || balance <= 0 {
		return 0
	}
	return balance * m.config.MaxRiskPerTrade / riskPerUnit
}

// RequiredMargin is the account currency locked by a position at the
// configured leverage.
func (m *Manager) RequiredMargin(quantity, entryPrice float64) float64 {
	return quantity * entryPrice / m.config.Leverage
}

// Approve sizes a prospective trade and runs the gates: open-trade count,
// free balance against required margin, and aggregate open risk including
// the new trade. Returns the approved quantity or a *RiskLimitError.
func (m *Manager) Approve(balance, entryPrice, stopLoss float64, open []OpenPosition) (float64, error) {
	if len(open) >= m.config.MaxOpenTrades {
		return 0, m.block(ReasonMaxTrades,
			fmt.Sprintf("%d open trades, limit %d", len(open), m.config.MaxOpenTrades))
	}

	quantity := m.PositionSize(balance, entryPrice, stopLoss)
	if quantity <= 0 {
		return 0, m.block(ReasonRiskLimit, "degenerate stop distance or balance")
	}

	margin := m.RequiredMargin(quantity, entryPrice)
	if balance < margin {
		return 0, m.block(ReasonInsufficientMargin,
			fmt.Sprintf("balance %.2f below required margin %.2f", balance, margin))
	}

	totalRisk := math.Abs(entryPrice-stopLoss) * quantity
	for _, p := range open {
		totalRisk += p.riskAmount()
	}
	// Tolerance absorbs the rounding from sizing the new trade off the
	// same limit it is checked against.
	if totalRisk/balance > m.config.MaxRiskPerTrade*(1+1e-9) {
		return 0, m.block(ReasonRiskLimit,
			fmt.Sprintf("aggregate risk %.2f%% above limit %.2f%%",
				totalRisk/balance*100, m.config.MaxRiskPerTrade*100))
	}

	return quantity, nil
}

func (m *Manager) block(reason, detail string) *RiskLimitError {
	m.logger.Warn().Str("reason", reason).Str("detail", detail).Msg("Trade blocked")
	return &RiskLimitError{Reason: reason, Detail: detail}
}
