package engine

import (
	"math"

	"footprint-trading-bot/internal/store"
)

// Performance summarizes closed-trade results. All fields are zero when no
// trades have closed.
type Performance struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	TotalPnL      float64 `json:"total_pnl"`
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"`
	ProfitFactor  float64 `json:"profit_factor"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
}

// ComputePerformance derives the statistics from closed trades in entry
// order. Drawdown is measured on the running equity of cumulative PnL.
func ComputePerformance(trades []*store.Trade) Performance {
	var p Performance
	p.TotalTrades = len(trades)
	if p.TotalTrades == 0 {
		return p
	}

	var totalWins, totalLosses float64
	for _, t := range trades {
		p.TotalPnL += t.PnL
		switch {
		case t.PnL > 0:
			p.WinningTrades++
			totalWins += t.PnL
		case t.PnL < 0:
			p.LosingTrades++
			totalLosses += -t.PnL
		}
	}

	p.WinRate = float64(p.WinningTrades) / float64(p.TotalTrades)
	if p.WinningTrades > 0 {
		p.AverageWin = totalWins / float64(p.WinningTrades)
	}
	if p.LosingTrades > 0 {
		p.AverageLoss = totalLosses / float64(p.LosingTrades)
	}
	if totalLosses > 0 {
		p.ProfitFactor = totalWins / totalLosses
	}

	peak, running := 0.0, 0.0
	for _, t := range trades {
		running += t.PnL
		if running > peak {
			peak = running
		}
		if dd := peak - running; dd > p.MaxDrawdown {
			p.MaxDrawdown = dd
		}
	}

	// Simplified Sharpe: mean over standard deviation of per-trade PnL.
	mean := p.TotalPnL / float64(p.TotalTrades)
	variance := 0.0
	for _, t := range trades {
		diff := t.PnL - mean
		variance += diff * diff
	}
	variance /= float64(p.TotalTrades)
	if stdDev := math.Sqrt(variance); stdDev > 0 {
		p.SharpeRatio = mean / stdDev
	}

	return p
}
