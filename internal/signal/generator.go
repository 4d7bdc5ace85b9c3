// Package signal turns an indicator snapshot into a trading signal for a
// configured strategy type.
package signal

import (
	"fmt"
	"math"

	"footprint-trading-bot/internal/indicator"
	"footprint-trading-bot/internal/market"
)

// Action is the direction a signal recommends.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Strategy selects how the sub-analyses are combined.
type Strategy string

const (
	StrategyRSI       Strategy = "RSI"
	StrategyMACD      Strategy = "MACD"
	StrategyBollinger Strategy = "BOLLINGER"
	StrategyCustom    Strategy = "CUSTOM"
)

// Default RSI thresholds when Parameters leaves them zero.
const (
	DefaultRSIOversold   = 30
	DefaultRSIOverbought = 70
)

// Parameters tunes per-strategy thresholds.
type Parameters struct {
	RSIOversold   float64 `json:"rsi_oversold"`
	RSIOverbought float64 `json:"rsi_overbought"`
}

func (p Parameters) withDefaults() Parameters {
	if p.RSIOversold == 0 {
		p.RSIOversold = DefaultRSIOversold
	}
	if p.RSIOverbought == 0 {
		p.RSIOverbought = DefaultRSIOverbought
	}
	return p
}

// RSIReading is the RSI sub-analysis attached to a TradingSignal.
type RSIReading struct {
	Value  float64 `json:"value"`
	Signal string  `json:"signal"`
}

// MACDReading is the MACD sub-analysis attached to a TradingSignal.
type MACDReading struct {
	Signal    string  `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// BollingerReading is the Bollinger sub-analysis attached to a TradingSignal.
type BollingerReading struct {
	Position  string  `json:"position"`
	Bandwidth float64 `json:"bandwidth"`
}

// MAReading is the moving-average sub-analysis attached to a TradingSignal.
type MAReading struct {
	Signal string `json:"signal"`
}

// StochasticReading is the stochastic sub-analysis attached to a TradingSignal.
type StochasticReading struct {
	Signal string `json:"signal"`
}

// Readings collects every sub-analysis that fed the final decision.
type Readings struct {
	RSI            RSIReading        `json:"rsi"`
	MACD           MACDReading       `json:"macd"`
	Bollinger      BollingerReading  `json:"bollinger"`
	MovingAverages MAReading         `json:"moving_averages"`
	Stochastic     StochasticReading `json:"stochastic"`
}

// TradingSignal is the generator's output for one series at one moment.
// Strength and Confidence are both 0-100.
type TradingSignal struct {
	Action     Action   `json:"action"`
	Strength   float64  `json:"strength"`
	Indicators Readings `json:"indicators"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason"`
}

type subSignal struct {
	action   Action
	strength float64
	reason   string
}

// Generate evaluates the strategy against the latest bar of the series.
// A series too short for the slowest indicator yields a HOLD with reason
// "Insufficient data" rather than an error.
func Generate(series market.Series, strategy Strategy, params Parameters) TradingSignal {
	set := indicator.Compute(series)
	if series.Len() < indicator.MinBars || len(set.RSI) == 0 || len(set.SMA50) == 0 ||
		len(set.MACD.Histogram) == 0 || len(set.Bollinger.Middle) == 0 || len(set.Stochastic.D) == 0 {
		return holdSignal("Insufficient data")
	}
	params = params.withDefaults()

	// Each indicator array has its own warm-up, so every read is anchored
	// on its own final element. They all describe the latest bar.
	currentPrice := series.LastClose()
	rsiValue := last(set.RSI)
	macdLine := last(set.MACD.Line)
	macdSignalLine := last(set.MACD.Signal)
	macdHistogram := last(set.MACD.Histogram)
	bollingerUpper := last(set.Bollinger.Upper)
	bollingerLower := last(set.Bollinger.Lower)
	sma20 := last(set.SMA20)
	sma50 := last(set.SMA50)
	stochasticK := last(set.Stochastic.K)
	stochasticD := last(set.Stochastic.D)

	rsiSub := analyzeRSI(rsiValue, params.RSIOversold, params.RSIOverbought)
	macdSub := analyzeMACD(macdHistogram, macdLine, macdSignalLine)
	bollingerSub := analyzeBollinger(currentPrice, bollingerUpper, bollingerLower)
	maSub := analyzeMovingAverages(sma20, sma50, currentPrice)
	stochasticSub := analyzeStochastic(stochasticK, stochasticD)

	result := TradingSignal{
		Action: ActionHold,
		Indicators: Readings{
			RSI:            RSIReading{Value: rsiValue, Signal: rsiSub.reason},
			MACD:           MACDReading{Signal: macdSub.reason, Histogram: macdHistogram},
			Bollinger:      BollingerReading{Position: bollingerSub.reason, Bandwidth: (bollingerUpper - bollingerLower) / currentPrice},
			MovingAverages: MAReading{Signal: maSub.reason},
			Stochastic:     StochasticReading{Signal: stochasticSub.reason},
		},
	}

	switch strategy {
	case StrategyRSI:
		result.Action = rsiSub.action
		result.Strength = clampStrength(math.Abs(rsiValue-50) * 2)
		result.Confidence = result.Strength
		result.Reason = rsiSub.reason

	case StrategyMACD:
		result.Action = macdSub.action
		result.Strength = clampStrength(math.Abs(macdHistogram) * 100)
		result.Confidence = result.Strength
		result.Reason = macdSub.reason

	case StrategyBollinger:
		result.Action = bollingerSub.action
		result.Strength = bollingerSub.strength
		result.Confidence = result.Strength
		result.Reason = bollingerSub.reason

	case StrategyCustom:
		subs := []subSignal{rsiSub, macdSub, bollingerSub, maSub, stochasticSub}
		buys, sells := 0, 0
		for _, s := range subs {
			switch s.action {
			case ActionBuy:
				buys++
			case ActionSell:
				sells++
			}
		}
		switch {
		case buys >= 3:
			result.Action = ActionBuy
			result.Strength = float64(buys) / float64(len(subs)) * 100
			result.Reason = fmt.Sprintf("Multiple indicators showing buy signal (%d/%d)", buys, len(subs))
		case sells >= 3:
			result.Action = ActionSell
			result.Strength = float64(sells) / float64(len(subs)) * 100
			result.Reason = fmt.Sprintf("Multiple indicators showing sell signal (%d/%d)", sells, len(subs))
		default:
			result.Reason = "Mixed signals, holding position"
		}
		result.Confidence = result.Strength

	default:
		result.Reason = "Unknown strategy type"
	}

	return result
}

func holdSignal(reason string) TradingSignal {
	return TradingSignal{
		Action: ActionHold,
		Indicators: Readings{
			RSI:            RSIReading{Signal: "N/A"},
			MACD:           MACDReading{Signal: "N/A"},
			Bollinger:      BollingerReading{Position: "N/A"},
			MovingAverages: MAReading{Signal: "N/A"},
			Stochastic:     StochasticReading{Signal: "N/A"},
		},
		Reason: reason,
	}
}

func last(values []float64) float64 {
	return values[len(values)-1]
}

func clampStrength(v float64) float64 {
	return math.Min(v, 100)
}

func analyzeRSI(rsi, oversold, overbought float64) subSignal {
	switch {
	case rsi < oversold:
		return subSignal{action: ActionBuy, reason: fmt.Sprintf("RSI oversold (%.2f)", rsi)}
	case rsi > overbought:
		return subSignal{action: ActionSell, reason: fmt.Sprintf("RSI overbought (%.2f)", rsi)}
	default:
		return subSignal{action: ActionHold, reason: fmt.Sprintf("RSI neutral (%.2f)", rsi)}
	}
}

func analyzeMACD(histogram, line, signalLine float64) subSignal {
	switch {
	case histogram > 0 && line > signalLine:
		return subSignal{action: ActionBuy, reason: "MACD bullish crossover"}
	case histogram < 0 && line < signalLine:
		return subSignal{action: ActionSell, reason: "MACD bearish crossover"}
	default:
		return subSignal{action: ActionHold, reason: "MACD neutral"}
	}
}

func analyzeBollinger(price, upper, lower float64) subSignal {
	position := (price - lower) / (upper - lower)
	switch {
	case price <= lower:
		return subSignal{action: ActionBuy, strength: 100, reason: "Price at lower Bollinger Band"}
	case price >= upper:
		return subSignal{action: ActionSell, strength: 100, reason: "Price at upper Bollinger Band"}
	case position < 0.2:
		return subSignal{action: ActionBuy, strength: 80, reason: "Price near lower Bollinger Band"}
	case position > 0.8:
		return subSignal{action: ActionSell, strength: 80, reason: "Price near upper Bollinger Band"}
	default:
		return subSignal{action: ActionHold, reason: "Price within Bollinger Bands"}
	}
}

func analyzeMovingAverages(sma20, sma50, price float64) subSignal {
	switch {
	case sma20 > sma50 && price > sma20:
		return subSignal{action: ActionBuy, reason: "Price above moving averages (bullish)"}
	case sma20 < sma50 && price < sma20:
		return subSignal{action: ActionSell, reason: "Price below moving averages (bearish)"}
	default:
		return subSignal{action: ActionHold, reason: "Moving averages neutral"}
	}
}

func analyzeStochastic(k, d float64) subSignal {
	switch {
	case k < 20 && d < 20:
		return subSignal{action: ActionBuy, reason: "Stochastic oversold"}
	case k > 80 && d > 80:
		return subSignal{action: ActionSell, reason: "Stochastic overbought"}
	default:
		return subSignal{action: ActionHold, reason: "Stochastic neutral"}
	}
}
