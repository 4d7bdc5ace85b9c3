package footprint

import (
	"math"

	"footprint-trading-bot/internal/market"
)

// SignalType names the confirmation pattern behind an EntrySignal.
type SignalType string

const (
	SignalPinbar      SignalType = "pinbar"
	SignalEngulfing   SignalType = "engulfing"
	SignalFibonacci   SignalType = "fibonacci_retracement"
	SignalBreakRetest SignalType = "break_retest"
)

const (
	// minWickRatio is the wick share of the candle a pinbar needs.
	minWickRatio = 0.7

	// fibTolerance is how close (relative) price must sit to a
	// retracement level before it counts as a touch.
	fibTolerance = 0.01

	// abScanStart skips the head of the micro history so an A-to-B leg
	// has context behind it.
	abScanStart = 10
)

// EntrySignal is one confirmation found inside a footprint range.
type EntrySignal struct {
	Type         SignalType `json:"type"`
	Timeframe    string     `json:"timeframe"`
	Timestamp    int64      `json:"timestamp"`
	Price        float64    `json:"price"`
	Strength     int        `json:"strength"`
	Confirmation bool       `json:"confirmation"`
}

// FibLevels are the retracement prices of one A-to-B leg.
type FibLevels struct {
	Fifty           float64
	SixtyOneEight   float64
	SeventyEightSix float64
}

// FindEntrySignals scans micro-timeframe candles for confirmations inside
// the given range, in the footprint's direction. Candles must be ascending
// in time.
func FindEntrySignals(candles []market.Candle, timeframe string, rng Range, direction Direction) []EntrySignal {
	var signals []EntrySignal
	signals = append(signals, findPinbars(candles, timeframe, rng, direction)...)
	signals = append(signals, findEngulfings(candles, timeframe, rng, direction)...)
	signals = append(signals, findFibTouches(candles, timeframe, direction)...)
	return signals
}

// findPinbars detects rejection candles: a dominant wick pointing away
// from the trade direction with a small body and negligible opposite wick.
func findPinbars(candles []market.Candle, timeframe string, rng Range, direction Direction) []EntrySignal {
	var signals []EntrySignal
	for i := 1; i < len(candles)-1; i++ {
		c := candles[i]
		if c.Low < rng.Floor || c.High > rng.Base {
			continue
		}
		total := c.Range()
		if total <= 0 {
			continue
		}
		body := c.Body()
		if (total-body)/total <= minWickRatio {
			continue
		}

		lowerWick := math.Min(c.Open, c.Close) - c.Low
		upperWick := c.High - math.Max(c.Open, c.Close)

		if direction == DirectionBullish && c.IsBullish() &&
			lowerWick > 2*body && upperWick < body {
			signals = append(signals, EntrySignal{
				Type:         SignalPinbar,
				Timeframe:    timeframe,
				Timestamp:    c.Timestamp,
				Price:        c.Low,
				Strength:     1,
				Confirmation: true,
			})
		}
		if direction == DirectionBearish && c.IsBearish() &&
			upperWick > 2*body && lowerWick < body {
			signals = append(signals, EntrySignal{
				Type:         SignalPinbar,
				Timeframe:    timeframe,
				Timestamp:    c.Timestamp,
				Price:        c.High,
				Strength:     1,
				Confirmation: true,
			})
		}
	}
	return signals
}

// findEngulfings detects a candle whose body fully engulfs the previous
// opposite-colored body, both candles inside the range.
func findEngulfings(candles []market.Candle, timeframe string, rng Range, direction Direction) []EntrySignal {
	var signals []EntrySignal
	for i := 1; i < len(candles); i++ {
		curr, prev := candles[i], candles[i-1]
		if curr.Low < rng.Floor || curr.High > rng.Base ||
			prev.Low < rng.Floor || prev.High > rng.Base {
			continue
		}

		bullishEngulf := direction == DirectionBullish &&
			curr.IsBullish() && prev.IsBearish() &&
			curr.Open < prev.Close && curr.Close > prev.Open
		bearishEngulf := direction == DirectionBearish &&
			curr.IsBearish() && prev.IsBullish() &&
			curr.Open > prev.Close && curr.Close < prev.Open

		if bullishEngulf || bearishEngulf {
			signals = append(signals, EntrySignal{
				Type:         SignalEngulfing,
				Timeframe:    timeframe,
				Timestamp:    curr.Timestamp,
				Price:        curr.Open,
				Strength:     1,
				Confirmation: true,
			})
		}
	}
	return signals
}

// findFibTouches checks whether the latest close sits on the 50% or 61.8%
// retracement of the most recent five-candle leg in the trade direction.
func findFibTouches(candles []market.Candle, timeframe string, direction Direction) []EntrySignal {
	a, b, ok := findABLeg(candles, direction)
	if !ok {
		return nil
	}
	levels := FibonacciLevels(a, b, direction)
	currentPrice := candles[len(candles)-1].Close
	timestamp := candles[len(candles)-1].Timestamp

	var signals []EntrySignal
	for _, level := range []float64{levels.Fifty, levels.SixtyOneEight} {
		if level == 0 {
			continue
		}
		if math.Abs(currentPrice-level)/level < fibTolerance {
			signals = append(signals, EntrySignal{
				Type:         SignalFibonacci,
				Timeframe:    timeframe,
				Timestamp:    timestamp,
				Price:        currentPrice,
				Strength:     1,
				Confirmation: true,
			})
		}
	}
	return signals
}

// findABLeg returns the first five-candle move in the requested direction:
// low to high for bullish, high to low for bearish.
func findABLeg(candles []market.Candle, direction Direction) (pointA, pointB float64, ok bool) {
	for i := abScanStart; i < len(candles)-impulseSpan; i++ {
		start, end := candles[i], candles[i+impulseSpan]
		if direction == DirectionBullish && end.Close > start.Close {
			return start.Low, end.High, true
		}
		if direction == DirectionBearish && end.Close < start.Close {
			return start.High, end.Low, true
		}
	}
	return 0, 0, false
}

// FibonacciLevels projects the retracement prices back from the leg:
// below A for a bullish leg measured up from A, above A for a bearish leg
// measured down from A.
func FibonacciLevels(pointA, pointB float64, direction Direction) FibLevels {
	span := math.Abs(pointB - pointA)
	sign := 1.0
	if direction == DirectionBearish {
		sign = -1.0
	}
	return FibLevels{
		Fifty:           pointA + sign*span*0.5,
		SixtyOneEight:   pointA + sign*span*0.618,
		SeventyEightSix: pointA + sign*span*0.786,
	}
}
