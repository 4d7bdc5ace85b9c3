// Package footprint implements range detection, monthly bias analysis,
// entry confirmation, and setup lifecycle management for the
// impulse-and-retest trading strategy.
package footprint

import (
	"fmt"

	"github.com/google/uuid"

	"footprint-trading-bot/internal/market"
)

// Direction of an impulsive move.
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
)

const (
	// minBodyRatio is the body share of the total candle range an origin
	// candle needs before it counts as impulsive.
	minBodyRatio = 0.6

	// swingLookback is the number of candles examined on either side of a
	// candidate origin.
	swingLookback = 5
)

// Origin pins the footprint to the candle that created it.
type Origin struct {
	Low       float64 `json:"low"`
	Base      float64 `json:"base"`
	Timestamp int64   `json:"timestamp"`
}

// Range is the price band a retest has to come back into. Floor is the
// origin candle's low for both directions; Base is its close (bullish) or
// open (bearish).
type Range struct {
	Floor float64 `json:"floor"`
	Base  float64 `json:"base"`
}

// Contains reports whether price is inside the range, boundaries included.
func (r Range) Contains(price float64) bool {
	return price >= r.Floor && price <= r.Base
}

// Width is the price distance between base and floor.
func (r Range) Width() float64 {
	return r.Base - r.Floor
}

// Footprint is one detected impulsive origin. Immutable after creation.
type Footprint struct {
	ID         string    `json:"id"`
	Instrument string    `json:"instrument"`
	Timeframe  string    `json:"timeframe"`
	Origin     Origin    `json:"origin"`
	Range      Range     `json:"range"`
	Strength   int       `json:"strength"`
	Direction  Direction `json:"direction"`
	Volume     float64   `json:"volume"`
	IsValid    bool      `json:"is_valid"`
}

// Key identifies the footprint by what it describes rather than by its
// random ID, so repeated scans of the same history dedupe to one setup.
func (f Footprint) Key() string {
	return fmt.Sprintf("%s_%s_%s_%d", f.Instrument, f.Timeframe, f.Direction, f.Origin.Timestamp)
}

// Detect scans candle history for valid footprints. Candles must be in
// ascending time order. Origins too close to either end of the history are
// not considered; only footprints that broke at least one prior swing point
// are returned.
func Detect(instrument, timeframe string, candles []market.Candle) []Footprint {
	var footprints []Footprint
	for i := swingLookback; i < len(candles)-swingLookback; i++ {
		origin := candles[i]
		prior := candles[i-swingLookback : i]

		if isBullishOrigin(origin, prior) {
			if fp := build(instrument, timeframe, candles, i, DirectionBullish); fp.IsValid {
				footprints = append(footprints, fp)
			}
		}
		if isBearishOrigin(origin, prior) {
			if fp := build(instrument, timeframe, candles, i, DirectionBearish); fp.IsValid {
				footprints = append(footprints, fp)
			}
		}
	}
	return footprints
}

func isBullishOrigin(origin market.Candle, prior []market.Candle) bool {
	total := origin.Range()
	if total <= 0 {
		return false
	}
	if (origin.Close-origin.Open)/total < minBodyRatio {
		return false
	}
	maxHigh := prior[0].High
	for _, c := range prior[1:] {
		if c.High > maxHigh {
			maxHigh = c.High
		}
	}
	return origin.Close > maxHigh
}

func isBearishOrigin(origin market.Candle, prior []market.Candle) bool {
	total := origin.Range()
	if total <= 0 {
		return false
	}
	if (origin.Open-origin.Close)/total < minBodyRatio {
		return false
	}
	minLow := prior[0].Low
	for _, c := range prior[1:] {
		if c.Low < minLow {
			minLow = c.Low
		}
	}
	return origin.Close < minLow
}

func build(instrument, timeframe string, candles []market.Candle, index int, direction Direction) Footprint {
	origin := candles[index]

	base := origin.Close
	if direction == DirectionBearish {
		base = origin.Open
	}

	strength := countBrokenSwings(candles[:index], origin.Close, direction)

	return Footprint{
		ID:         uuid.New().String(),
		Instrument: instrument,
		Timeframe:  timeframe,
		Origin: Origin{
			Low:       origin.Low,
			Base:      base,
			Timestamp: origin.Timestamp,
		},
		Range: Range{
			Floor: origin.Low,
			Base:  base,
		},
		Strength:  strength,
		Direction: direction,
		Volume:    origin.Volume,
		IsValid:   strength >= 1,
	}
}

// countBrokenSwings counts prior three-candle swing extrema the origin
// close broke past: swing highs for a bullish move, swing lows for a
// bearish one.
func countBrokenSwings(prior []market.Candle, originClose float64, direction Direction) int {
	broken := 0
	for i := 1; i < len(prior)-1; i++ {
		prev, curr, next := prior[i-1], prior[i], prior[i+1]
		if direction == DirectionBullish {
			if curr.High > prev.High && curr.High > next.High && originClose > curr.High {
				broken++
			}
		} else {
			if curr.Low < prev.Low && curr.Low < next.Low && originClose < curr.Low {
				broken++
			}
		}
	}
	return broken
}
