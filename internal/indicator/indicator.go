package indicator

import (
	"math"

	"footprint-trading-bot/internal/market"
)

// Conventional parameterizations used by the signal generator.
const (
	RSIPeriod        = 14
	MACDFastPeriod   = 12
	MACDSlowPeriod   = 26
	MACDSignalPeriod = 9
	BollingerPeriod  = 20
	BollingerStdDev  = 2.0
	StochasticPeriod = 14
	StochasticSignal = 3

	// MinBars is the number of closes needed before every indicator in a
	// Set has at least one value (SMA50 has the longest warm-up).
	MinBars = 50
)

// MACDSeries holds the MACD line, its signal line, and the histogram.
// Arrays have different warm-ups; their final elements are time-aligned.
type MACDSeries struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// BollingerSeries holds the three Bollinger Band arrays.
type BollingerSeries struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// StochasticSeries holds %K and its %D smoothing.
type StochasticSeries struct {
	K []float64
	D []float64
}

// Set is the full indicator snapshot for one series. Each array is shorter
// than the source by that indicator's warm-up period; consumers must index
// from the last element. Arrays are empty when the series is too short —
// an expected degraded condition, not an error.
type Set struct {
	RSI        []float64
	MACD       MACDSeries
	Bollinger  BollingerSeries
	SMA20      []float64
	SMA50      []float64
	EMA12      []float64
	EMA26      []float64
	Stochastic StochasticSeries
}

// Compute derives the full indicator Set from a series. Pure function of
// its input.
func Compute(series market.Series) Set {
	return Set{
		RSI:        RSI(series.Close, RSIPeriod),
		MACD:       MACD(series.Close, MACDFastPeriod, MACDSlowPeriod, MACDSignalPeriod),
		Bollinger:  BollingerBands(series.Close, BollingerPeriod, BollingerStdDev),
		SMA20:      SMA(series.Close, 20),
		SMA50:      SMA(series.Close, 50),
		EMA12:      EMA(series.Close, 12),
		EMA26:      EMA(series.Close, 26),
		Stochastic: Stochastic(series.High, series.Low, series.Close, StochasticPeriod, StochasticSignal),
	}
}

// SMA returns the simple moving average sequence. Output length is
// len(values)-period+1; empty when the input is shorter than period.
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := make([]float64, 0, len(values)-period+1)
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}

// EMA returns the exponential moving average sequence, seeded with the SMA
// of the first period values. Output length is len(values)-period+1.
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	multiplier := 2.0 / float64(period+1)

	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)

	out := make([]float64, 0, len(values)-period+1)
	out = append(out, seed)
	ema := seed
	for _, v := range values[period:] {
		ema = (v-ema)*multiplier + ema
		out = append(out, ema)
	}
	return out
}

// RSI returns the Wilder-smoothed relative strength index. Output length is
// len(values)-period.
func RSI(values []float64, period int) []float64 {
	if period <= 0 || len(values) <= period {
		return nil
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := make([]float64, 0, len(values)-period)
	out = append(out, rsiValue(avgGain, avgLoss))

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out = append(out, rsiValue(avgGain, avgLoss))
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line (fast EMA minus slow EMA), the signal line
// (EMA of the MACD line), and the histogram (line minus signal).
func MACD(values []float64, fast, slow, signal int) MACDSeries {
	if len(values) < slow {
		return MACDSeries{}
	}
	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)

	// Both EMAs end at the final bar; trim the fast EMA's head so the
	// arrays align on the slow warm-up.
	offset := len(fastEMA) - len(slowEMA)
	line := make([]float64, len(slowEMA))
	for i := range slowEMA {
		line[i] = fastEMA[i+offset] - slowEMA[i]
	}

	signalLine := EMA(line, signal)
	histogram := make([]float64, len(signalLine))
	headroom := len(line) - len(signalLine)
	for i := range signalLine {
		histogram[i] = line[i+headroom] - signalLine[i]
	}

	return MACDSeries{Line: line, Signal: signalLine, Histogram: histogram}
}

// BollingerBands returns upper/middle/lower bands for the given period and
// standard-deviation multiplier.
func BollingerBands(values []float64, period int, stdDevMult float64) BollingerSeries {
	middle := SMA(values, period)
	if len(middle) == 0 {
		return BollingerSeries{}
	}
	upper := make([]float64, len(middle))
	lower := make([]float64, len(middle))
	for i := range middle {
		window := values[i : i+period]
		variance := 0.0
		for _, v := range window {
			diff := v - middle[i]
			variance += diff * diff
		}
		stdDev := math.Sqrt(variance / float64(period))
		upper[i] = middle[i] + stdDev*stdDevMult
		lower[i] = middle[i] - stdDev*stdDevMult
	}
	return BollingerSeries{Upper: upper, Middle: middle, Lower: lower}
}

// Stochastic returns the %K oscillator and its %D SMA smoothing.
func Stochastic(high, low, closes []float64, period, signal int) StochasticSeries {
	if len(closes) < period || len(high) != len(closes) || len(low) != len(closes) {
		return StochasticSeries{}
	}
	k := make([]float64, 0, len(closes)-period+1)
	for i := period - 1; i < len(closes); i++ {
		hh, ll := high[i-period+1], low[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if high[j] > hh {
				hh = high[j]
			}
			if low[j] < ll {
				ll = low[j]
			}
		}
		if hh == ll {
			k = append(k, 0)
			continue
		}
		k = append(k, (closes[i]-ll)/(hh-ll)*100)
	}
	return StochasticSeries{K: k, D: SMA(k, signal)}
}
