package market

import "time"

// Candle represents a single OHLCV bar for an instrument/timeframe.
type Candle struct {
	Timestamp int64   `json:"timestamp"` // Unix milliseconds, open time
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Body returns the absolute size of the candle body.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns the full high-to-low extent of the candle.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish reports whether the candle closed below its open.
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Series holds parallel OHLCV sequences for one instrument/timeframe.
// All slices have equal length and timestamps are strictly increasing.
type Series struct {
	Open      []float64
	High      []float64
	Low       []float64
	Close     []float64
	Volume    []float64
	Timestamp []int64
}

// NewSeries builds a Series from a candle slice.
func NewSeries(candles []Candle) Series {
	s := Series{
		Open:      make([]float64, len(candles)),
		High:      make([]float64, len(candles)),
		Low:       make([]float64, len(candles)),
		Close:     make([]float64, len(candles)),
		Volume:    make([]float64, len(candles)),
		Timestamp: make([]int64, len(candles)),
	}
	for i, c := range candles {
		s.Open[i] = c.Open
		s.High[i] = c.High
		s.Low[i] = c.Low
		s.Close[i] = c.Close
		s.Volume[i] = c.Volume
		s.Timestamp[i] = c.Timestamp
	}
	return s
}

// Len returns the number of bars in the series.
func (s Series) Len() int {
	return len(s.Close)
}

// LastClose returns the most recent closing price, or 0 for an empty series.
func (s Series) LastClose() float64 {
	if len(s.Close) == 0 {
		return 0
	}
	return s.Close[len(s.Close)-1]
}

// Order sides and types accepted by the gateway.
const (
	SideBuy  = "buy"
	SideSell = "sell"

	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"
)

// OrderRequest describes an order to be placed at the venue.
type OrderRequest struct {
	Instrument string  `json:"instrument"`
	Side       string  `json:"side"` // buy or sell
	Type       string  `json:"type"` // market or limit
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price,omitempty"` // limit orders only
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
}

// OrderResult is the venue's response to an order placement.
type OrderResult struct {
	Success bool    `json:"success"`
	OrderID string  `json:"order_id"`
	Price   float64 `json:"price,omitempty"` // fill price when reported
}

// Balance describes one currency's account state at the venue.
type Balance struct {
	Currency    string  `json:"currency"`
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	Margin      float64 `json:"margin"`
	FreeMargin  float64 `json:"free_margin"`
	MarginLevel float64 `json:"margin_level"`
}

// ClosePositionResult reports the outcome of a close-position call.
type ClosePositionResult struct {
	Success bool `json:"success"`
}

// ValidateSeries checks the parallel-array invariant on a candle slice:
// strictly increasing timestamps. Returns the first offending index, or -1.
func ValidateSeries(candles []Candle) int {
	for i := 1; i < len(candles); i++ {
		if candles[i].Timestamp <= candles[i-1].Timestamp {
			return i
		}
	}
	return -1
}

// TimeframeDuration maps a timeframe token to its bar duration. Unknown
// tokens default to 5 minutes.
func TimeframeDuration(timeframe string) time.Duration {
	switch timeframe {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h", "1H":
		return time.Hour
	case "4h", "4H":
		return 4 * time.Hour
	case "1d", "1D":
		return 24 * time.Hour
	case "1w", "1W":
		return 7 * 24 * time.Hour
	case "1M":
		return 30 * 24 * time.Hour
	default:
		return 5 * time.Minute
	}
}
