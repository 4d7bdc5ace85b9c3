package footprint

import (
	"math"
	"sync"
	"time"

	"footprint-trading-bot/internal/market"
)

// Bias is the coarse monthly directional read for an instrument.
type Bias string

const (
	BiasBullish              Bias = "bullish"
	BiasBearish              Bias = "bearish"
	BiasPotentiallyReversing Bias = "potentially_reversing"
)

const (
	// biasWindow caps the analysis to roughly the last three years of
	// monthly candles.
	biasWindow = 36

	// impulseSpan is the candle distance over which directional moves are
	// measured.
	impulseSpan = 5
)

// Zone is a monthly supply or demand band.
type Zone struct {
	Low      float64 `json:"low"`
	High     float64 `json:"high"`
	Strength int     `json:"strength"`
}

// Contains reports whether price sits inside the zone, edges included.
func (z Zone) Contains(price float64) bool {
	return price >= z.Low && price <= z.High
}

// Zones groups the monthly buy and sell bands.
type Zones struct {
	BuyZones  []Zone `json:"buy_zones"`
	SellZones []Zone `json:"sell_zones"`
}

// MonthlyBias is the full monthly analysis for one instrument.
type MonthlyBias struct {
	Instrument string    `json:"instrument"`
	Bias       Bias      `json:"bias"`
	LastUpdate time.Time `json:"last_update"`
	Zones      Zones     `json:"zones"`
}

// BiasEvaluator recomputes and caches a monthly bias per instrument.
// Safe for concurrent use; the in-memory cache is authoritative and the
// optional mirror (see BiasCache) is fed on every write.
type BiasEvaluator struct {
	mu     sync.RWMutex
	biases map[string]MonthlyBias
	mirror *BiasCache
	now    func() time.Time
}

// NewBiasEvaluator builds an evaluator. mirror may be nil.
func NewBiasEvaluator(mirror *BiasCache) *BiasEvaluator {
	return &BiasEvaluator{
		biases: make(map[string]MonthlyBias),
		mirror: mirror,
		now:    time.Now,
	}
}

// Evaluate performs a full recompute from the given monthly candles and
// stores the result for the instrument, last write wins.
func (e *BiasEvaluator) Evaluate(instrument string, monthly []market.Candle) MonthlyBias {
	if len(monthly) > biasWindow {
		monthly = monthly[len(monthly)-biasWindow:]
	}

	result := MonthlyBias{
		Instrument: instrument,
		Bias:       BiasPotentiallyReversing,
		LastUpdate: e.now(),
	}
	if len(monthly) == 0 {
		e.store(result)
		return result
	}

	impulseUp, hasImpulse := findImpulse(monthly)
	result.Zones = identifyZones(monthly)

	currentPrice := monthly[len(monthly)-1].Close
	inBuyZone := anyContains(result.Zones.BuyZones, currentPrice)
	inSellZone := anyContains(result.Zones.SellZones, currentPrice)

	// Price inside a zone means the prevailing move is being challenged,
	// whichever kind of zone it is.
	switch {
	case inBuyZone || inSellZone:
		result.Bias = BiasPotentiallyReversing
	case hasImpulse && impulseUp:
		result.Bias = BiasBullish
	case hasImpulse && !impulseUp:
		result.Bias = BiasBearish
	}

	e.store(result)
	return result
}

// Bias returns the cached analysis for an instrument, if any.
func (e *BiasEvaluator) Bias(instrument string) (MonthlyBias, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.biases[instrument]
	return b, ok
}

func (e *BiasEvaluator) store(b MonthlyBias) {
	e.mu.Lock()
	e.biases[b.Instrument] = b
	e.mu.Unlock()
	if e.mirror != nil {
		e.mirror.Put(b)
	}
}

// findImpulse locates the strongest close-to-close move over impulseSpan
// candles and reports its direction. ok is false when the window is too
// short to measure.
func findImpulse(candles []market.Candle) (up, ok bool) {
	maxMove := 0.0
	for i := impulseSpan; i < len(candles); i++ {
		move := math.Abs(candles[i].Close - candles[i-impulseSpan].Close)
		if move > maxMove {
			maxMove = move
			up = candles[i].Close > candles[i-impulseSpan].Close
			ok = true
		}
	}
	return up, ok
}

// identifyZones maps swing lows to buy zones (low to close) and swing
// highs to sell zones (open to high).
func identifyZones(candles []market.Candle) Zones {
	var zones Zones
	for i := 2; i < len(candles)-2; i++ {
		prev, curr, next := candles[i-1], candles[i], candles[i+1]
		if curr.Low < prev.Low && curr.Low < next.Low {
			zones.BuyZones = append(zones.BuyZones, Zone{Low: curr.Low, High: curr.Close, Strength: 1})
		}
		if curr.High > prev.High && curr.High > next.High {
			zones.SellZones = append(zones.SellZones, Zone{Low: curr.Open, High: curr.High, Strength: 1})
		}
	}
	return zones
}

func anyContains(zones []Zone, price float64) bool {
	for _, z := range zones {
		if z.Contains(price) {
			return true
		}
	}
	return false
}
