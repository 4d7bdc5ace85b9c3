package footprint

import (
	"math"
	"testing"

	"footprint-trading-bot/internal/market"
)

var testRange = Range{Floor: 100, Base: 110}

func TestFindPinbarsBullish(t *testing.T) {
	candles := []market.Candle{
		candle(0, 104, 105, 103.5, 104.5),
		candle(1, 105, 105.8, 102, 105.5), // long lower wick, tiny body
		candle(2, 105.5, 106, 105, 105.8),
	}
	got := findPinbars(candles, "15m", testRange, DirectionBullish)
	if len(got) != 1 {
		t.Fatalf("found %d pinbars, want 1", len(got))
	}
	sig := got[0]
	if sig.Type != SignalPinbar || sig.Timeframe != "15m" {
		t.Errorf("signal = %s/%s, want pinbar/15m", sig.Type, sig.Timeframe)
	}
	if sig.Price != 102 {
		t.Errorf("price = %v, want the rejection low 102", sig.Price)
	}
	if !sig.Confirmation {
		t.Error("pinbar must confirm")
	}
}

func TestFindPinbarsRejectsOutOfRange(t *testing.T) {
	candles := []market.Candle{
		candle(0, 104, 105, 103.5, 104.5),
		candle(1, 105, 105.8, 99, 105.5), // wick pierces the floor
		candle(2, 105.5, 106, 105, 105.8),
	}
	if got := findPinbars(candles, "15m", testRange, DirectionBullish); len(got) != 0 {
		t.Errorf("found %d pinbars outside the range, want 0", len(got))
	}
}

func TestFindPinbarsWrongColorIgnored(t *testing.T) {
	candles := []market.Candle{
		candle(0, 104, 105, 103.5, 104.5),
		candle(1, 105.5, 105.8, 102, 105), // bearish body in a bullish setup
		candle(2, 105.5, 106, 105, 105.8),
	}
	if got := findPinbars(candles, "15m", testRange, DirectionBullish); len(got) != 0 {
		t.Errorf("found %d pinbars with the wrong body color, want 0", len(got))
	}
}

func TestFindPinbarsBearishMirror(t *testing.T) {
	candles := []market.Candle{
		candle(0, 105, 106, 104.5, 105.5),
		candle(1, 105.5, 109, 104.8, 105), // long upper wick, tiny body
		candle(2, 105, 105.5, 104.5, 104.8),
	}
	got := findPinbars(candles, "15m", testRange, DirectionBearish)
	if len(got) != 1 {
		t.Fatalf("found %d bearish pinbars, want 1", len(got))
	}
	if got[0].Price != 109 {
		t.Errorf("price = %v, want the rejection high 109", got[0].Price)
	}
}

func TestFindEngulfingsBullish(t *testing.T) {
	candles := []market.Candle{
		candle(0, 105, 105.2, 103.9, 104),   // bearish body 105 -> 104
		candle(1, 103.8, 105.4, 103.6, 105.2), // engulfs it
		candle(2, 105.2, 105.6, 105, 105.4),
	}
	got := findEngulfings(candles, "15m", testRange, DirectionBullish)
	if len(got) != 1 {
		t.Fatalf("found %d engulfings, want 1", len(got))
	}
	if got[0].Type != SignalEngulfing || got[0].Price != 103.8 {
		t.Errorf("signal = %s at %v, want engulfing at 103.8", got[0].Type, got[0].Price)
	}
}

func TestFindEngulfingsPartialOverlapIgnored(t *testing.T) {
	candles := []market.Candle{
		candle(0, 105, 105.2, 103.9, 104),
		candle(1, 104.2, 105.4, 104, 104.8), // opens above the prior close
		candle(2, 104.8, 105.2, 104.5, 105),
	}
	if got := findEngulfings(candles, "15m", testRange, DirectionBullish); len(got) != 0 {
		t.Errorf("found %d engulfings for partial overlap, want 0", len(got))
	}
}

func TestFindEngulfingsBearishMirror(t *testing.T) {
	candles := []market.Candle{
		candle(0, 104, 105.1, 103.9, 105),   // bullish body 104 -> 105
		candle(1, 105.2, 105.4, 103.6, 103.8), // engulfs it downward
		candle(2, 103.8, 104.2, 103.5, 104),
	}
	got := findEngulfings(candles, "15m", testRange, DirectionBearish)
	if len(got) != 1 {
		t.Fatalf("found %d bearish engulfings, want 1", len(got))
	}
	if got[0].Price != 105.2 {
		t.Errorf("price = %v, want the engulfing open 105.2", got[0].Price)
	}
}

func TestFibonacciLevels(t *testing.T) {
	within := func(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

	up := FibonacciLevels(100, 110, DirectionBullish)
	if !within(up.Fifty, 105) {
		t.Errorf("bullish 50%% = %v, want 105", up.Fifty)
	}
	if !within(up.SixtyOneEight, 106.18) {
		t.Errorf("bullish 61.8%% = %v, want 106.18", up.SixtyOneEight)
	}
	if !within(up.SeventyEightSix, 107.86) {
		t.Errorf("bullish 78.6%% = %v, want 107.86", up.SeventyEightSix)
	}

	// Bearish legs retrace downward from A.
	down := FibonacciLevels(110, 100, DirectionBearish)
	if !within(down.Fifty, 105) {
		t.Errorf("bearish 50%% = %v, want 105", down.Fifty)
	}
}

func TestFindFibTouches(t *testing.T) {
	// Ten flat candles of context, then a five-candle rise from a low of
	// 100 to a high of 110. The final close 104.9 sits on the 50% level.
	candles := make([]market.Candle, 0, 16)
	for i := 0; i < 10; i++ {
		candles = append(candles, candle(int64(i), 102, 102.5, 101.5, 102))
	}
	candles = append(candles,
		candle(10, 101, 102, 100, 101),
		candle(11, 101, 103, 100.5, 102.5),
		candle(12, 102.5, 105, 102, 104.5),
		candle(13, 104.5, 107, 104, 106.5),
		candle(14, 106.5, 109, 106, 108.5),
		candle(15, 108.5, 110, 104.5, 104.9),
	)
	got := findFibTouches(candles, "15m", DirectionBullish)
	if len(got) != 1 {
		t.Fatalf("found %d fib touches, want 1", len(got))
	}
	if got[0].Type != SignalFibonacci || got[0].Price != 104.9 {
		t.Errorf("signal = %s at %v, want fibonacci at 104.9", got[0].Type, got[0].Price)
	}
}

func TestFindFibTouchesNoLeg(t *testing.T) {
	// Too little history for an A-to-B scan.
	candles := make([]market.Candle, 12)
	for i := range candles {
		candles[i] = candle(int64(i), 102, 102.5, 101.5, 102)
	}
	if got := findFibTouches(candles, "15m", DirectionBullish); got != nil {
		t.Errorf("found %v without a leg, want nil", got)
	}
}

func TestFindEntrySignalsCombines(t *testing.T) {
	candles := []market.Candle{
		candle(0, 104, 105, 103.5, 104.5),
		candle(1, 105, 105.8, 102, 105.5), // bullish pinbar
		candle(2, 105.5, 105.7, 104.4, 104.5),
		candle(3, 104.3, 105.65, 104.2, 105.6), // engulfs candle 2
		candle(4, 105.5, 106, 105, 105.8),
	}
	got := FindEntrySignals(candles, "15m", testRange, DirectionBullish)
	types := map[SignalType]int{}
	for _, sig := range got {
		types[sig.Type]++
	}
	if types[SignalPinbar] != 1 || types[SignalEngulfing] != 1 {
		t.Errorf("signal counts = %v, want one pinbar and one engulfing", types)
	}
}
