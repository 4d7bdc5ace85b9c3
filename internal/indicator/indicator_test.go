package indicator

import (
	"math"
	"testing"

	"footprint-trading-bot/internal/market"
)

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6}
	got := SMA(values, 3)
	want := []float64{2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("SMA length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !almostEqual(got[i], want[i], 1e-9) {
			t.Errorf("SMA[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSMATooShort(t *testing.T) {
	if got := SMA([]float64{1, 2}, 3); got != nil {
		t.Errorf("SMA on short input = %v, want nil", got)
	}
}

func TestEMASeedAndLength(t *testing.T) {
	values := []float64{10, 11, 12, 13, 14}
	got := EMA(values, 3)
	if len(got) != 3 {
		t.Fatalf("EMA length = %d, want 3", len(got))
	}
	// First value is the SMA seed of the first three closes.
	if !almostEqual(got[0], 11, 1e-9) {
		t.Errorf("EMA seed = %v, want 11", got[0])
	}
	// (13-11)*0.5 + 11 = 12, then (14-12)*0.5 + 12 = 13.
	if !almostEqual(got[1], 12, 1e-9) || !almostEqual(got[2], 13, 1e-9) {
		t.Errorf("EMA tail = %v, want [12 13]", got[1:])
	}
}

func TestRSILength(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 100 + float64(i%5)
	}
	got := RSI(values, 14)
	if len(got) != len(values)-14 {
		t.Errorf("RSI length = %d, want %d", len(got), len(values)-14)
	}
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 100 + float64(i)
	}
	got := RSI(values, 14)
	for i, v := range got {
		if v != 100 {
			t.Errorf("RSI[%d] = %v on monotonic rise, want 100", i, v)
		}
	}
}

func TestRSIAllLossesIsZero(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 100 - float64(i)
	}
	got := RSI(values, 14)
	for i, v := range got {
		if !almostEqual(v, 0, 1e-9) {
			t.Errorf("RSI[%d] = %v on monotonic fall, want 0", i, v)
		}
	}
}

func TestRSIBounds(t *testing.T) {
	values := []float64{44, 44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.1, 45.42,
		45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.0, 46.03, 46.41, 46.22}
	for i, v := range RSI(values, 14) {
		if v < 0 || v > 100 {
			t.Errorf("RSI[%d] = %v out of [0,100]", i, v)
		}
	}
}

func TestMACDAlignment(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 100 + math.Sin(float64(i)/4)*5
	}
	got := MACD(values, 12, 26, 9)
	if len(got.Line) != len(values)-26+1 {
		t.Errorf("MACD line length = %d, want %d", len(got.Line), len(values)-26+1)
	}
	if len(got.Signal) != len(got.Line)-9+1 {
		t.Errorf("MACD signal length = %d, want %d", len(got.Signal), len(got.Line)-9+1)
	}
	if len(got.Histogram) != len(got.Signal) {
		t.Errorf("MACD histogram length = %d, want %d", len(got.Histogram), len(got.Signal))
	}
	// The final histogram value is the final line minus the final signal.
	lastHist := got.Histogram[len(got.Histogram)-1]
	wantHist := got.Line[len(got.Line)-1] - got.Signal[len(got.Signal)-1]
	if !almostEqual(lastHist, wantHist, 1e-9) {
		t.Errorf("MACD histogram tail = %v, want %v", lastHist, wantHist)
	}
}

func TestMACDTooShort(t *testing.T) {
	got := MACD(make([]float64, 20), 12, 26, 9)
	if got.Line != nil || got.Signal != nil || got.Histogram != nil {
		t.Errorf("MACD on short input = %+v, want empty", got)
	}
}

func TestBollingerBandsFlatSeries(t *testing.T) {
	values := make([]float64, 25)
	for i := range values {
		values[i] = 50
	}
	got := BollingerBands(values, 20, 2)
	if len(got.Middle) != 6 {
		t.Fatalf("Bollinger length = %d, want 6", len(got.Middle))
	}
	for i := range got.Middle {
		if got.Upper[i] != 50 || got.Middle[i] != 50 || got.Lower[i] != 50 {
			t.Errorf("flat series bands[%d] = (%v, %v, %v), want all 50",
				i, got.Upper[i], got.Middle[i], got.Lower[i])
		}
	}
}

func TestBollingerBandsOrdering(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = 100 + math.Sin(float64(i))*3
	}
	got := BollingerBands(values, 20, 2)
	for i := range got.Middle {
		if got.Upper[i] < got.Middle[i] || got.Middle[i] < got.Lower[i] {
			t.Errorf("bands[%d] not ordered: upper=%v middle=%v lower=%v",
				i, got.Upper[i], got.Middle[i], got.Lower[i])
		}
	}
}

func TestStochastic(t *testing.T) {
	n := 20
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		high[i] = 110 + float64(i)
		low[i] = 90 + float64(i)
		closes[i] = 100 + float64(i)
	}
	got := Stochastic(high, low, closes, 14, 3)
	if len(got.K) != n-14+1 {
		t.Fatalf("%%K length = %d, want %d", len(got.K), n-14+1)
	}
	if len(got.D) != len(got.K)-3+1 {
		t.Errorf("%%D length = %d, want %d", len(got.D), len(got.K)-3+1)
	}
	for i, v := range got.K {
		if v < 0 || v > 100 {
			t.Errorf("%%K[%d] = %v out of [0,100]", i, v)
		}
	}
}

func TestStochasticFlatRangeIsZero(t *testing.T) {
	n := 16
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		high[i], low[i], closes[i] = 100, 100, 100
	}
	got := Stochastic(high, low, closes, 14, 3)
	for i, v := range got.K {
		if v != 0 {
			t.Errorf("%%K[%d] = %v on zero-range window, want 0", i, v)
		}
	}
}

func TestComputeWarmups(t *testing.T) {
	n := 60
	candles := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		price := 100 + math.Sin(float64(i)/3)*4
		candles[i] = market.Candle{
			Timestamp: int64(i) * 60000,
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price + 0.5,
			Volume:    1000,
		}
	}
	set := Compute(market.NewSeries(candles))

	cases := []struct {
		name string
		got  int
		want int
	}{
		{"RSI", len(set.RSI), n - 14},
		{"MACD line", len(set.MACD.Line), n - 26 + 1},
		{"Bollinger", len(set.Bollinger.Middle), n - 20 + 1},
		{"SMA20", len(set.SMA20), n - 20 + 1},
		{"SMA50", len(set.SMA50), n - 50 + 1},
		{"EMA12", len(set.EMA12), n - 12 + 1},
		{"EMA26", len(set.EMA26), n - 26 + 1},
		{"Stochastic K", len(set.Stochastic.K), n - 14 + 1},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s length = %d, want %d", tc.name, tc.got, tc.want)
		}
	}
}

func TestComputeShortSeriesEmpty(t *testing.T) {
	candles := make([]market.Candle, 5)
	for i := range candles {
		candles[i] = market.Candle{Timestamp: int64(i) * 60000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}
	}
	set := Compute(market.NewSeries(candles))
	if len(set.RSI) != 0 || len(set.SMA50) != 0 || len(set.MACD.Line) != 0 {
		t.Errorf("short series produced non-empty indicators: %+v", set)
	}
}
