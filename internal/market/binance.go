package market

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/rs/zerolog"
)

// BinanceConfig holds credentials and mode for the Binance adapter.
type BinanceConfig struct {
	APIKey    string
	SecretKey string
	TestNet   bool
}

// BinanceGateway implements Gateway against Binance spot.
type BinanceGateway struct {
	client *binance.Client
	logger zerolog.Logger

	// Open quantity per instrument, maintained so ClosePosition knows how
	// much to unwind. Spot has no native position concept.
	mu        sync.Mutex
	positions map[string]openPosition
}

type openPosition struct {
	side     string
	quantity float64
}

// NewBinanceGateway creates a Binance-backed gateway.
func NewBinanceGateway(cfg BinanceConfig, logger zerolog.Logger) *BinanceGateway {
	binance.UseTestnet = cfg.TestNet
	return &BinanceGateway{
		client:    binance.NewClient(cfg.APIKey, cfg.SecretKey),
		logger:    logger.With().Str("component", "BinanceGateway").Logger(),
		positions: make(map[string]openPosition),
	}
}

// binanceSymbol converts an instrument like "BTC/USDT" to Binance's "BTCUSDT".
func binanceSymbol(instrument string) string {
	return strings.ToUpper(strings.ReplaceAll(instrument, "/", ""))
}

func (g *BinanceGateway) CurrentPrice(ctx context.Context, instrument string) (float64, error) {
	prices, err := g.client.NewListPricesService().
		Symbol(binanceSymbol(instrument)).
		Do(ctx)
	if err != nil {
		return 0, classifyBinanceError("CurrentPrice", instrument, err)
	}
	if len(prices) == 0 {
		return 0, NewGatewayError(ErrKindInvalidSymbol, "CurrentPrice", instrument, errors.New("no price returned"))
	}
	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, NewGatewayError(ErrKindGeneric, "CurrentPrice", instrument, fmt.Errorf("parse price %q: %w", prices[0].Price, err))
	}
	return price, nil
}

func (g *BinanceGateway) HistoricalData(ctx context.Context, instrument, timeframe string, limit int) ([]Candle, error) {
	klines, err := g.client.NewKlinesService().
		Symbol(binanceSymbol(instrument)).
		Interval(binanceInterval(timeframe)).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, classifyBinanceError("HistoricalData", instrument, err)
	}

	candles := make([]Candle, 0, len(klines))
	for _, k := range klines {
		candle := Candle{Timestamp: k.OpenTime}
		candle.Open, _ = strconv.ParseFloat(k.Open, 64)
		candle.High, _ = strconv.ParseFloat(k.High, 64)
		candle.Low, _ = strconv.ParseFloat(k.Low, 64)
		candle.Close, _ = strconv.ParseFloat(k.Close, 64)
		candle.Volume, _ = strconv.ParseFloat(k.Volume, 64)
		candles = append(candles, candle)
	}
	if i := ValidateSeries(candles); i >= 0 {
		return nil, NewGatewayError(ErrKindGeneric, "HistoricalData", instrument,
			fmt.Errorf("out-of-order candle at index %d", i))
	}
	return candles, nil
}

func (g *BinanceGateway) Balances(ctx context.Context) ([]Balance, error) {
	account, err := g.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, classifyBinanceError("Balances", "", err)
	}

	var balances []Balance
	for _, b := range account.Balances {
		free, _ := strconv.ParseFloat(b.Free, 64)
		locked, _ := strconv.ParseFloat(b.Locked, 64)
		total := free + locked
		if total == 0 {
			continue
		}
		balances = append(balances, Balance{
			Currency:   b.Asset,
			Balance:    total,
			Equity:     total,
			Margin:     locked,
			FreeMargin: free,
		})
	}
	return balances, nil
}

func (g *BinanceGateway) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	side := binance.SideTypeBuy
	if req.Side == SideSell {
		side = binance.SideTypeSell
	}
	orderType := binance.OrderTypeMarket
	if req.Type == OrderTypeLimit {
		orderType = binance.OrderTypeLimit
	}

	svc := g.client.NewCreateOrderService().
		Symbol(binanceSymbol(req.Instrument)).
		Side(side).
		Type(orderType).
		Quantity(strconv.FormatFloat(req.Quantity, 'f', 8, 64))
	if orderType == binance.OrderTypeLimit {
		svc = svc.Price(strconv.FormatFloat(req.Price, 'f', 8, 64)).
			TimeInForce(binance.TimeInForceTypeGTC)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return OrderResult{}, classifyBinanceError("PlaceOrder", req.Instrument, err)
	}

	fillPrice := 0.0
	if len(resp.Fills) > 0 {
		fillPrice, _ = strconv.ParseFloat(resp.Fills[0].Price, 64)
	} else if resp.Price != "" {
		fillPrice, _ = strconv.ParseFloat(resp.Price, 64)
	}

	g.mu.Lock()
	g.positions[req.Instrument] = openPosition{side: req.Side, quantity: req.Quantity}
	g.mu.Unlock()

	g.logger.Info().
		Str("instrument", req.Instrument).
		Str("side", req.Side).
		Float64("quantity", req.Quantity).
		Int64("order_id", resp.OrderID).
		Msg("order placed")

	return OrderResult{
		Success: true,
		OrderID: strconv.FormatInt(resp.OrderID, 10),
		Price:   fillPrice,
	}, nil
}

func (g *BinanceGateway) ClosePosition(ctx context.Context, instrument string) (ClosePositionResult, error) {
	g.mu.Lock()
	pos, ok := g.positions[instrument]
	g.mu.Unlock()
	if !ok {
		return ClosePositionResult{}, NewGatewayError(ErrKindGeneric, "ClosePosition", instrument, errors.New("no tracked position"))
	}

	closeSide := SideSell
	if pos.side == SideSell {
		closeSide = SideBuy
	}
	_, err := g.PlaceOrder(ctx, OrderRequest{
		Instrument: instrument,
		Side:       closeSide,
		Type:       OrderTypeMarket,
		Quantity:   pos.quantity,
	})
	if err != nil {
		return ClosePositionResult{}, err
	}

	g.mu.Lock()
	delete(g.positions, instrument)
	g.mu.Unlock()

	return ClosePositionResult{Success: true}, nil
}

func binanceInterval(timeframe string) string {
	switch timeframe {
	case "4H":
		return "4h"
	case "1H":
		return "1h"
	case "1D":
		return "1d"
	case "1W":
		return "1w"
	default:
		return timeframe
	}
}

// Binance API error codes relevant to the taxonomy.
const (
	binanceCodeTooManyRequests     = -1003
	binanceCodeInvalidSymbol       = -1121
	binanceCodeMarketClosed        = -1013
	binanceCodeInsufficientBalance = -2010
)

func classifyBinanceError(op, instrument string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case binanceCodeTooManyRequests:
			return NewGatewayError(ErrKindRateLimit, op, instrument, err)
		case binanceCodeInvalidSymbol:
			return NewGatewayError(ErrKindInvalidSymbol, op, instrument, err)
		case binanceCodeMarketClosed:
			return NewGatewayError(ErrKindMarketClosed, op, instrument, err)
		case binanceCodeInsufficientBalance:
			return NewGatewayError(ErrKindInsufficientMargin, op, instrument, err)
		}
	}
	return NewGatewayError(ErrKindGeneric, op, instrument, err)
}
