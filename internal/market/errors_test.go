package market

import (
	"errors"
	"fmt"
	"testing"

	"github.com/adshao/go-binance/v2/common"
)

func TestErrorKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			"classified",
			NewGatewayError(ErrKindMarketClosed, "PlaceOrder", "EUR/USD", errors.New("closed")),
			ErrKindMarketClosed,
		},
		{
			"wrapped",
			fmt.Errorf("cycle: %w", NewGatewayError(ErrKindRateLimit, "CurrentPrice", "EUR/USD", errors.New("429"))),
			ErrKindRateLimit,
		},
		{"plain", errors.New("boom"), ErrKindGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorKindOf(tt.err); got != tt.want {
				t.Errorf("ErrorKindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsRateLimited(t *testing.T) {
	limited := NewGatewayError(ErrKindRateLimit, "CurrentPrice", "EUR/USD", errors.New("429"))
	if !IsRateLimited(limited) {
		t.Error("rate-limit error not detected")
	}
	if !IsRateLimited(fmt.Errorf("fetch: %w", limited)) {
		t.Error("wrapped rate-limit error not detected")
	}
	if IsRateLimited(NewGatewayError(ErrKindGeneric, "CurrentPrice", "EUR/USD", errors.New("boom"))) {
		t.Error("generic gateway error reported as rate-limited")
	}
	if IsRateLimited(errors.New("boom")) {
		t.Error("plain error reported as rate-limited")
	}
}

func TestClassifyBinanceError(t *testing.T) {
	tests := []struct {
		code int64
		want ErrorKind
	}{
		{binanceCodeTooManyRequests, ErrKindRateLimit},
		{binanceCodeInvalidSymbol, ErrKindInvalidSymbol},
		{binanceCodeMarketClosed, ErrKindMarketClosed},
		{binanceCodeInsufficientBalance, ErrKindInsufficientMargin},
		{-9999, ErrKindGeneric},
	}
	for _, tt := range tests {
		err := classifyBinanceError("PlaceOrder", "BTC/USDT", &common.APIError{Code: tt.code, Message: "x"})
		if got := ErrorKindOf(err); got != tt.want {
			t.Errorf("code %d classified as %s, want %s", tt.code, got, tt.want)
		}
	}
}
