package market

import (
	"errors"
	"fmt"
)

// ErrorKind classifies gateway failures so callers can decide between
// retrying, skipping an instrument, or surfacing the error.
type ErrorKind string

const (
	ErrKindRateLimit          ErrorKind = "rate_limit"
	ErrKindInsufficientMargin ErrorKind = "insufficient_margin"
	ErrKindMarketClosed       ErrorKind = "market_closed"
	ErrKindInvalidSymbol      ErrorKind = "invalid_symbol"
	ErrKindGeneric            ErrorKind = "generic"
)

// GatewayError wraps a venue failure with a classification.
type GatewayError struct {
	Kind       ErrorKind
	Instrument string
	Op         string // gateway operation that failed
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Instrument != "" {
		return fmt.Sprintf("gateway %s %s: %s: %v", e.Op, e.Instrument, e.Kind, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError builds a classified gateway error.
func NewGatewayError(kind ErrorKind, op, instrument string, err error) *GatewayError {
	return &GatewayError{Kind: kind, Op: op, Instrument: instrument, Err: err}
}

// IsRateLimited reports whether err is a rate-limit gateway error.
func IsRateLimited(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Kind == ErrKindRateLimit
}

// ErrorKindOf extracts the classification from err, defaulting to generic.
func ErrorKindOf(err error) ErrorKind {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ErrKindGeneric
}
