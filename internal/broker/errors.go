package broker

import (
	"errors"
	"fmt"
)

// ErrorCode classifies adapter failures in broker-neutral terms.
type ErrorCode string

const (
	CodeInstrumentNotFound        ErrorCode = "INSTRUMENT_NOT_FOUND"
	CodeNoPriceData               ErrorCode = "NO_PRICE_DATA"
	CodeInvalidPositionDirection  ErrorCode = "INVALID_POSITION_DIRECTION"
	CodePositionSettlementTimeout ErrorCode = "POSITION_SETTLEMENT_TIMEOUT"
	CodeOrderTradeNotFound        ErrorCode = "ORDER_TRADE_NOT_FOUND"
	CodeBrokerRequestError        ErrorCode = "BROKER_REQUEST_ERROR"
	CodeUnsupportedInstrumentType ErrorCode = "UNSUPPORTED_INSTRUMENT_TYPE"
)

// TradingError is the failure type adapter methods return. Wire-level
// errors are wrapped under a broker-neutral code so callers can branch on
// the category without knowing the backend.
type TradingError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *TradingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TradingError) Unwrap() error {
	return e.Err
}

// NewTradingError wraps err under the given code.
func NewTradingError(code ErrorCode, message string, err error) *TradingError {
	return &TradingError{Code: code, Message: message, Err: err}
}

// Errorf builds a TradingError with a formatted message and no cause.
func Errorf(code ErrorCode, format string, args ...any) *TradingError {
	return &TradingError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the trading error code from err. Errors that carry no
// TradingError map to CodeBrokerRequestError.
func CodeOf(err error) ErrorCode {
	var te *TradingError
	if errors.As(err, &te) {
		return te.Code
	}
	return CodeBrokerRequestError
}

// IsCode reports whether err carries the given trading error code.
func IsCode(err error, code ErrorCode) bool {
	var te *TradingError
	return errors.As(err, &te) && te.Code == code
}
