package broker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSettled(t *testing.T) {
	tests := []struct {
		name        string
		pos         *Position
		expectedQty int64
		want        bool
	}{
		{
			name:        "absent settles zero",
			pos:         nil,
			expectedQty: 0,
			want:        true,
		},
		{
			name:        "absent does not settle nonzero",
			pos:         nil,
			expectedQty: 5,
			want:        false,
		},
		{
			name:        "quantity and price match",
			pos:         &Position{Quantity: 5, AveragePrice: dec("291.5")},
			expectedQty: 5,
			want:        true,
		},
		{
			name:        "quantity match but price still zero",
			pos:         &Position{Quantity: 5, AveragePrice: decimal.Zero},
			expectedQty: 5,
			want:        false,
		},
		{
			name:        "quantity mismatch",
			pos:         &Position{Quantity: 3, AveragePrice: dec("291.5")},
			expectedQty: 5,
			want:        false,
		},
		{
			name:        "zero expected with residual zero position",
			pos:         &Position{Quantity: 0, AveragePrice: decimal.Zero},
			expectedQty: 0,
			want:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Settled(tt.pos, tt.expectedQty); got != tt.want {
				t.Errorf("Settled(%+v, %d) = %v, want %v", tt.pos, tt.expectedQty, got, tt.want)
			}
		})
	}
}

func TestWaitForSettlementEventuallySettles(t *testing.T) {
	attempts := 0
	get := func(ctx context.Context) (*Position, error) {
		attempts++
		if attempts < 3 {
			return &Position{Quantity: 5, AveragePrice: decimal.Zero}, nil
		}
		return &Position{Quantity: 5, AveragePrice: dec("100")}, nil
	}

	pos, err := WaitForSettlement(context.Background(), get, 5, 20, time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos == nil || pos.Quantity != 5 {
		t.Fatalf("position = %+v, want quantity 5", pos)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestWaitForSettlementTimesOut(t *testing.T) {
	get := func(ctx context.Context) (*Position, error) {
		return &Position{Quantity: 3, AveragePrice: dec("100")}, nil
	}

	_, err := WaitForSettlement(context.Background(), get, 5, 4, time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !IsCode(err, CodePositionSettlementTimeout) {
		t.Errorf("code = %s, want %s", CodeOf(err), CodePositionSettlementTimeout)
	}
}

func TestWaitForSettlementPropagatesGetError(t *testing.T) {
	brokerErr := Errorf(CodeBrokerRequestError, "connection reset")
	get := func(ctx context.Context) (*Position, error) {
		return nil, brokerErr
	}

	_, err := WaitForSettlement(context.Background(), get, 5, 20, time.Millisecond)
	if !errors.Is(err, brokerErr) {
		t.Errorf("err = %v, want the adapter error back", err)
	}
}

func TestWaitForSettlementHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	get := func(ctx context.Context) (*Position, error) {
		cancel()
		return &Position{Quantity: 0, AveragePrice: decimal.Zero}, nil
	}

	_, err := WaitForSettlement(ctx, get, 5, 20, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected error after context cancellation")
	}
	if !IsCode(err, CodePositionSettlementTimeout) {
		t.Errorf("code = %s, want %s", CodeOf(err), CodePositionSettlementTimeout)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled in the chain", err)
	}
}

func TestTradingErrorWrapping(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := NewTradingError(CodeBrokerRequestError, "quote request failed", cause)

	wrapped := fmt.Errorf("processing signal: %w", err)

	var te *TradingError
	if !errors.As(wrapped, &te) {
		t.Fatal("expected TradingError in the chain")
	}
	if te.Code != CodeBrokerRequestError {
		t.Errorf("Code = %s, want %s", te.Code, CodeBrokerRequestError)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected the original cause in the chain")
	}
	if CodeOf(errors.New("plain")) != CodeBrokerRequestError {
		t.Error("plain errors should map to CodeBrokerRequestError")
	}
	if !IsCode(wrapped, CodeBrokerRequestError) || IsCode(wrapped, CodeNoPriceData) {
		t.Error("IsCode should match the wrapped code only")
	}
}
