// Package models defines the signal and instrument types shared by the
// HTTP layer, the dispatcher queue, and the broker adapters.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionState is the target position direction carried by a signal.
type PositionState string

const (
	PositionLong  PositionState = "long"
	PositionShort PositionState = "short"
	PositionFlat  PositionState = "flat"
)

// Valid reports whether the position state is one of the known values.
func (p PositionState) Valid() bool {
	switch p {
	case PositionLong, PositionShort, PositionFlat:
		return true
	}
	return false
}

// Sign returns +1 for long, -1 for short and 0 for flat.
func (p PositionState) Sign() int64 {
	switch p {
	case PositionLong:
		return 1
	case PositionShort:
		return -1
	}
	return 0
}

// Signal is a position intent for one instrument. Optional fields keep
// pointer types so that an absent value is distinguishable from zero.
type Signal struct {
	SignalID   string        `json:"signal_id"`
	Timestamp  time.Time     `json:"timestamp"`
	Position   PositionState `json:"position"`
	Instrument Instrument    `json:"instrument"`

	BarIndex   *int64           `json:"bar_index,omitempty"`
	EntryTime  *time.Time       `json:"entry_time,omitempty"`
	EntryPrice *decimal.Decimal `json:"entry_price,omitempty"`
	StopPrice  *decimal.Decimal `json:"stop_price,omitempty"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`

	ReserveCapital         decimal.Decimal `json:"reserve_capital"`
	CapitalLeveragePercent decimal.Decimal `json:"capital_leverage_percent"`
}

// NewSignalID returns a short random identifier for log correlation.
func NewSignalID() string {
	return uuid.NewString()[:8]
}

// entryTimeLayouts are tried in order when entry_time carries no zone.
// Naive values are interpreted in the server's local zone.
var entryTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseEntryTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range entryTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// signalJSON mirrors the wire shape. Every field is a pointer so that
// defaults apply only when the key is genuinely absent.
type signalJSON struct {
	SignalID   *string          `json:"signal_id"`
	Timestamp  *string          `json:"timestamp"`
	Position   *string          `json:"position"`
	Instrument *Instrument      `json:"instrument"`
	BarIndex   *int64           `json:"bar_index"`
	EntryTime  *string          `json:"entry_time"`
	EntryPrice *decimal.Decimal `json:"entry_price"`
	StopPrice  *decimal.Decimal `json:"stop_price"`
	LimitPrice *decimal.Decimal `json:"limit_price"`

	ReserveCapital         *decimal.Decimal `json:"reserve_capital"`
	CapitalLeveragePercent *decimal.Decimal `json:"capital_leverage_percent"`
}

// UnmarshalJSON decodes a signal, applies defaults and validates required
// fields. Failures come back as *ValidationError with per-field paths so
// the HTTP layer can render a structured 422 response.
func (s *Signal) UnmarshalJSON(data []byte) error {
	var raw signalJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		var fe *fieldError
		if errors.As(err, &fe) {
			return &ValidationError{Details: []FieldError{{Path: fe.path, Message: fe.message}}}
		}
		return &ValidationError{Details: []FieldError{{Path: "body", Message: err.Error()}}}
	}

	var details []FieldError
	out := Signal{}

	if raw.SignalID != nil && *raw.SignalID != "" {
		out.SignalID = *raw.SignalID
	} else {
		out.SignalID = NewSignalID()
	}

	if raw.Timestamp != nil {
		t, err := parseEntryTime(*raw.Timestamp)
		if err != nil {
			details = append(details, FieldError{Path: "timestamp", Message: err.Error()})
		} else {
			out.Timestamp = t
		}
	} else {
		out.Timestamp = time.Now()
	}

	switch {
	case raw.Position == nil:
		details = append(details, FieldError{Path: "position", Message: "field is required"})
	case !PositionState(strings.ToLower(*raw.Position)).Valid():
		details = append(details, FieldError{
			Path:    "position",
			Message: fmt.Sprintf("must be one of long, short, flat; got %q", *raw.Position),
		})
	default:
		out.Position = PositionState(strings.ToLower(*raw.Position))
	}

	switch {
	case raw.Instrument == nil:
		details = append(details, FieldError{Path: "instrument", Message: "field is required"})
	case raw.Instrument.IsZero():
		details = append(details, FieldError{Path: "instrument", Message: "ticker must not be empty"})
	default:
		out.Instrument = *raw.Instrument
	}

	out.BarIndex = raw.BarIndex

	if raw.EntryTime != nil {
		t, err := parseEntryTime(*raw.EntryTime)
		if err != nil {
			details = append(details, FieldError{Path: "entry_time", Message: err.Error()})
		} else {
			out.EntryTime = &t
		}
	}

	out.EntryPrice = raw.EntryPrice
	out.StopPrice = raw.StopPrice
	out.LimitPrice = raw.LimitPrice

	if raw.ReserveCapital != nil {
		out.ReserveCapital = *raw.ReserveCapital
	}
	if raw.CapitalLeveragePercent != nil {
		out.CapitalLeveragePercent = *raw.CapitalLeveragePercent
	} else {
		out.CapitalLeveragePercent = decimal.NewFromInt(100)
	}

	if len(details) > 0 {
		return &ValidationError{Details: details}
	}
	*s = out
	return nil
}

func (s *Signal) String() string {
	return fmt.Sprintf("%s %s %s", s.SignalID, s.Instrument, s.Position)
}

// FieldError describes a single invalid field in a request payload.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError aggregates field errors from signal decoding.
type ValidationError struct {
	Details []FieldError `json:"details"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, d.Path+": "+d.Message)
	}
	return "invalid signal: " + strings.Join(parts, "; ")
}

// fieldError lets nested UnmarshalJSON implementations attribute a failure
// to a concrete path before it is wrapped into a ValidationError.
type fieldError struct {
	path    string
	message string
}

func (e *fieldError) Error() string {
	return e.path + ": " + e.message
}
