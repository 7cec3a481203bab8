package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Instrument identifies a tradable symbol at a broker: a ticker plus an
// optional class code (board), rendered as "TICKER@CLASS". Brokers that
// address instruments by a single opaque id (e.g. a FIGI) use the ticker
// part alone.
type Instrument struct {
	Ticker    string `json:"ticker"`
	ClassCode string `json:"class_code,omitempty"`
}

// ParseInstrument parses the "TICKER@CLASS" form. The class code is optional.
func ParseInstrument(s string) (Instrument, error) {
	ticker, classCode, _ := strings.Cut(s, "@")
	if ticker == "" {
		return Instrument{}, fmt.Errorf("instrument %q has no ticker", s)
	}
	return Instrument{Ticker: ticker, ClassCode: classCode}, nil
}

func (i Instrument) String() string {
	if i.ClassCode == "" {
		return i.Ticker
	}
	return i.Ticker + "@" + i.ClassCode
}

// IsZero reports whether the instrument is unset.
func (i Instrument) IsZero() bool {
	return i.Ticker == "" && i.ClassCode == ""
}

// UnmarshalJSON accepts either the compact string form ("SBER@TQBR") or an
// object with ticker and class_code fields.
func (i *Instrument) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return &fieldError{path: "instrument", message: err.Error()}
		}
		parsed, err := ParseInstrument(s)
		if err != nil {
			return &fieldError{path: "instrument", message: err.Error()}
		}
		*i = parsed
		return nil
	}

	type instrumentJSON Instrument
	var obj instrumentJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return &fieldError{path: "instrument", message: err.Error()}
	}
	*i = Instrument(obj)
	return nil
}

// MarshalJSON emits the canonical string form.
func (i Instrument) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}
