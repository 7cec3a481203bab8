package models

import (
	"encoding/json"
	"testing"
)

func TestParseInstrument(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Instrument
		wantErr bool
	}{
		{
			name:  "ticker with class code",
			input: "SBER@TQBR",
			want:  Instrument{Ticker: "SBER", ClassCode: "TQBR"},
		},
		{
			name:  "bare ticker",
			input: "BBG004730N88",
			want:  Instrument{Ticker: "BBG004730N88"},
		},
		{
			name:    "empty ticker",
			input:   "@TQBR",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInstrument(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseInstrument(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInstrument(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseInstrument(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestInstrumentString(t *testing.T) {
	tests := []struct {
		name string
		in   Instrument
		want string
	}{
		{"with class code", Instrument{Ticker: "SiU5", ClassCode: "RFUD"}, "SiU5@RFUD"},
		{"bare ticker", Instrument{Ticker: "SBER"}, "SBER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInstrumentJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Instrument
	}{
		{
			name:  "string form",
			input: `"SBER@TQBR"`,
			want:  Instrument{Ticker: "SBER", ClassCode: "TQBR"},
		},
		{
			name:  "object form",
			input: `{"ticker":"SiU5","class_code":"RFUD"}`,
			want:  Instrument{Ticker: "SiU5", ClassCode: "RFUD"},
		},
		{
			name:  "object without class code",
			input: `{"ticker":"SBER"}`,
			want:  Instrument{Ticker: "SBER"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Instrument
			if err := json.Unmarshal([]byte(tt.input), &got); err != nil {
				t.Fatalf("Unmarshal(%s) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Unmarshal(%s) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}

	t.Run("marshal emits string form", func(t *testing.T) {
		out, err := json.Marshal(Instrument{Ticker: "SBER", ClassCode: "TQBR"})
		if err != nil {
			t.Fatalf("Marshal unexpected error: %v", err)
		}
		if string(out) != `"SBER@TQBR"` {
			t.Errorf("Marshal = %s, want %q", out, `"SBER@TQBR"`)
		}
	})
}
