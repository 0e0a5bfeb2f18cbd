package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormat(t *testing.T) {
	cases := map[string]string{
		"0":         "₹0.00",
		"70":        "₹70.00",
		"320":       "₹320.00",
		"1234.5":    "₹1,234.50",
		"1234567.8": "₹1,234,567.80",
		"999.995":   "₹1,000.00",
		"-12":       "-₹12.00",
	}
	for in, want := range cases {
		if got := Format(decimal.RequireFromString(in)); got != want {
			t.Fatalf("Format(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestParse(t *testing.T) {
	got, err := Parse(" ₹1,250.75 ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("1250.75")) {
		t.Fatalf("Parse = %s", got)
	}

	for _, bad := range []string{"", "abc", "-5", "₹"} {
		if _, err := Parse(bad); err == nil {
			t.Fatalf("Parse(%q) expected error", bad)
		}
	}
}
