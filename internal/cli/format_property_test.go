// Package cli provides the command-line interface for the backtest application.
package cli

import (
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: for any finite amount, FormatCurrency starts with $ (or -$
// for negatives), carries exactly two decimal places, groups thousands
// with commas, and parses back to the original value.
func TestProperty_CurrencyFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("FormatCurrency round-trips through its own format", prop.ForAll(
		func(amount float64) bool {
			if math.IsNaN(amount) || math.IsInf(amount, 0) {
				return true
			}
			if math.Abs(amount) > 1e12 {
				return true
			}

			formatted := FormatCurrency(amount)

			if amount >= 0 {
				if !strings.HasPrefix(formatted, "$") {
					t.Logf("expected $ prefix for %f, got %s", amount, formatted)
					return false
				}
			} else if !strings.HasPrefix(formatted, "-$") {
				t.Logf("expected -$ prefix for %f, got %s", amount, formatted)
				return false
			}

			parts := strings.Split(formatted, ".")
			if len(parts) != 2 || len(parts[1]) != 2 {
				t.Logf("expected two decimal places for %f, got %s", amount, formatted)
				return false
			}

			// Groups of three between commas.
			digits := strings.TrimPrefix(strings.TrimPrefix(parts[0], "-"), "$")
			groups := strings.Split(digits, ",")
			for i, g := range groups {
				if i == 0 {
					if len(g) < 1 || len(g) > 3 {
						t.Logf("bad leading group in %s", formatted)
						return false
					}
					continue
				}
				if len(g) != 3 {
					t.Logf("bad group %q in %s", g, formatted)
					return false
				}
			}

			// Parses back to the original value, within rounding.
			numeric := strings.ReplaceAll(strings.TrimPrefix(formatted, "-"), "$", "")
			numeric = strings.ReplaceAll(numeric, ",", "")
			parsed, err := strconv.ParseFloat(numeric, 64)
			if err != nil {
				t.Logf("unparseable output %s: %v", formatted, err)
				return false
			}
			if math.Abs(parsed-math.Abs(amount)) > 0.005+math.Abs(amount)*1e-12 {
				t.Logf("value drifted: %f -> %s -> %f", amount, formatted, parsed)
				return false
			}
			return true
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.TestingRun(t)
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{8.37, "+8.37%"},
		{-4.0, "-4.00%"},
		{0, "0.00%"},
	}
	for _, tt := range tests {
		if got := FormatPercent(tt.in); got != tt.want {
			t.Errorf("FormatPercent(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFormatR(t *testing.T) {
	if got := FormatR(2.125); got != "+2.12R" {
		t.Errorf("FormatR(2.125) = %s, want +2.12R", got)
	}
	if got := FormatR(-1.0); got != "-1.00R" {
		t.Errorf("FormatR(-1.0) = %s, want -1.00R", got)
	}
}

func TestFormatRatio(t *testing.T) {
	if got := FormatRatio(math.Inf(1)); got != "inf" {
		t.Errorf("FormatRatio(+Inf) = %s, want inf", got)
	}
	if got := FormatRatio(2.2); got != "2.20" {
		t.Errorf("FormatRatio(2.2) = %s, want 2.20", got)
	}
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if got := FormatDate(d); got != "02-Jan-2024" {
		t.Errorf("FormatDate = %s, want 02-Jan-2024", got)
	}
}
