package cli

import (
	"fmt"
	"math"
	"time"
)

// FormatCurrency formats a dollar amount with thousands grouping.
func FormatCurrency(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	whole := int64(amount)
	frac := int64(math.Round((amount - float64(whole)) * 100))
	if frac == 100 {
		whole++
		frac = 0
	}

	grouped := groupThousands(whole)
	result := fmt.Sprintf("$%s.%02d", grouped, frac)
	if negative {
		result = "-" + result
	}
	return result
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatR formats an R-multiple with sign.
func FormatR(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2fR", sign, value)
}

// FormatRatio formats a ratio, printing inf for loss-free runs.
func FormatRatio(value float64) string {
	if math.IsInf(value, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", value)
}

// FormatDate formats a trading session date.
func FormatDate(t time.Time) string {
	return t.Format("02-Jan-2006")
}
