package tui

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatCalories renders a calorie total with thousands separators
func FormatCalories(kcal float64) string {
	return humanize.CommafWithDigits(math.Round(kcal*10)/10, 1) + " kcal"
}

// FormatMissing describes activities without a calorie value
func FormatMissing(missing, activities int) string {
	if missing == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", missing, activities)
}

// FormatRelative renders t relative to now ("3 minutes ago", "2 hours from now")
func FormatRelative(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func truncateName(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
