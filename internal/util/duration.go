// Package util provides small helpers shared across the dispatcher.
package util

import (
	"fmt"
	"strings"
	"time"
)

// FormatDuration renders d as a compact human-readable string, e.g.
// "1d2h3m4s". Sub-second precision is dropped; negative durations keep
// a leading minus sign.
func FormatDuration(d time.Duration) string {
	totalSeconds := int64(d / time.Second)
	sign := ""
	if totalSeconds < 0 {
		sign = "-"
		totalSeconds = -totalSeconds
	}

	days := totalSeconds / 86400
	rem := totalSeconds % 86400
	hours := rem / 3600
	rem %= 3600
	minutes := rem / 60
	seconds := rem % 60

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%dd", days)
	}
	if hours > 0 {
		fmt.Fprintf(&b, "%dh", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dm", minutes)
	}
	if seconds > 0 || b.Len() == 0 {
		fmt.Fprintf(&b, "%ds", seconds)
	}

	return sign + b.String()
}

// ShortID returns a truncated ID string, safely handling IDs shorter than 8 characters.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
