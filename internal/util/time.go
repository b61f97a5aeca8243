package util

import (
	"fmt"
	"time"
)

// RelativeTimeShort formats a time as a short relative string (e.g., "2h ago")
func RelativeTimeShort(t time.Time) string {
	return relativeShort(time.Since(t), t)
}

func relativeShort(diff time.Duration, t time.Time) string {
	switch {
	case diff < time.Minute:
		return "now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

// Today returns the local date as YYYY-MM-DD, the default received date.
func Today() string {
	return time.Now().Format(time.DateOnly)
}
