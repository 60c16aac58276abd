package utils

import (
	"fmt"
	"time"
)

// DiscordRelative renders t as a Discord relative timestamp ("in 2 hours").
func DiscordRelative(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}

// FormatMinutes renders a minute count compactly: "45m", "3h", "2d 4h".
func FormatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	rem := minutes % 60
	if hours < 24 {
		if rem == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh %dm", hours, rem)
	}
	days := hours / 24
	remHours := hours % 24
	if remHours == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd %dh", days, remHours)
}

// TimeAgo renders how long ago t was: "just now", "5m ago", "3h ago", "2d ago".
func TimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
