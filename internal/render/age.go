package render

import (
	"fmt"
	"time"
)

// FormatAge renders how long ago a spot was seen, for tooltips:
// "42 sec", "3:05 min", "2:07 hrs", "days", or "neg" for future times.
func FormatAge(d time.Duration) string {
	sec := int64(d / time.Second)
	switch {
	case sec < 0:
		return "neg"
	case sec < 60:
		return fmt.Sprintf("%d sec", sec)
	case sec < 3600:
		return fmt.Sprintf("%d:%02d min", sec/60, sec%60)
	case sec < 24*3600:
		return fmt.Sprintf("%d:%02d hrs", sec/3600, sec%3600/60)
	default:
		return "days"
	}
}
