package domain

import (
	"fmt"
	"strings"
	"time"
)

// CountdownMarker separates the broadcaster's own title from the countdown suffix.
const CountdownMarker = " — Stream ends"

// Schedule holds the absolute instant the countdown reaches zero.
type Schedule struct {
	EndTime time.Time
}

func NewSchedule(now time.Time, duration time.Duration) Schedule {
	return Schedule{EndTime: now.Add(duration)}
}

// Remaining returns the time left, truncated to whole seconds.
func (s Schedule) Remaining(now time.Time) time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(now).Truncate(time.Second)
}

// FormatRemaining renders d as HH:MM:SS. Hours are not wrapped at 24.
func FormatRemaining(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}

	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// BaseTitle strips a previously appended countdown suffix, if any.
func BaseTitle(title string) string {
	base, _, _ := strings.Cut(title, CountdownMarker)
	return base
}

func CountdownSuffix(remaining time.Duration) string {
	return CountdownMarker + " " + FormatRemaining(remaining)
}

// ComposeTitle replaces any countdown already present in current with a fresh one.
func ComposeTitle(current string, remaining time.Duration) string {
	return BaseTitle(current) + CountdownSuffix(remaining)
}
