package engine

import (
	"time"

	"dealscope/internal/domain"
)

// CurrentQuarter returns the calendar quarter containing now. The window
// ends on the last millisecond of the quarter's final day.
func CurrentQuarter(now time.Time) domain.Quarter {
	number := (int(now.Month())-1)/3 + 1
	start := time.Date(now.Year(), time.Month((number-1)*3+1), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 3, 0).Add(-time.Millisecond)
	return domain.Quarter{
		Year:   now.Year(),
		Number: number,
		Window: domain.Window{Start: start, End: end},
	}
}

// CurrentWeek returns the Monday-through-Sunday week containing now,
// from Monday 00:00:00 to Sunday 23:59:59.999. Go numbers Sunday as 0, so
// a Sunday is six days past Monday, not minus one.
func CurrentWeek(now time.Time) domain.Window {
	sinceMonday := (int(now.Weekday()) + 6) % 7
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := day.AddDate(0, 0, -sinceMonday)
	end := start.AddDate(0, 0, 7).Add(-time.Millisecond)
	return domain.Window{Start: start, End: end}
}
