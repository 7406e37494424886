package untis

import (
	"fmt"
	"time"

	"github.com/icza/gox/timex"
)

// Wire layouts of the legacy API. All timestamps are timezone-naive
// wall-clock values of the school, kept in time.Local.
const (
	DateLayout     = "20060102"
	TimeLayout     = "1504"
	DateTimeLayout = "200601021504"
)

// CombineDateTime builds one timestamp from the canonical 8-digit date and
// 4-digit time strings.
func CombineDateTime(date8, time4 string) (time.Time, error) {
	t, err := time.ParseInLocation(DateTimeLayout, date8+time4, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date/time pair %q %q: %w", date8, time4, err)
	}

	return t, nil
}

// ParseDate8 parses a canonical 8-digit date at midnight local time.
func ParseDate8(date8 string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, date8, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q: %w", date8, err)
	}

	return t, nil
}

// FormatDate8 renders a timestamp as the 8-digit wire date.
func FormatDate8(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatTime4 renders a timestamp as the 4-digit wire time.
func FormatTime4(t time.Time) string {
	return t.Format(TimeLayout)
}

// WeekRange returns monday and sunday of the ISO week `offset` weeks away
// from now.
func WeekRange(now time.Time, offset int) (time.Time, time.Time) {
	year, week := now.AddDate(0, 0, offset*7).ISOWeek()
	start := timex.WeekStart(year, week)
	end := start.AddDate(0, 0, 6)

	return start, end
}

// DayRange returns the date `offset` days away from now twice, because the
// legacy API takes closed date ranges.
func DayRange(now time.Time, offset int) (time.Time, time.Time) {
	day := now.AddDate(0, 0, offset)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	return day, day
}
