package entity

import "time"

// Weekday is the persisted day-of-week key used by limits.
type Weekday string

const (
	Sunday    Weekday = "SUNDAY"
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
)

var weekdays = [7]Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// WeekdayOf maps a wall-clock instant to its Weekday.
func WeekdayOf(t time.Time) Weekday {
	return weekdays[int(t.Weekday())]
}

// ParseWeekday returns the Weekday matching s, or false when s is not one
// of the seven enum values.
func ParseWeekday(s string) (Weekday, bool) {
	for _, d := range weekdays {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}
