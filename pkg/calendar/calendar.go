// Package calendar provides pure date-classification helpers: weekday
// tests, holiday lookup, and the special-day test the balance and
// constraint packages build on.
package calendar

import "time"

// Calendar is an immutable holiday set supplied at construction. It
// has no mutable state; every method is a pure function of its
// argument plus the holiday set.
type Calendar struct {
	holidays    map[string]bool
	preHolidays map[string]bool
}

// New builds a Calendar over the given holiday dates ("2006-01-02").
// Pre-holidays (the day immediately before each holiday) are derived
// automatically.
func New(holidays []string) *Calendar {
	c := &Calendar{
		holidays:    make(map[string]bool, len(holidays)),
		preHolidays: make(map[string]bool, len(holidays)),
	}
	for _, h := range holidays {
		c.holidays[h] = true
		if t, err := time.Parse("2006-01-02", h); err == nil {
			c.preHolidays[t.AddDate(0, 0, -1).Format("2006-01-02")] = true
		}
	}
	return c
}

func key(d time.Time) string {
	return d.Format("2006-01-02")
}

// IsWeekend reports whether d falls on Saturday or Sunday.
func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsHoliday reports whether d is in the configured holiday set.
func (c *Calendar) IsHoliday(d time.Time) bool {
	return c.holidays[key(d)]
}

// IsPreHoliday reports whether d immediately precedes a holiday.
func (c *Calendar) IsPreHoliday(d time.Time) bool {
	return c.preHolidays[key(d)]
}

// IsSpecial is weekend ∨ holiday ∨ pre_holiday — the day classification
// that feeds weekend-balance bookkeeping (S4, §4.1).
func (c *Calendar) IsSpecial(d time.Time) bool {
	return IsWeekend(d) || c.IsHoliday(d) || c.IsPreHoliday(d)
}

// Weekday returns d's weekday as 0 (Sunday) .. 6 (Saturday).
func Weekday(d time.Time) int {
	return int(d.Weekday())
}

// MonthOf returns the "2006-01" month key for d.
func MonthOf(d time.Time) string {
	return d.Format("2006-01")
}

// IsConsecutiveDate reports whether b is exactly one day after a.
func IsConsecutiveDate(a, b time.Time) bool {
	return b.Sub(a) == 24*time.Hour
}

// DaysBetween returns the signed day distance b - a.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// SameWeekday reports whether a and b fall on the same day of week.
func SameWeekday(a, b time.Time) bool {
	return a.Weekday() == b.Weekday()
}
