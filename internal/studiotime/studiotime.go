// Package studiotime holds the calendar arithmetic shared by the credit and
// subscription rules.  All values leave this package in UTC; the studio's
// local zone is only used to decide where a calendar day ends.
package studiotime

import "time"

// DefaultZone is used when the configured studio zone cannot be loaded.
const DefaultZone = "Europe/London"

// LoadLocation resolves a zone name, falling back to UTC when the name is
// empty or unknown to the tz database.
func LoadLocation(name string) *time.Location {
    if name == "" {
        return time.UTC
    }
    loc, err := time.LoadLocation(name)
    if err != nil {
        return time.UTC
    }
    return loc
}

// Date returns midnight UTC for the given calendar date.
func Date(year int, month time.Month, day int) time.Time {
    return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// StartOfDayUTC truncates t to midnight of its UTC calendar date.
func StartOfDayUTC(t time.Time) time.Time {
    u := t.UTC()
    return Date(u.Year(), u.Month(), u.Day())
}

// EndOfDayUTC returns 23:59:59.999999 of t's UTC calendar date.
func EndOfDayUTC(t time.Time) time.Time {
    return endOfDay(t.UTC()).UTC()
}

// EndOfDayIn returns the last microsecond of t's calendar day as observed in
// loc, expressed in UTC.  During British Summer Time this is 22:59:59.999999Z.
func EndOfDayIn(t time.Time, loc *time.Location) time.Time {
    if loc == nil {
        loc = time.UTC
    }
    return endOfDay(t.In(loc)).UTC()
}

func endOfDay(t time.Time) time.Time {
    return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999000, t.Location())
}

// AddMonths adds n calendar months, clamping the day to the length of the
// target month (Jan 31 + 1 month = Feb 28/29) instead of overflowing the way
// time.AddDate does.
func AddMonths(t time.Time, n int) time.Time {
    y, m, d := t.Date()
    first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
    if last := DaysIn(first.Year(), first.Month()); d > last {
        d = last
    }
    return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// AddWeeks adds n whole weeks.
func AddWeeks(t time.Time, n int) time.Time {
    return t.AddDate(0, 0, 7*n)
}

// DaysIn reports the number of days in the given month.
func DaysIn(year int, month time.Month) int {
    return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthsBetween counts whole calendar months from a to b ignoring the day.
func MonthsBetween(a, b time.Time) int {
    return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// DaysBetween counts calendar days between the UTC dates of a and b.
func DaysBetween(a, b time.Time) int {
    return int(StartOfDayUTC(b).Sub(StartOfDayUTC(a)).Hours() / 24)
}
