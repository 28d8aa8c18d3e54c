package progress

import "time"

const dayLayout = "2006-01-02"

// Clock decides "now" and which calendar day it falls on.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type SystemClock struct {
	Loc *time.Location
}

// NewSystemClock returns a wall clock in loc, UTC when loc is nil.
func NewSystemClock(loc *time.Location) SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return SystemClock{Loc: loc}
}

func (c SystemClock) Now() time.Time {
	return time.Now().In(c.Location())
}

func (c SystemClock) Location() *time.Location {
	if c.Loc == nil {
		return time.UTC
	}
	return c.Loc
}

// DayOf formats t as the calendar day in loc.
func DayOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayLayout)
}

// Today returns the current calendar day of clock.
func Today(clock Clock) string {
	return DayOf(clock.Now(), clock.Location())
}

// PreviousDay returns the day before day, or "" when day is not a valid date.
func PreviousDay(day string) string {
	t, err := time.Parse(dayLayout, day)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(dayLayout)
}

// ClosedDay returns the latest calendar day a streak reset scheduled at
// resetAt past midnight has closed when it runs at now. Reset times in the
// second half of the day close the current day; earlier ones close the day
// before.
func ClosedDay(now time.Time, loc *time.Location, resetAt time.Duration) string {
	offset := resetAt
	if resetAt >= 12*time.Hour {
		offset = resetAt - 24*time.Hour
	}
	return PreviousDay(DayOf(now.Add(-offset), loc))
}
