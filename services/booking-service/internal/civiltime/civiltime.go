// Package civiltime converts between wall-clock minutes on a civil date and absolute
// instants for one IANA timezone. All offset arithmetic is left to the zone database.
package civiltime

import (
	"errors"
	"fmt"
	"time"
)

// DefaultTimezone is used when no zone is configured.
const DefaultTimezone = "Europe/Moscow"

// MinutesPerDay is the exclusive end-of-day marker: 1440 means the next local midnight.
const MinutesPerDay = 24 * 60

const dateLayout = "2006-01-02"

var (
	ErrInvalidDate       = errors.New("invalid date")
	ErrMinutesOutOfRange = errors.New("minutes out of range")
)

// Date is a calendar date without a time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate accepts YYYY-MM-DD and rejects dates that do not exist (2026-02-30).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateFromTime(t), nil
}

// DateFromTime takes the calendar fields of t in t's own location.
func DateFromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// AddDays moves by whole calendar days.
func (d Date) AddDays(n int) Date {
	return DateFromTime(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

// UTCMidnight is the date as a UTC midnight timestamp, the form used for DATE columns.
func (d Date) UTCMidnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Converter is bound to a single location and is safe for concurrent use.
type Converter struct {
	loc *time.Location
}

// NewConverter loads name from the zone database; an empty name selects DefaultTimezone.
func NewConverter(name string) (*Converter, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return &Converter{loc: loc}, nil
}

// NewConverterIn wraps an already loaded location.
func NewConverterIn(loc *time.Location) *Converter {
	if loc == nil {
		loc = time.UTC
	}
	return &Converter{loc: loc}
}

func (c *Converter) Location() *time.Location {
	return c.loc
}

// WallMinutesToUTC resolves minutes after local midnight of d to a UTC instant.
// minutes may be 1440, which yields the next day's local midnight; on DST transition
// days that is 23 or 25 hours after the day start, not 24. A wall time inside a
// spring-forward gap resolves forward (02:30 becomes 03:30 when 02:00 jumps to 03:00);
// an ambiguous fall-back wall time resolves to its first occurrence.
func (c *Converter) WallMinutesToUTC(d Date, minutes int) (time.Time, error) {
	if minutes < 0 || minutes > MinutesPerDay {
		return time.Time{}, fmt.Errorf("%w: %d", ErrMinutesOutOfRange, minutes)
	}
	if err := validDate(d); err != nil {
		return time.Time{}, err
	}
	// time.Date normalises hour 24 to 00:00 of the following day in loc.
	local := time.Date(d.Year, d.Month, d.Day, minutes/60, minutes%60, 0, 0, c.loc)
	wall := time.Date(d.Year, d.Month, d.Day, minutes/60, minutes%60, 0, 0, time.UTC)
	if sameWallClock(local, wall) {
		return local.UTC(), nil
	}
	// The wall time was skipped by a forward jump. Read it with the offset in force
	// before the jump, which lands the same distance past the transition.
	_, before := local.Add(-6 * time.Hour).Zone()
	_, after := local.Add(6 * time.Hour).Zone()
	return wall.Add(-time.Duration(min(before, after)) * time.Second), nil
}

func sameWallClock(local, wall time.Time) bool {
	y, m, d := local.Date()
	wy, wm, wd := wall.Date()
	return y == wy && m == wm && d == wd && local.Hour() == wall.Hour() && local.Minute() == wall.Minute()
}

// UTCToWallMinutes projects t into the zone and returns hour*60+minute, dropping
// seconds. The result is t's own local time of day even if t falls on a date other
// than d; callers that need day-relative values must clip t to DayRange(d) first.
func (c *Converter) UTCToWallMinutes(_ Date, t time.Time) int {
	local := t.In(c.loc)
	return local.Hour()*60 + local.Minute()
}

// UTCToWallMinutesCeil is UTCToWallMinutes rounded up when t has a sub-minute part.
func (c *Converter) UTCToWallMinutesCeil(d Date, t time.Time) int {
	m := c.UTCToWallMinutes(d, t)
	local := t.In(c.loc)
	if local.Second() > 0 || local.Nanosecond() > 0 {
		m++
	}
	return m
}

// DayRange returns [local midnight of d, local midnight of d+1) as UTC instants.
func (c *Converter) DayRange(d Date) (time.Time, time.Time, error) {
	start, err := c.WallMinutesToUTC(d, 0)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := c.WallMinutesToUTC(d, MinutesPerDay)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// Weekday of d as observed in the zone, 0 = Sunday.
func (c *Converter) Weekday(d Date) time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, c.loc).Weekday()
}

// DateOf returns the local calendar date of t.
func (c *Converter) DateOf(t time.Time) Date {
	return DateFromTime(t.In(c.loc))
}

func validDate(d Date) error {
	if d.Month < time.January || d.Month > time.December || d.Day < 1 || d.Year < 1 {
		return fmt.Errorf("%w: %s", ErrInvalidDate, d)
	}
	if DateFromTime(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)) != d {
		return fmt.Errorf("%w: %s", ErrInvalidDate, d)
	}
	return nil
}
