package model

import "time"

type Staff struct {
	ID       string
	Name     string
	IsActive bool
}

// WorkingHours is one weekday row; minutes count from local midnight. A missing row
// means the staff member does not work that weekday.
type WorkingHours struct {
	StaffID     string
	Weekday     int
	IsClosed    bool
	StartMinute int
	EndMinute   int
}

// Open reports whether the row yields a non-empty working window.
func (wh WorkingHours) Open() bool {
	return !wh.IsClosed && wh.StartMinute >= 0 && wh.EndMinute <= 24*60 && wh.StartMinute < wh.EndMinute
}

// TimeOff is an exception window on a single civil date, in wall-clock minutes. Rows are
// not guaranteed to be merged.
type TimeOff struct {
	ID          string
	StaffID     string
	Day         time.Time // civil date at UTC midnight
	StartMinute int
	EndMinute   int
	Reason      string
}

type Service struct {
	ID           string
	Name         string
	DurationMins int
	IsActive     bool
	IsArchived   bool
}

// Bookable reports whether the service counts toward a booking's duration.
func (s Service) Bookable() bool {
	return s.IsActive && !s.IsArchived
}

type Client struct {
	ID    string
	Name  string
	Phone string
	Email string
}
