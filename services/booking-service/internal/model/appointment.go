package model

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusDone      Status = "DONE"
	StatusCanceled  Status = "CANCELED"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCanceled},
	StatusConfirmed: {StatusDone, StatusCanceled},
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusDone, StatusCanceled:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
}

// Blocking reports whether an appointment in this status occupies the calendar.
func (s Status) Blocking() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// BlockingStatuses is the set used in overlap queries.
func BlockingStatuses() []string {
	return []string{string(StatusPending), string(StatusConfirmed)}
}

type Appointment struct {
	ID        string
	StaffID   string
	ServiceID string
	ClientID  string
	StartAt   time.Time
	EndAt     time.Time
	Status    Status
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Blocks reports whether the row takes part in conflict checks. Soft deletion is
// independent of status.
func (a Appointment) Blocks() bool {
	return a.DeletedAt == nil && a.Status.Blocking()
}

// Overlaps uses the half-open rule: touching windows do not overlap.
func (a Appointment) Overlaps(start, end time.Time) bool {
	return a.StartAt.Before(end) && a.EndAt.After(start)
}

// Transition moves the appointment to the next status or returns ErrInvalidTransition.
func (a *Appointment) Transition(to Status) error {
	if a.Status == to {
		return nil
	}
	if !a.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}
	a.Status = to
	return nil
}
