// Package availability computes bookable windows for a staff member on a civil date.
package availability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	otelx "github.com/md-rashed-zaman/salonslots/libs/otel"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/civiltime"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/interval"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/model"
)

const DefaultStepMinutes = 5

// Store is the read side the computer needs. Implementations must not cache.
type Store interface {
	catalog.ServiceReader
	GetStaff(ctx context.Context, staffID string) (model.Staff, bool, error)
	GetWorkingHours(ctx context.Context, staffID string, weekday int) (model.WorkingHours, bool, error)
	ListTimeOff(ctx context.Context, staffID string, day civiltime.Date) ([]model.TimeOff, error)
	// ListBlockingAppointments returns non-deleted PENDING/CONFIRMED rows overlapping [from, to).
	ListBlockingAppointments(ctx context.Context, staffID string, from, to time.Time) ([]model.Appointment, error)
}

type Config struct {
	// StepMinutes is the slot grid; <= 0 means DefaultStepMinutes.
	StepMinutes int
	// BufferMinutes widens every blocking appointment on both sides.
	BufferMinutes int
	// SkipPast drops candidates that start before now.
	SkipPast bool
}

// Slot is a candidate window. It is never persisted.
type Slot struct {
	StartAt      time.Time
	EndAt        time.Time
	StartMinutes int
	EndMinutes   int
}

type Computer struct {
	store  Store
	conv   *civiltime.Converter
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewComputer(store Store, conv *civiltime.Converter, cfg Config, logger *slog.Logger) *Computer {
	if cfg.StepMinutes <= 0 {
		cfg.StepMinutes = DefaultStepMinutes
	}
	if cfg.BufferMinutes < 0 {
		cfg.BufferMinutes = 0
	}
	return &Computer{
		store:  store,
		conv:   conv,
		cfg:    cfg,
		logger: logger,
		tracer: otelx.Tracer("availability"),
		now:    time.Now,
	}
}

func (c *Computer) Converter() *civiltime.Converter {
	return c.conv
}

func (c *Computer) Buffer() time.Duration {
	return time.Duration(c.cfg.BufferMinutes) * time.Minute
}

// FreeSlots lists every grid-aligned window of the resolved duration that fits the
// staff member's working window on date, avoiding time-off and blocking appointments.
// An empty result is not an error; only a malformed date or staff id (ErrValidation),
// an unknown or inactive staff member (ErrNotFound) and storage failures are.
func (c *Computer) FreeSlots(ctx context.Context, date, staffID string, spec catalog.Spec) ([]Slot, error) {
	ctx, span := c.tracer.Start(ctx, "availability.FreeSlots", trace.WithAttributes(
		attribute.String("staff_id", staffID),
		attribute.String("date", date),
	))
	defer span.End()

	slots, err := c.freeSlots(ctx, date, staffID, spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "free slots")
		return nil, err
	}
	span.SetAttributes(attribute.Int("slots", len(slots)))
	return slots, nil
}

func (c *Computer) freeSlots(ctx context.Context, date, staffID string, spec catalog.Spec) ([]Slot, error) {
	d, err := civiltime.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrValidation, err)
	}
	if err := c.requireStaff(ctx, staffID); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	res, err := catalog.Resolve(ctx, c.store, spec)
	if err != nil {
		return nil, fmt.Errorf("resolve duration: %w", err)
	}
	if !res.Valid() {
		return []Slot{}, nil
	}

	plan, err := c.dayPlan(ctx, staffID, d, true)
	if err != nil {
		return nil, err
	}
	if !plan.open {
		return []Slot{}, nil
	}

	free := interval.Complement(plan.window, plan.busy)
	cands := Candidates(free, res.Minutes, c.cfg.StepMinutes)

	now := c.now()
	want := time.Duration(res.Minutes) * time.Minute
	slots := make([]Slot, 0, len(cands))
	for _, cand := range cands {
		startAt, err := c.conv.WallMinutesToUTC(d, cand.Start)
		if err != nil {
			return nil, err
		}
		endAt, err := c.conv.WallMinutesToUTC(d, cand.End)
		if err != nil {
			return nil, err
		}
		// On DST transition days some wall-clock windows are shorter or longer than
		// their minute count; only offer slots that really last the duration.
		if endAt.Sub(startAt) != want {
			continue
		}
		if c.cfg.SkipPast && startAt.Before(now) {
			continue
		}
		slots = append(slots, Slot{
			StartAt:      startAt,
			EndAt:        endAt,
			StartMinutes: cand.Start,
			EndMinutes:   cand.End,
		})
	}

	c.logger.Debug("free slots computed",
		"staff_id", staffID,
		"date", d.String(),
		"duration_minutes", res.Minutes,
		"busy", len(plan.busy),
		"slots", len(slots),
	)
	return slots, nil
}

// Fits reports whether [start, end) lies inside one local day's working window and
// clear of time-off. Appointments are not consulted; the committer re-checks those
// under the staff lock.
func (c *Computer) Fits(ctx context.Context, staffID string, start, end time.Time) (bool, error) {
	if !end.After(start) {
		return false, nil
	}
	d := c.conv.DateOf(start)
	plan, err := c.dayPlan(ctx, staffID, d, false)
	if err != nil {
		return false, err
	}
	if !plan.open {
		return false, nil
	}
	if end.After(plan.dayEnd) {
		return false, nil
	}

	want := interval.Interval{
		Start: c.conv.UTCToWallMinutes(d, start),
		End:   civiltime.MinutesPerDay,
	}
	if end.Before(plan.dayEnd) {
		want.End = c.conv.UTCToWallMinutesCeil(d, end)
	}
	if want.Start < plan.window.Start || want.End > plan.window.End {
		return false, nil
	}
	for _, b := range plan.busy {
		if b.Overlaps(want) {
			return false, nil
		}
	}
	return true, nil
}

func (c *Computer) requireStaff(ctx context.Context, staffID string) error {
	if _, err := uuid.Parse(staffID); err != nil {
		return fmt.Errorf("%w: staff_id must be a uuid", model.ErrValidation)
	}
	staff, ok, err := c.store.GetStaff(ctx, staffID)
	if err != nil {
		return fmt.Errorf("load staff: %w", err)
	}
	if !ok || !staff.IsActive {
		return fmt.Errorf("%w: staff %s", model.ErrNotFound, staffID)
	}
	return nil
}

type dayPlan struct {
	open     bool
	window   interval.Interval
	busy     []interval.Interval // merged, clipped to window
	dayStart time.Time
	dayEnd   time.Time
}

func (c *Computer) dayPlan(ctx context.Context, staffID string, d civiltime.Date, withAppointments bool) (dayPlan, error) {
	var plan dayPlan

	wh, ok, err := c.store.GetWorkingHours(ctx, staffID, int(c.conv.Weekday(d)))
	if err != nil {
		return plan, fmt.Errorf("load working hours: %w", err)
	}
	if !ok || !wh.Open() {
		return plan, nil
	}
	plan.open = true
	plan.window = interval.Interval{Start: wh.StartMinute, End: wh.EndMinute}

	plan.dayStart, plan.dayEnd, err = c.conv.DayRange(d)
	if err != nil {
		return plan, fmt.Errorf("%w: %w", model.ErrValidation, err)
	}

	var busy []interval.Interval

	offs, err := c.store.ListTimeOff(ctx, staffID, d)
	if err != nil {
		return plan, fmt.Errorf("load time off: %w", err)
	}
	for _, off := range offs {
		if iv, ok := interval.Clip(interval.Interval{Start: off.StartMinute, End: off.EndMinute}, plan.window); ok {
			busy = append(busy, iv)
		}
	}

	if withAppointments {
		buf := c.Buffer()
		appts, err := c.store.ListBlockingAppointments(ctx, staffID, plan.dayStart.Add(-buf), plan.dayEnd.Add(buf))
		if err != nil {
			return plan, fmt.Errorf("load appointments: %w", err)
		}
		for _, a := range appts {
			if !a.Blocks() {
				continue
			}
			if iv, ok := c.projectAppointment(d, plan, a.StartAt.Add(-buf), a.EndAt.Add(buf)); ok {
				busy = append(busy, iv)
			}
		}
	}

	plan.busy = interval.MergeSorted(busy)
	return plan, nil
}

// projectAppointment maps an instant window onto wall minutes of d. Instants outside
// the civil day are pinned to its edges first so a booking that crosses midnight
// projects to 0 or 1440 instead of the neighbouring day's clock reading. The start is
// floored and the end ceiled so partial minutes always count as busy.
func (c *Computer) projectAppointment(d civiltime.Date, plan dayPlan, start, end time.Time) (interval.Interval, bool) {
	if !end.After(plan.dayStart) || !start.Before(plan.dayEnd) {
		return interval.Interval{}, false
	}
	iv := interval.Interval{Start: 0, End: civiltime.MinutesPerDay}
	if start.After(plan.dayStart) {
		iv.Start = c.conv.UTCToWallMinutes(d, start)
	}
	if end.Before(plan.dayEnd) {
		iv.End = c.conv.UTCToWallMinutesCeil(d, end)
	}
	return interval.Clip(iv, plan.window)
}
