// Package booking commits a chosen slot. The staff row lock taken at the start of the
// transaction serialises every conflict check and insert for one staff member.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	otelx "github.com/md-rashed-zaman/salonslots/libs/otel"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/outbox"
)

// Tx is one unit of work. Rollback after Commit must be a no-op so callers can defer it.
type Tx interface {
	// LockStaff takes an exclusive lock on the staff member until the tx ends.
	LockStaff(ctx context.Context, staffID string) (model.Staff, bool, error)
	HasBlockingOverlap(ctx context.Context, staffID string, start, end time.Time) (bool, error)
	FindOrCreateClient(ctx context.Context, c model.Client) (string, error)
	// InsertAppointment returns model.ErrSlotTaken if the store itself rejects an overlap.
	InsertAppointment(ctx context.Context, appt model.Appointment) error
	EnqueueEvent(ctx context.Context, evt outbox.Event) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Store interface {
	catalog.ServiceReader
	GetStaff(ctx context.Context, staffID string) (model.Staff, bool, error)
	Begin(ctx context.Context) (Tx, error)
}

// HoursChecker is satisfied by *availability.Computer.
type HoursChecker interface {
	Fits(ctx context.Context, staffID string, start, end time.Time) (bool, error)
}

type Config struct {
	BufferMinutes     int
	CheckWorkingHours bool
}

type ClientInfo struct {
	Name  string
	Phone string
	Email string
}

type Request struct {
	StaffID  string
	Duration catalog.Spec
	StartAt  time.Time
	Client   ClientInfo
}

type Result struct {
	AppointmentID string
	ClientID      string
	StartAt       time.Time
	EndAt         time.Time
	Status        model.Status
}

type Committer struct {
	store  Store
	hours  HoursChecker
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer
	newID  func() string
	now    func() time.Time
}

// NewCommitter builds a committer. hours may be nil, which disables the working-hours
// guard regardless of cfg.
func NewCommitter(store Store, hours HoursChecker, cfg Config, logger *slog.Logger) *Committer {
	if cfg.BufferMinutes < 0 {
		cfg.BufferMinutes = 0
	}
	return &Committer{
		store:  store,
		hours:  hours,
		cfg:    cfg,
		logger: logger,
		tracer: otelx.Tracer("booking"),
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

type prepared struct {
	staffID   string
	serviceID string
	start     time.Time
	end       time.Time
	client    model.Client
}

// Commit books [StartAt, StartAt+duration) for the staff member as a PENDING
// appointment. It returns model.ErrSlotTaken when a blocking appointment overlaps the
// window. Validation and not-found errors are raised before any transaction is opened.
func (c *Committer) Commit(ctx context.Context, req Request) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "booking.Commit", trace.WithAttributes(
		attribute.String("staff_id", req.StaffID),
	))
	defer span.End()

	p, err := c.prepare(ctx, req)
	if err != nil {
		if !errors.Is(err, model.ErrValidation) && !errors.Is(err, model.ErrNotFound) {
			c.logger.Error("booking prerequisites load failed", "staff_id", req.StaffID, "err", err)
			err = fmt.Errorf("%w: %w", model.ErrInternal, err)
		}
		span.RecordError(err)
		return Result{}, err
	}
	span.SetAttributes(
		attribute.String("start_at", p.start.Format(time.RFC3339)),
		attribute.String("end_at", p.end.Format(time.RFC3339)),
	)

	res, err := c.commit(ctx, p)
	switch {
	case err == nil:
		c.logger.Info("appointment booked",
			"appointment_id", res.AppointmentID,
			"staff_id", p.staffID,
			"start_at", p.start,
			"end_at", p.end,
		)
		return res, nil
	case errors.Is(err, model.ErrSlotTaken):
		c.logger.Info("slot taken", "staff_id", p.staffID, "start_at", p.start, "end_at", p.end)
		span.SetAttributes(attribute.Bool("conflict", true))
		return Result{}, model.ErrSlotTaken
	case errors.Is(err, model.ErrNotFound):
		return Result{}, err
	default:
		c.logger.Error("booking commit failed",
			"staff_id", p.staffID,
			"start_at", p.start,
			"end_at", p.end,
			"err", err,
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit")
		return Result{}, fmt.Errorf("%w: %w", model.ErrInternal, err)
	}
}

func (c *Committer) prepare(ctx context.Context, req Request) (prepared, error) {
	var p prepared

	staffID := strings.TrimSpace(req.StaffID)
	if _, err := uuid.Parse(staffID); err != nil {
		return p, fmt.Errorf("%w: staff_id must be a uuid", model.ErrValidation)
	}
	if req.StartAt.IsZero() {
		return p, fmt.Errorf("%w: start_at is required", model.ErrValidation)
	}
	client := model.Client{
		Name:  strings.TrimSpace(req.Client.Name),
		Phone: strings.TrimSpace(req.Client.Phone),
		Email: strings.ToLower(strings.TrimSpace(req.Client.Email)),
	}
	if client.Name == "" {
		return p, fmt.Errorf("%w: client name is required", model.ErrValidation)
	}
	if client.Phone == "" && client.Email == "" {
		return p, fmt.Errorf("%w: client phone or email is required", model.ErrValidation)
	}
	if err := req.Duration.Validate(); err != nil {
		return p, err
	}

	res, err := catalog.Resolve(ctx, c.store, req.Duration)
	if err != nil {
		return p, fmt.Errorf("resolve duration: %w", err)
	}
	if len(res.Missing) > 0 || len(res.Unbookable) > 0 {
		return p, fmt.Errorf("%w: services %s", model.ErrNotFound, strings.Join(append(res.Missing, res.Unbookable...), ","))
	}
	if !res.Valid() {
		return p, fmt.Errorf("%w: duration must be between 1 and %d minutes", model.ErrValidation, catalog.MaxDurationMinutes)
	}

	staff, ok, err := c.store.GetStaff(ctx, staffID)
	if err != nil {
		return p, fmt.Errorf("load staff: %w", err)
	}
	if !ok || !staff.IsActive {
		return p, fmt.Errorf("%w: staff %s", model.ErrNotFound, staffID)
	}

	p.staffID = staffID
	p.serviceID = res.ServiceID
	p.start = req.StartAt.UTC()
	p.end = p.start.Add(time.Duration(res.Minutes) * time.Minute)
	p.client = client

	if c.cfg.CheckWorkingHours && c.hours != nil {
		fits, err := c.hours.Fits(ctx, p.staffID, p.start, p.end)
		if err != nil {
			return p, fmt.Errorf("check working hours: %w", err)
		}
		if !fits {
			return p, fmt.Errorf("%w: outside working hours", model.ErrValidation)
		}
	}
	return p, nil
}

func (c *Committer) commit(ctx context.Context, p prepared) (Result, error) {
	tx, err := c.store.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	staff, ok, err := tx.LockStaff(ctx, p.staffID)
	if err != nil {
		return Result{}, fmt.Errorf("lock staff: %w", err)
	}
	if !ok || !staff.IsActive {
		return Result{}, fmt.Errorf("%w: staff %s", model.ErrNotFound, p.staffID)
	}

	buf := time.Duration(c.cfg.BufferMinutes) * time.Minute
	taken, err := tx.HasBlockingOverlap(ctx, p.staffID, p.start.Add(-buf), p.end.Add(buf))
	if err != nil {
		return Result{}, fmt.Errorf("overlap check: %w", err)
	}
	if taken {
		return Result{}, model.ErrSlotTaken
	}

	clientID, err := tx.FindOrCreateClient(ctx, p.client)
	if err != nil {
		return Result{}, fmt.Errorf("resolve client: %w", err)
	}

	now := c.now().UTC()
	appt := model.Appointment{
		ID:        c.newID(),
		StaffID:   p.staffID,
		ServiceID: p.serviceID,
		ClientID:  clientID,
		StartAt:   p.start,
		EndAt:     p.end,
		Status:    model.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.InsertAppointment(ctx, appt); err != nil {
		if errors.Is(err, model.ErrSlotTaken) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("insert appointment: %w", err)
	}

	evt, err := outbox.AppointmentBooked(appt)
	if err != nil {
		return Result{}, fmt.Errorf("build event: %w", err)
	}
	if err := tx.EnqueueEvent(ctx, evt); err != nil {
		return Result{}, fmt.Errorf("enqueue event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("commit: %w", err)
	}
	return Result{
		AppointmentID: appt.ID,
		ClientID:      clientID,
		StartAt:       appt.StartAt,
		EndAt:         appt.EndAt,
		Status:        appt.Status,
	}, nil
}
