package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/salonslots/libs/db"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/outbox"
)

type BookingRepository struct {
	*ScheduleRepository
	outbox *outbox.Repository
}

func NewBookingRepository(pool *db.Pool, outboxRepo *outbox.Repository) *BookingRepository {
	return &BookingRepository{
		ScheduleRepository: NewScheduleRepository(pool),
		outbox:             outboxRepo,
	}
}

func (r *BookingRepository) Begin(ctx context.Context) (booking.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx, outbox: r.outbox}, nil
}

// TransitionStatus moves an appointment along the status machine under a row lock and
// records the change in the outbox. Moving to the current status is a no-op.
func (r *BookingRepository) TransitionStatus(ctx context.Context, appointmentID string, to model.Status) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`, appointmentID))
	if IsNotFound(err) {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s", model.ErrNotFound, appointmentID)
	}
	if err != nil {
		return model.Appointment{}, err
	}

	from := appt.Status
	if err := appt.Transition(to); err != nil {
		return model.Appointment{}, err
	}
	if from == to {
		return appt, tx.Commit(ctx)
	}

	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, appointmentID, string(appt.Status)).Scan(&appt.UpdatedAt)
	if err != nil {
		return model.Appointment{}, err
	}

	evt, err := outbox.AppointmentStatusChanged(appt, from, appt.UpdatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// SoftDelete marks the appointment deleted without touching its status. A deleted row
// never blocks.
func (r *BookingRepository) SoftDelete(ctx context.Context, appointmentID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, appointmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: appointment %s", model.ErrNotFound, appointmentID)
	}
	return nil
}

type pgTx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

// LockStaff holds the staff row until commit or rollback. Every booking for the same
// staff member queues here.
func (t *pgTx) LockStaff(ctx context.Context, staffID string) (model.Staff, bool, error) {
	var st model.Staff
	err := t.tx.QueryRow(ctx, `
		SELECT id::text, name, is_active
		FROM staff
		WHERE id = $1
		FOR UPDATE
	`, staffID).Scan(&st.ID, &st.Name, &st.IsActive)
	if IsNotFound(err) {
		return model.Staff{}, false, nil
	}
	if err != nil {
		return model.Staff{}, false, err
	}
	return st, true, nil
}

func (t *pgTx) HasBlockingOverlap(ctx context.Context, staffID string, start, end time.Time) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE staff_id = $1
				AND deleted_at IS NULL
				AND status = ANY($2)
				AND start_at < $4
				AND end_at > $3
		)
	`, staffID, model.BlockingStatuses(), start, end).Scan(&exists)
	return exists, err
}

// FindOrCreateClient matches on phone first, then case-insensitive email.
func (t *pgTx) FindOrCreateClient(ctx context.Context, c model.Client) (string, error) {
	var id string
	err := t.tx.QueryRow(ctx, `
		SELECT id::text
		FROM clients
		WHERE ($1 <> '' AND phone = $1)
			OR ($2 <> '' AND lower(email) = lower($2))
		ORDER BY (phone = $1) DESC NULLS LAST, created_at ASC
		LIMIT 1
	`, c.Phone, c.Email).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !IsNotFound(err) {
		return "", err
	}

	err = t.tx.QueryRow(ctx, `
		INSERT INTO clients (name, phone, email)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))
		RETURNING id::text
	`, c.Name, c.Phone, c.Email).Scan(&id)
	return id, err
}

func (t *pgTx) InsertAppointment(ctx context.Context, appt model.Appointment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, staff_id, service_id, client_id, start_at, end_at, status, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9)
	`, appt.ID, appt.StaffID, appt.ServiceID, appt.ClientID, appt.StartAt, appt.EndAt,
		string(appt.Status), appt.CreatedAt, appt.UpdatedAt)
	if IsConflict(err) {
		return model.ErrSlotTaken
	}
	return err
}

func (t *pgTx) EnqueueEvent(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// IsConflict reports an exclusion-constraint violation on appointments.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
