package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/salonslots/libs/db"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/civiltime"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/model"
)

// ScheduleRepository serves the read side of availability. Every call hits the
// database; nothing is cached.
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) GetStaff(ctx context.Context, staffID string) (model.Staff, bool, error) {
	var st model.Staff
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, is_active
		FROM staff
		WHERE id = $1
	`, staffID).Scan(&st.ID, &st.Name, &st.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Staff{}, false, nil
	}
	if err != nil {
		return model.Staff{}, false, err
	}
	return st, true, nil
}

// GetWorkingHours returns ok=false when no row exists, which callers treat as closed.
func (r *ScheduleRepository) GetWorkingHours(ctx context.Context, staffID string, weekday int) (model.WorkingHours, bool, error) {
	var wh model.WorkingHours
	err := r.pool.QueryRow(ctx, `
		SELECT staff_id::text, weekday, is_closed, start_minute, end_minute
		FROM staff_working_hours
		WHERE staff_id = $1 AND weekday = $2
	`, staffID, weekday).Scan(&wh.StaffID, &wh.Weekday, &wh.IsClosed, &wh.StartMinute, &wh.EndMinute)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.WorkingHours{}, false, nil
	}
	if err != nil {
		return model.WorkingHours{}, false, err
	}
	return wh, true, nil
}

func (r *ScheduleRepository) ListTimeOff(ctx context.Context, staffID string, day civiltime.Date) ([]model.TimeOff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, staff_id::text, day, start_minute, end_minute, reason
		FROM staff_time_off
		WHERE staff_id = $1 AND day = $2
		ORDER BY start_minute ASC
	`, staffID, day.UTCMidnight())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TimeOff
	for rows.Next() {
		var t model.TimeOff
		if err := rows.Scan(&t.ID, &t.StaffID, &t.Day, &t.StartMinute, &t.EndMinute, &t.Reason); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *ScheduleRepository) ListBlockingAppointments(ctx context.Context, staffID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = $1
			AND deleted_at IS NULL
			AND status = ANY($2)
			AND start_at < $4
			AND end_at > $3
		ORDER BY start_at ASC
	`, staffID, model.BlockingStatuses(), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *ScheduleRepository) GetServices(ctx context.Context, ids []string) ([]model.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, duration_minutes, is_active, is_archived
		FROM services
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.DurationMins, &s.IsActive, &s.IsArchived); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

const appointmentColumns = `id::text, staff_id::text, COALESCE(service_id::text, ''), client_id::text,
			start_at, end_at, status, deleted_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var status string
	err := row.Scan(
		&appt.ID,
		&appt.StaffID,
		&appt.ServiceID,
		&appt.ClientID,
		&appt.StartAt,
		&appt.EndAt,
		&status,
		&appt.DeletedAt,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.Status(status)
	return appt, nil
}
