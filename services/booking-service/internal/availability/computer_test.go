package availability

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/civiltime"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/storage/memstore"
)

const (
	staffID = "5f8c3a52-6a9e-4d0c-9d1e-2b3c4d5e6f70"
	// 2026-03-02 is a Monday.
	monday = "2026-03-02"

	cutID  = "9a1e0c4e-1b2d-4f6a-8c3e-000000000001"
	washID = "9a1e0c4e-1b2d-4f6a-8c3e-000000000002"
	oldID  = "9a1e0c4e-1b2d-4f6a-8c3e-000000000003"
)

func newTestComputer(t *testing.T, tz string, cfg Config) (*Computer, *memstore.Store) {
	t.Helper()
	conv, err := civiltime.NewConverter(tz)
	require.NoError(t, err)
	store := memstore.New()
	store.PutStaff(model.Staff{ID: staffID, Name: "Anna", IsActive: true})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewComputer(store, conv, cfg, logger), store
}

func mustUTC(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func minutesOf(slots []Slot) [][2]int {
	out := make([][2]int, 0, len(slots))
	for _, s := range slots {
		out = append(out, [2]int{s.StartMinutes, s.EndMinutes})
	}
	return out
}

func TestFreeSlots_GapAroundAppointment(t *testing.T) {
	c, store := newTestComputer(t, "Europe/Moscow", Config{StepMinutes: 5})
	store.PutWorkingHours(model.WorkingHours{StaffID: staffID, Weekday: 1, StartMinute: 540, EndMinute: 1080})
	store.PutAppointment(model.Appointment{
		ID: "a1", StaffID: staffID, Status: model.StatusPending,
		StartAt: mustUTC(t, "2026-03-02T07:00:00Z"),
		EndAt:   mustUTC(t, "2026-03-02T07:30:00Z"),
	})

	slots, err := c.FreeSlots(context.Background(), monday, staffID, catalog.Spec{Minutes: 30})
	require.NoError(t, err)
	got := minutesOf(slots)

	require.Len(t, got, 7+85)
	assert.Equal(t, [2]int{540, 570}, got[0])
	assert.Equal(t, [2]int{570, 600}, got[6])
	assert.Equal(t, [2]int{630, 660}, got[7])
	assert.Equal(t, [2]int{1050, 1080}, got[len(got)-1])
	for _, s := range got {
		assert.False(t, s[0] < 630 && s[1] > 600, "slot %v intersects the appointment", s)
	}

	assert.Equal(t, mustUTC(t, "2026-03-02T06:00:00Z"), slots[0].StartAt)
	assert.Equal(t, mustUTC(t, "2026-03-02T06:30:00Z"), slots[0].EndAt)
}

func TestFreeSlots_TimeOffCoversWholeWindow(t *testing.T) {
	c, store := newTestComputer(t, "Europe/Moscow", Config{})
	store.PutWorkingHours(model.WorkingHours{StaffID: staffID, Weekday: 1, StartMinute: 540, EndMinute: 1080})
	store.PutTimeOff(model.TimeOff{
		StaffID: staffID, Day: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		StartMinute: 540, EndMinute: 1080,
	})

	slots, err := c.FreeSlots(context.Background(), monday, staffID, catalog.Spec{Minutes: 30})
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestFreeSlots_TimeOffOnOtherDayIgnored(t *testing.T) {
	c, store := newTestComputer(t, "Europe/Moscow", Config{StepMinutes: 30})
	store.PutWorkingHours(model.WorkingHours{StaffID: staffID, Weekday: 1, StartMinute: 540, EndMinute: 600})
	store.PutTimeOff(model.TimeOff{
		StaffID: staffID, Day: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		StartMinute: 0, EndMinute: 1440,
	})

	slots, err := c.FreeSlots(context.Background(), monday, staffID, catalog.Spec{Minutes: 30})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{540, 570}, {570, 600}}, minutesOf(slots))
}

func TestFreeSlots_ClosedOrMissingDay(t *testing.T) {
	c, store := newTestComputer(t, "Europe/Moscow", Config{})

	slots, err := c.FreeSlots(context.Background(), monday, staffID, catalog.Spec{Minutes: 30})
	require.NoError(t, err)
	assert.Empty(t, slots)

	store.PutWorkingHours(model.WorkingHours{StaffID: staffID, Weekday: 1, IsClosed: true, StartMinute: 540, EndMinute: 1080})
	slots, err = c.FreeSlots(context.Background(), monday, staffID, catalog.Spec{Minutes: 30})
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestFreeSlots_Errors(t *testing.T) {
	c, _ := newTestComputer(t, "Europe/Moscow", Config{})
	ctx := context.Background()

	_, err := c.FreeSlots(ctx, "2026-02-30", staffID, catalog.Spec{Minutes: 30})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = c.FreeSlots(ctx, monday, "not-a-uuid", catalog.Spec{Minutes: 30})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = c.FreeSlots(ctx, monday, "00000000-0000-0000-0000-000000000001", catalog.Spec{Minutes: 30})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = c.FreeSlots(ctx, monday, staffID, catalog.Spec{ServiceIDs: []string{cutID, "foo"}})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestFreeSlots_InvalidDurationIsEmpty(t *testing.T) {
	c, store := newTestComputer(t, "Europe/Moscow", Config{})
	store.PutWorkingHours(model.WorkingHours{StaffID: staffID, Weekday: 1, StartMinute: 540, EndMinute: 1080})

	for _, spec := range []catalog.Spec{
		{Minutes: 0},
		{Minutes: -15},
		{ServiceIDs: []string{"9a1e0c4e-1b2d-4f6a-8c3e-0000000000ff"}},
	} {
		slots, err := c.FreeSlots(context.Background(), monday, staffID, spec)
		require.NoError(t, err)
		assert.Empty(t, slots)
	}
}

func TestFreeSlots_ServicesSumDurations(t *testing.T) {
	c, store := newTestComputer(t, "Europe/Moscow", Config{StepMinutes: 15})
	store.PutWorkingHours(model.WorkingHours{StaffID: staffID, Weekday: 1, StartMinute: 540, EndMinute: 630})
	store.PutService(model.Service{ID: cutID, DurationMins: 20, IsActive: true})
	store.PutService(model.Service{ID: washID, DurationMins: 25, IsActive: true})
	store.PutService(model.Service{ID: oldID, DurationMins: 60, IsActive: true, IsArchived: true})

	slots, err := c.FreeSlots(context.Background(), monday, staffID, catalog.Spec{ServiceIDs: []string{cutID, washID, oldID}})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{540, 585}, {555, 600}, {570, 615}, {585, 630}}, minutesOf(slots))
}

func TestFreeSlots_Idempotent(t *testing.T) {
	c, store := newTestComputer(t, "Europe/Moscow", Config{})
	store.PutWorkingHours(model.WorkingHours{StaffID: staffID, Weekday: 1, StartMinute: 540, EndMinute: 1080})
	store.PutAppointment(model.Appointment{
		ID: "a1", StaffID: staffID, Status: model.StatusConfirmed,
		StartAt: mustUTC(t, "2026-03-02T09:00:00Z"),
		EndAt:   mustUTC(t, "2026-03-02T10:15:00Z"),
	})

	first, err := c.FreeSlots(context.Background(), monday, staffID, catalog.Spec{Minutes: 45})
	require.NoError(t, err)
	second, err := c.FreeSlots(context.Background(), monday, staffID, catalog.Spec{Minutes: 45})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFreeSlots_NonBlockingAppointmentsIgnored(t *testing.T) {
	c, store := newTestComputer(t, "Europe/Moscow", Config{StepMinutes: 30})
	store.PutWorkingHours(model.WorkingHours{StaffID: staffID, Weekday: 1, StartMinute: 540, EndMinute: 600})
	deleted := mustUTC(t, "2026-03-01T00:00:00Z")
	for i, st := range []model.Status{model.StatusDone, model.StatusCanceled} {
		store.PutAppointment(model.Appointment{
			ID: string(rune('a' + i)), StaffID: staffID, Status: st,
			StartAt: mustUTC(t, "2026-03-02T06:00:00Z"),
			EndAt:   mustUTC(t, "2026-03-02T07:00:00Z"),
		})
	}
	store.PutAppointment(model.Appointment{
		ID: "soft", StaffID: staffID, Status: model.StatusPending, DeletedAt: &deleted,
		StartAt: mustUTC(t, "2026-03-02T06:00:00Z"),
		EndAt:   mustUTC(t, "2026-03-02T07:00:00Z"),
	})

	slots, err := c.FreeSlots(context.Background(), monday, staffID, catalog.Spec{Minutes: 30})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{540, 570}, {570, 600}}, minutesOf(slots))
}

func TestFreeSlots_SubMinuteAppointmentRounding(t *testing.T) {
	c, store := newTestComputer(t, "Europe/Moscow", Config{StepMinutes: 5})
	store.PutWorkingHours(model.WorkingHours{StaffID: staffID, Weekday: 1, StartMinute: 540, EndMinute: 700})
	store.PutAppointment(model.Appointment{
		ID: "a1", StaffID: staffID, Status: model.StatusPending,
		StartAt: mustUTC(t, "2026-03-02T07:00:30Z"),
		EndAt:   mustUTC(t, "2026-03-02T07:29:30Z"),
	})

	slots, err := c.FreeSlots(context.Background(), monday, staffID, catalog.Spec{Minutes: 30})
	require.NoError(t, err)
	for _, s := range minutesOf(slots) {
		assert.False(t, s[0] < 630 && s[1] > 600, "slot %v intersects the floored/ceiled appointment", s)
	}
	assert.Contains(t, minutesOf(slots), [2]int{570, 600})
	assert.Contains(t, minutesOf(slots), [2]int{630, 660})
}

func TestFreeSlots_AppointmentCrossingMidnight(t *testing.T) {
	c, store := newTestComputer(t, "Europe/Moscow", Config{StepMinutes: 60})
	store.PutWorkingHours(model.WorkingHours{StaffID: staffID, Weekday: 1, StartMinute: 0, EndMinute: 240})
	// Sunday 23:00 to Monday 01:00 local.
	store.PutAppointment(model.Appointment{
		ID: "late", StaffID: staffID, Status: model.StatusConfirmed,
		StartAt: mustUTC(t, "2026-03-01T20:00:00Z"),
		EndAt:   mustUTC(t, "2026-03-01T22:00:00Z"),
	})

	slots, err := c.FreeSlots(context.Background(), monday, staffID, catalog.Spec{Minutes: 60})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{60, 120}, {120, 180}, {180, 240}}, minutesOf(slots))
}

func TestFreeSlots_SpringForwardDay(t *testing.T) {
	c, store := newTestComputer(t, "America/New_York", Config{StepMinutes: 30})
	// 2026-03-08 is a Sunday; clocks jump from 02:00 to 03:00.
	store.PutWorkingHours(model.WorkingHours{StaffID: staffID, Weekday: 0, StartMinute: 540, EndMinute: 600})

	slots, err := c.FreeSlots(context.Background(), "2026-03-08", staffID, catalog.Spec{Minutes: 30})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, mustUTC(t, "2026-03-08T13:00:00Z"), slots[0].StartAt)
	assert.Equal(t, mustUTC(t, "2026-03-08T13:30:00Z"), slots[1].StartAt)
}

func TestFreeSlots_HoursSpanningSpringForwardGap(t *testing.T) {
	c, store := newTestComputer(t, "America/New_York", Config{StepMinutes: 30})
	store.PutWorkingHours(model.WorkingHours{StaffID: staffID, Weekday: 0, StartMinute: 60, EndMinute: 240})

	slots, err := c.FreeSlots(context.Background(), "2026-03-08", staffID, catalog.Spec{Minutes: 60})
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, mustUTC(t, "2026-03-08T06:00:00Z"), slots[0].StartAt) // 01:00 EST
	assert.Equal(t, mustUTC(t, "2026-03-08T06:30:00Z"), slots[1].StartAt)
	assert.Equal(t, mustUTC(t, "2026-03-08T07:00:00Z"), slots[2].StartAt) // 03:00 EDT
	for i, s := range slots {
		assert.Equal(t, time.Hour, s.EndAt.Sub(s.StartAt), "slot %d", i)
		if i > 0 {
			assert.True(t, s.StartAt.After(slots[i-1].StartAt), "slot %d out of order", i)
		}
	}
}

func TestFreeSlots_HoursSpanningFallBackRepeat(t *testing.T) {
	c, store := newTestComputer(t, "America/New_York", Config{StepMinutes: 60})
	// 2026-11-01 is a Sunday; 01:00-02:00 happens twice.
	store.PutWorkingHours(model.WorkingHours{StaffID: staffID, Weekday: 0, StartMinute: 0, EndMinute: 240})

	slots, err := c.FreeSlots(context.Background(), "2026-11-01", staffID, catalog.Spec{Minutes: 60})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 60}, {120, 180}, {180, 240}}, minutesOf(slots))
	for _, s := range slots {
		assert.Equal(t, time.Hour, s.EndAt.Sub(s.StartAt))
	}
}

func TestFreeSlots_Buffer(t *testing.T) {
	c, store := newTestComputer(t, "Europe/Moscow", Config{StepMinutes: 5, BufferMinutes: 15})
	store.PutWorkingHours(model.WorkingHours{StaffID: staffID, Weekday: 1, StartMinute: 540, EndMinute: 720})
	store.PutAppointment(model.Appointment{
		ID: "a1", StaffID: staffID, Status: model.StatusPending,
		StartAt: mustUTC(t, "2026-03-02T07:00:00Z"),
		EndAt:   mustUTC(t, "2026-03-02T07:30:00Z"),
	})

	slots, err := c.FreeSlots(context.Background(), monday, staffID, catalog.Spec{Minutes: 30})
	require.NoError(t, err)
	got := minutesOf(slots)
	assert.Contains(t, got, [2]int{555, 585})
	assert.NotContains(t, got, [2]int{560, 590})
	assert.NotContains(t, got, [2]int{640, 670})
	assert.Contains(t, got, [2]int{645, 675})
}

func TestFreeSlots_SkipPast(t *testing.T) {
	c, store := newTestComputer(t, "Europe/Moscow", Config{StepMinutes: 60, SkipPast: true})
	store.PutWorkingHours(model.WorkingHours{StaffID: staffID, Weekday: 1, StartMinute: 540, EndMinute: 780})
	c.now = func() time.Time { return mustUTC(t, "2026-03-02T08:10:00Z") } // 11:10 local

	slots, err := c.FreeSlots(context.Background(), monday, staffID, catalog.Spec{Minutes: 60})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{720, 780}}, minutesOf(slots))
}

func TestFits(t *testing.T) {
	c, store := newTestComputer(t, "Europe/Moscow", Config{})
	store.PutWorkingHours(model.WorkingHours{StaffID: staffID, Weekday: 1, StartMinute: 540, EndMinute: 1080})
	store.PutTimeOff(model.TimeOff{
		StaffID: staffID, Day: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		StartMinute: 780, EndMinute: 840,
	})
	// Pending appointments are not the guard's concern.
	store.PutAppointment(model.Appointment{
		ID: "a1", StaffID: staffID, Status: model.StatusPending,
		StartAt: mustUTC(t, "2026-03-02T07:00:00Z"),
		EndAt:   mustUTC(t, "2026-03-02T07:30:00Z"),
	})
	ctx := context.Background()

	cases := []struct {
		name       string
		start, end string
		want       bool
	}{
		{"inside", "2026-03-02T07:00:00Z", "2026-03-02T07:30:00Z", true},
		{"ends on window end", "2026-03-02T14:30:00Z", "2026-03-02T15:00:00Z", true},
		{"before opening", "2026-03-02T05:45:00Z", "2026-03-02T06:15:00Z", false},
		{"after closing", "2026-03-02T14:45:00Z", "2026-03-02T15:15:00Z", false},
		{"overlaps time off", "2026-03-02T09:45:00Z", "2026-03-02T10:15:00Z", false},
		{"touches time off", "2026-03-02T09:30:00Z", "2026-03-02T10:00:00Z", true},
		{"closed sunday", "2026-03-01T07:00:00Z", "2026-03-01T07:30:00Z", false},
		{"empty window", "2026-03-02T07:00:00Z", "2026-03-02T07:00:00Z", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Fits(ctx, staffID, mustUTC(t, tc.start), mustUTC(t, tc.end))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
