// Package memstore is an in-memory implementation of the availability and booking
// stores. Staff locks are real mutexes held for the life of a transaction, so it can
// stand in for Postgres in concurrency tests.
package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/civiltime"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/outbox"
)

var ErrTxDone = errors.New("memstore: transaction already finished")

type Store struct {
	mu       sync.Mutex
	staff    map[string]model.Staff
	hours    map[string]map[int]model.WorkingHours
	timeOff  map[string][]model.TimeOff
	services map[string]model.Service
	clients  []model.Client
	appts    []model.Appointment
	events   []outbox.Event

	lockMu     sync.Mutex
	staffLocks map[string]*sync.Mutex
}

func New() *Store {
	return &Store{
		staff:      make(map[string]model.Staff),
		hours:      make(map[string]map[int]model.WorkingHours),
		timeOff:    make(map[string][]model.TimeOff),
		services:   make(map[string]model.Service),
		staffLocks: make(map[string]*sync.Mutex),
	}
}

func (s *Store) PutStaff(st model.Staff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff[st.ID] = st
}

func (s *Store) PutWorkingHours(wh model.WorkingHours) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hours[wh.StaffID] == nil {
		s.hours[wh.StaffID] = make(map[int]model.WorkingHours)
	}
	s.hours[wh.StaffID][wh.Weekday] = wh
}

func (s *Store) PutTimeOff(off model.TimeOff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeOff[off.StaffID] = append(s.timeOff[off.StaffID], off)
}

func (s *Store) PutService(svc model.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

func (s *Store) PutClient(c model.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = append(s.clients, c)
}

// PutAppointment seeds a row directly, bypassing overlap checks.
func (s *Store) PutAppointment(a model.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appts = append(s.appts, a)
}

func (s *Store) Appointments() []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Appointment(nil), s.appts...)
}

func (s *Store) Clients() []model.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Client(nil), s.clients...)
}

func (s *Store) Events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Event(nil), s.events...)
}

func (s *Store) GetStaff(_ context.Context, staffID string) (model.Staff, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.staff[staffID]
	return st, ok, nil
}

func (s *Store) GetWorkingHours(_ context.Context, staffID string, weekday int) (model.WorkingHours, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wh, ok := s.hours[staffID][weekday]
	return wh, ok, nil
}

func (s *Store) ListTimeOff(_ context.Context, staffID string, day civiltime.Date) ([]model.TimeOff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TimeOff
	for _, off := range s.timeOff[staffID] {
		if civiltime.DateFromTime(off.Day) == day {
			out = append(out, off)
		}
	}
	return out, nil
}

func (s *Store) ListBlockingAppointments(_ context.Context, staffID string, from, to time.Time) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if a.StaffID == staffID && a.Blocks() && a.Overlaps(from, to) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (s *Store) GetServices(_ context.Context, ids []string) ([]model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Service
	for _, id := range ids {
		if svc, ok := s.services[id]; ok {
			out = append(out, svc)
		}
	}
	return out, nil
}

func (s *Store) Begin(_ context.Context) (booking.Tx, error) {
	return &tx{store: s}, nil
}

func (s *Store) staffLock(staffID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.staffLocks[staffID]
	if !ok {
		l = &sync.Mutex{}
		s.staffLocks[staffID] = l
	}
	return l
}

// tx buffers writes and applies them on Commit.
type tx struct {
	store  *Store
	held   []*sync.Mutex
	locked map[string]bool
	done   bool

	clients []model.Client
	appts   []model.Appointment
	events  []outbox.Event
}

func (t *tx) LockStaff(ctx context.Context, staffID string) (model.Staff, bool, error) {
	if t.done {
		return model.Staff{}, false, ErrTxDone
	}
	if !t.locked[staffID] {
		l := t.store.staffLock(staffID)
		l.Lock()
		t.held = append(t.held, l)
		if t.locked == nil {
			t.locked = make(map[string]bool)
		}
		t.locked[staffID] = true
	}
	return t.store.GetStaff(ctx, staffID)
}

func (t *tx) HasBlockingOverlap(_ context.Context, staffID string, start, end time.Time) (bool, error) {
	if t.done {
		return false, ErrTxDone
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return overlapsAny(t.store.appts, staffID, start, end) || overlapsAny(t.appts, staffID, start, end), nil
}

func (t *tx) FindOrCreateClient(_ context.Context, c model.Client) (string, error) {
	if t.done {
		return "", ErrTxDone
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, list := range [][]model.Client{t.store.clients, t.clients} {
		for _, existing := range list {
			if matchesClient(existing, c) {
				return existing.ID, nil
			}
		}
	}
	c.ID = uuid.NewString()
	t.clients = append(t.clients, c)
	return c.ID, nil
}

// InsertAppointment mirrors the Postgres exclusion constraint on committed rows.
func (t *tx) InsertAppointment(_ context.Context, appt model.Appointment) error {
	if t.done {
		return ErrTxDone
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if appt.Blocks() && overlapsAny(t.store.appts, appt.StaffID, appt.StartAt, appt.EndAt) {
		return model.ErrSlotTaken
	}
	t.appts = append(t.appts, appt)
	return nil
}

func (t *tx) EnqueueEvent(_ context.Context, evt outbox.Event) error {
	if t.done {
		return ErrTxDone
	}
	t.events = append(t.events, evt)
	return nil
}

func (t *tx) Commit(_ context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.store.mu.Lock()
	t.store.clients = append(t.store.clients, t.clients...)
	t.store.appts = append(t.store.appts, t.appts...)
	t.store.events = append(t.store.events, t.events...)
	t.store.mu.Unlock()
	t.finish()
	return nil
}

func (t *tx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *tx) finish() {
	t.done = true
	for _, l := range t.held {
		l.Unlock()
	}
	t.held = nil
}

func overlapsAny(appts []model.Appointment, staffID string, start, end time.Time) bool {
	for _, a := range appts {
		if a.StaffID == staffID && a.Blocks() && a.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func matchesClient(existing, c model.Client) bool {
	if c.Phone != "" && existing.Phone == c.Phone {
		return true
	}
	return c.Email != "" && strings.EqualFold(existing.Email, c.Email)
}
