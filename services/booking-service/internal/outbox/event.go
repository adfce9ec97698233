package outbox

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/model"
)

const (
	AggregateAppointment = "appointment"

	EventAppointmentBooked        = "appointment.booked.v1"
	EventAppointmentStatusChanged = "appointment.status_changed.v1"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type appointmentBookedPayload struct {
	AppointmentID string    `json:"appointment_id"`
	StaffID       string    `json:"staff_id"`
	ServiceID     string    `json:"service_id,omitempty"`
	ClientID      string    `json:"client_id"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	Status        string    `json:"status"`
}

type statusChangedPayload struct {
	AppointmentID string    `json:"appointment_id"`
	StaffID       string    `json:"staff_id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	ChangedAt     time.Time `json:"changed_at"`
}

func AppointmentBooked(appt model.Appointment) (Event, error) {
	payload, err := json.Marshal(appointmentBookedPayload{
		AppointmentID: appt.ID,
		StaffID:       appt.StaffID,
		ServiceID:     appt.ServiceID,
		ClientID:      appt.ClientID,
		StartAt:       appt.StartAt.UTC(),
		EndAt:         appt.EndAt.UTC(),
		Status:        string(appt.Status),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateAppointment,
		AggregateID:   appt.ID,
		EventType:     EventAppointmentBooked,
		Payload:       payload,
	}, nil
}

func AppointmentStatusChanged(appt model.Appointment, from model.Status, at time.Time) (Event, error) {
	payload, err := json.Marshal(statusChangedPayload{
		AppointmentID: appt.ID,
		StaffID:       appt.StaffID,
		From:          string(from),
		To:            string(appt.Status),
		ChangedAt:     at.UTC(),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateAppointment,
		AggregateID:   appt.ID,
		EventType:     EventAppointmentStatusChanged,
		Payload:       payload,
	}, nil
}
