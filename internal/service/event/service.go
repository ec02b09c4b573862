// Package event records lifecycle events in the outbox, in the same
// transaction as the state change they describe.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

// Event types double as broker channel names.
const (
	AppointmentBooked      = "appointment.booked"
	AppointmentRescheduled = "appointment.rescheduled"
	AppointmentCancelled   = "appointment.cancelled"
	AppointmentCompleted   = "appointment.completed"
	FollowUpDue            = "appointment.follow_up_due"
	PrescriptionCreated    = "prescription.created"
	PrescriptionUpdated    = "prescription.updated"
	PrescriptionDispensed  = "prescription.dispensed"
	UserVerified           = "user.verified"
)

// Types lists every event type, in the order subscribers register them.
var Types = []string{
	AppointmentBooked,
	AppointmentRescheduled,
	AppointmentCancelled,
	AppointmentCompleted,
	FollowUpDue,
	PrescriptionCreated,
	PrescriptionUpdated,
	PrescriptionDispensed,
	UserVerified,
}

// Event is the payload published for every type.
type Event struct {
	Type            string     `json:"type"`
	OccurredAt      time.Time  `json:"occurredAt"`
	AppointmentID   *uuid.UUID `json:"appointmentId,omitempty"`
	PrescriptionID  *uuid.UUID `json:"prescriptionId,omitempty"`
	UserID          uuid.UUID  `json:"userId"`
	PatientName     string     `json:"patientName,omitempty"`
	DoctorName      string     `json:"doctorName,omitempty"`
	Status          string     `json:"status,omitempty"`
	AppointmentDate string     `json:"appointmentDate,omitempty"`
	AppointmentTime string     `json:"appointmentTime,omitempty"`
	FollowUpDate    string     `json:"followUpDate,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	Actor           string     `json:"actor,omitempty"`
}

func ForAppointment(eventType string, apt *model.Appointment) Event {
	id := apt.ID
	e := Event{
		Type:            eventType,
		AppointmentID:   &id,
		UserID:          apt.PatientID,
		PatientName:     apt.PatientName,
		DoctorName:      apt.DoctorName,
		Status:          string(apt.Status),
		AppointmentDate: apt.AppointmentDate.String(),
		AppointmentTime: apt.AppointmentTime,
	}
	if apt.FollowUpDate != nil {
		e.FollowUpDate = apt.FollowUpDate.String()
	}
	if apt.CancellationReason != nil {
		e.Reason = *apt.CancellationReason
	}
	return e
}

func ForPrescription(eventType string, p *model.Prescription) Event {
	id, aptID := p.ID, p.AppointmentID
	e := Event{
		Type:           eventType,
		AppointmentID:  &aptID,
		PrescriptionID: &id,
		UserID:         p.PatientID,
		PatientName:    p.PatientName,
		DoctorName:     p.DoctorName,
		Status:         string(p.DispensedStatus),
	}
	if p.FollowUpDate != nil {
		e.FollowUpDate = p.FollowUpDate.String()
	}
	if p.DispensedBy != nil {
		e.Actor = *p.DispensedBy
	}
	return e
}

func ForUser(eventType string, u *model.User) Event {
	return Event{
		Type:   eventType,
		UserID: u.ID,
		Status: string(u.Role),
	}
}

// Recorder writes events to the outbox.
type Recorder struct {
	outboxRepo repository.OutboxRepository
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewRecorder(outboxRepo repository.OutboxRepository, m *metrics.Metrics) *Recorder {
	return &Recorder{
		outboxRepo: outboxRepo,
		metrics:    m,
		now:        time.Now,
	}
}

// Record must be called with the context of the transaction making the
// change, so the event is dropped if that transaction rolls back.
func (r *Recorder) Record(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = r.now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if err := r.outboxRepo.Create(ctx, &model.OutboxEvent{
		EventType: e.Type,
		Payload:   payload,
	}); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	if r.metrics != nil {
		r.metrics.OutboxEventsRecorded.WithLabelValues(e.Type).Inc()
	}
	return nil
}
