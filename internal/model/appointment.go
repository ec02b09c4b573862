package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "Scheduled"
	AppointmentStatusCompleted AppointmentStatus = "Completed"
	AppointmentStatusCancelled AppointmentStatus = "Cancelled"
)

func (s AppointmentStatus) IsValid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusCompleted, AppointmentStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s AppointmentStatus) IsTerminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled
}

// CanTransitionTo reports whether s -> next is an edge of the lifecycle.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	return s == AppointmentStatusScheduled &&
		(next == AppointmentStatusCompleted || next == AppointmentStatusCancelled)
}

type Appointment struct {
	ID                 uuid.UUID         `db:"id" json:"id"`
	PatientID          uuid.UUID         `db:"patient_id" json:"patientId"`
	PatientName        string            `db:"patient_name" json:"patientName"`
	DoctorID           uuid.UUID         `db:"doctor_id" json:"doctorId"`
	DoctorName         string            `db:"doctor_name" json:"doctorName"`
	Age                int               `db:"age" json:"age"`
	Gender             string            `db:"gender" json:"gender"`
	ContactNumber      string            `db:"contact_number" json:"contactNumber,omitempty"`
	Department         string            `db:"department" json:"department"`
	Reason             string            `db:"reason" json:"reason"`
	IssueDays          int               `db:"issue_days" json:"issueDays"`
	AppointmentDate    Date              `db:"appointment_date" json:"appointmentDate"`
	AppointmentTime    string            `db:"appointment_time" json:"appointmentTime"`
	Status             AppointmentStatus `db:"status" json:"status"`
	PrescriptionGiven  bool              `db:"prescription_given" json:"prescriptionGiven"`
	FollowUpRequired   bool              `db:"follow_up_required" json:"followUpRequired"`
	FollowUpDate       *Date             `db:"follow_up_date" json:"followUpDate,omitempty"`
	CancellationReason *string           `db:"cancellation_reason" json:"cancellationReason,omitempty"`
	CreatedAt          time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time         `db:"updated_at" json:"updatedAt"`
}

// IsUpcoming reports whether the appointment is still ahead of the patient
// on day today. A terminal appointment is never upcoming.
func (a *Appointment) IsUpcoming(today Date) bool {
	return a.Status == AppointmentStatusScheduled && !a.AppointmentDate.Before(today)
}

// Completion describes the side effects of closing a consult.
type Completion struct {
	PrescriptionGiven bool
	FollowUpDate      *Date
}

type AppointmentFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *AppointmentStatus
}

type BookAppointmentRequest struct {
	PatientName string `json:"patientName" validate:"required,notblank,max=100"`
	Age         int    `json:"age" validate:"required,min=1,max=120"`
	Gender      string `json:"gender" validate:"required,oneof=Male Female Other"`

	// Optional here; only the booking form insists on a contact number.
	ContactNumber   string     `json:"contactNumber" validate:"omitempty,len=10,numeric"`
	Department      string     `json:"department" validate:"required,notblank,max=100"`
	Doctor          string     `json:"doctor" validate:"required_without=DoctorID,max=100"`
	DoctorID        *uuid.UUID `json:"doctorId,omitempty"`
	AppointmentDate Date       `json:"appointmentDate" validate:"required,notpast"`
	AppointmentTime string     `json:"appointmentTime" validate:"required,timeslot"`
	Reason          string     `json:"reason" validate:"required,notblank,max=500"`
	IssueDays       int        `json:"issueDays" validate:"required,min=1"`
}

type RescheduleAppointmentRequest struct {
	AppointmentDate *Date   `json:"appointmentDate,omitempty" validate:"omitempty,notpast"`
	AppointmentTime *string `json:"appointmentTime,omitempty" validate:"omitempty,timeslot"`
	Reason          *string `json:"reason,omitempty" validate:"omitnil,notblank,max=500"`
	IssueDays       *int    `json:"issueDays,omitempty" validate:"omitempty,min=1"`
	ContactNumber   *string `json:"contactNumber,omitempty" validate:"omitempty,len=10,numeric"`
}
