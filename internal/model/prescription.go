package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type DispenseStatus string

const (
	DispenseStatusPending   DispenseStatus = "Pending"
	DispenseStatusDispensed DispenseStatus = "Dispensed"
	DispenseStatusCancelled DispenseStatus = "Cancelled"
)

func (s DispenseStatus) IsValid() bool {
	switch s {
	case DispenseStatusPending, DispenseStatusDispensed, DispenseStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether s -> next is reachable. Cancelled is
// reserved and no operation produces it.
func (s DispenseStatus) CanTransitionTo(next DispenseStatus) bool {
	return s == DispenseStatusPending && next == DispenseStatusDispensed
}

type Medicine struct {
	Name        string `json:"name" validate:"required,notblank,max=200"`
	Dosage      string `json:"dosage" validate:"required,notblank,max=100"`
	Frequency   string `json:"frequency" validate:"required,notblank,max=100"`
	Duration    string `json:"duration" validate:"required,notblank,max=100"`
	Quantity    int    `json:"quantity" validate:"required,min=1"`
	Instruction string `json:"instruction,omitempty" validate:"max=500"`
}

// Medicines is stored as a JSONB array, order preserved.
type Medicines []Medicine

func (m Medicines) Value() (driver.Value, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m)
}

func (m *Medicines) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Medicines", src)
	}
	return json.Unmarshal(data, m)
}

type Prescription struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	AppointmentID   uuid.UUID      `db:"appointment_id" json:"appointmentId"`
	PatientID       uuid.UUID      `db:"patient_id" json:"patientId"`
	PatientName     string         `db:"patient_name" json:"patientName"`
	DoctorID        uuid.UUID      `db:"doctor_id" json:"doctorId"`
	DoctorName      string         `db:"doctor_name" json:"doctorName"`
	Age             int            `db:"age" json:"age"`
	Gender          string         `db:"gender" json:"gender"`
	Diagnosis       string         `db:"diagnosis" json:"diagnosis"`
	Symptoms        string         `db:"symptoms" json:"symptoms"`
	AdditionalNotes string         `db:"additional_notes" json:"additionalNotes,omitempty"`
	Medicines       Medicines      `db:"medicines" json:"medicines"`
	FollowUpDate    *Date          `db:"follow_up_date" json:"followUpDate,omitempty"`
	CreatedDate     Date           `db:"created_date" json:"createdDate"`
	DispensedStatus DispenseStatus `db:"dispensed_status" json:"dispensedStatus"`
	DispensedBy     *string        `db:"dispensed_by" json:"dispensedBy,omitempty"`
	DispensedDate   *time.Time     `db:"dispensed_date" json:"dispensedDate,omitempty"`
	Edited          bool           `db:"edited" json:"edited"`
	LastEditedDate  *time.Time     `db:"last_edited_date" json:"lastEditedDate,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updatedAt"`
}

type PrescriptionFilter struct {
	PatientID   *uuid.UUID
	DoctorID    *uuid.UUID
	PatientName string
	Status      *DispenseStatus
}

type CreatePrescriptionRequest struct {
	AppointmentID   uuid.UUID  `json:"appointmentId" validate:"required"`
	Diagnosis       string     `json:"diagnosis" validate:"max=1000"`
	Symptoms        string     `json:"symptoms" validate:"max=1000"`
	AdditionalNotes string     `json:"additionalNotes" validate:"max=2000"`
	Medicines       []Medicine `json:"medicines" validate:"required,min=1,dive"`
	FollowUpDate    *Date      `json:"followUpDate,omitempty" validate:"omitempty,notpast"`
}

type UpdatePrescriptionRequest struct {
	Diagnosis       *string    `json:"diagnosis,omitempty" validate:"omitempty,max=1000"`
	Symptoms        *string    `json:"symptoms,omitempty" validate:"omitempty,max=1000"`
	AdditionalNotes *string    `json:"additionalNotes,omitempty" validate:"omitempty,max=2000"`
	Medicines       []Medicine `json:"medicines,omitempty" validate:"omitempty,dive"`
	FollowUpDate    *Date      `json:"followUpDate,omitempty" validate:"omitempty,notpast"`
}

type DispenseRequest struct {
	ID             uuid.UUID `json:"id" validate:"required"`
	PharmacistName string    `json:"pharmacistName" validate:"max=100"`
}
