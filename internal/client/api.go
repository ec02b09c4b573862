package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
)

func endpoint(parts ...string) []string {
	return append([]string{"api"}, parts...)
}

// AppointmentQuery narrows ListAppointments. Scope is "upcoming", "past"
// or empty for both.
type AppointmentQuery struct {
	Status model.AppointmentStatus
	Scope  string
}

func (s *Session) ListAppointments(ctx context.Context, q AppointmentQuery) ([]*model.Appointment, error) {
	query := url.Values{}
	if q.Status != "" {
		query.Set("status", string(q.Status))
	}
	if q.Scope != "" {
		query.Set("scope", q.Scope)
	}

	var out []*model.Appointment
	err := s.call(ctx, request{method: http.MethodGet, path: endpoint("appointments"), query: query}, &out)
	return out, err
}

func (s *Session) GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var out model.Appointment
	if err := s.call(ctx, request{method: http.MethodGet, path: endpoint("appointments", id.String())}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) Book(ctx context.Context, req *model.BookAppointmentRequest) (*model.Appointment, error) {
	var out model.Appointment
	if err := s.call(ctx, request{method: http.MethodPost, path: endpoint("appointments"), body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) Reschedule(ctx context.Context, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	var out model.Appointment
	if err := s.call(ctx, request{method: http.MethodPut, path: endpoint("appointments", id.String()), body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) setStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus, reason string) (*model.Appointment, error) {
	query := url.Values{"status": {string(status)}}
	if reason != "" {
		query.Set("cancellationReason", reason)
	}

	var out model.Appointment
	err := s.call(ctx, request{
		method: http.MethodPatch,
		path:   endpoint("appointments", id.String(), "status"),
		query:  query,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Appointment, error) {
	return s.setStatus(ctx, id, model.AppointmentStatusCancelled, reason)
}

// CompleteWithoutPrescription closes a consult with no prescription.
func (s *Session) CompleteWithoutPrescription(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.setStatus(ctx, id, model.AppointmentStatusCompleted, "")
}

// Complete writes the prescription for appointment id, which completes it.
func (s *Session) Complete(ctx context.Context, id uuid.UUID, req *model.CreatePrescriptionRequest) (*model.Prescription, error) {
	var out model.Prescription
	err := s.call(ctx, request{
		method: http.MethodPost,
		path:   endpoint("appointments", id.String(), "complete"),
		body:   req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) ListPrescriptions(ctx context.Context, status model.DispenseStatus) ([]*model.Prescription, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", string(status))
	}

	var out []*model.Prescription
	err := s.call(ctx, request{method: http.MethodGet, path: endpoint("prescriptions"), query: query}, &out)
	return out, err
}

func (s *Session) GetPrescription(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	var out model.Prescription
	if err := s.call(ctx, request{method: http.MethodGet, path: endpoint("prescriptions", id.String())}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) PrescriptionsForPatient(ctx context.Context, patientName string) ([]*model.Prescription, error) {
	var out []*model.Prescription
	err := s.call(ctx, request{method: http.MethodGet, path: endpoint("prescriptions", "patient-name", patientName)}, &out)
	return out, err
}

// FindPrescription returns the prescription written for the appointment, or
// the patient's newest one when appointmentID is nil or nothing matches its
// date.
func (s *Session) FindPrescription(ctx context.Context, patientName string, appointmentID *uuid.UUID) (*model.Prescription, error) {
	query := url.Values{}
	if appointmentID != nil {
		query.Set("appointmentId", appointmentID.String())
	}

	var out model.Prescription
	err := s.call(ctx, request{
		method: http.MethodGet,
		path:   endpoint("prescriptions", "patient-name", patientName, "match"),
		query:  query,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) UpdatePrescription(ctx context.Context, id uuid.UUID, req *model.UpdatePrescriptionRequest) (*model.Prescription, error) {
	var out model.Prescription
	if err := s.call(ctx, request{method: http.MethodPut, path: endpoint("prescriptions", id.String()), body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dispense marks a pending prescription dispensed. An empty pharmacistName
// records the signed-in pharmacist.
func (s *Session) Dispense(ctx context.Context, id uuid.UUID, pharmacistName string) (*model.Prescription, error) {
	var out model.Prescription
	err := s.call(ctx, request{
		method: http.MethodPost,
		path:   endpoint("prescriptions", "dispense"),
		body:   model.DispenseRequest{ID: id, PharmacistName: pharmacistName},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) ListDoctors(ctx context.Context, department string) ([]*model.User, error) {
	query := url.Values{}
	if department != "" {
		query.Set("department", department)
	}

	var out []*model.User
	err := s.call(ctx, request{method: http.MethodGet, path: endpoint("doctors"), query: query}, &out)
	return out, err
}

// ListActiveDepartments returns the departments that accept bookings.
func (s *Session) ListActiveDepartments(ctx context.Context) ([]*model.Department, error) {
	var out []*model.Department
	err := s.call(ctx, request{method: http.MethodGet, path: endpoint("departments", "active")}, &out)
	return out, err
}

func (s *Session) ListUsers(ctx context.Context) ([]*model.User, error) {
	var out []*model.User
	err := s.call(ctx, request{method: http.MethodGet, path: endpoint("users")}, &out)
	return out, err
}

func (s *Session) ListPendingUsers(ctx context.Context) ([]*model.User, error) {
	var out []*model.User
	err := s.call(ctx, request{method: http.MethodGet, path: endpoint("users", "pending")}, &out)
	return out, err
}

func (s *Session) VerifyUser(ctx context.Context, email string) (*model.User, error) {
	var out model.User
	if err := s.call(ctx, request{method: http.MethodPut, path: endpoint("users", email, "verify")}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) DeleteUser(ctx context.Context, email string) error {
	return s.call(ctx, request{method: http.MethodDelete, path: endpoint("users", email)}, nil)
}
