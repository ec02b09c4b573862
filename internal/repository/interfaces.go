package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrStaleState = errors.New("record is not in the expected state")
	ErrDuplicate  = errors.New("record already exists")
)

type (
	// TxManager runs fn in one transaction carried by the context passed to it
	TxManager interface {
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	// AppointmentRepository handles appointment persistence. Cancel, Complete
	// and Reschedule only touch rows still in Scheduled and return
	// ErrStaleState otherwise.
	AppointmentRepository interface {
		Create(ctx context.Context, apt *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error)
		Reschedule(ctx context.Context, apt *model.Appointment) error
		Cancel(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*model.Appointment, error)
		Complete(ctx context.Context, id uuid.UUID, c model.Completion, at time.Time) (*model.Appointment, error)
		ListFollowUpsDue(ctx context.Context, day model.Date) ([]*model.Appointment, error)
		DeleteByPatient(ctx context.Context, patientID uuid.UUID) (int64, error)
		DeleteByDoctor(ctx context.Context, doctorID uuid.UUID) (int64, error)
	}

	// PrescriptionRepository handles prescription persistence. Dispense only
	// touches Pending rows and returns ErrStaleState otherwise.
	PrescriptionRepository interface {
		Create(ctx context.Context, p *model.Prescription) error
		Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error)
		GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Prescription, error)
		List(ctx context.Context, filter model.PrescriptionFilter) ([]*model.Prescription, error)
		Update(ctx context.Context, p *model.Prescription) error
		Dispense(ctx context.Context, id uuid.UUID, by string, at time.Time) (*model.Prescription, error)
		DeleteByPatient(ctx context.Context, patientID uuid.UUID) (int64, error)
		DeleteByDoctor(ctx context.Context, doctorID uuid.UUID) (int64, error)
	}

	// UserRepository handles user accounts
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		List(ctx context.Context, filter model.UserFilter) ([]*model.User, error)
		Update(ctx context.Context, user *model.User) error
		SetVerified(ctx context.Context, id uuid.UUID, verified bool) error
		Delete(ctx context.Context, id uuid.UUID) error
	}

	// DepartmentRepository handles the department registry. Names are
	// unique without regard to case; Create and Update return ErrDuplicate
	// on a clash.
	DepartmentRepository interface {
		Create(ctx context.Context, d *model.Department) error
		Get(ctx context.Context, id uuid.UUID) (*model.Department, error)
		GetByName(ctx context.Context, name string) (*model.Department, error)
		List(ctx context.Context, filter model.DepartmentFilter) ([]*model.Department, error)
		Update(ctx context.Context, d *model.Department) error
		Delete(ctx context.Context, id uuid.UUID) error
	}

	// OutboxRepository stores events recorded alongside state changes
	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		ListPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, reason string, maxRetries int) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
