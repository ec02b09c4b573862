package appointment

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/service/department"
	"github.com/jwalitptl/hospital-api/internal/service/event"
	"github.com/jwalitptl/hospital-api/internal/service/rbac"
	"github.com/jwalitptl/hospital-api/internal/session"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

const entity = "appointment"

type Service struct {
	repo        repository.AppointmentRepository
	users       repository.UserRepository
	departments repository.DepartmentRepository
	tx          repository.TxManager
	events      *event.Recorder
	validate    *validator.Validator
	metrics     *metrics.Metrics
	now         func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(
	repo repository.AppointmentRepository,
	users repository.UserRepository,
	departments repository.DepartmentRepository,
	tx repository.TxManager,
	events *event.Recorder,
	validate *validator.Validator,
	m *metrics.Metrics,
	opts ...Option,
) *Service {
	s := &Service{
		repo:        repo,
		users:       users,
		departments: departments,
		tx:          tx,
		events:      events,
		validate:    validate,
		metrics:     m,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book creates a Scheduled appointment for the calling patient. Every
// invalid field is reported in one Validation error and nothing is written.
func (s *Service) Book(ctx context.Context, sess *session.Session, req *model.BookAppointmentRequest) (*model.Appointment, error) {
	if !sess.Permissions.CanBook {
		return nil, s.reject("forbidden", apperrors.Forbidden("only patients can book appointments"))
	}

	var fields []apperrors.FieldError
	if err := s.validate.Struct(req); err != nil {
		appErr := apperrors.From(err)
		if appErr.Code != apperrors.ErrValidation {
			return nil, err
		}
		fields = append(fields, appErr.Fields...)
	}

	doctor, fieldErr, err := s.resolveDoctor(ctx, req)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if fieldErr != nil {
		fields = append(fields, *fieldErr)
	}

	departmentName := strings.TrimSpace(req.Department)
	if departmentName != "" {
		dept, fieldErr, err := department.CheckBookable(ctx, s.departments, departmentName)
		if err != nil {
			return nil, err
		}
		if fieldErr != nil {
			fields = append(fields, *fieldErr)
		} else {
			departmentName = dept.Name
		}
	}

	if len(fields) > 0 {
		return nil, s.reject("validation", apperrors.Validation(fields))
	}

	apt := &model.Appointment{
		ID:              uuid.New(),
		PatientID:       sess.UserID,
		PatientName:     strings.TrimSpace(req.PatientName),
		DoctorID:        doctor.ID,
		DoctorName:      doctor.Name,
		Age:             req.Age,
		Gender:          req.Gender,
		ContactNumber:   req.ContactNumber,
		Department:      departmentName,
		Reason:          strings.TrimSpace(req.Reason),
		IssueDays:       req.IssueDays,
		AppointmentDate: req.AppointmentDate,
		AppointmentTime: strings.TrimSpace(req.AppointmentTime),
		Status:          model.AppointmentStatusScheduled,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, apt); err != nil {
			return err
		}
		return s.events.Record(ctx, event.ForAppointment(event.AppointmentBooked, apt))
	})
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to book appointment: %w", err))
	}
	return apt, nil
}

// resolveDoctor finds the verified doctor named by id or, failing that, by
// name. A lookup miss is a field error, not a failure.
func (s *Service) resolveDoctor(ctx context.Context, req *model.BookAppointmentRequest) (*model.User, *apperrors.FieldError, error) {
	unavailable := &apperrors.FieldError{Field: "doctor", Message: "is not an available doctor"}

	if req.DoctorID != nil {
		doctor, err := s.users.Get(ctx, *req.DoctorID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, unavailable, nil
		}
		if err != nil {
			return nil, nil, err
		}
		if doctor.Role != model.RoleDoctor || !doctor.Verified {
			return nil, unavailable, nil
		}
		return doctor, nil, nil
	}

	name := strings.TrimSpace(req.Doctor)
	if name == "" {
		if req.Doctor == "" {
			// Already reported by the required_without rule.
			return nil, nil, nil
		}
		return nil, &apperrors.FieldError{Field: "doctor", Message: "must not be blank"}, nil
	}
	role, verified := model.RoleDoctor, true
	doctors, err := s.users.List(ctx, model.UserFilter{Role: &role, Verified: &verified, Name: name})
	if err != nil {
		return nil, nil, err
	}
	switch len(doctors) {
	case 0:
		return nil, unavailable, nil
	case 1:
		return doctors[0], nil, nil
	}
	return nil, &apperrors.FieldError{Field: "doctor", Message: "matches more than one doctor, pass doctorId"}, nil
}

func (s *Service) Get(ctx context.Context, sess *session.Session, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(sess, apt) {
		return nil, apperrors.Forbidden("appointment belongs to another user")
	}
	return apt, nil
}

// CanView applies the caller's appointment scope to apt.
func CanView(sess *session.Session, apt *model.Appointment) bool {
	switch sess.Permissions.Appointments {
	case rbac.ScopeAll:
		return true
	case rbac.ScopeOwn:
		return apt.PatientID == sess.UserID
	case rbac.ScopeAssigned:
		return apt.DoctorID == sess.UserID
	}
	return false
}

type ListOptions struct {
	Status *model.AppointmentStatus
}

// List returns the caller's appointments, newest first. The sequence can be
// ranged over any number of times.
func (s *Service) List(ctx context.Context, sess *session.Session, opts ListOptions) (iter.Seq[*model.Appointment], error) {
	if opts.Status != nil && !opts.Status.IsValid() {
		return nil, apperrors.Validation([]apperrors.FieldError{{
			Field:   "status",
			Message: "must be one of: Scheduled, Completed, Cancelled",
		}})
	}

	filter := model.AppointmentFilter{Status: opts.Status}
	switch sess.Permissions.Appointments {
	case rbac.ScopeAll:
	case rbac.ScopeOwn:
		filter.PatientID = &sess.UserID
	case rbac.ScopeAssigned:
		filter.DoctorID = &sess.UserID
	default:
		return nil, apperrors.Forbidden("role cannot view appointments")
	}

	apts, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return func(yield func(*model.Appointment) bool) {
		for _, apt := range apts {
			if !yield(apt) {
				return
			}
		}
	}, nil
}

// Partition splits appointments into upcoming and past as of today. Once an
// appointment is terminal it is past whatever its date.
func Partition(apts iter.Seq[*model.Appointment], today model.Date) (upcoming, past []*model.Appointment) {
	for apt := range apts {
		if apt.IsUpcoming(today) {
			upcoming = append(upcoming, apt)
		} else {
			past = append(past, apt)
		}
	}
	return upcoming, past
}

// Today is the current calendar day on the service clock.
func (s *Service) Today() model.Date {
	return model.DateOf(s.now())
}

// Cancel moves a Scheduled appointment owned by the caller to Cancelled.
func (s *Service) Cancel(ctx context.Context, sess *session.Session, id uuid.UUID, reason string) (*model.Appointment, error) {
	if !sess.Permissions.CanCancelOwn {
		return nil, s.reject("forbidden", apperrors.Forbidden("only the booking patient can cancel an appointment"))
	}

	apt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.PatientID != sess.UserID {
		return nil, s.reject("forbidden", apperrors.Forbidden("appointment belongs to another patient"))
	}
	if !apt.Status.CanTransitionTo(model.AppointmentStatusCancelled) {
		return nil, s.invalid(apt.Status, model.AppointmentStatusCancelled)
	}

	var updated *model.Appointment
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		updated, err = s.repo.Cancel(ctx, id, strings.TrimSpace(reason), s.now())
		if err != nil {
			return s.transitionError(ctx, id, model.AppointmentStatusCancelled, err)
		}
		return s.events.Record(ctx, event.ForAppointment(event.AppointmentCancelled, updated))
	})
	if err != nil {
		return nil, wrapInternal(err)
	}

	s.transitioned(apt.Status, updated.Status)
	return updated, nil
}

// Complete closes a Scheduled consult. Only the assigned doctor may call it.
// The prescription service calls it inside its own transaction.
func (s *Service) Complete(ctx context.Context, sess *session.Session, id uuid.UUID, c model.Completion) (*model.Appointment, error) {
	if !sess.Permissions.CanCompletePrescribe {
		return nil, s.reject("forbidden", apperrors.Forbidden("only doctors can complete appointments"))
	}

	apt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.DoctorID != sess.UserID {
		return nil, s.reject("forbidden", apperrors.Forbidden("appointment is assigned to another doctor"))
	}
	if !apt.Status.CanTransitionTo(model.AppointmentStatusCompleted) {
		return nil, s.invalid(apt.Status, model.AppointmentStatusCompleted)
	}

	var updated *model.Appointment
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		updated, err = s.repo.Complete(ctx, id, c, s.now())
		if err != nil {
			return s.transitionError(ctx, id, model.AppointmentStatusCompleted, err)
		}
		return s.events.Record(ctx, event.ForAppointment(event.AppointmentCompleted, updated))
	})
	if err != nil {
		return nil, wrapInternal(err)
	}

	s.transitioned(apt.Status, updated.Status)
	return updated, nil
}

// UpdateStatus serves the status endpoint: Cancelled cancels, Completed
// completes without a prescription, anything else is rejected.
func (s *Service) UpdateStatus(ctx context.Context, sess *session.Session, id uuid.UUID, status, reason string) (*model.Appointment, error) {
	target := model.AppointmentStatus(strings.TrimSpace(status))
	switch target {
	case model.AppointmentStatusCancelled:
		return s.Cancel(ctx, sess, id, reason)
	case model.AppointmentStatusCompleted:
		return s.Complete(ctx, sess, id, model.Completion{})
	case model.AppointmentStatusScheduled:
		apt, err := s.Get(ctx, sess, id)
		if err != nil {
			return nil, err
		}
		return nil, s.invalid(apt.Status, target)
	}
	return nil, s.reject("validation", apperrors.Validation([]apperrors.FieldError{{
		Field:   "status",
		Message: "must be one of: Scheduled, Completed, Cancelled",
	}}))
}

// Reschedule edits the date, time or intake details of a Scheduled
// appointment. Only the booking patient may call it.
func (s *Service) Reschedule(ctx context.Context, sess *session.Session, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	if !sess.Permissions.CanBook {
		return nil, s.reject("forbidden", apperrors.Forbidden("only the booking patient can change an appointment"))
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, s.reject("validation", err)
	}

	apt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.PatientID != sess.UserID {
		return nil, s.reject("forbidden", apperrors.Forbidden("appointment belongs to another patient"))
	}
	if apt.Status != model.AppointmentStatusScheduled {
		return nil, s.invalid(apt.Status, model.AppointmentStatusScheduled)
	}

	if req.AppointmentDate != nil {
		apt.AppointmentDate = *req.AppointmentDate
	}
	if req.AppointmentTime != nil {
		apt.AppointmentTime = strings.TrimSpace(*req.AppointmentTime)
	}
	if req.Reason != nil {
		apt.Reason = strings.TrimSpace(*req.Reason)
	}
	if req.IssueDays != nil {
		apt.IssueDays = *req.IssueDays
	}
	if req.ContactNumber != nil {
		apt.ContactNumber = *req.ContactNumber
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Reschedule(ctx, apt); err != nil {
			return s.transitionError(ctx, id, model.AppointmentStatusScheduled, err)
		}
		return s.events.Record(ctx, event.ForAppointment(event.AppointmentRescheduled, apt))
	})
	if err != nil {
		return nil, wrapInternal(err)
	}
	return apt, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound(entity, err)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return apt, nil
}

// transitionError maps a failed conditional update. A stale row means
// another request moved the appointment first.
func (s *Service) transitionError(ctx context.Context, id uuid.UUID, to model.AppointmentStatus, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound(entity, err)
	case errors.Is(err, repository.ErrStaleState):
		from := model.AppointmentStatus("unknown")
		if cur, getErr := s.repo.Get(ctx, id); getErr == nil {
			from = cur.Status
		}
		return s.invalid(from, to)
	}
	return err
}

func (s *Service) invalid(from, to model.AppointmentStatus) error {
	return s.reject("invalid_transition", apperrors.InvalidTransition(entity, string(from), string(to)))
}

func (s *Service) reject(reason string, err error) error {
	if s.metrics != nil {
		s.metrics.TransitionRejections.WithLabelValues(entity, reason).Inc()
	}
	return err
}

func (s *Service) transitioned(from, to model.AppointmentStatus) {
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(entity, string(from), string(to)).Inc()
	}
}

func wrapInternal(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Internal(err)
}
