package prescription

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
	"github.com/jwalitptl/hospital-api/internal/service/appointment"
	"github.com/jwalitptl/hospital-api/internal/service/event"
	"github.com/jwalitptl/hospital-api/internal/service/rbac"
	"github.com/jwalitptl/hospital-api/internal/session"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

const entity = "prescription"

type Service struct {
	repo         repository.PrescriptionRepository
	apptRepo     repository.AppointmentRepository
	appointments *appointment.Service
	tx           repository.TxManager
	events       *event.Recorder
	validate     *validator.Validator
	metrics      *metrics.Metrics
	now          func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(
	repo repository.PrescriptionRepository,
	apptRepo repository.AppointmentRepository,
	appointments *appointment.Service,
	tx repository.TxManager,
	events *event.Recorder,
	validate *validator.Validator,
	m *metrics.Metrics,
	opts ...Option,
) *Service {
	s := &Service{
		repo:         repo,
		apptRepo:     apptRepo,
		appointments: appointments,
		tx:           tx,
		events:       events,
		validate:     validate,
		metrics:      m,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create writes a Pending prescription and completes its appointment in the
// same transaction. If either step fails neither is kept.
func (s *Service) Create(ctx context.Context, sess *session.Session, req *model.CreatePrescriptionRequest) (*model.Prescription, error) {
	if !sess.Permissions.CanCompletePrescribe {
		return nil, s.reject("forbidden", apperrors.Forbidden("only doctors can write prescriptions"))
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, s.reject("validation", err)
	}

	apt, err := s.apptRepo.Get(ctx, req.AppointmentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("appointment", err)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if apt.DoctorID != sess.UserID {
		return nil, s.reject("forbidden", apperrors.Forbidden("appointment is assigned to another doctor"))
	}

	now := s.now()
	p := &model.Prescription{
		ID:              uuid.New(),
		AppointmentID:   apt.ID,
		PatientID:       apt.PatientID,
		PatientName:     apt.PatientName,
		DoctorID:        apt.DoctorID,
		DoctorName:      apt.DoctorName,
		Age:             apt.Age,
		Gender:          apt.Gender,
		Diagnosis:       strings.TrimSpace(req.Diagnosis),
		Symptoms:        strings.TrimSpace(req.Symptoms),
		AdditionalNotes: strings.TrimSpace(req.AdditionalNotes),
		Medicines:       trimMedicines(req.Medicines),
		FollowUpDate:    req.FollowUpDate,
		CreatedDate:     model.DateOf(now),
		DispensedStatus: model.DispenseStatusPending,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.appointments.Complete(ctx, sess, apt.ID, model.Completion{
			PrescriptionGiven: true,
			FollowUpDate:      req.FollowUpDate,
		}); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, p); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.Conflict("appointment already has a prescription", err)
			}
			return err
		}
		return s.events.Record(ctx, event.ForPrescription(event.PrescriptionCreated, p))
	})
	if err != nil {
		return nil, wrapInternal(fmt.Errorf("failed to create prescription: %w", err))
	}
	return p, nil
}

// Update replaces the clinical fields. Only the doctor who wrote the
// prescription may edit it, whatever its dispense status.
func (s *Service) Update(ctx context.Context, sess *session.Session, id uuid.UUID, req *model.UpdatePrescriptionRequest) (*model.Prescription, error) {
	if !sess.Permissions.CanCompletePrescribe {
		return nil, s.reject("forbidden", apperrors.Forbidden("only doctors can edit prescriptions"))
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, s.reject("validation", err)
	}

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.DoctorID != sess.UserID {
		return nil, s.reject("forbidden", apperrors.Forbidden("prescription was written by another doctor"))
	}

	if req.Diagnosis != nil {
		p.Diagnosis = strings.TrimSpace(*req.Diagnosis)
	}
	if req.Symptoms != nil {
		p.Symptoms = strings.TrimSpace(*req.Symptoms)
	}
	if req.AdditionalNotes != nil {
		p.AdditionalNotes = strings.TrimSpace(*req.AdditionalNotes)
	}
	if len(req.Medicines) > 0 {
		p.Medicines = trimMedicines(req.Medicines)
	}
	if req.FollowUpDate != nil {
		p.FollowUpDate = req.FollowUpDate
	}
	editedAt := s.now()
	p.Edited = true
	p.LastEditedDate = &editedAt

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		return s.events.Record(ctx, event.ForPrescription(event.PrescriptionUpdated, p))
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound(entity, err)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return p, nil
}

// Dispense hands a Pending prescription over. The pharmacist name defaults
// to the caller's.
func (s *Service) Dispense(ctx context.Context, sess *session.Session, req *model.DispenseRequest) (*model.Prescription, error) {
	if !sess.Permissions.CanDispense {
		return nil, s.reject("forbidden", apperrors.Forbidden("only pharmacists can dispense"))
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, s.reject("validation", err)
	}

	p, err := s.load(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if !p.DispensedStatus.CanTransitionTo(model.DispenseStatusDispensed) {
		return nil, s.invalid(p.DispensedStatus, model.DispenseStatusDispensed)
	}

	by := strings.TrimSpace(req.PharmacistName)
	if by == "" {
		by = sess.Name
	}

	var updated *model.Prescription
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		updated, err = s.repo.Dispense(ctx, req.ID, by, s.now())
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return apperrors.NotFound(entity, err)
		case errors.Is(err, repository.ErrStaleState):
			from := model.DispenseStatus("unknown")
			if cur, getErr := s.repo.Get(ctx, req.ID); getErr == nil {
				from = cur.DispensedStatus
			}
			return s.invalid(from, model.DispenseStatusDispensed)
		case err != nil:
			return err
		}
		return s.events.Record(ctx, event.ForPrescription(event.PrescriptionDispensed, updated))
	})
	if err != nil {
		return nil, wrapInternal(err)
	}

	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(entity, string(p.DispensedStatus), string(updated.DispensedStatus)).Inc()
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, sess *session.Session, id uuid.UUID) (*model.Prescription, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(sess, p) {
		return nil, apperrors.Forbidden("prescription belongs to another user")
	}
	return p, nil
}

func canView(sess *session.Session, p *model.Prescription) bool {
	switch sess.Permissions.Prescriptions {
	case rbac.ScopeAll:
		return true
	case rbac.ScopeOwn:
		return p.PatientID == sess.UserID
	case rbac.ScopeAssigned:
		return p.DoctorID == sess.UserID
	}
	return false
}

type ListOptions struct {
	Status      *model.DispenseStatus
	PatientName string
}

// List returns the caller's prescriptions, newest first.
func (s *Service) List(ctx context.Context, sess *session.Session, opts ListOptions) (iter.Seq[*model.Prescription], error) {
	ps, err := s.list(ctx, sess, opts)
	if err != nil {
		return nil, err
	}
	return func(yield func(*model.Prescription) bool) {
		for _, p := range ps {
			if !yield(p) {
				return
			}
		}
	}, nil
}

func (s *Service) list(ctx context.Context, sess *session.Session, opts ListOptions) ([]*model.Prescription, error) {
	if opts.Status != nil && !opts.Status.IsValid() {
		return nil, apperrors.Validation([]apperrors.FieldError{{
			Field:   "status",
			Message: "must be one of: Pending, Dispensed, Cancelled",
		}})
	}

	filter := model.PrescriptionFilter{Status: opts.Status, PatientName: opts.PatientName}
	switch sess.Permissions.Prescriptions {
	case rbac.ScopeAll:
	case rbac.ScopeOwn:
		filter.PatientID = &sess.UserID
	case rbac.ScopeAssigned:
		filter.DoctorID = &sess.UserID
	default:
		return nil, apperrors.Forbidden("role cannot view prescriptions")
	}

	ps, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return ps, nil
}

// ListForPatientName returns every visible prescription issued under name.
func (s *Service) ListForPatientName(ctx context.Context, sess *session.Session, name string) (iter.Seq[*model.Prescription], error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.Validation([]apperrors.FieldError{{Field: "patientName", Message: "is required"}})
	}
	return s.List(ctx, sess, ListOptions{PatientName: name})
}

// FindForPatient picks the prescription to show next to an appointment.
// Prescriptions are matched by patient name; see MatchForAppointment. The
// appointment only steers the date match: one the caller may not see, and
// that no visible candidate was written for, is ignored like a missing one.
func (s *Service) FindForPatient(ctx context.Context, sess *session.Session, patientName string, appointmentID *uuid.UUID) (*model.Prescription, error) {
	if strings.TrimSpace(patientName) == "" {
		return nil, apperrors.Validation([]apperrors.FieldError{{Field: "patientName", Message: "is required"}})
	}

	candidates, err := s.list(ctx, sess, ListOptions{PatientName: patientName})
	if err != nil {
		return nil, err
	}

	var apt *model.Appointment
	if appointmentID != nil {
		got, err := s.apptRepo.Get(ctx, *appointmentID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return nil, apperrors.Internal(err)
		case appointment.CanView(sess, got) || writtenFor(candidates, got.ID):
			apt = got
		}
	}

	p := MatchForAppointment(candidates, apt)
	if p == nil {
		return nil, apperrors.NotFound(entity, fmt.Errorf("no prescription for patient %q", patientName))
	}
	return p, nil
}

func writtenFor(ps []*model.Prescription, appointmentID uuid.UUID) bool {
	for _, p := range ps {
		if p.AppointmentID == appointmentID {
			return true
		}
	}
	return false
}

// MatchForAppointment returns the first candidate created on the
// appointment's date, or the first candidate when none matches or apt is
// nil. Candidates are expected newest first.
func MatchForAppointment(candidates []*model.Prescription, apt *model.Appointment) *model.Prescription {
	if len(candidates) == 0 {
		return nil
	}
	if apt != nil {
		for _, p := range candidates {
			if p.CreatedDate.Equal(apt.AppointmentDate) {
				return p
			}
		}
	}
	return candidates[0]
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	p, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound(entity, err)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return p, nil
}

func (s *Service) invalid(from, to model.DispenseStatus) error {
	return s.reject("invalid_transition", apperrors.InvalidTransition(entity, string(from), string(to)))
}

func (s *Service) reject(reason string, err error) error {
	if s.metrics != nil {
		s.metrics.TransitionRejections.WithLabelValues(entity, reason).Inc()
	}
	return err
}

func trimMedicines(in []model.Medicine) model.Medicines {
	out := make(model.Medicines, 0, len(in))
	for _, m := range in {
		out = append(out, model.Medicine{
			Name:        strings.TrimSpace(m.Name),
			Dosage:      strings.TrimSpace(m.Dosage),
			Frequency:   strings.TrimSpace(m.Frequency),
			Duration:    strings.TrimSpace(m.Duration),
			Quantity:    m.Quantity,
			Instruction: strings.TrimSpace(m.Instruction),
		})
	}
	return out
}

func wrapInternal(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.Internal(err)
}
