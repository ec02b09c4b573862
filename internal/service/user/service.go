package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/service/event"
	"github.com/jwalitptl/hospital-api/internal/session"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

type Service struct {
	repo          repository.UserRepository
	appointments  repository.AppointmentRepository
	prescriptions repository.PrescriptionRepository
	tx            repository.TxManager
	events        *event.Recorder
	validate      *validator.Validator
}

func NewService(
	repo repository.UserRepository,
	appointments repository.AppointmentRepository,
	prescriptions repository.PrescriptionRepository,
	tx repository.TxManager,
	events *event.Recorder,
	validate *validator.Validator,
) *Service {
	return &Service{
		repo:          repo,
		appointments:  appointments,
		prescriptions: prescriptions,
		tx:            tx,
		events:        events,
		validate:      validate,
	}
}

func requireAdmin(sess *session.Session) error {
	if !sess.Permissions.CanManageUsers {
		return apperrors.Forbidden("only admins can manage users")
	}
	return nil
}

func (s *Service) List(ctx context.Context, sess *session.Session, filter model.UserFilter) ([]*model.User, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return users, nil
}

func (s *Service) ListByRole(ctx context.Context, sess *session.Session, role model.Role) ([]*model.User, error) {
	if !role.IsValid() {
		return nil, apperrors.Validation([]apperrors.FieldError{{
			Field:   "role",
			Message: "must be one of: Doctor, Patient, Pharmacist, Admin",
		}})
	}
	return s.List(ctx, sess, model.UserFilter{Role: &role})
}

// ListPending returns the doctor and pharmacist accounts awaiting approval.
func (s *Service) ListPending(ctx context.Context, sess *session.Session) ([]*model.User, error) {
	verified := false
	users, err := s.List(ctx, sess, model.UserFilter{Verified: &verified})
	if err != nil {
		return nil, err
	}
	pending := users[:0]
	for _, u := range users {
		if u.Role.RequiresApproval() {
			pending = append(pending, u)
		}
	}
	return pending, nil
}

// ListDoctors is open to every signed-in user; it backs the booking form.
func (s *Service) ListDoctors(ctx context.Context, department string) ([]*model.User, error) {
	role, verified := model.RoleDoctor, true
	doctors, err := s.repo.List(ctx, model.UserFilter{
		Role:       &role,
		Verified:   &verified,
		Department: strings.TrimSpace(department),
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return doctors, nil
}

func (s *Service) Get(ctx context.Context, sess *session.Session, email string) (*model.User, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	return s.load(ctx, email)
}

func (s *Service) Update(ctx context.Context, sess *session.Session, email string, req *model.UpdateUserRequest) (*model.User, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.load(ctx, email)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.Specialization != nil {
		user.Specialization = req.Specialization
	}
	if req.Department != nil {
		user.Department = req.Department
	}
	if req.Qualification != nil {
		user.Qualification = req.Qualification
	}
	if req.LicenseNumber != nil {
		user.LicenseNumber = req.LicenseNumber
	}
	if req.ExperienceYears != nil {
		user.ExperienceYears = req.ExperienceYears
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, translate(err)
	}
	return user, nil
}

// Verify approves a pending account.
func (s *Service) Verify(ctx context.Context, sess *session.Session, email string) (*model.User, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Verified {
		return user, nil
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.SetVerified(ctx, user.ID, true); err != nil {
			return err
		}
		user.Verified = true
		return s.events.Record(ctx, event.ForUser(event.UserVerified, user))
	})
	if err != nil {
		return nil, translate(err)
	}
	return user, nil
}

// Delete removes the account together with the appointments and
// prescriptions it is party to.
func (s *Service) Delete(ctx context.Context, sess *session.Session, email string) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	user, err := s.load(ctx, email)
	if err != nil {
		return err
	}
	if user.ID == sess.UserID {
		return apperrors.Conflict("admins cannot delete their own account", nil)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		switch user.Role {
		case model.RolePatient:
			if _, err := s.prescriptions.DeleteByPatient(ctx, user.ID); err != nil {
				return err
			}
			if _, err := s.appointments.DeleteByPatient(ctx, user.ID); err != nil {
				return err
			}
		case model.RoleDoctor:
			if _, err := s.prescriptions.DeleteByDoctor(ctx, user.ID); err != nil {
				return err
			}
			if _, err := s.appointments.DeleteByDoctor(ctx, user.ID); err != nil {
				return err
			}
		}
		return s.repo.Delete(ctx, user.ID)
	})
	if err != nil {
		return translate(err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, email string) (*model.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, translate(err)
	}
	return user, nil
}

func translate(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("user", err)
	}
	return apperrors.Internal(fmt.Errorf("user store: %w", err))
}
