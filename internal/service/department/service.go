// Package department manages the registry of departments appointments are
// booked against.
package department

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/session"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

type Service struct {
	repo     repository.DepartmentRepository
	validate *validator.Validator
}

func NewService(repo repository.DepartmentRepository, validate *validator.Validator) *Service {
	return &Service{repo: repo, validate: validate}
}

func requireAdmin(sess *session.Session) error {
	if !sess.Permissions.CanManageDepartments {
		return apperrors.Forbidden("only admins can manage departments")
	}
	return nil
}

// EnsureDefaults seeds the registry when it is empty and reports how many
// departments it created.
func (s *Service) EnsureDefaults(ctx context.Context) (int, error) {
	existing, err := s.repo.List(ctx, model.DepartmentFilter{})
	if err != nil {
		return 0, fmt.Errorf("list departments: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	created := 0
	for _, d := range model.DefaultDepartments() {
		d := d
		err := s.repo.Create(ctx, &d)
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			continue
		case err != nil:
			return created, fmt.Errorf("seed department %q: %w", d.Name, err)
		}
		created++
	}
	return created, nil
}

func (s *Service) Create(ctx context.Context, sess *session.Session, req *model.CreateDepartmentRequest) (*model.Department, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	d := &model.Department{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Head:        req.Head,
		Active:      req.Active == nil || *req.Active,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, translate(err, d.Name)
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, sess *session.Session) ([]*model.Department, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	departments, err := s.repo.List(ctx, model.DepartmentFilter{})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return departments, nil
}

// ListActive is open to every signed-in user; it backs the booking form.
func (s *Service) ListActive(ctx context.Context) ([]*model.Department, error) {
	active := true
	departments, err := s.repo.List(ctx, model.DepartmentFilter{Active: &active})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return departments, nil
}

func (s *Service) Get(ctx context.Context, sess *session.Session, id uuid.UUID) (*model.Department, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "")
	}
	return d, nil
}

func (s *Service) GetByName(ctx context.Context, sess *session.Session, name string) (*model.Department, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	d, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, translate(err, "")
	}
	return d, nil
}

func (s *Service) Update(ctx context.Context, sess *session.Session, id uuid.UUID, req *model.UpdateDepartmentRequest) (*model.Department, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "")
	}
	if req.Name != nil {
		d.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		d.Description = req.Description
	}
	if req.Head != nil {
		d.Head = req.Head
	}
	if req.Active != nil {
		d.Active = *req.Active
	}

	if err := s.repo.Update(ctx, d); err != nil {
		return nil, translate(err, d.Name)
	}
	return d, nil
}

// Delete removes the registry entry only. Appointments already booked
// keep the department name they were booked with.
func (s *Service) Delete(ctx context.Context, sess *session.Session, id uuid.UUID) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return translate(err, "")
	}
	return nil
}

// CheckBookable resolves name against the registry. The returned field
// error is nil when the department exists and is active; the department
// then carries the registry's spelling of the name.
func CheckBookable(ctx context.Context, repo repository.DepartmentRepository, name string) (*model.Department, *apperrors.FieldError, error) {
	d, err := repo.GetByName(ctx, name)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, &apperrors.FieldError{Field: "department", Message: "is not a known department"}, nil
	case err != nil:
		return nil, nil, apperrors.Internal(fmt.Errorf("department store: %w", err))
	case !d.Active:
		return nil, &apperrors.FieldError{Field: "department", Message: "is not accepting appointments"}, nil
	}
	return d, nil, nil
}

func translate(err error, name string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound("department", err)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.Conflict(fmt.Sprintf("department %q already exists", name), err)
	}
	return apperrors.Internal(fmt.Errorf("department store: %w", err))
}
