package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

const (
	departmentColumns = `id, name, description, head, active, created_at, updated_at`

	insertDepartment = `
		INSERT INTO departments (` + departmentColumns + `)
		VALUES (:id, :name, :description, :head, :active, :created_at, :updated_at)`

	updateDepartment = `
		UPDATE departments
		SET name = :name, description = :description, head = :head,
			active = :active, updated_at = :updated_at
		WHERE id = :id`
)

type departmentRepository struct {
	BaseRepository
}

func NewDepartmentRepository(base BaseRepository) repository.DepartmentRepository {
	return &departmentRepository{base}
}

func (r *departmentRepository) Create(ctx context.Context, d *model.Department) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.Name = strings.TrimSpace(d.Name)
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now

	if _, err := sqlx.NamedExecContext(ctx, r.conn(ctx), insertDepartment, d); err != nil {
		return fmt.Errorf("failed to create department: %w", translate(err))
	}
	return nil
}

func (r *departmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Department, error) {
	var d model.Department
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE id = $1`
	if err := r.conn(ctx).GetContext(ctx, &d, query, id); err != nil {
		return nil, fmt.Errorf("failed to get department: %w", translate(err))
	}
	return &d, nil
}

func (r *departmentRepository) GetByName(ctx context.Context, name string) (*model.Department, error) {
	var d model.Department
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE lower(name) = lower($1)`
	if err := r.conn(ctx).GetContext(ctx, &d, query, strings.TrimSpace(name)); err != nil {
		return nil, fmt.Errorf("failed to get department by name: %w", translate(err))
	}
	return &d, nil
}

func (r *departmentRepository) List(ctx context.Context, filter model.DepartmentFilter) ([]*model.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments`
	var args []interface{}
	if filter.Active != nil {
		query += ` WHERE active = $1`
		args = append(args, *filter.Active)
	}
	query += ` ORDER BY lower(name)`

	departments := []*model.Department{}
	if err := r.conn(ctx).SelectContext(ctx, &departments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	return departments, nil
}

func (r *departmentRepository) Update(ctx context.Context, d *model.Department) error {
	d.Name = strings.TrimSpace(d.Name)
	d.UpdatedAt = time.Now()

	res, err := sqlx.NamedExecContext(ctx, r.conn(ctx), updateDepartment, d)
	if err != nil {
		return fmt.Errorf("failed to update department: %w", translate(err))
	}
	return affectedOne(res)
}

func (r *departmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete department: %w", err)
	}
	return affectedOne(res)
}
