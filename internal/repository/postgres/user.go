package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

const userColumns = `
	id, email, name, role, password_hash, phone, verified, specialization,
	department, qualification, license_number, experience_years,
	created_at, updated_at`

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (` + userColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.conn(ctx).ExecContext(ctx, query,
		user.ID,
		strings.ToLower(user.Email),
		user.Name,
		user.Role,
		user.PasswordHash,
		user.Phone,
		user.Verified,
		user.Specialization,
		user.Department,
		user.Qualification,
		user.LicenseNumber,
		user.ExperienceYears,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", translate(err))
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user model.User
	if err := r.conn(ctx).GetContext(ctx, &user, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", translate(err))
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var user model.User
	if err := r.conn(ctx).GetContext(ctx, &user, query, strings.ToLower(strings.TrimSpace(email))); err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", translate(err))
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, filter model.UserFilter) ([]*model.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Role != nil {
		args = append(args, *filter.Role)
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Verified != nil {
		args = append(args, *filter.Verified)
		conds = append(conds, fmt.Sprintf("verified = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conds = append(conds, fmt.Sprintf("lower(department) = lower($%d)", len(args)))
	}
	if filter.Name != "" {
		args = append(args, strings.TrimSpace(filter.Name))
		conds = append(conds, fmt.Sprintf("lower(name) = lower($%d)", len(args)))
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY name, email"

	var users []*model.User
	if err := r.conn(ctx).SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET name = $2, phone = $3, specialization = $4, department = $5,
			qualification = $6, license_number = $7, experience_years = $8,
			updated_at = $9
		WHERE id = $1
	`
	user.UpdatedAt = time.Now()

	result, err := r.conn(ctx).ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Phone,
		user.Specialization,
		user.Department,
		user.Qualification,
		user.LicenseNumber,
		user.ExperienceYears,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return affectedOne(result)
}

func (r *userRepository) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	result, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE users SET verified = $2, updated_at = NOW() WHERE id = $1`, id, verified)
	if err != nil {
		return fmt.Errorf("failed to verify user: %w", err)
	}
	return affectedOne(result)
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return affectedOne(result)
}
