package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

type userRepository struct {
	s *Store
}

func NewUserRepository(s *Store) repository.UserRepository {
	return &userRepository{s: s}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *userRepository) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user.Email = normalizeEmail(user.Email)
	for _, u := range values[model.User](r.s.users, nil, nil) {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if err := r.s.users.Add(user.ID.String(), *user, cache.NoExpiration); err != nil {
		return repository.ErrDuplicate
	}
	return nil
}

func (r *userRepository) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := get[model.User](r.s.users, id.String())
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*model.User, error) {
	email = normalizeEmail(email)
	found := values(r.s.users, func(u *model.User) bool { return u.Email == email }, nil)
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return found[0], nil
}

func (r *userRepository) List(_ context.Context, f model.UserFilter) ([]*model.User, error) {
	name := strings.TrimSpace(f.Name)
	keep := func(u *model.User) bool {
		if f.Role != nil && u.Role != *f.Role {
			return false
		}
		if f.Verified != nil && u.Verified != *f.Verified {
			return false
		}
		if f.Department != "" && (u.Department == nil || !strings.EqualFold(*u.Department, f.Department)) {
			return false
		}
		if name != "" && !strings.EqualFold(u.Name, name) {
			return false
		}
		return true
	}
	less := func(a, b *model.User) bool {
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Email < b.Email
	}
	return values(r.s.users, keep, less), nil
}

func (r *userRepository) Update(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := get[model.User](r.s.users, user.ID.String())
	if !ok {
		return repository.ErrNotFound
	}
	cur.Name = user.Name
	cur.Phone = user.Phone
	cur.Specialization = user.Specialization
	cur.Department = user.Department
	cur.Qualification = user.Qualification
	cur.LicenseNumber = user.LicenseNumber
	cur.ExperienceYears = user.ExperienceYears
	cur.UpdatedAt = time.Now()
	user.UpdatedAt = cur.UpdatedAt

	r.s.users.Set(cur.ID.String(), *cur, cache.NoExpiration)
	return nil
}

func (r *userRepository) SetVerified(_ context.Context, id uuid.UUID, verified bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := get[model.User](r.s.users, id.String())
	if !ok {
		return repository.ErrNotFound
	}
	cur.Verified = verified
	cur.UpdatedAt = time.Now()
	r.s.users.Set(id.String(), *cur, cache.NoExpiration)
	return nil
}

func (r *userRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users.Get(id.String()); !ok {
		return repository.ErrNotFound
	}
	r.s.users.Delete(id.String())
	return nil
}
