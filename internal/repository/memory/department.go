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

type departmentRepository struct {
	s *Store
}

func NewDepartmentRepository(s *Store) repository.DepartmentRepository {
	return &departmentRepository{s: s}
}

// nameTaken must be called with s.mu held.
func (r *departmentRepository) nameTaken(name string, except uuid.UUID) bool {
	clash := func(d *model.Department) bool {
		return d.ID != except && strings.EqualFold(d.Name, name)
	}
	return len(values(r.s.departments, clash, nil)) > 0
}

func (r *departmentRepository) Create(_ context.Context, d *model.Department) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d.Name = strings.TrimSpace(d.Name)
	if r.nameTaken(d.Name, uuid.Nil) {
		return repository.ErrDuplicate
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now

	if err := r.s.departments.Add(d.ID.String(), *d, cache.NoExpiration); err != nil {
		return repository.ErrDuplicate
	}
	return nil
}

func (r *departmentRepository) Get(_ context.Context, id uuid.UUID) (*model.Department, error) {
	d, ok := get[model.Department](r.s.departments, id.String())
	if !ok {
		return nil, repository.ErrNotFound
	}
	return d, nil
}

func (r *departmentRepository) GetByName(_ context.Context, name string) (*model.Department, error) {
	name = strings.TrimSpace(name)
	found := values(r.s.departments, func(d *model.Department) bool {
		return strings.EqualFold(d.Name, name)
	}, nil)
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return found[0], nil
}

func (r *departmentRepository) List(_ context.Context, f model.DepartmentFilter) ([]*model.Department, error) {
	keep := func(d *model.Department) bool {
		return f.Active == nil || d.Active == *f.Active
	}
	less := func(a, b *model.Department) bool {
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	}
	return values(r.s.departments, keep, less), nil
}

func (r *departmentRepository) Update(_ context.Context, d *model.Department) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := get[model.Department](r.s.departments, d.ID.String())
	if !ok {
		return repository.ErrNotFound
	}
	d.Name = strings.TrimSpace(d.Name)
	if r.nameTaken(d.Name, d.ID) {
		return repository.ErrDuplicate
	}
	cur.Name = d.Name
	cur.Description = d.Description
	cur.Head = d.Head
	cur.Active = d.Active
	cur.UpdatedAt = time.Now()
	d.CreatedAt = cur.CreatedAt
	d.UpdatedAt = cur.UpdatedAt

	r.s.departments.Set(cur.ID.String(), *cur, cache.NoExpiration)
	return nil
}

func (r *departmentRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.departments.Get(id.String()); !ok {
		return repository.ErrNotFound
	}
	r.s.departments.Delete(id.String())
	return nil
}
