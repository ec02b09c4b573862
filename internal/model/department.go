package model

import (
	"time"

	"github.com/google/uuid"
)

// Department is an entry in the registry appointments are booked against.
// Names are unique regardless of case.
type Department struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Head        *string   `db:"head" json:"head,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

type DepartmentFilter struct {
	Active *bool
}

type CreateDepartmentRequest struct {
	Name        string  `json:"name" validate:"required,notblank,max=100"`
	Description *string `json:"description,omitempty" validate:"omitnil,max=500"`
	Head        *string `json:"head,omitempty" validate:"omitnil,max=100"`
	// Active defaults to true.
	Active *bool `json:"active,omitempty"`
}

type UpdateDepartmentRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitnil,notblank,max=100"`
	Description *string `json:"description,omitempty" validate:"omitnil,max=500"`
	Head        *string `json:"head,omitempty" validate:"omitnil,max=100"`
	Active      *bool   `json:"active,omitempty"`
}

// DefaultDepartments is the registry a fresh installation starts with.
func DefaultDepartments() []Department {
	seed := []struct{ name, description string }{
		{"General Medicine", "Primary care and general health consultations"},
		{"Cardiology", "Heart and cardiovascular system"},
		{"Dermatology", "Skin, hair and nail conditions"},
		{"Neurology", "Brain and nervous system disorders"},
		{"Orthopedics", "Bones, joints and muscles"},
		{"Pediatrics", "Medical care for infants and children"},
		{"Gynecology", "Women's reproductive health"},
		{"ENT", "Ear, nose and throat"},
		{"Ophthalmology", "Eye care and vision"},
		{"Psychiatry", "Mental health and behavioural disorders"},
	}
	out := make([]Department, 0, len(seed))
	for _, d := range seed {
		desc := d.description
		out = append(out, Department{Name: d.name, Description: &desc, Active: true})
	}
	return out
}
