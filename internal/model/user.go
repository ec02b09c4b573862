package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleDoctor     Role = "Doctor"
	RolePatient    Role = "Patient"
	RolePharmacist Role = "Pharmacist"
	RoleAdmin      Role = "Admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleDoctor, RolePatient, RolePharmacist, RoleAdmin:
		return true
	}
	return false
}

// RequiresApproval reports whether accounts of this role start unverified.
func (r Role) RequiresApproval() bool {
	return r == RoleDoctor || r == RolePharmacist
}

type User struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Email           string    `db:"email" json:"email"`
	Name            string    `db:"name" json:"name"`
	Role            Role      `db:"role" json:"role"`
	PasswordHash    string    `db:"password_hash" json:"-"`
	Phone           *string   `db:"phone" json:"phone,omitempty"`
	Verified        bool      `db:"verified" json:"verified"`
	Specialization  *string   `db:"specialization" json:"specialization,omitempty"`
	Department      *string   `db:"department" json:"department,omitempty"`
	Qualification   *string   `db:"qualification" json:"qualification,omitempty"`
	LicenseNumber   *string   `db:"license_number" json:"licenseNumber,omitempty"`
	ExperienceYears *int      `db:"experience_years" json:"experienceYears,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// PendingApproval reports whether an admin still has to verify the account.
func (u *User) PendingApproval() bool {
	return !u.Verified
}

type UserFilter struct {
	Role       *Role
	Verified   *bool
	Department string
	Name       string
}

type UpdateUserRequest struct {
	Name            *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Phone           *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Specialization  *string `json:"specialization,omitempty" validate:"omitempty,max=100"`
	Department      *string `json:"department,omitempty" validate:"omitempty,max=100"`
	Qualification   *string `json:"qualification,omitempty" validate:"omitempty,max=100"`
	LicenseNumber   *string `json:"licenseNumber,omitempty" validate:"omitempty,max=50"`
	ExperienceYears *int    `json:"experienceYears,omitempty" validate:"omitempty,min=0,max=80"`
}
