// Package rbac maps an authenticated role to what it may see and do.
package rbac

import (
	"errors"
	"fmt"

	"github.com/jwalitptl/hospital-api/internal/model"
)

var ErrUnknownRole = errors.New("unknown role")

// Scope bounds which records of a kind a role can read.
type Scope int

const (
	ScopeNone     Scope = iota
	ScopeOwn            // records where the caller is the patient
	ScopeAssigned       // records where the caller is the doctor
	ScopeAll
)

func (s Scope) String() string {
	switch s {
	case ScopeOwn:
		return "own"
	case ScopeAssigned:
		return "assigned"
	case ScopeAll:
		return "all"
	}
	return "none"
}

type Permissions struct {
	CanBook              bool  `json:"canBook"`
	CanCancelOwn         bool  `json:"canCancelOwn"`
	CanCompletePrescribe bool  `json:"canCompletePrescribe"`
	CanDispense          bool  `json:"canDispense"`
	CanManageUsers       bool  `json:"canManageUsers"`
	CanManageDepartments bool  `json:"canManageDepartments"`
	Appointments         Scope `json:"appointments"`
	Prescriptions        Scope `json:"prescriptions"`
}

// Visitor has one method per role. Adding a role to the system means adding
// a method here, which every visitor then has to implement.
type Visitor[T any] interface {
	Patient() T
	Doctor() T
	Pharmacist() T
	Admin() T
}

// Visit dispatches on role. Unknown roles return the zero T and ErrUnknownRole.
func Visit[T any](role model.Role, v Visitor[T]) (T, error) {
	switch role {
	case model.RolePatient:
		return v.Patient(), nil
	case model.RoleDoctor:
		return v.Doctor(), nil
	case model.RolePharmacist:
		return v.Pharmacist(), nil
	case model.RoleAdmin:
		return v.Admin(), nil
	}
	var zero T
	return zero, fmt.Errorf("%w: %q", ErrUnknownRole, role)
}

type permissionTable struct{}

func (permissionTable) Patient() Permissions {
	return Permissions{
		CanBook:       true,
		CanCancelOwn:  true,
		Appointments:  ScopeOwn,
		Prescriptions: ScopeOwn,
	}
}

func (permissionTable) Doctor() Permissions {
	return Permissions{
		CanCompletePrescribe: true,
		Appointments:         ScopeAssigned,
		Prescriptions:        ScopeAssigned,
	}
}

func (permissionTable) Pharmacist() Permissions {
	return Permissions{
		CanDispense:   true,
		Appointments:  ScopeNone,
		Prescriptions: ScopeAll,
	}
}

func (permissionTable) Admin() Permissions {
	return Permissions{
		CanManageUsers:       true,
		CanManageDepartments: true,
		Appointments:         ScopeAll,
		Prescriptions:        ScopeAll,
	}
}

// For returns the permission set of role. An unknown role gets no
// permissions at all.
func For(role model.Role) (Permissions, error) {
	return Visit[Permissions](role, permissionTable{})
}
