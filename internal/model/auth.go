package model

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SignupRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	Role            Role   `json:"role" validate:"required,oneof=Doctor Patient Pharmacist Admin"`
	Phone           string `json:"phone,omitempty" validate:"max=20"`
	Specialization  string `json:"specialization,omitempty" validate:"required_if=Role Doctor,max=100"`
	Department      string `json:"department,omitempty" validate:"required_if=Role Doctor,max=100"`
	Qualification   string `json:"qualification,omitempty" validate:"max=100"`
	LicenseNumber   string `json:"licenseNumber,omitempty" validate:"required_if=Role Doctor,required_if=Role Pharmacist,max=50"`
	ExperienceYears int    `json:"experienceYears,omitempty" validate:"min=0,max=80"`
}

// AuthResponse is the body of every /auth reply.
type AuthResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	User    *User  `json:"user,omitempty"`
	Token   string `json:"token,omitempty"`
}
