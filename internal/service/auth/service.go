package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/session"
	"github.com/jwalitptl/hospital-api/pkg/auth"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/security"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionRevoked     = errors.New("session has been signed out")
)

const (
	msgSignedUp        = "Account created successfully"
	msgAwaitingReview  = "Account created, waiting for admin approval"
	msgLoggedIn        = "Login successful"
	msgPendingApproval = "Account is waiting for admin approval"
)

type Service struct {
	userRepo repository.UserRepository
	tokens   *auth.TokenManager
	hasher   security.PasswordHasher
	sessions *session.Store
	validate *validator.Validator
}

func NewService(userRepo repository.UserRepository, tokens *auth.TokenManager, hasher security.PasswordHasher,
	sessions *session.Store, validate *validator.Validator) *Service {
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
		hasher:   hasher,
		sessions: sessions,
		validate: validate,
	}
}

// Signup creates an account. Doctors and pharmacists start unverified and
// cannot log in until an admin approves them.
func (s *Service) Signup(ctx context.Context, req *model.SignupRequest) (*model.AuthResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to hash password: %w", err))
	}

	user := &model.User{
		ID:              uuid.New(),
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		Name:            strings.TrimSpace(req.Name),
		Role:            req.Role,
		PasswordHash:    hash,
		Verified:        !req.Role.RequiresApproval(),
		Phone:           optional(req.Phone),
		Specialization:  optional(req.Specialization),
		Department:      optional(req.Department),
		Qualification:   optional(req.Qualification),
		LicenseNumber:   optional(req.LicenseNumber),
		ExperienceYears: optionalInt(req.ExperienceYears),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("email is already registered", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to create user: %w", err))
	}

	msg := msgSignedUp
	if user.PendingApproval() {
		msg = msgAwaitingReview
	}
	return &model.AuthResponse{Success: true, Message: msg, User: user}, nil
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return nil, apperrors.Unauthorized(ErrInvalidCredentials)
		}
		return nil, apperrors.Internal(err)
	}

	if user.Role.RequiresApproval() && user.PendingApproval() {
		return nil, apperrors.PendingApproval(msgPendingApproval)
	}

	token, _, err := s.tokens.Issue(user.ID, user.Email, user.Name, string(user.Role))
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &model.AuthResponse{Success: true, Message: msgLoggedIn, User: user, Token: token}, nil
}

// Logout revokes the session. Its token is rejected from then on.
func (s *Service) Logout(_ context.Context, sess *session.Session) {
	s.sessions.Revoke(sess)
}

// Authenticate turns a bearer token into a session, reloading the account so
// that deleted or unapproved users are turned away.
func (s *Service) Authenticate(ctx context.Context, token string) (*session.Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	if s.sessions.IsRevoked(claims.ID) {
		return nil, apperrors.Unauthorized(ErrSessionRevoked)
	}

	user, err := s.userRepo.Get(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthorized(fmt.Errorf("account no longer exists: %w", err))
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if user.Role.RequiresApproval() && user.PendingApproval() {
		return nil, apperrors.PendingApproval(msgPendingApproval)
	}

	sess, err := session.New(claims.ID, user, claims.IssuedAt.Time, claims.ExpiresAt.Time)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	return sess, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optionalInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
