package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository/memory"
	"github.com/jwalitptl/hospital-api/internal/service/rbac"
	"github.com/jwalitptl/hospital-api/internal/session"
	"github.com/jwalitptl/hospital-api/pkg/auth"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/security"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewService(
		memory.NewUserRepository(store),
		auth.NewTokenManager("test-secret", "hospital-api", time.Hour),
		security.NewBcryptHasher(4),
		session.NewStore(time.Minute),
		validator.New(),
	), store
}

func signup(role model.Role) *model.SignupRequest {
	req := &model.SignupRequest{
		Name:     "Jane Doe",
		Email:    "jane@example.com",
		Password: "correct-horse",
		Role:     role,
	}
	if role == model.RoleDoctor {
		req.Specialization = "Cardiology"
		req.Department = "Cardiology"
	}
	if role.RequiresApproval() {
		req.LicenseNumber = "LIC-1"
	}
	return req
}

func TestSignupAndLoginPatient(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	resp, err := svc.Signup(ctx, signup(model.RolePatient))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.True(t, resp.User.Verified)

	login, err := svc.Login(ctx, &model.LoginRequest{Email: "JANE@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, model.RolePatient, login.User.Role)

	sess, err := svc.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, login.User.ID, sess.UserID)
	assert.Equal(t, rbac.ScopeOwn, sess.Permissions.Appointments)
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, signup(model.RolePatient))
	require.NoError(t, err)

	_, err = svc.Signup(ctx, signup(model.RolePatient))
	assert.True(t, apperrors.Has(err, apperrors.ErrConflict))
}

func TestSignupDoctorNeedsApproval(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	resp, err := svc.Signup(ctx, signup(model.RoleDoctor))
	require.NoError(t, err)
	assert.Equal(t, msgAwaitingReview, resp.Message)
	assert.False(t, resp.User.Verified)

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "jane@example.com", Password: "correct-horse"})
	assert.True(t, apperrors.Has(err, apperrors.ErrPendingApproval))

	require.NoError(t, memory.NewUserRepository(store).SetVerified(ctx, resp.User.ID, true))
	_, err = svc.Login(ctx, &model.LoginRequest{Email: "jane@example.com", Password: "correct-horse"})
	assert.NoError(t, err)
}

func TestSignupDoctorRequiresProfile(t *testing.T) {
	svc, _ := newService(t)

	req := signup(model.RoleDoctor)
	req.Specialization, req.LicenseNumber = "", ""

	_, err := svc.Signup(context.Background(), req)
	require.True(t, apperrors.Has(err, apperrors.ErrValidation))
	var fields []string
	for _, f := range apperrors.From(err).Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"specialization", "licenseNumber"}, fields)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Signup(ctx, signup(model.RolePatient))
	require.NoError(t, err)

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "jane@example.com", Password: "wrong-password"})
	assert.True(t, apperrors.Has(err, apperrors.ErrUnauthorized))

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "nobody@example.com", Password: "correct-horse"})
	assert.True(t, apperrors.Has(err, apperrors.ErrUnauthorized))
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Signup(ctx, signup(model.RolePatient))
	require.NoError(t, err)
	login, err := svc.Login(ctx, &model.LoginRequest{Email: "jane@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	sess, err := svc.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	svc.Logout(ctx, sess)

	_, err = svc.Authenticate(ctx, login.Token)
	assert.True(t, apperrors.Has(err, apperrors.ErrUnauthorized))
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Authenticate(context.Background(), "not-a-token")
	assert.True(t, apperrors.Has(err, apperrors.ErrUnauthorized))
}
