package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/appointment"
	"github.com/jwalitptl/hospital-api/internal/service/event"
	"github.com/jwalitptl/hospital-api/internal/testutil"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

func newService(fx *testutil.Fixture) *Service {
	return NewService(fx.Users, fx.Appointments, fx.Prescriptions, fx.Tx, fx.Events, fx.Validator)
}

func TestAdminOnly(t *testing.T) {
	fx := testutil.NewFixture(t)
	svc := newService(fx)
	_, patient := fx.Seed(t, model.RolePatient, "Jane Doe", true)

	_, err := svc.List(context.Background(), patient, model.UserFilter{})
	assert.True(t, apperrors.Has(err, apperrors.ErrForbidden))

	_, err = svc.Verify(context.Background(), patient, "anyone@example.com")
	assert.True(t, apperrors.Has(err, apperrors.ErrForbidden))
}

func TestVerifyPendingDoctor(t *testing.T) {
	fx := testutil.NewFixture(t)
	svc := newService(fx)
	ctx := context.Background()
	_, admin := fx.Seed(t, model.RoleAdmin, "Admin", true)
	doctor, _ := fx.Seed(t, model.RoleDoctor, "Dr. New", false)
	fx.Seed(t, model.RolePatient, "Jane Doe", true)

	pending, err := svc.ListPending(ctx, admin)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, doctor.ID, pending[0].ID)

	verified, err := svc.Verify(ctx, admin, doctor.Email)
	require.NoError(t, err)
	assert.True(t, verified.Verified)
	assert.Equal(t, []string{event.UserVerified}, fx.PendingEvents(t))

	pending, err = svc.ListPending(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, pending)

	doctors, err := svc.ListDoctors(ctx, "")
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, "Dr. New", doctors[0].Name)
}

func TestUpdate(t *testing.T) {
	fx := testutil.NewFixture(t)
	svc := newService(fx)
	_, admin := fx.Seed(t, model.RoleAdmin, "Admin", true)
	doctor, _ := fx.Seed(t, model.RoleDoctor, "Dr. X", true)

	dept := "Cardiology"
	updated, err := svc.Update(context.Background(), admin, doctor.Email, &model.UpdateUserRequest{Department: &dept})
	require.NoError(t, err)
	require.NotNil(t, updated.Department)
	assert.Equal(t, "Cardiology", *updated.Department)

	doctors, err := svc.ListDoctors(context.Background(), "cardiology")
	require.NoError(t, err)
	assert.Len(t, doctors, 1)

	_, err = svc.Update(context.Background(), admin, "ghost@example.com", &model.UpdateUserRequest{Department: &dept})
	assert.True(t, apperrors.Has(err, apperrors.ErrNotFound))
}

func TestDeleteCascades(t *testing.T) {
	fx := testutil.NewFixture(t)
	svc := newService(fx)
	ctx := context.Background()
	_, admin := fx.Seed(t, model.RoleAdmin, "Admin", true)
	patient, patientSess := fx.Seed(t, model.RolePatient, "Jane Doe", true)
	fx.Seed(t, model.RoleDoctor, "Dr. X", true)

	apts := appointment.NewService(fx.Appointments, fx.Users, fx.Departments, fx.Tx, fx.Events, fx.Validator, fx.Metrics,
		appointment.WithClock(testutil.Clock))
	_, err := apts.Book(ctx, patientSess, &model.BookAppointmentRequest{
		PatientName:     "Jane Doe",
		Age:             34,
		Gender:          "Female",
		Department:      "General Medicine",
		Doctor:          "Dr. X",
		AppointmentDate: testutil.Today(),
		AppointmentTime: "10:00 AM",
		Reason:          "Fever",
		IssueDays:       2,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, admin, patient.Email))

	left, err := fx.Appointments.List(ctx, model.AppointmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = svc.Get(ctx, admin, patient.Email)
	assert.True(t, apperrors.Has(err, apperrors.ErrNotFound))

	err = svc.Delete(ctx, admin, "Admin@example.com")
	assert.True(t, apperrors.Has(err, apperrors.ErrNotFound))
}

func TestListByRoleRejectsUnknownRole(t *testing.T) {
	fx := testutil.NewFixture(t)
	_, admin := fx.Seed(t, model.RoleAdmin, "Admin", true)

	_, err := newService(fx).ListByRole(context.Background(), admin, "Nurse")
	assert.True(t, apperrors.Has(err, apperrors.ErrValidation))
}
