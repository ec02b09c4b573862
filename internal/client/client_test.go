package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/testutil"
	"github.com/jwalitptl/hospital-api/internal/testutil/apitest"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

const password = "correct-horse-1"

func signup(t *testing.T, c *Client, req model.SignupRequest) {
	t.Helper()
	req.Password = password
	_, err := c.Signup(context.Background(), &req)
	require.NoError(t, err)
}

func login(t *testing.T, c *Client, email string) *Session {
	t.Helper()
	s, err := c.Login(context.Background(), email, password)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

// hospital signs up an admin, Dr. X, Pharm A and Jane Doe, and approves the
// staff accounts.
func hospital(t *testing.T) *Client {
	t.Helper()
	srv := apitest.NewServer(t)
	c, err := New(srv.URL())
	require.NoError(t, err)

	signup(t, c, model.SignupRequest{Name: "Admin", Email: "admin@hospital.test", Role: model.RoleAdmin})
	signup(t, c, model.SignupRequest{
		Name:           "Dr. X",
		Email:          "drx@hospital.test",
		Role:           model.RoleDoctor,
		Specialization: "Cardiology",
		Department:     "Cardiology",
		LicenseNumber:  "D-1001",
	})
	signup(t, c, model.SignupRequest{Name: "Pharm A", Email: "pharma@hospital.test", Role: model.RolePharmacist, LicenseNumber: "P-2001"})
	signup(t, c, model.SignupRequest{Name: "Jane Doe", Email: "jane@example.com", Role: model.RolePatient})

	_, err = c.Login(context.Background(), "drx@hospital.test", password)
	require.Error(t, err)
	assert.True(t, apperrors.Has(err, apperrors.ErrPendingApproval), "got %v", err)

	admin := login(t, c, "admin@hospital.test")
	for _, email := range []string{"drx@hospital.test", "pharma@hospital.test"} {
		u, err := admin.VerifyUser(context.Background(), email)
		require.NoError(t, err)
		assert.True(t, u.Verified)
	}
	return c
}

func bookRequest() *model.BookAppointmentRequest {
	return &model.BookAppointmentRequest{
		PatientName:     "Jane Doe",
		Age:             34,
		Gender:          "Female",
		ContactNumber:   "5551234567",
		Department:      "Cardiology",
		Doctor:          "Dr. X",
		AppointmentDate: testutil.Today().AddDays(1),
		AppointmentTime: "10:00 AM",
		Reason:          "Chest pain",
		IssueDays:       3,
	}
}

func TestBookCompleteDispense(t *testing.T) {
	ctx := context.Background()
	c := hospital(t)

	jane := login(t, c, "jane@example.com")
	apt, err := jane.Book(ctx, bookRequest())
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
	assert.Equal(t, "Dr. X", apt.DoctorName)
	assert.Equal(t, jane.User.ID, apt.PatientID)

	doctor := login(t, c, "drx@hospital.test")
	upcoming, err := doctor.ListAppointments(ctx, AppointmentQuery{Scope: "upcoming"})
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, apt.ID, upcoming[0].ID)

	p, err := doctor.Complete(ctx, apt.ID, &model.CreatePrescriptionRequest{
		Diagnosis: "Angina",
		Symptoms:  "Chest pain",
		Medicines: []model.Medicine{
			{Name: "Aspirin", Dosage: "100mg", Frequency: "once daily", Duration: "30 days", Quantity: 30},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.DispenseStatusPending, p.DispensedStatus)

	completed, err := jane.GetAppointment(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, completed.Status)
	assert.True(t, completed.PrescriptionGiven)

	pharmacist := login(t, c, "pharma@hospital.test")
	dispensed, err := pharmacist.Dispense(ctx, p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.DispenseStatusDispensed, dispensed.DispensedStatus)
	require.NotNil(t, dispensed.DispensedBy)
	assert.Equal(t, "Pharm A", *dispensed.DispensedBy)

	_, err = pharmacist.Dispense(ctx, p.ID, "Someone Else")
	assert.True(t, apperrors.Has(err, apperrors.ErrInvalidTransition), "got %v", err)

	found, err := jane.FindPrescription(ctx, "Jane Doe", &apt.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)
	assert.Equal(t, "Pharm A", *found.DispensedBy)

	_, err = jane.Cancel(ctx, apt.ID, "changed my mind")
	assert.True(t, apperrors.Has(err, apperrors.ErrInvalidTransition), "got %v", err)

	board, err := jane.Dashboard(ctx)
	require.NoError(t, err)
	assert.Empty(t, board.Upcoming)
	require.Len(t, board.Past, 1)
	assert.Equal(t, model.AppointmentStatusCompleted, board.Past[0].Status)
	require.Len(t, board.Prescriptions, 1)
}

func TestBookReportsEveryInvalidField(t *testing.T) {
	c := hospital(t)
	jane := login(t, c, "jane@example.com")

	req := bookRequest()
	req.Age = 0
	req.AppointmentDate = testutil.Today().AddDays(-1)
	req.AppointmentTime = "soon"

	_, err := jane.Book(context.Background(), req)
	require.Error(t, err)

	appErr := apperrors.From(err)
	assert.Equal(t, apperrors.ErrValidation, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode())

	fields := make([]string, 0, len(appErr.Fields))
	for _, f := range appErr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"age", "appointmentDate", "appointmentTime"}, fields)
}

func TestBookAgainstDepartmentRegistry(t *testing.T) {
	ctx := context.Background()
	c := hospital(t)
	jane := login(t, c, "jane@example.com")

	departments, err := jane.ListActiveDepartments(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(departments))
	for _, d := range departments {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, "Cardiology")

	req := bookRequest()
	req.Department = "Astrology"
	_, err = jane.Book(ctx, req)
	require.True(t, apperrors.Has(err, apperrors.ErrValidation), "got %v", err)
	require.Len(t, apperrors.From(err).Fields, 1)
	assert.Equal(t, "department", apperrors.From(err).Fields[0].Field)
}

func TestRoleDashboards(t *testing.T) {
	ctx := context.Background()
	c := hospital(t)

	jane := login(t, c, "jane@example.com")
	_, err := jane.Book(ctx, bookRequest())
	require.NoError(t, err)

	admin := login(t, c, "admin@hospital.test")
	board, err := admin.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, board.Role)
	assert.Len(t, board.Users, 4)
	assert.Empty(t, board.PendingUsers)
	assert.Len(t, board.Upcoming, 1)

	pharmacist := login(t, c, "pharma@hospital.test")
	board, err = pharmacist.Dashboard(ctx)
	require.NoError(t, err)
	assert.Empty(t, board.Upcoming)
	assert.Empty(t, board.Prescriptions)

	_, err = pharmacist.ListAppointments(ctx, AppointmentQuery{})
	assert.True(t, apperrors.Has(err, apperrors.ErrForbidden), "got %v", err)
}

func TestCloseRevokesToken(t *testing.T) {
	ctx := context.Background()
	c := hospital(t)

	jane, err := c.Login(ctx, "jane@example.com", password)
	require.NoError(t, err)
	token := jane.token

	require.NoError(t, jane.Close(ctx))

	_, err = jane.ListAppointments(ctx, AppointmentQuery{})
	assert.True(t, apperrors.Has(err, apperrors.ErrUnauthorized), "got %v", err)

	err = c.call(ctx, request{method: http.MethodGet, path: endpoint("appointments"), token: token}, nil)
	assert.True(t, apperrors.Has(err, apperrors.ErrUnauthorized), "got %v", err)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	c := hospital(t)

	_, err := c.Login(context.Background(), "jane@example.com", "wrong-password")
	require.Error(t, err)
	assert.True(t, apperrors.Has(err, apperrors.ErrUnauthorized), "got %v", err)
	assert.Equal(t, http.StatusUnauthorized, apperrors.From(err).StatusCode())
}

func TestRemoteErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	err = c.call(context.Background(), request{method: http.MethodGet, path: endpoint("appointments")}, nil)
	appErr := apperrors.From(err)
	assert.Equal(t, apperrors.ErrRemote, appErr.Code)
	assert.Equal(t, http.StatusBadGateway, appErr.StatusCode())

	srv.Close()
	err = c.call(context.Background(), request{method: http.MethodGet, path: endpoint("appointments")}, nil)
	appErr = apperrors.From(err)
	assert.Equal(t, apperrors.ErrRemote, appErr.Code)
	assert.Equal(t, "could not reach the server", appErr.Message)
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8080", "ftp://example.com"} {
		_, err := New(raw)
		assert.Error(t, err, raw)
	}
}
