package appointment

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/event"
	"github.com/jwalitptl/hospital-api/internal/session"
	"github.com/jwalitptl/hospital-api/internal/testutil"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

type suite struct {
	fx      *testutil.Fixture
	svc     *Service
	patient *session.Session
	doctor  *session.Session
	ctx     context.Context
}

func newSuite(t *testing.T) *suite {
	fx := testutil.NewFixture(t)
	_, patient := fx.Seed(t, model.RolePatient, "Jane Doe", true)
	_, doctor := fx.Seed(t, model.RoleDoctor, "Dr. X", true)
	return &suite{
		fx:      fx,
		svc:     NewService(fx.Appointments, fx.Users, fx.Departments, fx.Tx, fx.Events, fx.Validator, fx.Metrics, WithClock(testutil.Clock)),
		patient: patient,
		doctor:  doctor,
		ctx:     context.Background(),
	}
}

func bookRequest() *model.BookAppointmentRequest {
	return &model.BookAppointmentRequest{
		PatientName:     "Jane Doe",
		Age:             34,
		Gender:          "Female",
		Department:      "General Medicine",
		Doctor:          "Dr. X",
		AppointmentDate: testutil.Today().AddDays(1),
		AppointmentTime: "10:00 AM",
		Reason:          "Fever",
		IssueDays:       3,
	}
}

func (s *suite) book(t *testing.T) *model.Appointment {
	t.Helper()
	apt, err := s.svc.Book(s.ctx, s.patient, bookRequest())
	require.NoError(t, err)
	return apt
}

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	require.True(t, apperrors.Has(err, apperrors.ErrValidation), "want validation error, got %v", err)
	var names []string
	for _, f := range apperrors.From(err).Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestBook(t *testing.T) {
	s := newSuite(t)

	apt := s.book(t)

	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
	assert.Equal(t, s.patient.UserID, apt.PatientID)
	assert.Equal(t, s.doctor.UserID, apt.DoctorID)
	assert.Equal(t, "Dr. X", apt.DoctorName)
	assert.False(t, apt.PrescriptionGiven)
	assert.Nil(t, apt.FollowUpDate)
	assert.Equal(t, []string{event.AppointmentBooked}, s.fx.PendingEvents(t))

	stored, err := s.fx.Appointments.Get(s.ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, apt.ID, stored.ID)
}

func TestBookByDoctorID(t *testing.T) {
	s := newSuite(t)

	req := bookRequest()
	req.Doctor = ""
	req.DoctorID = &s.doctor.UserID

	apt, err := s.svc.Book(s.ctx, s.patient, req)
	require.NoError(t, err)
	assert.Equal(t, s.doctor.UserID, apt.DoctorID)
}

func TestBookReportsEveryInvalidField(t *testing.T) {
	s := newSuite(t)

	_, err := s.svc.Book(s.ctx, s.patient, &model.BookAppointmentRequest{})

	assert.ElementsMatch(t, []string{
		"patientName", "age", "gender", "department", "doctor",
		"appointmentDate", "appointmentTime", "reason", "issueDays",
	}, fieldNames(t, err))

	apts, err := s.fx.Appointments.List(s.ctx, model.AppointmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, apts)
	assert.Empty(t, s.fx.PendingEvents(t))
}

func TestBookRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.BookAppointmentRequest)
		field  string
	}{
		{"past date", func(r *model.BookAppointmentRequest) { r.AppointmentDate = testutil.Today().AddDays(-1) }, "appointmentDate"},
		{"bad time", func(r *model.BookAppointmentRequest) { r.AppointmentTime = "teatime" }, "appointmentTime"},
		{"short phone", func(r *model.BookAppointmentRequest) { r.ContactNumber = "12345" }, "contactNumber"},
		{"zero issue days", func(r *model.BookAppointmentRequest) { r.IssueDays = 0 }, "issueDays"},
		{"unknown gender", func(r *model.BookAppointmentRequest) { r.Gender = "N/A" }, "gender"},
		{"unknown doctor", func(r *model.BookAppointmentRequest) { r.Doctor = "Dr. Nobody" }, "doctor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSuite(t)
			req := bookRequest()
			tt.mutate(req)

			_, err := s.svc.Book(s.ctx, s.patient, req)
			assert.Equal(t, []string{tt.field}, fieldNames(t, err))
		})
	}
}

func TestBookRejectsBlankFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.BookAppointmentRequest)
		fields []string
	}{
		{"patient name", func(r *model.BookAppointmentRequest) { r.PatientName = "   " }, []string{"patientName"}},
		{"reason", func(r *model.BookAppointmentRequest) { r.Reason = "  " }, []string{"reason"}},
		{"department", func(r *model.BookAppointmentRequest) { r.Department = " " }, []string{"department"}},
		{"doctor", func(r *model.BookAppointmentRequest) { r.Doctor = "\t " }, []string{"doctor"}},
		{"all at once", func(r *model.BookAppointmentRequest) {
			r.PatientName, r.Reason, r.Department = "   ", "  ", " "
		}, []string{"patientName", "reason", "department"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSuite(t)
			req := bookRequest()
			tt.mutate(req)

			_, err := s.svc.Book(s.ctx, s.patient, req)
			assert.ElementsMatch(t, tt.fields, fieldNames(t, err))
			for _, f := range apperrors.From(err).Fields {
				assert.Equal(t, "must not be blank", f.Message, f.Field)
			}

			apts, err := s.fx.Appointments.List(s.ctx, model.AppointmentFilter{})
			require.NoError(t, err)
			assert.Empty(t, apts)
			assert.Empty(t, s.fx.PendingEvents(t))
		})
	}
}

func TestBookChecksDepartmentRegistry(t *testing.T) {
	s := newSuite(t)

	closed, err := s.fx.Departments.GetByName(s.ctx, "Psychiatry")
	require.NoError(t, err)
	closed.Active = false
	require.NoError(t, s.fx.Departments.Update(s.ctx, closed))

	tests := []struct {
		department string
		message    string
	}{
		{"Astrology", "is not a known department"},
		{"psychiatry", "is not accepting appointments"},
	}
	for _, tt := range tests {
		req := bookRequest()
		req.Department = tt.department

		_, err := s.svc.Book(s.ctx, s.patient, req)
		require.Equal(t, []string{"department"}, fieldNames(t, err), tt.department)
		assert.Equal(t, tt.message, apperrors.From(err).Fields[0].Message)
	}

	apts, err := s.fx.Appointments.List(s.ctx, model.AppointmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, apts)
	assert.Empty(t, s.fx.PendingEvents(t))

	req := bookRequest()
	req.Department = "  general medicine "
	apt, err := s.svc.Book(s.ctx, s.patient, req)
	require.NoError(t, err)
	assert.Equal(t, "General Medicine", apt.Department)
}

func TestBookReportsDepartmentWithOtherFields(t *testing.T) {
	s := newSuite(t)

	req := bookRequest()
	req.Department = "Astrology"
	req.Reason = " "

	_, err := s.svc.Book(s.ctx, s.patient, req)
	assert.ElementsMatch(t, []string{"department", "reason"}, fieldNames(t, err))
}

func TestBookTodayIsAllowed(t *testing.T) {
	s := newSuite(t)

	req := bookRequest()
	req.AppointmentDate = testutil.Today()

	_, err := s.svc.Book(s.ctx, s.patient, req)
	assert.NoError(t, err)
}

func TestBookRejectsUnverifiedDoctor(t *testing.T) {
	s := newSuite(t)
	s.fx.Seed(t, model.RoleDoctor, "Dr. Pending", false)

	req := bookRequest()
	req.Doctor = "Dr. Pending"

	_, err := s.svc.Book(s.ctx, s.patient, req)
	assert.Equal(t, []string{"doctor"}, fieldNames(t, err))
}

func TestBookOnlyByPatients(t *testing.T) {
	s := newSuite(t)

	_, err := s.svc.Book(s.ctx, s.doctor, bookRequest())
	assert.True(t, apperrors.Has(err, apperrors.ErrForbidden))
}

func TestCancel(t *testing.T) {
	s := newSuite(t)
	apt := s.book(t)

	cancelled, err := s.svc.Cancel(s.ctx, s.patient, apt.ID, "feeling better")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "feeling better", *cancelled.CancellationReason)
	assert.ElementsMatch(t, []string{event.AppointmentBooked, event.AppointmentCancelled}, s.fx.PendingEvents(t))

	_, err = s.svc.Cancel(s.ctx, s.patient, apt.ID, "")
	assert.True(t, apperrors.Has(err, apperrors.ErrInvalidTransition))
}

func TestCancelRequiresOwner(t *testing.T) {
	s := newSuite(t)
	apt := s.book(t)
	_, other := s.fx.Seed(t, model.RolePatient, "John Roe", true)

	_, err := s.svc.Cancel(s.ctx, other, apt.ID, "")
	assert.True(t, apperrors.Has(err, apperrors.ErrForbidden))

	_, err = s.svc.Cancel(s.ctx, s.doctor, apt.ID, "")
	assert.True(t, apperrors.Has(err, apperrors.ErrForbidden))

	stored, err := s.fx.Appointments.Get(s.ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusScheduled, stored.Status)
}

func TestCancelUnknownAppointment(t *testing.T) {
	s := newSuite(t)

	_, err := s.svc.Cancel(s.ctx, s.patient, uuid.New(), "")
	assert.True(t, apperrors.Has(err, apperrors.ErrNotFound))
}

func TestConcurrentCancelSucceedsOnce(t *testing.T) {
	s := newSuite(t)
	apt := s.book(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.svc.Cancel(s.ctx, s.patient, apt.ID, "")
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperrors.Has(err, apperrors.ErrInvalidTransition):
			rejected++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, rejected)
}

func TestComplete(t *testing.T) {
	s := newSuite(t)
	apt := s.book(t)
	followUp := testutil.Today().AddDays(7)

	done, err := s.svc.Complete(s.ctx, s.doctor, apt.ID, model.Completion{PrescriptionGiven: true, FollowUpDate: &followUp})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, done.Status)
	assert.True(t, done.PrescriptionGiven)
	assert.True(t, done.FollowUpRequired)
	require.NotNil(t, done.FollowUpDate)
	assert.True(t, followUp.Equal(*done.FollowUpDate))

	_, err = s.svc.Cancel(s.ctx, s.patient, apt.ID, "")
	assert.True(t, apperrors.Has(err, apperrors.ErrInvalidTransition))
}

func TestCompleteRequiresAssignedDoctor(t *testing.T) {
	s := newSuite(t)
	apt := s.book(t)
	_, other := s.fx.Seed(t, model.RoleDoctor, "Dr. Y", true)

	_, err := s.svc.Complete(s.ctx, other, apt.ID, model.Completion{})
	assert.True(t, apperrors.Has(err, apperrors.ErrForbidden))

	_, err = s.svc.Complete(s.ctx, s.patient, apt.ID, model.Completion{})
	assert.True(t, apperrors.Has(err, apperrors.ErrForbidden))
}

func TestUpdateStatus(t *testing.T) {
	s := newSuite(t)

	t.Run("completed", func(t *testing.T) {
		apt := s.book(t)
		done, err := s.svc.UpdateStatus(s.ctx, s.doctor, apt.ID, "Completed", "")
		require.NoError(t, err)
		assert.Equal(t, model.AppointmentStatusCompleted, done.Status)
		assert.False(t, done.PrescriptionGiven)
	})

	t.Run("cancelled", func(t *testing.T) {
		apt := s.book(t)
		done, err := s.svc.UpdateStatus(s.ctx, s.patient, apt.ID, "Cancelled", "clash")
		require.NoError(t, err)
		assert.Equal(t, model.AppointmentStatusCancelled, done.Status)
	})

	t.Run("scheduled", func(t *testing.T) {
		apt := s.book(t)
		_, err := s.svc.UpdateStatus(s.ctx, s.patient, apt.ID, "Scheduled", "")
		assert.True(t, apperrors.Has(err, apperrors.ErrInvalidTransition))
	})

	t.Run("unknown", func(t *testing.T) {
		apt := s.book(t)
		_, err := s.svc.UpdateStatus(s.ctx, s.patient, apt.ID, "Postponed", "")
		assert.Equal(t, []string{"status"}, fieldNames(t, err))
	})
}

func TestReschedule(t *testing.T) {
	s := newSuite(t)
	apt := s.book(t)
	newDate := testutil.Today().AddDays(5)
	newTime := "2:30 PM"

	moved, err := s.svc.Reschedule(s.ctx, s.patient, apt.ID, &model.RescheduleAppointmentRequest{
		AppointmentDate: &newDate,
		AppointmentTime: &newTime,
	})
	require.NoError(t, err)
	assert.True(t, newDate.Equal(moved.AppointmentDate))
	assert.Equal(t, "2:30 PM", moved.AppointmentTime)
	assert.Equal(t, model.AppointmentStatusScheduled, moved.Status)

	_, err = s.svc.Cancel(s.ctx, s.patient, apt.ID, "")
	require.NoError(t, err)

	_, err = s.svc.Reschedule(s.ctx, s.patient, apt.ID, &model.RescheduleAppointmentRequest{AppointmentDate: &newDate})
	assert.True(t, apperrors.Has(err, apperrors.ErrInvalidTransition))
}

func TestRescheduleRejectsBlankReason(t *testing.T) {
	s := newSuite(t)
	apt := s.book(t)

	for _, reason := range []string{"", "   "} {
		_, err := s.svc.Reschedule(s.ctx, s.patient, apt.ID, &model.RescheduleAppointmentRequest{Reason: &reason})
		assert.Equal(t, []string{"reason"}, fieldNames(t, err))
	}

	stored, err := s.fx.Appointments.Get(s.ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fever", stored.Reason)
	assert.Equal(t, model.AppointmentStatusScheduled, stored.Status)
}

func TestListIsScopedByRole(t *testing.T) {
	s := newSuite(t)
	mine := s.book(t)

	_, other := s.fx.Seed(t, model.RolePatient, "John Roe", true)
	_, err := s.svc.Book(s.ctx, other, bookRequest())
	require.NoError(t, err)

	_, pharmacist := s.fx.Seed(t, model.RolePharmacist, "Pharm A", true)
	_, admin := s.fx.Seed(t, model.RoleAdmin, "Admin", true)

	count := func(sess *session.Session) int {
		seq, err := s.svc.List(s.ctx, sess, ListOptions{})
		require.NoError(t, err)
		n := 0
		for apt := range seq {
			if sess.Role == model.RolePatient {
				assert.Equal(t, sess.UserID, apt.PatientID)
			}
			n++
		}
		return n
	}

	assert.Equal(t, 1, count(s.patient))
	assert.Equal(t, 2, count(s.doctor))
	assert.Equal(t, 2, count(admin))

	_, err = s.svc.List(s.ctx, pharmacist, ListOptions{})
	assert.True(t, apperrors.Has(err, apperrors.ErrForbidden))

	got, err := s.svc.Get(s.ctx, s.patient, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)

	_, err = s.svc.Get(s.ctx, other, mine.ID)
	assert.True(t, apperrors.Has(err, apperrors.ErrForbidden))
}

func TestListFiltersByStatus(t *testing.T) {
	s := newSuite(t)
	s.book(t)
	apt := s.book(t)
	_, err := s.svc.Cancel(s.ctx, s.patient, apt.ID, "")
	require.NoError(t, err)

	status := model.AppointmentStatusCancelled
	seq, err := s.svc.List(s.ctx, s.patient, ListOptions{Status: &status})
	require.NoError(t, err)

	var ids []uuid.UUID
	for a := range seq {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []uuid.UUID{apt.ID}, ids)

	bogus := model.AppointmentStatus("Lost")
	_, err = s.svc.List(s.ctx, s.patient, ListOptions{Status: &bogus})
	assert.True(t, apperrors.Has(err, apperrors.ErrValidation))
}

func TestPartition(t *testing.T) {
	today := testutil.Today()
	apts := []*model.Appointment{
		{Status: model.AppointmentStatusScheduled, AppointmentDate: today},
		{Status: model.AppointmentStatusScheduled, AppointmentDate: today.AddDays(3)},
		{Status: model.AppointmentStatusScheduled, AppointmentDate: today.AddDays(-1)},
		{Status: model.AppointmentStatusCompleted, AppointmentDate: today.AddDays(3)},
		{Status: model.AppointmentStatusCancelled, AppointmentDate: today},
	}
	seq := func(yield func(*model.Appointment) bool) {
		for _, a := range apts {
			if !yield(a) {
				return
			}
		}
	}

	upcoming, past := Partition(seq, today)
	assert.Equal(t, []*model.Appointment{apts[0], apts[1]}, upcoming)
	assert.Equal(t, []*model.Appointment{apts[2], apts[3], apts[4]}, past)
}
