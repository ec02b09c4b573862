package prescription

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/appointment"
	"github.com/jwalitptl/hospital-api/internal/service/event"
	"github.com/jwalitptl/hospital-api/internal/session"
	"github.com/jwalitptl/hospital-api/internal/testutil"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

type suite struct {
	fx         *testutil.Fixture
	apts       *appointment.Service
	svc        *Service
	patient    *session.Session
	doctor     *session.Session
	pharmacist *session.Session
	ctx        context.Context
}

func newSuite(t *testing.T) *suite {
	fx := testutil.NewFixture(t)
	_, patient := fx.Seed(t, model.RolePatient, "Jane Doe", true)
	_, doctor := fx.Seed(t, model.RoleDoctor, "Dr. X", true)
	_, pharmacist := fx.Seed(t, model.RolePharmacist, "Pharm A", true)

	apts := appointment.NewService(fx.Appointments, fx.Users, fx.Departments, fx.Tx, fx.Events, fx.Validator, fx.Metrics,
		appointment.WithClock(testutil.Clock))
	return &suite{
		fx:         fx,
		apts:       apts,
		svc:        NewService(fx.Prescriptions, fx.Appointments, apts, fx.Tx, fx.Events, fx.Validator, fx.Metrics, WithClock(testutil.Clock)),
		patient:    patient,
		doctor:     doctor,
		pharmacist: pharmacist,
		ctx:        context.Background(),
	}
}

func (s *suite) book(t *testing.T, date model.Date) *model.Appointment {
	t.Helper()
	apt, err := s.apts.Book(s.ctx, s.patient, &model.BookAppointmentRequest{
		PatientName:     "Jane Doe",
		Age:             34,
		Gender:          "Female",
		Department:      "General Medicine",
		Doctor:          "Dr. X",
		AppointmentDate: date,
		AppointmentTime: "10:00 AM",
		Reason:          "Fever",
		IssueDays:       3,
	})
	require.NoError(t, err)
	return apt
}

func aspirin() []model.Medicine {
	return []model.Medicine{{Name: "Aspirin", Dosage: "100mg", Frequency: "Once daily", Duration: "5 days", Quantity: 5}}
}

func (s *suite) prescribe(t *testing.T, apt *model.Appointment) *model.Prescription {
	t.Helper()
	p, err := s.svc.Create(s.ctx, s.doctor, &model.CreatePrescriptionRequest{
		AppointmentID: apt.ID,
		Medicines:     aspirin(),
	})
	require.NoError(t, err)
	return p
}

func TestCreateCompletesAppointment(t *testing.T) {
	s := newSuite(t)
	apt := s.book(t, testutil.Today())
	followUp := testutil.Today().AddDays(14)

	p, err := s.svc.Create(s.ctx, s.doctor, &model.CreatePrescriptionRequest{
		AppointmentID: apt.ID,
		Diagnosis:     "Viral fever",
		Medicines:     aspirin(),
		FollowUpDate:  &followUp,
	})
	require.NoError(t, err)

	assert.Equal(t, model.DispenseStatusPending, p.DispensedStatus)
	assert.Equal(t, "Jane Doe", p.PatientName)
	assert.Equal(t, s.patient.UserID, p.PatientID)
	assert.True(t, testutil.Today().Equal(p.CreatedDate))
	assert.Len(t, p.Medicines, 1)

	stored, err := s.fx.Appointments.Get(s.ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, stored.Status)
	assert.True(t, stored.PrescriptionGiven)
	assert.True(t, stored.FollowUpRequired)
	require.NotNil(t, stored.FollowUpDate)
	assert.True(t, followUp.Equal(*stored.FollowUpDate))

	assert.ElementsMatch(t, []string{
		event.AppointmentBooked, event.AppointmentCompleted, event.PrescriptionCreated,
	}, s.fx.PendingEvents(t))
}

func TestCreateRejectsEmptyMedicines(t *testing.T) {
	s := newSuite(t)
	apt := s.book(t, testutil.Today())

	for _, meds := range [][]model.Medicine{nil, {}} {
		_, err := s.svc.Create(s.ctx, s.doctor, &model.CreatePrescriptionRequest{AppointmentID: apt.ID, Medicines: meds})
		require.True(t, apperrors.Has(err, apperrors.ErrValidation))
		assert.Equal(t, "medicines", apperrors.From(err).Fields[0].Field)
	}

	stored, err := s.fx.Appointments.Get(s.ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusScheduled, stored.Status)
	assert.False(t, stored.PrescriptionGiven)

	ps, err := s.fx.Prescriptions.List(s.ctx, model.PrescriptionFilter{})
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestCreateReportsMedicineFields(t *testing.T) {
	s := newSuite(t)
	apt := s.book(t, testutil.Today())

	_, err := s.svc.Create(s.ctx, s.doctor, &model.CreatePrescriptionRequest{
		AppointmentID: apt.ID,
		Medicines: []model.Medicine{
			aspirin()[0],
			{Name: "Paracetamol"},
		},
	})
	require.True(t, apperrors.Has(err, apperrors.ErrValidation))

	var fields []string
	for _, f := range apperrors.From(err).Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{
		"medicines[1].dosage", "medicines[1].frequency", "medicines[1].duration", "medicines[1].quantity",
	}, fields)
}

func TestCreateRejectsBlankMedicineFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(m *model.Medicine)
		fields []string
	}{
		{"blank name", func(m *model.Medicine) { m.Name = "   " }, []string{"medicines[0].name"}},
		{"blank dosage", func(m *model.Medicine) { m.Dosage = "\t" }, []string{"medicines[0].dosage"}},
		{"everything blank", func(m *model.Medicine) {
			m.Name, m.Dosage, m.Frequency, m.Duration = "   ", " ", " ", " "
		}, []string{"medicines[0].name", "medicines[0].dosage", "medicines[0].frequency", "medicines[0].duration"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newSuite(t)
			apt := s.book(t, testutil.Today())
			meds := aspirin()
			tc.mutate(&meds[0])

			_, err := s.svc.Create(s.ctx, s.doctor, &model.CreatePrescriptionRequest{AppointmentID: apt.ID, Medicines: meds})
			require.True(t, apperrors.Has(err, apperrors.ErrValidation))

			var fields []string
			for _, f := range apperrors.From(err).Fields {
				fields = append(fields, f.Field)
				assert.Equal(t, "must not be blank", f.Message)
			}
			assert.ElementsMatch(t, tc.fields, fields)

			stored, err := s.fx.Appointments.Get(s.ctx, apt.ID)
			require.NoError(t, err)
			assert.Equal(t, model.AppointmentStatusScheduled, stored.Status)
			assert.False(t, stored.PrescriptionGiven)

			ps, err := s.fx.Prescriptions.List(s.ctx, model.PrescriptionFilter{})
			require.NoError(t, err)
			assert.Empty(t, ps)
		})
	}
}

func TestUpdateRejectsBlankMedicines(t *testing.T) {
	s := newSuite(t)
	p := s.prescribe(t, s.book(t, testutil.Today()))

	meds := aspirin()
	meds[0].Name = "  "
	_, err := s.svc.Update(s.ctx, s.doctor, p.ID, &model.UpdatePrescriptionRequest{Medicines: meds})
	require.True(t, apperrors.Has(err, apperrors.ErrValidation))
	assert.Equal(t, "medicines[0].name", apperrors.From(err).Fields[0].Field)

	stored, err := s.fx.Prescriptions.Get(s.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", stored.Medicines[0].Name)
	assert.False(t, stored.Edited)
}

func TestCreateOnTerminalAppointmentRollsBack(t *testing.T) {
	s := newSuite(t)
	apt := s.book(t, testutil.Today())
	_, err := s.apts.Cancel(s.ctx, s.patient, apt.ID, "")
	require.NoError(t, err)

	_, err = s.svc.Create(s.ctx, s.doctor, &model.CreatePrescriptionRequest{AppointmentID: apt.ID, Medicines: aspirin()})
	assert.True(t, apperrors.Has(err, apperrors.ErrInvalidTransition))

	ps, err := s.fx.Prescriptions.List(s.ctx, model.PrescriptionFilter{})
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestCreateTwiceIsRejected(t *testing.T) {
	s := newSuite(t)
	apt := s.book(t, testutil.Today())
	s.prescribe(t, apt)

	_, err := s.svc.Create(s.ctx, s.doctor, &model.CreatePrescriptionRequest{AppointmentID: apt.ID, Medicines: aspirin()})
	assert.True(t, apperrors.Has(err, apperrors.ErrInvalidTransition))
}

func TestCreateRequiresAssignedDoctor(t *testing.T) {
	s := newSuite(t)
	apt := s.book(t, testutil.Today())
	_, other := s.fx.Seed(t, model.RoleDoctor, "Dr. Y", true)

	_, err := s.svc.Create(s.ctx, other, &model.CreatePrescriptionRequest{AppointmentID: apt.ID, Medicines: aspirin()})
	assert.True(t, apperrors.Has(err, apperrors.ErrForbidden))

	_, err = s.svc.Create(s.ctx, s.pharmacist, &model.CreatePrescriptionRequest{AppointmentID: apt.ID, Medicines: aspirin()})
	assert.True(t, apperrors.Has(err, apperrors.ErrForbidden))
}

func TestDispense(t *testing.T) {
	s := newSuite(t)
	p := s.prescribe(t, s.book(t, testutil.Today()))

	done, err := s.svc.Dispense(s.ctx, s.pharmacist, &model.DispenseRequest{ID: p.ID, PharmacistName: "Pharm A"})
	require.NoError(t, err)
	assert.Equal(t, model.DispenseStatusDispensed, done.DispensedStatus)
	require.NotNil(t, done.DispensedBy)
	assert.Equal(t, "Pharm A", *done.DispensedBy)
	require.NotNil(t, done.DispensedDate)
	assert.True(t, testutil.Now.Equal(*done.DispensedDate))

	_, other := s.fx.Seed(t, model.RolePharmacist, "Pharm B", true)
	_, err = s.svc.Dispense(s.ctx, other, &model.DispenseRequest{ID: p.ID, PharmacistName: "Pharm B"})
	assert.True(t, apperrors.Has(err, apperrors.ErrInvalidTransition))

	stored, err := s.fx.Prescriptions.Get(s.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pharm A", *stored.DispensedBy)
	assert.True(t, testutil.Now.Equal(*stored.DispensedDate))
}

func TestDispenseDefaultsToCallerName(t *testing.T) {
	s := newSuite(t)
	p := s.prescribe(t, s.book(t, testutil.Today()))

	done, err := s.svc.Dispense(s.ctx, s.pharmacist, &model.DispenseRequest{ID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, "Pharm A", *done.DispensedBy)
}

func TestDispenseOnlyByPharmacists(t *testing.T) {
	s := newSuite(t)
	p := s.prescribe(t, s.book(t, testutil.Today()))

	_, err := s.svc.Dispense(s.ctx, s.doctor, &model.DispenseRequest{ID: p.ID})
	assert.True(t, apperrors.Has(err, apperrors.ErrForbidden))

	_, err = s.svc.Dispense(s.ctx, s.pharmacist, &model.DispenseRequest{ID: uuid.New()})
	assert.True(t, apperrors.Has(err, apperrors.ErrNotFound))
}

func TestUpdate(t *testing.T) {
	s := newSuite(t)
	p := s.prescribe(t, s.book(t, testutil.Today()))
	_, err := s.svc.Dispense(s.ctx, s.pharmacist, &model.DispenseRequest{ID: p.ID})
	require.NoError(t, err)

	diagnosis := "Influenza"
	updated, err := s.svc.Update(s.ctx, s.doctor, p.ID, &model.UpdatePrescriptionRequest{
		Diagnosis: &diagnosis,
		Medicines: []model.Medicine{{Name: "Oseltamivir", Dosage: "75mg", Frequency: "Twice daily", Duration: "5 days", Quantity: 10}},
	})
	require.NoError(t, err)
	assert.True(t, updated.Edited)
	require.NotNil(t, updated.LastEditedDate)
	assert.True(t, testutil.Now.Equal(*updated.LastEditedDate))
	assert.Equal(t, "Influenza", updated.Diagnosis)
	assert.Equal(t, "Oseltamivir", updated.Medicines[0].Name)
	assert.Equal(t, model.DispenseStatusDispensed, updated.DispensedStatus)

	_, other := s.fx.Seed(t, model.RoleDoctor, "Dr. Y", true)
	_, err = s.svc.Update(s.ctx, other, p.ID, &model.UpdatePrescriptionRequest{Diagnosis: &diagnosis})
	assert.True(t, apperrors.Has(err, apperrors.ErrForbidden))
}

func TestMatchForAppointment(t *testing.T) {
	today := testutil.Today()
	newest := &model.Prescription{ID: uuid.New(), CreatedDate: today}
	older := &model.Prescription{ID: uuid.New(), CreatedDate: today.AddDays(-7)}
	candidates := []*model.Prescription{newest, older}

	tests := []struct {
		name string
		apt  *model.Appointment
		want *model.Prescription
	}{
		{"date match", &model.Appointment{AppointmentDate: today.AddDays(-7)}, older},
		{"no date match falls back to newest", &model.Appointment{AppointmentDate: today.AddDays(-30)}, newest},
		{"no appointment", nil, newest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Same(t, tt.want, MatchForAppointment(candidates, tt.apt))
		})
	}

	assert.Nil(t, MatchForAppointment(nil, nil))
}

func TestFindForPatient(t *testing.T) {
	s := newSuite(t)
	apt := s.book(t, testutil.Today())
	p := s.prescribe(t, apt)

	got, err := s.svc.FindForPatient(s.ctx, s.patient, "jane doe", &apt.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	got, err = s.svc.FindForPatient(s.ctx, s.pharmacist, "Jane Doe", nil)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = s.svc.FindForPatient(s.ctx, s.pharmacist, "Nobody", nil)
	assert.True(t, apperrors.Has(err, apperrors.ErrNotFound))

	// A namesake patient never sees someone else's prescription.
	_, namesake := s.fx.Seed(t, model.RolePatient, "Jane Doe", true)
	_, err = s.svc.FindForPatient(s.ctx, namesake, "Jane Doe", nil)
	assert.True(t, apperrors.Has(err, apperrors.ErrNotFound))
}

func TestFindForPatientUsesAppointmentOutsideCallerScope(t *testing.T) {
	s := newSuite(t)
	older := s.book(t, testutil.Today())
	later := s.book(t, testutil.Today().AddDays(3))

	write := func(apt *model.Appointment) *model.Prescription {
		p := &model.Prescription{
			AppointmentID:   apt.ID,
			PatientID:       apt.PatientID,
			PatientName:     apt.PatientName,
			DoctorID:        apt.DoctorID,
			Medicines:       aspirin(),
			CreatedDate:     apt.AppointmentDate,
			DispensedStatus: model.DispenseStatusPending,
		}
		require.NoError(t, s.fx.Prescriptions.Create(s.ctx, p))
		return p
	}
	first, second := write(older), write(later)

	// Pharmacists cannot open appointments, but the id still steers the match.
	got, err := s.svc.FindForPatient(s.ctx, s.pharmacist, "Jane Doe", &older.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	// An unknown appointment falls back to the newest prescription.
	missing := uuid.New()
	got, err = s.svc.FindForPatient(s.ctx, s.pharmacist, "Jane Doe", &missing)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}
