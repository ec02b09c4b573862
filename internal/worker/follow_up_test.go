package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/event"
	"github.com/jwalitptl/hospital-api/internal/testutil"
	"github.com/jwalitptl/hospital-api/pkg/logger"
)

func completedWithFollowUp(t *testing.T, f *testutil.Fixture, patient string, followUp model.Date) {
	t.Helper()
	ctx := context.Background()

	apt := &model.Appointment{
		PatientID:       uuid.New(),
		PatientName:     patient,
		DoctorID:        uuid.New(),
		DoctorName:      "Dr. X",
		AppointmentDate: followUp.AddDays(-14),
		AppointmentTime: "10:00 AM",
		Status:          model.AppointmentStatusScheduled,
	}
	require.NoError(t, f.Appointments.Create(ctx, apt))
	_, err := f.Appointments.Complete(ctx, apt.ID, model.Completion{FollowUpDate: &followUp}, testutil.Now)
	require.NoError(t, err)
}

func TestFollowUpReminderRecordsDueEvents(t *testing.T) {
	f := testutil.NewFixture(t)
	today := testutil.Today()
	completedWithFollowUp(t, f, "Jane Doe", today)
	completedWithFollowUp(t, f, "John Roe", today.AddDays(1))

	r := NewFollowUpReminder(f.Appointments, f.Tx, f.Events, logger.Nop())
	r.now = testutil.Clock

	n, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{event.FollowUpDue}, f.PendingEvents(t))
}

func TestFollowUpReminderNothingDue(t *testing.T) {
	f := testutil.NewFixture(t)
	r := NewFollowUpReminder(f.Appointments, f.Tx, f.Events, logger.Nop())
	r.now = testutil.Clock

	n, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.PendingEvents(t))
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(logger.Nop(), time.Second)
	err := s.Add("broken", "not a spec", func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestSchedulerRunLogsFailures(t *testing.T) {
	s := NewScheduler(logger.Nop(), time.Second)

	var calls atomic.Int32
	s.run("failing", func(ctx context.Context) error {
		calls.Add(1)
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return errors.New("boom")
	})
	assert.Equal(t, int32(1), calls.Load())
}

func TestSchedulerStopsWithContext(t *testing.T) {
	s := NewScheduler(logger.Nop(), time.Second)
	require.NoError(t, s.Add("noop", "@every 1h", func(context.Context) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
