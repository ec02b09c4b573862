// Package testutil wires the in-memory store for service and handler tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/repository/memory"
	"github.com/jwalitptl/hospital-api/internal/service/event"
	"github.com/jwalitptl/hospital-api/internal/session"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

// Now is the fixed instant every fixture clock reports.
var Now = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func Clock() time.Time { return Now }

// Today is the calendar day of Now.
func Today() model.Date { return model.DateOf(Now) }

type Fixture struct {
	Store         *memory.Store
	Appointments  repository.AppointmentRepository
	Prescriptions repository.PrescriptionRepository
	Users         repository.UserRepository
	Departments   repository.DepartmentRepository
	Outbox        repository.OutboxRepository
	Tx            repository.TxManager
	Metrics       *metrics.Metrics
	Events        *event.Recorder
	Validator     *validator.Validator
}

// NewFixture returns an empty store whose department registry holds the
// default departments.
func NewFixture(t testing.TB) *Fixture {
	t.Helper()

	store := memory.NewStore()
	m := metrics.New("test")
	outbox := memory.NewOutboxRepository(store)
	departments := memory.NewDepartmentRepository(store)
	for _, d := range model.DefaultDepartments() {
		d := d
		require.NoError(t, departments.Create(context.Background(), &d))
	}
	return &Fixture{
		Store:         store,
		Appointments:  memory.NewAppointmentRepository(store),
		Prescriptions: memory.NewPrescriptionRepository(store),
		Users:         memory.NewUserRepository(store),
		Departments:   departments,
		Outbox:        outbox,
		Tx:            store.TxManager(),
		Metrics:       m,
		Events:        event.NewRecorder(outbox, m),
		Validator:     validator.New(validator.WithClock(Clock)),
	}
}

// Seed stores a user and returns it with a live session.
func (f *Fixture) Seed(t testing.TB, role model.Role, name string, verified bool) (*model.User, *session.Session) {
	t.Helper()

	user := &model.User{
		ID:       uuid.New(),
		Email:    uuid.NewString() + "@example.com",
		Name:     name,
		Role:     role,
		Verified: verified,
	}
	require.NoError(t, f.Users.Create(context.Background(), user))

	sess, err := session.New(uuid.NewString(), user, Now, Now.Add(time.Hour))
	require.NoError(t, err)
	return user, sess
}

// PendingEvents returns the outbox event types not yet published.
func (f *Fixture) PendingEvents(t testing.TB) []string {
	t.Helper()

	events, err := f.Outbox.ListPending(context.Background(), 100)
	require.NoError(t, err)
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType)
	}
	return types
}
