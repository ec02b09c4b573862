package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

type appointmentRepository struct {
	s *Store
}

func NewAppointmentRepository(s *Store) repository.AppointmentRepository {
	return &appointmentRepository{s: s}
}

func (r *appointmentRepository) Create(_ context.Context, apt *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if apt.ID == uuid.Nil {
		apt.ID = uuid.New()
	}
	now := time.Now()
	apt.CreatedAt = now
	apt.UpdatedAt = now

	if err := r.s.appointments.Add(apt.ID.String(), *apt, cache.NoExpiration); err != nil {
		return repository.ErrDuplicate
	}
	return nil
}

func (r *appointmentRepository) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, ok := get[model.Appointment](r.s.appointments, id.String())
	if !ok {
		return nil, repository.ErrNotFound
	}
	return apt, nil
}

func (r *appointmentRepository) List(_ context.Context, f model.AppointmentFilter) ([]*model.Appointment, error) {
	keep := func(a *model.Appointment) bool {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			return false
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			return false
		}
		if f.Status != nil && a.Status != *f.Status {
			return false
		}
		return true
	}
	less := func(a, b *model.Appointment) bool {
		if !a.AppointmentDate.Equal(b.AppointmentDate) {
			return b.AppointmentDate.Before(a.AppointmentDate)
		}
		if a.AppointmentTime != b.AppointmentTime {
			return a.AppointmentTime > b.AppointmentTime
		}
		return a.CreatedAt.After(b.CreatedAt)
	}
	return values(r.s.appointments, keep, less), nil
}

// update applies fn to a Scheduled appointment under the store lock.
func (r *appointmentRepository) update(id uuid.UUID, fn func(*model.Appointment)) (*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	apt, ok := get[model.Appointment](r.s.appointments, id.String())
	if !ok {
		return nil, repository.ErrNotFound
	}
	if apt.Status != model.AppointmentStatusScheduled {
		return nil, repository.ErrStaleState
	}
	fn(apt)
	apt.UpdatedAt = time.Now()
	r.s.appointments.Set(id.String(), *apt, cache.NoExpiration)
	return apt, nil
}

func (r *appointmentRepository) Reschedule(_ context.Context, apt *model.Appointment) error {
	updated, err := r.update(apt.ID, func(cur *model.Appointment) {
		cur.AppointmentDate = apt.AppointmentDate
		cur.AppointmentTime = apt.AppointmentTime
		cur.Reason = apt.Reason
		cur.IssueDays = apt.IssueDays
		cur.ContactNumber = apt.ContactNumber
	})
	if err != nil {
		return err
	}
	apt.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *appointmentRepository) Cancel(_ context.Context, id uuid.UUID, reason string, _ time.Time) (*model.Appointment, error) {
	return r.update(id, func(cur *model.Appointment) {
		cur.Status = model.AppointmentStatusCancelled
		if reason != "" {
			cur.CancellationReason = &reason
		}
	})
}

func (r *appointmentRepository) Complete(_ context.Context, id uuid.UUID, c model.Completion, _ time.Time) (*model.Appointment, error) {
	return r.update(id, func(cur *model.Appointment) {
		cur.Status = model.AppointmentStatusCompleted
		cur.PrescriptionGiven = c.PrescriptionGiven
		cur.FollowUpRequired = c.FollowUpDate != nil
		cur.FollowUpDate = c.FollowUpDate
	})
}

func (r *appointmentRepository) ListFollowUpsDue(_ context.Context, day model.Date) ([]*model.Appointment, error) {
	keep := func(a *model.Appointment) bool {
		return a.FollowUpRequired && a.FollowUpDate != nil && a.FollowUpDate.Equal(day)
	}
	less := func(a, b *model.Appointment) bool { return a.PatientName < b.PatientName }
	return values(r.s.appointments, keep, less), nil
}

func (r *appointmentRepository) DeleteByPatient(_ context.Context, patientID uuid.UUID) (int64, error) {
	return r.deleteWhere(func(a *model.Appointment) bool { return a.PatientID == patientID }), nil
}

func (r *appointmentRepository) DeleteByDoctor(_ context.Context, doctorID uuid.UUID) (int64, error) {
	return r.deleteWhere(func(a *model.Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (r *appointmentRepository) deleteWhere(match func(*model.Appointment) bool) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, a := range values(r.s.appointments, match, nil) {
		r.s.appointments.Delete(a.ID.String())
		n++
	}
	return n
}
