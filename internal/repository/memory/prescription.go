package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

type prescriptionRepository struct {
	s *Store
}

func NewPrescriptionRepository(s *Store) repository.PrescriptionRepository {
	return &prescriptionRepository{s: s}
}

func (r *prescriptionRepository) Create(_ context.Context, p *model.Prescription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range values[model.Prescription](r.s.prescriptions, nil, nil) {
		if existing.AppointmentID == p.AppointmentID {
			return repository.ErrDuplicate
		}
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Medicines = append(model.Medicines(nil), p.Medicines...)

	if err := r.s.prescriptions.Add(p.ID.String(), *p, cache.NoExpiration); err != nil {
		return repository.ErrDuplicate
	}
	return nil
}

func (r *prescriptionRepository) Get(_ context.Context, id uuid.UUID) (*model.Prescription, error) {
	p, ok := get[model.Prescription](r.s.prescriptions, id.String())
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (r *prescriptionRepository) GetByAppointment(_ context.Context, appointmentID uuid.UUID) (*model.Prescription, error) {
	found := values(r.s.prescriptions, func(p *model.Prescription) bool {
		return p.AppointmentID == appointmentID
	}, nil)
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return found[0], nil
}

func (r *prescriptionRepository) List(_ context.Context, f model.PrescriptionFilter) ([]*model.Prescription, error) {
	name := strings.TrimSpace(f.PatientName)
	keep := func(p *model.Prescription) bool {
		if f.PatientID != nil && p.PatientID != *f.PatientID {
			return false
		}
		if f.DoctorID != nil && p.DoctorID != *f.DoctorID {
			return false
		}
		if name != "" && !strings.EqualFold(p.PatientName, name) {
			return false
		}
		if f.Status != nil && p.DispensedStatus != *f.Status {
			return false
		}
		return true
	}
	less := func(a, b *model.Prescription) bool {
		if !a.CreatedDate.Equal(b.CreatedDate) {
			return b.CreatedDate.Before(a.CreatedDate)
		}
		return a.CreatedAt.After(b.CreatedAt)
	}
	return values(r.s.prescriptions, keep, less), nil
}

func (r *prescriptionRepository) Update(_ context.Context, p *model.Prescription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := get[model.Prescription](r.s.prescriptions, p.ID.String())
	if !ok {
		return repository.ErrNotFound
	}
	cur.Diagnosis = p.Diagnosis
	cur.Symptoms = p.Symptoms
	cur.AdditionalNotes = p.AdditionalNotes
	cur.Medicines = append(model.Medicines(nil), p.Medicines...)
	cur.FollowUpDate = p.FollowUpDate
	cur.Edited = p.Edited
	cur.LastEditedDate = p.LastEditedDate
	cur.UpdatedAt = time.Now()
	p.UpdatedAt = cur.UpdatedAt

	r.s.prescriptions.Set(p.ID.String(), *cur, cache.NoExpiration)
	return nil
}

func (r *prescriptionRepository) Dispense(_ context.Context, id uuid.UUID, by string, at time.Time) (*model.Prescription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := get[model.Prescription](r.s.prescriptions, id.String())
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.DispensedStatus != model.DispenseStatusPending {
		return nil, repository.ErrStaleState
	}
	p.DispensedStatus = model.DispenseStatusDispensed
	p.DispensedBy = &by
	p.DispensedDate = &at
	p.UpdatedAt = at

	r.s.prescriptions.Set(id.String(), *p, cache.NoExpiration)
	return p, nil
}

func (r *prescriptionRepository) DeleteByPatient(_ context.Context, patientID uuid.UUID) (int64, error) {
	return r.deleteWhere(func(p *model.Prescription) bool { return p.PatientID == patientID }), nil
}

func (r *prescriptionRepository) DeleteByDoctor(_ context.Context, doctorID uuid.UUID) (int64, error) {
	return r.deleteWhere(func(p *model.Prescription) bool { return p.DoctorID == doctorID }), nil
}

func (r *prescriptionRepository) deleteWhere(match func(*model.Prescription) bool) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, p := range values(r.s.prescriptions, match, nil) {
		r.s.prescriptions.Delete(p.ID.String())
		n++
	}
	return n
}
