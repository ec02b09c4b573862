package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

const prescriptionColumns = `
	id, appointment_id, patient_id, patient_name, doctor_id, doctor_name,
	age, gender, diagnosis, symptoms, additional_notes, medicines,
	follow_up_date, created_date, dispensed_status, dispensed_by,
	dispensed_date, edited, last_edited_date, created_at, updated_at`

type prescriptionRepository struct {
	BaseRepository
}

func NewPrescriptionRepository(base BaseRepository) repository.PrescriptionRepository {
	return &prescriptionRepository{base}
}

func (r *prescriptionRepository) Create(ctx context.Context, p *model.Prescription) error {
	query := `
		INSERT INTO prescriptions (` + prescriptionColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.conn(ctx).ExecContext(ctx, query,
		p.ID,
		p.AppointmentID,
		p.PatientID,
		p.PatientName,
		p.DoctorID,
		p.DoctorName,
		p.Age,
		p.Gender,
		p.Diagnosis,
		p.Symptoms,
		p.AdditionalNotes,
		p.Medicines,
		p.FollowUpDate,
		p.CreatedDate,
		p.DispensedStatus,
		p.DispensedBy,
		p.DispensedDate,
		p.Edited,
		p.LastEditedDate,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create prescription: %w", translate(err))
	}
	return nil
}

func (r *prescriptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	return r.getBy(ctx, "id", id)
}

func (r *prescriptionRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Prescription, error) {
	return r.getBy(ctx, "appointment_id", appointmentID)
}

func (r *prescriptionRepository) getBy(ctx context.Context, column string, id uuid.UUID) (*model.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE ` + column + ` = $1`

	var p model.Prescription
	if err := r.conn(ctx).GetContext(ctx, &p, query, id); err != nil {
		return nil, fmt.Errorf("failed to get prescription: %w", translate(err))
	}
	return &p, nil
}

// List orders newest first; the name lookup relies on that order.
func (r *prescriptionRepository) List(ctx context.Context, filter model.PrescriptionFilter) ([]*model.Prescription, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		conds = append(conds, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if filter.DoctorID != nil {
		args = append(args, *filter.DoctorID)
		conds = append(conds, fmt.Sprintf("doctor_id = $%d", len(args)))
	}
	if filter.PatientName != "" {
		args = append(args, strings.TrimSpace(filter.PatientName))
		conds = append(conds, fmt.Sprintf("lower(patient_name) = lower($%d)", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("dispensed_status = $%d", len(args)))
	}

	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_date DESC, created_at DESC"

	var list []*model.Prescription
	if err := r.conn(ctx).SelectContext(ctx, &list, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return list, nil
}

func (r *prescriptionRepository) Update(ctx context.Context, p *model.Prescription) error {
	query := `
		UPDATE prescriptions
		SET diagnosis = $2, symptoms = $3, additional_notes = $4, medicines = $5,
			follow_up_date = $6, edited = $7, last_edited_date = $8, updated_at = $9
		WHERE id = $1
	`
	p.UpdatedAt = time.Now()

	result, err := r.conn(ctx).ExecContext(ctx, query,
		p.ID,
		p.Diagnosis,
		p.Symptoms,
		p.AdditionalNotes,
		p.Medicines,
		p.FollowUpDate,
		p.Edited,
		p.LastEditedDate,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update prescription: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *prescriptionRepository) Dispense(ctx context.Context, id uuid.UUID, by string, at time.Time) (*model.Prescription, error) {
	query := `
		UPDATE prescriptions
		SET dispensed_status = 'Dispensed', dispensed_by = $2, dispensed_date = $3, updated_at = $3
		WHERE id = $1 AND dispensed_status = 'Pending'
		RETURNING ` + prescriptionColumns

	var p model.Prescription
	err := r.conn(ctx).GetContext(ctx, &p, query, id, by, at)
	if err == nil {
		return &p, nil
	}
	if err = translate(err); !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to dispense prescription: %w", err)
	}
	return nil, r.missingOrStale(ctx, "prescriptions", id)
}

func (r *prescriptionRepository) DeleteByPatient(ctx context.Context, patientID uuid.UUID) (int64, error) {
	return r.deleteWhere(ctx, "patient_id", patientID)
}

func (r *prescriptionRepository) DeleteByDoctor(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	return r.deleteWhere(ctx, "doctor_id", doctorID)
}

func (r *prescriptionRepository) deleteWhere(ctx context.Context, column string, id uuid.UUID) (int64, error) {
	result, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM prescriptions WHERE `+column+` = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete prescriptions: %w", err)
	}
	return result.RowsAffected()
}
