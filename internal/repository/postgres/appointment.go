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

const appointmentColumns = `
	id, patient_id, patient_name, doctor_id, doctor_name, age, gender,
	contact_number, department, reason, issue_days, appointment_date,
	appointment_time, status, prescription_given, follow_up_required,
	follow_up_date, cancellation_reason, created_at, updated_at`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func (r *appointmentRepository) Create(ctx context.Context, apt *model.Appointment) error {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	if apt.ID == uuid.Nil {
		apt.ID = uuid.New()
	}
	now := time.Now()
	apt.CreatedAt = now
	apt.UpdatedAt = now

	_, err := r.conn(ctx).ExecContext(ctx, query,
		apt.ID,
		apt.PatientID,
		apt.PatientName,
		apt.DoctorID,
		apt.DoctorName,
		apt.Age,
		apt.Gender,
		apt.ContactNumber,
		apt.Department,
		apt.Reason,
		apt.IssueDays,
		apt.AppointmentDate,
		apt.AppointmentTime,
		apt.Status,
		apt.PrescriptionGiven,
		apt.FollowUpRequired,
		apt.FollowUpDate,
		apt.CancellationReason,
		apt.CreatedAt,
		apt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", translate(err))
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var apt model.Appointment
	if err := r.conn(ctx).GetContext(ctx, &apt, query, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", translate(err))
	}
	return &apt, nil
}

func (r *appointmentRepository) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
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
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY appointment_date DESC, appointment_time DESC, created_at DESC"

	var apts []*model.Appointment
	if err := r.conn(ctx).SelectContext(ctx, &apts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return apts, nil
}

func (r *appointmentRepository) Reschedule(ctx context.Context, apt *model.Appointment) error {
	query := `
		UPDATE appointments
		SET appointment_date = $2, appointment_time = $3, reason = $4,
			issue_days = $5, contact_number = $6, updated_at = $7
		WHERE id = $1 AND status = 'Scheduled'
	`
	apt.UpdatedAt = time.Now()

	result, err := r.conn(ctx).ExecContext(ctx, query,
		apt.ID,
		apt.AppointmentDate,
		apt.AppointmentTime,
		apt.Reason,
		apt.IssueDays,
		apt.ContactNumber,
		apt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to reschedule appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return r.missingOrStale(ctx, "appointments", apt.ID)
	}
	return nil
}

func (r *appointmentRepository) Cancel(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*model.Appointment, error) {
	query := `
		UPDATE appointments
		SET status = 'Cancelled', cancellation_reason = $2, updated_at = $3
		WHERE id = $1 AND status = 'Scheduled'
		RETURNING ` + appointmentColumns

	var reasonArg *string
	if reason != "" {
		reasonArg = &reason
	}
	return r.transition(ctx, id, query, id, reasonArg, at)
}

func (r *appointmentRepository) Complete(ctx context.Context, id uuid.UUID, c model.Completion, at time.Time) (*model.Appointment, error) {
	query := `
		UPDATE appointments
		SET status = 'Completed', prescription_given = $2,
			follow_up_required = $3, follow_up_date = $4, updated_at = $5
		WHERE id = $1 AND status = 'Scheduled'
		RETURNING ` + appointmentColumns

	return r.transition(ctx, id, query, id, c.PrescriptionGiven, c.FollowUpDate != nil, c.FollowUpDate, at)
}

func (r *appointmentRepository) transition(ctx context.Context, id uuid.UUID, query string, args ...interface{}) (*model.Appointment, error) {
	var apt model.Appointment
	err := r.conn(ctx).GetContext(ctx, &apt, query, args...)
	if err == nil {
		return &apt, nil
	}
	if err = translate(err); !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to update appointment status: %w", err)
	}
	return nil, r.missingOrStale(ctx, "appointments", id)
}

func (r *appointmentRepository) ListFollowUpsDue(ctx context.Context, day model.Date) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE follow_up_required AND follow_up_date = $1
		ORDER BY patient_name
	`
	var apts []*model.Appointment
	if err := r.conn(ctx).SelectContext(ctx, &apts, query, day); err != nil {
		return nil, fmt.Errorf("failed to list follow-ups: %w", err)
	}
	return apts, nil
}

func (r *appointmentRepository) DeleteByPatient(ctx context.Context, patientID uuid.UUID) (int64, error) {
	return r.deleteWhere(ctx, "patient_id", patientID)
}

func (r *appointmentRepository) DeleteByDoctor(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	return r.deleteWhere(ctx, "doctor_id", doctorID)
}

func (r *appointmentRepository) deleteWhere(ctx context.Context, column string, id uuid.UUID) (int64, error) {
	result, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM appointments WHERE `+column+` = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete appointments: %w", err)
	}
	return result.RowsAffected()
}
