package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/service/event"
	"github.com/jwalitptl/hospital-api/pkg/logger"
)

// FollowUpReminder records a FollowUpDue event for every completed
// appointment whose follow-up date is today.
type FollowUpReminder struct {
	appointments repository.AppointmentRepository
	tx           repository.TxManager
	events       *event.Recorder
	logger       *logger.Logger
	now          func() time.Time
}

func NewFollowUpReminder(appointments repository.AppointmentRepository, tx repository.TxManager, events *event.Recorder, log *logger.Logger) *FollowUpReminder {
	return &FollowUpReminder{
		appointments: appointments,
		tx:           tx,
		events:       events,
		logger:       log,
		now:          time.Now,
	}
}

// Run returns the number of reminders recorded.
func (r *FollowUpReminder) Run(ctx context.Context) (int, error) {
	day := model.DateOf(r.now())

	due, err := r.appointments.ListFollowUpsDue(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("failed to list follow-ups due %s: %w", day, err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	err = r.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, apt := range due {
			if err := r.events.Record(ctx, event.ForAppointment(event.FollowUpDue, apt)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record follow-up reminders: %w", err)
	}

	r.logger.Info("Recorded follow-up reminders", "count", len(due), "day", day.String())
	return len(due), nil
}
