// Package notification turns lifecycle events received from the broker into
// emails for the account they concern.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jwalitptl/hospital-api/internal/email"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/service/event"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/messaging"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

const (
	statusSent    = "sent"
	statusSkipped = "skipped"
	statusFailed  = "failed"
)

type Notifier struct {
	users   repository.UserRepository
	mail    email.Service
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewNotifier(users repository.UserRepository, mail email.Service, log *logger.Logger, m *metrics.Metrics) *Notifier {
	return &Notifier{
		users:   users,
		mail:    mail,
		logger:  log,
		metrics: m,
	}
}

// Start subscribes to every event channel. It returns once the subscription
// is open; messages are handled until ctx ends.
func (n *Notifier) Start(ctx context.Context, broker messaging.MessageBroker) error {
	if err := broker.Subscribe(ctx, n.Handle, event.Types...); err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}
	n.logger.Info("notifier subscribed", "channels", len(event.Types))
	return nil
}

// Handle sends the email for one event. Events with no email, or whose
// account no longer exists, are skipped.
func (n *Notifier) Handle(ctx context.Context, msg messaging.Message) error {
	var e event.Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		n.count(msg.Channel, statusFailed)
		return fmt.Errorf("failed to decode %s event: %w", msg.Channel, err)
	}
	if e.Type == "" {
		e.Type = msg.Channel
	}

	subject, body, ok := Compose(e)
	if !ok {
		n.count(e.Type, statusSkipped)
		return nil
	}

	user, err := n.users.Get(ctx, e.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		n.count(e.Type, statusSkipped)
		n.logger.Warn("recipient no longer exists", "event_type", e.Type, "user_id", e.UserID.String())
		return nil
	}
	if err != nil {
		n.count(e.Type, statusFailed)
		return fmt.Errorf("failed to load recipient: %w", err)
	}

	if err := n.mail.Send(ctx, email.Message{To: user.Email, Subject: subject, Body: body}); err != nil {
		n.count(e.Type, statusFailed)
		return err
	}
	n.count(e.Type, statusSent)
	return nil
}

func (n *Notifier) count(eventType, status string) {
	if n.metrics != nil {
		n.metrics.NotificationsSent.WithLabelValues(eventType, status).Inc()
	}
}

// Compose renders the subject and body for an event. ok is false for event
// types that are not mailed.
func Compose(e event.Event) (subject, body string, ok bool) {
	when := e.AppointmentDate
	if e.AppointmentTime != "" {
		when += " at " + e.AppointmentTime
	}

	switch e.Type {
	case event.AppointmentBooked:
		return "Appointment booked",
			fmt.Sprintf("Dear %s,\n\nYour appointment with %s is booked for %s.\n", e.PatientName, e.DoctorName, when), true
	case event.AppointmentRescheduled:
		return "Appointment rescheduled",
			fmt.Sprintf("Dear %s,\n\nYour appointment with %s now takes place on %s.\n", e.PatientName, e.DoctorName, when), true
	case event.AppointmentCancelled:
		body = fmt.Sprintf("Dear %s,\n\nYour appointment with %s on %s was cancelled.\n", e.PatientName, e.DoctorName, when)
		if e.Reason != "" {
			body += fmt.Sprintf("Reason: %s\n", e.Reason)
		}
		return "Appointment cancelled", body, true
	case event.AppointmentCompleted:
		body = fmt.Sprintf("Dear %s,\n\nYour appointment with %s on %s is complete.\n", e.PatientName, e.DoctorName, when)
		if e.FollowUpDate != "" {
			body += fmt.Sprintf("Please book a follow-up visit for %s.\n", e.FollowUpDate)
		}
		return "Appointment completed", body, true
	case event.FollowUpDue:
		return "Follow-up visit due",
			fmt.Sprintf("Dear %s,\n\n%s asked to see you again on %s. Please book an appointment.\n", e.PatientName, e.DoctorName, e.FollowUpDate), true
	case event.PrescriptionCreated:
		return "New prescription",
			fmt.Sprintf("Dear %s,\n\n%s wrote you a prescription. It is waiting at the pharmacy.\n", e.PatientName, e.DoctorName), true
	case event.PrescriptionDispensed:
		by := e.Actor
		if by == "" {
			by = "the pharmacy"
		}
		return "Prescription dispensed",
			fmt.Sprintf("Dear %s,\n\nYour prescription from %s was dispensed by %s.\n", e.PatientName, e.DoctorName, by), true
	case event.UserVerified:
		return "Account approved",
			fmt.Sprintf("Your %s account was approved by an administrator. You can now sign in.\n", e.Status), true
	}
	return "", "", false
}
