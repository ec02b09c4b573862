package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/hospital-api/pkg/logger"
)

// Message is a single plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

type Service interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// dialer is the part of gomail.Dialer used here.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPService struct {
	dialer dialer
	from   string
}

func NewSMTPService(cfg SMTPConfig) *SMTPService {
	return &SMTPService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPService) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	return nil
}

// LogService writes messages to the log instead of sending them. Used when
// no SMTP host is configured.
type LogService struct {
	logger *logger.Logger
}

func NewLogService(log *logger.Logger) *LogService {
	return &LogService{logger: log}
}

func (s *LogService) Send(_ context.Context, msg Message) error {
	s.logger.Info("email not sent, smtp disabled",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}
