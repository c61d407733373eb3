package mail

import (
	"context"
	"errors"
	"fmt"

	"sparkclean/internal/config"
	"sparkclean/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

var ErrNotConfigured = errors.New("smtp is not configured")

// Sender delivers one composed message. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer renders account and admin emails and hands them to SMTP.
type Mailer struct {
	sender   Sender
	from     string
	siteName string
	logger   zerolog.Logger
}

func NewMailer(cfg config.SMTPConfig, app config.AppConfig, logger *zerolog.Logger) (*Mailer, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	return NewMailerWithSender(dialer, cfg.From, app.Name, logger), nil
}

func NewMailerWithSender(sender Sender, from, siteName string, logger *zerolog.Logger) *Mailer {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "mail").Logger()
	}
	if siteName == "" {
		siteName = "SparkClean"
	}
	return &Mailer{sender: sender, from: from, siteName: siteName, logger: l}
}

// SendEmail delivers the email for one outbox task type.
func (m *Mailer) SendEmail(_ context.Context, taskType string, task models.EmailTask) error {
	if task.To == "" {
		return errors.New("email recipient is required")
	}

	var subject, body, contentType string
	var err error
	data := templateData{Name: task.Name, SiteName: m.siteName, ConfirmationURL: task.ActionURL}
	switch taskType {
	case models.TaskEmailConfirmation:
		subject = "Confirm your signup"
		contentType = "text/html"
		body, err = render(confirmationTemplate, data)
	case models.TaskEmailPasswordReset:
		subject = "Reset your password"
		contentType = "text/html"
		body, err = render(resetTemplate, data)
	case models.TaskAdminEmail:
		subject = fmt.Sprintf("[%s] %s", m.siteName, task.Subject)
		contentType = "text/plain"
		body = task.Body
	default:
		return fmt.Errorf("unsupported email task %q", taskType)
	}
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", task.To)
	msg.SetHeader("Subject", subject)
	msg.SetBody(contentType, body)

	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	m.logger.Debug().Str("task_type", taskType).Str("to", task.To).Msg("email sent")
	return nil
}
