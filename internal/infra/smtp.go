package infra

import (
	"errors"
	"fmt"
	"net/smtp"

	"cajapos/internal/config"

	"github.com/jordan-wright/email"
)

var ErrMailerDisabled = errors.New("mailer: SMTP_HOST not configured")

// Mailer sends shift reports over SMTP.
type Mailer struct {
	host     string
	user     string
	password string
	addr     string
	send     func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

func (m *Mailer) Enabled() bool { return m.host != "" }

// SendReport mails body to the recipients with the PDF at pdfPath attached.
func (m *Mailer) SendReport(to []string, subject, body, pdfPath string) error {
	if !m.Enabled() {
		return ErrMailerDisabled
	}
	e := email.NewEmail()
	e.From = m.user
	e.To = to
	e.Subject = subject
	e.Text = []byte(body)

	if pdfPath != "" {
		if _, err := e.AttachFile(pdfPath); err != nil {
			return fmt.Errorf("mailer: attach PDF: %w", err)
		}
	}

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	if err := m.send(e, m.addr, auth); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}
