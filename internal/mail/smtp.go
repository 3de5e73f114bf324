package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer delivers the password-reset code over an authenticated
// SMTP connection.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, in SendPasswordResetInput) error {
	msg := gomail.NewMsg()

	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}

	if err := msg.To(in.Email); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}

	msg.Subject("Password Reset OTP")
	msg.SetBodyString(gomail.TypeTextPlain, fmt.Sprintf(
		"Your OTP for password reset is: %s. This OTP will expire in 10 minutes.", in.OTP,
	))

	client, err := gomail.NewClient(
		m.cfg.Host,
		gomail.WithPort(m.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.cfg.Username),
		gomail.WithPassword(m.cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	)

	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	defer func() { _ = client.Close() }()

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}

	return nil
}
