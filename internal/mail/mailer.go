package mail

import "context"

type SendPasswordResetInput struct {
	Email string
	Name  string
	OTP   string
}

type Mailer interface {
	SendPasswordReset(ctx context.Context, input SendPasswordResetInput) error
}
