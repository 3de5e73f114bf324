package oauth

import (
	"context"
	"errors"

	"google.golang.org/api/idtoken"
)

var ErrInvalidToken = errors.New("invalid identity token")

// Identity is what the provider asserts about the caller.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// Verifier checks an externally issued identity token. Kept small so
// handler tests can fake it.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (Identity, error)
}

// GoogleVerifier validates Google ID tokens against our OAuth client id.
// Trust in the signature chain is delegated to Google's JWKS; we do not
// re-validate it ourselves.
type GoogleVerifier struct {
	clientID string
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID}
}

func (v *GoogleVerifier) Verify(ctx context.Context, rawToken string) (Identity, error) {
	if rawToken == "" {
		return Identity{}, ErrInvalidToken
	}

	payload, err := idtoken.Validate(ctx, rawToken, v.clientID)

	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	id := Identity{Subject: payload.Subject}

	if email, ok := payload.Claims["email"].(string); ok {
		id.Email = email
	}

	if name, ok := payload.Claims["name"].(string); ok {
		id.Name = name
	}

	if id.Email == "" {
		// Without an email we cannot map the identity to a local account.
		return Identity{}, ErrInvalidToken
	}

	return id, nil
}
