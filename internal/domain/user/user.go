package user

import (
	"errors"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// How an account authenticates. Google accounts have no password hash;
// local accounts have no provider subject.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrEmailTaken  = errors.New("email already in use")
	ErrAdminExists = errors.New("admin account already exists")
)

type User struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	Role         string  `json:"role"`
	AuthProvider string  `json:"-"`
	PasswordHash *string `json:"-"` // never expose hash in JSON
	// Subject claim from the external identity provider, google accounts only.
	ProviderSubject *string `json:"-"`

	ResetOTP  *string    `json:"-"`
	OTPExpiry *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Profile is the public shape of a user returned by the API.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}
