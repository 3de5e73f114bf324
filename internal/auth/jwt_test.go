package auth

import (
	"testing"
	"time"
)

func TestGenerateAndVerifyToken(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	raw, err := m.GenerateToken("user-1", "a@x.com", "user")

	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	claims, err := m.VerifyToken(raw)

	if err != nil {
		t.Fatalf("VerifyToken rejected a fresh token: %v", err)
	}

	if claims.UserID != "user-1" || claims.Email != "a@x.com" || claims.Role != "user" {
		t.Fatalf("claims do not round-trip: %+v", claims)
	}
}

func TestVerifyTokenFailures(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	tests := []struct {
		name  string
		token func() string
	}{
		{
			name: "expired",
			token: func() string {
				expired := NewManager("test-secret", -time.Minute)
				raw, err := expired.GenerateToken("user-1", "a@x.com", "user")
				if err != nil {
					t.Fatalf("GenerateToken returned error: %v", err)
				}
				return raw
			},
		},
		{
			name: "wrong secret",
			token: func() string {
				other := NewManager("other-secret", time.Hour)
				raw, err := other.GenerateToken("user-1", "a@x.com", "user")
				if err != nil {
					t.Fatalf("GenerateToken returned error: %v", err)
				}
				return raw
			},
		},
		{
			name:  "malformed",
			token: func() string { return "not.a.token" },
		},
		{
			name:  "empty",
			token: func() string { return "" },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.VerifyToken(tc.token())

			if err == nil {
				t.Fatalf("VerifyToken accepted a %s token", tc.name)
			}
		})
	}
}
