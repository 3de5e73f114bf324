package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jsensharma/carhub/internal/config"
	"github.com/jsensharma/carhub/internal/domain/user"
	"github.com/jsensharma/carhub/internal/security"
)

// EnsureAdminUser seeds the single admin account from config. A no-op
// when unset, when the account exists, or when some admin already holds
// the slot.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	// check if the user exists

	var dummy string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, cfg.AdminEmail).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Email:        cfg.AdminEmail,
		Name:         cfg.AdminName,
		Role:         user.RoleAdmin,
		AuthProvider: user.ProviderLocal,
		PasswordHash: &hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO users (id, email, name, role, auth_provider, password_hash, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT DO NOTHING`,
		u.ID, u.Email, u.Name, u.Role, u.AuthProvider, u.PasswordHash, u.CreatedAt, u.UpdatedAt,
	)

	return err
}
