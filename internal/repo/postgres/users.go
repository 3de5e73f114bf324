package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jsensharma/carhub/internal/domain/user"
)

const uniqueViolation = "23505"

type UsersRepo struct {
	pool *pgxpool.Pool
}

func NewUsersRepo(pool *pgxpool.Pool) *UsersRepo {
	return &UsersRepo{pool: pool}
}

const userColumns = `id, email, name, role, auth_provider, password_hash, provider_subject,
	reset_otp, otp_expiry, created_at, updated_at`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Role,
		&u.AuthProvider,
		&u.PasswordHash,
		&u.ProviderSubject,
		&u.ResetOTP,
		&u.OTPExpiry,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

// Create inserts a new account. Uniqueness of the email and of the admin
// role are enforced by the database, so concurrent signups cannot race
// past an application-side existence check.
func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, name, role, auth_provider, password_hash, provider_subject, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+userColumns,
		u.ID, u.Email, u.Name, u.Role, u.AuthProvider, u.PasswordHash, u.ProviderSubject, u.CreatedAt, u.UpdatedAt,
	)

	created, err := scanUser(row)

	if err != nil {
		var pgErr *pgconn.PgError

		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if strings.Contains(pgErr.ConstraintName, "single_admin") {
				return user.User{}, user.ErrAdminExists
			}
			return user.User{}, user.ErrEmailTaken
		}

		return user.User{}, err
	}

	return created, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)

	return scanUser(row)
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	return scanUser(row)
}

// UpdateProfile applies a partial update; nil fields are left untouched.
func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, name, email *string) (user.User, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{id}
	argsPosition := 2

	if name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", argsPosition))
		args = append(args, *name)
		argsPosition++
	}

	if email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", argsPosition))
		args = append(args, *email)
		argsPosition++
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+userColumns,
		args...,
	)

	u, err := scanUser(row)

	if err != nil {
		var pgErr *pgconn.PgError

		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return user.User{}, user.ErrEmailTaken
		}

		return user.User{}, err
	}

	return u, nil
}

// SetResetOTP stores a fresh code and its expiry, superseding any
// in-flight one.
func (r *UsersRepo) SetResetOTP(ctx context.Context, id, otp string, expiry time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET reset_otp = $2, otp_expiry = $3, updated_at = NOW()
		 WHERE id = $1`,
		id, otp, expiry,
	)

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}

	return nil
}

// ResetPassword installs a new hash and consumes the OTP in one statement.
func (r *UsersRepo) ResetPassword(ctx context.Context, id, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET password_hash = $2, reset_otp = NULL, otp_expiry = NULL, updated_at = NOW()
		 WHERE id = $1`,
		id, passwordHash,
	)

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}

	return nil
}
