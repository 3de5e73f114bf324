package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The unique indexes are load-bearing: the email index closes the
// duplicate-signup race, and the partial admin index keeps the system at
// a single admin account without a check-then-insert.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id               TEXT PRIMARY KEY,
	email            TEXT NOT NULL,
	name             TEXT NOT NULL,
	role             TEXT NOT NULL DEFAULT 'user',
	auth_provider    TEXT NOT NULL DEFAULT 'local',
	password_hash    TEXT,
	provider_subject TEXT,
	reset_otp        TEXT,
	otp_expiry       TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS users_email_idx ON users (email);
CREATE UNIQUE INDEX IF NOT EXISTS users_single_admin_idx ON users (role) WHERE role = 'admin';

CREATE TABLE IF NOT EXISTS cars (
	id           TEXT PRIMARY KEY,
	make         TEXT NOT NULL,
	model        TEXT NOT NULL,
	year         INT NOT NULL,
	price        BIGINT NOT NULL,
	mileage      INT NOT NULL DEFAULT 0,
	fuel_type    TEXT NOT NULL DEFAULT '',
	transmission TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	image_url    TEXT NOT NULL DEFAULT '',
	featured     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS cars_featured_idx ON cars (featured) WHERE featured;

CREATE TABLE IF NOT EXISTS reviews (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL REFERENCES users(id),
	author_name TEXT NOT NULL,
	rating      INT NOT NULL CHECK (rating BETWEEN 1 AND 5),
	comment     TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
`

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)

	return err
}
