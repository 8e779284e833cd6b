package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/portfolio/internal/auth"
	"github.com/2beens/portfolio/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CredentialsRepo struct {
	db *pgxpool.Pool
}

func NewCredentialsRepo(dbPool *pgxpool.Pool) *CredentialsRepo {
	return &CredentialsRepo{
		db: dbPool,
	}
}

func (r *CredentialsRepo) PasswordHash(ctx context.Context, email string) (string, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "credentialsRepo.passwordHash")
	defer span.End()

	var hash string
	err := r.db.QueryRow(ctx, `SELECT password_hash FROM admin_credentials WHERE email = $1`, email).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", auth.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query password hash: %w", err)
	}
	return hash, nil
}

// SetPassword stores a bcrypt hash of password for email, replacing any
// previous one.
func (r *CredentialsRepo) SetPassword(ctx context.Context, email, passwordHash string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "credentialsRepo.setPassword")
	defer span.End()

	_, err := r.db.Exec(ctx, `
		INSERT INTO admin_credentials (email, password_hash) VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash`,
		email, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("store password hash: %w", err)
	}
	return nil
}
