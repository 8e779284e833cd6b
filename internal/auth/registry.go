package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/portfolio/internal/telemetry/tracing"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

type RegistryRepo struct {
	db *pgxpool.Pool
}

func NewRegistryRepo(dbPool *pgxpool.Pool) *RegistryRepo {
	return &RegistryRepo{
		db: dbPool,
	}
}

func (r *RegistryRepo) ByUsername(ctx context.Context, username string) (*AdminIdentity, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "registryRepo.byUsername")
	defer span.End()
	span.SetAttributes(attribute.String("username", username))

	return r.queryOne(ctx, `SELECT id, username, email, role FROM admin_users WHERE username = $1`, username)
}

func (r *RegistryRepo) ByEmail(ctx context.Context, email string) (*AdminIdentity, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "registryRepo.byEmail")
	defer span.End()

	return r.queryOne(ctx, `SELECT id, username, email, role FROM admin_users WHERE email = $1`, email)
}

func (r *RegistryRepo) queryOne(ctx context.Context, query string, arg string) (*AdminIdentity, error) {
	var (
		identity AdminIdentity
		role     string
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(&identity.ID, &identity.Username, &identity.Email, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: registry lookup: %s", ErrUpstreamUnavailable, err)
	}

	// an unknown role stays as is, token checks reject it later
	identity.Role = Role(role)
	return &identity, nil
}
