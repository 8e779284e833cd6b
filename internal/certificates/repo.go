package certificates

import (
	"context"
	"fmt"

	"github.com/2beens/portfolio/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
)

var _ certificatesRepo = (*Repo)(nil)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, cert *Certificate) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "certificatesRepo.add")
	defer span.End()

	return r.db.QueryRow(
		ctx,
		`INSERT INTO certificate (title, issuer, issued_at, credential_url, image_url)
		VALUES ($1, $2, $3, $4, $5) RETURNING id;`,
		cert.Title, cert.Issuer, cert.IssuedAt, cert.CredentialURL, cert.ImageURL,
	).Scan(&cert.ID)
}

func (r *Repo) Update(ctx context.Context, cert *Certificate) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "certificatesRepo.update")
	defer span.End()

	tag, err := r.db.Exec(
		ctx,
		`UPDATE certificate SET title = $1, issuer = $2, issued_at = $3, credential_url = $4, image_url = $5
		WHERE id = $6`,
		cert.Title, cert.Issuer, cert.IssuedAt, cert.CredentialURL, cert.ImageURL, cert.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCertificateNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id int) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "certificatesRepo.delete")
	defer span.End()

	tag, err := r.db.Exec(ctx, `DELETE FROM certificate WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCertificateNotFound
	}
	return nil
}

// All returns the certificates newest first.
func (r *Repo) All(ctx context.Context) ([]*Certificate, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "certificatesRepo.all")
	defer span.End()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, title, issuer, issued_at, credential_url, image_url FROM certificate ORDER BY issued_at DESC, id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	certs := []*Certificate{}
	for rows.Next() {
		var c Certificate
		if err := rows.Scan(&c.ID, &c.Title, &c.Issuer, &c.IssuedAt, &c.CredentialURL, &c.ImageURL); err != nil {
			return nil, err
		}
		certs = append(certs, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certificates: %w", err)
	}

	return certs, nil
}
