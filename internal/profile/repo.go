package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2beens/portfolio/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ profileRepo = (*Repo)(nil)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Get(ctx context.Context) (*Profile, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "profileRepo.get")
	defer span.End()

	var (
		p     Profile
		links []byte
	)
	err := r.db.QueryRow(
		ctx,
		`SELECT full_name, headline, bio, location, email, avatar_url, links FROM profile WHERE id = 1`,
	).Scan(&p.FullName, &p.Headline, &p.Bio, &p.Location, &p.Email, &p.AvatarURL, &links)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	p.Links = map[string]string{}
	if len(links) > 0 {
		if err := json.Unmarshal(links, &p.Links); err != nil {
			return nil, fmt.Errorf("unmarshal profile links: %w", err)
		}
	}

	return &p, nil
}

// Save upserts the profile row.
func (r *Repo) Save(ctx context.Context, p *Profile) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "profileRepo.save")
	defer span.End()

	links := p.Links
	if links == nil {
		links = map[string]string{}
	}
	linksJSON, err := json.Marshal(links)
	if err != nil {
		return fmt.Errorf("marshal profile links: %w", err)
	}

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO profile (id, full_name, headline, bio, location, email, avatar_url, links)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			headline = EXCLUDED.headline,
			bio = EXCLUDED.bio,
			location = EXCLUDED.location,
			email = EXCLUDED.email,
			avatar_url = EXCLUDED.avatar_url,
			links = EXCLUDED.links`,
		p.FullName, p.Headline, p.Bio, p.Location, p.Email, p.AvatarURL, linksJSON,
	)
	return err
}
