package projects

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/portfolio/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var _ projectsRepo = (*Repo)(nil)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, project *Project) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "projectsRepo.add")
	defer span.End()

	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now()
	}
	if project.TechStack == nil {
		project.TechStack = []string{}
	}

	return r.db.QueryRow(
		ctx,
		`INSERT INTO project (title, description, tech_stack, repo_url, live_url, image_url, featured, sort_order, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id;`,
		project.Title, project.Description, project.TechStack, project.RepoURL, project.LiveURL,
		project.ImageURL, project.Featured, project.SortOrder, project.CreatedAt,
	).Scan(&project.ID)
}

// Update replaces all editable fields, created_at is kept.
func (r *Repo) Update(ctx context.Context, project *Project) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "projectsRepo.update")
	defer span.End()
	span.SetAttributes(attribute.Int("id", project.ID))

	if project.TechStack == nil {
		project.TechStack = []string{}
	}

	tag, err := r.db.Exec(
		ctx,
		`UPDATE project
		SET title = $1, description = $2, tech_stack = $3, repo_url = $4, live_url = $5,
			image_url = $6, featured = $7, sort_order = $8
		WHERE id = $9`,
		project.Title, project.Description, project.TechStack, project.RepoURL, project.LiveURL,
		project.ImageURL, project.Featured, project.SortOrder, project.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id int) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "projectsRepo.delete")
	defer span.End()

	tag, err := r.db.Exec(ctx, `DELETE FROM project WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id int) (*Project, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "projectsRepo.get")
	defer span.End()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(ctx, selectProjects+` WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	projects, err := rows2projects(rows)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, ErrProjectNotFound
	}
	return projects[0], nil
}

// All returns featured projects first, then by sort order and newest.
func (r *Repo) All(ctx context.Context) ([]*Project, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "projectsRepo.all")
	defer span.End()

	rows, err := r.db.Query(ctx, selectProjects+` ORDER BY featured DESC, sort_order, created_at DESC`)
	if err != nil {
		return nil, err
	}
	return rows2projects(rows)
}

const selectProjects = `SELECT id, title, description, tech_stack, repo_url, live_url, image_url, featured, sort_order, created_at FROM project`

func rows2projects(rows pgx.Rows) ([]*Project, error) {
	defer rows.Close()

	projects := []*Project{}
	for rows.Next() {
		var p Project
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Description, &p.TechStack, &p.RepoURL, &p.LiveURL,
			&p.ImageURL, &p.Featured, &p.SortOrder, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	return projects, nil
}
