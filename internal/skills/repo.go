package skills

import (
	"context"
	"fmt"

	"github.com/2beens/portfolio/internal/telemetry/tracing"
	"github.com/2beens/portfolio/pkg"

	"github.com/jackc/pgx/v5/pgxpool"
)

var _ skillsRepo = (*Repo)(nil)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, skill *Skill) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "skillsRepo.add")
	defer span.End()

	err := r.db.QueryRow(
		ctx,
		`INSERT INTO skill (name, category, level, sort_order) VALUES ($1, $2, $3, $4) RETURNING id;`,
		skill.Name, skill.Category, skill.Level, skill.SortOrder,
	).Scan(&skill.ID)
	if pkg.IsUniqueViolationError(err) {
		return ErrSkillExists
	}
	return err
}

func (r *Repo) Update(ctx context.Context, skill *Skill) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "skillsRepo.update")
	defer span.End()

	tag, err := r.db.Exec(
		ctx,
		`UPDATE skill SET name = $1, category = $2, level = $3, sort_order = $4 WHERE id = $5`,
		skill.Name, skill.Category, skill.Level, skill.SortOrder, skill.ID,
	)
	if pkg.IsUniqueViolationError(err) {
		return ErrSkillExists
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSkillNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id int) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "skillsRepo.delete")
	defer span.End()

	tag, err := r.db.Exec(ctx, `DELETE FROM skill WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSkillNotFound
	}
	return nil
}

func (r *Repo) All(ctx context.Context) ([]*Skill, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "skillsRepo.all")
	defer span.End()

	rows, err := r.db.Query(ctx, `SELECT id, name, category, level, sort_order FROM skill ORDER BY category, sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	skills := []*Skill{}
	for rows.Next() {
		var s Skill
		if err := rows.Scan(&s.ID, &s.Name, &s.Category, &s.Level, &s.SortOrder); err != nil {
			return nil, err
		}
		skills = append(skills, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate skills: %w", err)
	}

	return skills, nil
}
