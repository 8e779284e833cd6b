package messages

import (
	"context"
	"fmt"

	"github.com/2beens/portfolio/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
)

var _ messagesRepo = (*Repo)(nil)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, m *Message) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "messagesRepo.add")
	defer span.End()

	return r.db.QueryRow(
		ctx,
		`INSERT INTO contact_message (name, email, subject, body, country, read, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6) RETURNING id;`,
		m.Name, m.Email, m.Subject, m.Body, m.Country, m.CreatedAt,
	).Scan(&m.ID)
}

// Page returns messages newest first. Pages start at 1.
func (r *Repo) Page(ctx context.Context, page, size int) ([]*Message, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "messagesRepo.page")
	defer span.End()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, email, subject, body, country, read, created_at FROM contact_message
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`,
		size, (page-1)*size,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Body, &m.Country, &m.Read, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return msgs, nil
}

func (r *Repo) UnreadCount(ctx context.Context) (int, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "messagesRepo.unreadCount")
	defer span.End()

	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM contact_message WHERE read = FALSE`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Repo) MarkRead(ctx context.Context, id int) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "messagesRepo.markRead")
	defer span.End()

	tag, err := r.db.Exec(ctx, `UPDATE contact_message SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id int) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "messagesRepo.delete")
	defer span.End()

	tag, err := r.db.Exec(ctx, `DELETE FROM contact_message WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}
