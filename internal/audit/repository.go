package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/freshcart/console/internal/platform/db"
)

// Repository reads audit_logs.
type Repository struct {
	conn db.DBTX
}

// NewRepository constructs a Repository.
func NewRepository(conn db.DBTX) *Repository {
	return &Repository{conn: conn}
}

const timelineQuery = `SELECT id, occurred_at, COALESCE(actor_id, ''), action, entity, entity_id, meta
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::text IS NULL OR actor_id = $3)
  AND ($4::text IS NULL OR entity = $4)
  AND ($5::text IS NULL OR action = $5)
ORDER BY occurred_at DESC, id DESC`

// Window returns up to limit rows starting at offset, newest first.
func (r *Repository) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	rows, err := r.conn.Query(ctx, timelineQuery+` LIMIT $6 OFFSET $7`, filterArgs(filters, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanRow)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline: %w", err)
	}
	return out, nil
}

// All returns every row matching filters.
func (r *Repository) All(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	rows, err := r.conn.Query(ctx, timelineQuery, filterArgs(filters)...)
	if err != nil {
		return nil, fmt.Errorf("audit: export: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanRow)
	if err != nil {
		return nil, fmt.Errorf("audit: export: %w", err)
	}
	return out, nil
}

func filterArgs(filters TimelineFilters, extra ...any) []any {
	args := []any{
		toPgTime(filters.From),
		toPgTime(filters.To),
		optionalText(filters.Actor),
		optionalText(filters.Entity),
		optionalText(filters.Action),
	}
	return append(args, extra...)
}

func scanRow(row pgx.CollectableRow) (TimelineRow, error) {
	var (
		out TimelineRow
		at  pgtype.Timestamptz
	)
	if err := row.Scan(&out.ID, &at, &out.ActorID, &out.Action, &out.Entity, &out.EntityID, &out.Meta); err != nil {
		return TimelineRow{}, err
	}
	if at.Valid {
		out.At = at.Time
	}
	return out, nil
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
