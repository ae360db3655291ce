package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"accountdesk/portal/internal/models"
)

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type AuditRepository struct {
	db DB
}

func NewAuditRepository(db DB) *AuditRepository {
	return &AuditRepository{db: db}
}

const auditSchema = `
	CREATE TABLE IF NOT EXISTS admin_audit_events (
		id           TEXT PRIMARY KEY,
		actor_id     TEXT NOT NULL,
		actor_email  TEXT NOT NULL DEFAULT '',
		target_id    TEXT NOT NULL,
		target_email TEXT NOT NULL DEFAULT '',
		action       TEXT NOT NULL,
		outcome      TEXT NOT NULL,
		detail       TEXT NOT NULL DEFAULT '',
		request_id   TEXT NOT NULL DEFAULT '',
		occurred_at  TIMESTAMPTZ NOT NULL,
		recorded_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS admin_audit_events_target_idx ON admin_audit_events (target_id, occurred_at DESC);
`

func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, auditSchema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

// Insert stores event. Redelivered events are ignored, so it reports whether a
// row was actually written.
func (r *AuditRepository) Insert(ctx context.Context, event models.AuditEvent) (bool, error) {
	const query = `
		INSERT INTO admin_audit_events (
			id, actor_id, actor_email, target_id, target_email, action, outcome, detail, request_id, occurred_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (id) DO NOTHING
	`

	tag, err := r.db.Exec(ctx, query,
		event.ID,
		event.ActorID,
		event.ActorEmail,
		event.TargetID,
		event.TargetEmail,
		string(event.Action),
		string(event.Outcome),
		event.Detail,
		event.RequestID,
		event.OccurredAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert audit event %s: %w", event.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}
