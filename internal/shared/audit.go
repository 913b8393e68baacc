package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents a record stored in audit_logs. Changes carries the
// human-readable change list produced by the mutation workflow and Comment the
// free-text rationale submitted alongside it.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Changes  []string
	Comment  string
	Meta     map[string]any
	At       time.Time
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	changesJSON, err := json.Marshal(log.Changes)
	if err != nil {
		return err
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, changes, comment, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, log.ActorID, log.Action, log.Entity, log.EntityID, changesJSON, log.Comment, metaJSON, occurredAt(log.At))
	return err
}

// occurredAt substitutes the insertion time for an unset At. A zero time would
// be stored as year one and fall behind every retention cutoff.
func occurredAt(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now()
	}
	return at
}

// PurgeBefore deletes audit records older than the cutoff and reports how many
// rows were removed.
func (l *AuditLogger) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if l == nil {
		return 0, errors.New("audit logger not initialised")
	}
	tag, err := l.pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
