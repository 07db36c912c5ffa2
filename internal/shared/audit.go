package shared

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/freshcart/console/internal/access"
)

// Audit vocabulary written by the console.
const (
	AuditActionPermissionsReplace = "permissions.replace"
	AuditEntityUser               = "user"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ActorID  string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// PermissionsReplaced describes an admin rewrite of a user's permission
// records. Both snapshots are stored so the timeline shows what changed.
func PermissionsReplaced(actor *access.Actor, userID int64, before, after []access.RawPermission) AuditLog {
	entry := AuditLog{
		Action:   AuditActionPermissionsReplace,
		Entity:   AuditEntityUser,
		EntityID: strconv.FormatInt(userID, 10),
		Meta: map[string]any{
			"before": nonNilRecords(before),
			"after":  nonNilRecords(after),
		},
	}
	if actor != nil {
		entry.ActorID = actor.ID
		entry.Meta["actor_role"] = actor.EffectiveRole().String()
	}
	return entry
}

func nonNilRecords(records []access.RawPermission) []access.RawPermission {
	if records == nil {
		return []access.RawPermission{}
	}
	return records
}

// Execer is the subset of pgxpool.Pool and pgx.Tx used for writes.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	db Execer
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(db Execer) *AuditLogger {
	return &AuditLogger{db: db}
}

const insertAuditLog = `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES (NULLIF($1, ''), $2, $3, $4, $5, COALESCE($6, NOW()))`

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err = l.db.Exec(ctx, insertAuditLog, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}
