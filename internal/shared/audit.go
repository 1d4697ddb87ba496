package shared

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Audit actions recorded by the authentication flows.
const (
	AuditLogin          = "auth.login"
	AuditLoginFailed    = "auth.login_failed"
	AuditLogout         = "auth.logout"
	AuditSessionReplace = "auth.session_replaced"
	AuditRolePermsSet   = "rbac.role_permissions_set"
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

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	db  *sql.DB
	now func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(conn *sql.DB) *AuditLogger {
	return &AuditLogger{db: conn, now: time.Now, entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Record persists the log entry under a time-ordered ULID.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	at := log.At
	if at.IsZero() {
		at = l.now()
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	id, err := l.newID(at)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, actor_id, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, at.UTC())
	return err
}

func (l *AuditLogger) newID(at time.Time) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(at), l.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
