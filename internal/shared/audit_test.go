package shared

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ulidArg struct{ at time.Time }

func (u ulidArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	id, err := ulid.ParseStrict(s)
	return err == nil && id.Time() == ulid.Timestamp(u.at)
}

func TestAuditLoggerRecord(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(ulidArg{at: at}, "user-1", AuditLogin, "session", "sid-1", []byte(`{"ip":"192.0.2.1"}`), at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	logger := NewAuditLogger(conn)
	err = logger.Record(context.Background(), AuditLog{
		ActorID:  "user-1",
		Action:   AuditLogin,
		Entity:   "session",
		EntityID: "sid-1",
		Meta:     map[string]any{"ip": "192.0.2.1"},
		At:       at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLoggerRejectsIncompleteEntries(t *testing.T) {
	conn, _, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	err = NewAuditLogger(conn).Record(context.Background(), AuditLog{Action: AuditLogout})
	assert.Error(t, err)

	var nilLogger *AuditLogger
	assert.Error(t, nilLogger.Record(context.Background(), AuditLog{Action: AuditLogout, Entity: "session", EntityID: "x"}))
}

func TestAuditIDsAreMonotonic(t *testing.T) {
	logger := NewAuditLogger(nil)
	at := time.Now()
	first, err := logger.newID(at)
	require.NoError(t, err)
	second, err := logger.newID(at)
	require.NoError(t, err)
	assert.Less(t, first, second)
}
