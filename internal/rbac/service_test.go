package rbac

import (
	"context"
	"errors"
	"net"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backoffice/backoffice/internal/platform/db"
)

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewService(conn), mock
}

func dialError() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
}

func TestPermissionsForUserReturnsCodes(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT p.code")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("READ_USERS").AddRow("WRITE_USERS"))

	set, err := svc.PermissionsForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"READ_USERS", "WRITE_USERS"}, set.Codes())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionsForUserEmptyRoleIsNotAnError(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT p.code")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"code"}))

	set, err := svc.PermissionsForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NotNil(t, set)
	assert.Empty(t, set)
}

func TestPermissionsForUserNotCachedAcrossCalls(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT p.code")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("DELETE_USERS"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT p.code")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"code"}))

	first, err := svc.PermissionsForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, first.Has("DELETE_USERS"))

	second, err := svc.PermissionsForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, second.Has("DELETE_USERS"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionsForUserUnreachableStore(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT p.code")).
		WithArgs("user-1").
		WillReturnError(dialError())

	set, err := svc.PermissionsForUser(context.Background(), "user-1")
	assert.Nil(t, set)
	assert.ErrorIs(t, err, ErrStoreUnreachable)
}

func TestPermissionsForUserQueryErrorFailsClosed(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT p.code")).
		WithArgs("user-1").
		WillReturnError(errors.New("syntax error"))

	set, err := svc.PermissionsForUser(context.Background(), "user-1")
	assert.Nil(t, set)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStoreUnreachable)
}

func TestPermissionMatrix(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM permissions")).
		WillReturnRows(sqlmock.NewRows([]string{"id_permission", "code", "name", "description", "category"}).
			AddRow(1, "READ_USERS", "Read users", "", "users").
			AddRow(2, "DELETE_USERS", "Delete users", "", "users"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT rp.id_permission, r.role_slug")).
		WillReturnRows(sqlmock.NewRows([]string{"id_permission", "role_slug"}).
			AddRow(1, "editor").
			AddRow(1, "admin").
			AddRow(2, "admin"))

	rows, err := svc.PermissionMatrix(context.Background(), []string{"admin", "editor"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]bool{"admin": true, "editor": true}, rows[0].Roles)
	assert.Equal(t, map[string]bool{"admin": true, "editor": false}, rows[1].Roles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionMatrixDefaultsToAllRoles(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM permissions")).
		WillReturnRows(sqlmock.NewRows([]string{"id_permission", "code", "name", "description", "category"}).
			AddRow(1, "READ_USERS", "Read users", "", ""))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT role_slug FROM roles")).
		WillReturnRows(sqlmock.NewRows([]string{"role_slug"}).AddRow("admin").AddRow("guest"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT rp.id_permission, r.role_slug")).
		WillReturnRows(sqlmock.NewRows([]string{"id_permission", "role_slug"}).AddRow(1, "admin"))

	rows, err := svc.PermissionMatrix(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]bool{"admin": true, "guest": false}, rows[0].Roles)
}

func TestSetRolePermissionsReplacesGrants(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM roles")).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM role_permissions")).WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO role_permissions")).WithArgs(int64(3), "READ_USERS").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO role_permissions")).WithArgs(int64(3), "WRITE_USERS").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.SetRolePermissions(context.Background(), 3, []string{" READ_USERS", "WRITE_USERS", "READ_USERS", ""})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRolePermissionsUnknownRole(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM roles")).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectRollback()

	err := svc.SetRolePermissions(context.Background(), 9, []string{"READ_USERS"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRolePermissionsUnknownCodeRollsBack(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM roles")).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM role_permissions")).WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO role_permissions")).WithArgs(int64(3), "NOPE").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := svc.SetRolePermissions(context.Background(), 3, []string{"NOPE"})
	assert.ErrorIs(t, err, ErrUnknownPermission)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRolePermissionsRoleDeletedMidway(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM roles")).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM role_permissions")).WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO role_permissions")).WithArgs(int64(3), "READ_USERS").
		WillReturnError(&pgconn.PgError{Code: db.CodeForeignKeyViolation})
	mock.ExpectRollback()

	err := svc.SetRolePermissions(context.Background(), 3, []string{"READ_USERS"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrStoreUnreachable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
