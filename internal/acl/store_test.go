// internal/acl/store_test.go
//
// Unit-tests for the role store and session source using sqlmock.
//
// Run: go test ./internal/acl -v

package acl

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/session"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestUserRoleIDs(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT role_id FROM user_roles WHERE user_id = ? ORDER BY role_id`,
	)).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"role_id"}).AddRow(2).AddRow(5))

	got, err := NewStore(db).UserRoleIDs(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRolePermissions(t *testing.T) {
	db, mock := newMock(t)

	q := `SELECT DISTINCT p.code FROM permissions p JOIN role_permissions rp ON rp.permission_id = p.id WHERE rp.role_id IN (?,?) ORDER BY p.code`
	mock.ExpectQuery(regexp.QuoteMeta(q)).
		WithArgs(int64(2), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow(CoursesView).AddRow(StudentsView))

	got, err := NewStore(db).RolePermissions(context.Background(), []int64{2, 5})
	require.NoError(t, err)
	assert.Equal(t, []string{CoursesView, StudentsView}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRolePermissions_EmptyIDs(t *testing.T) {
	db, mock := newMock(t)

	got, err := NewStore(db).RolePermissions(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionSource(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT role_id FROM user_roles`)).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"role_id"}).AddRow(3))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT p.code`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow(FeesCollect))
	mock.ExpectCommit()

	f := session.NewFactory(db, session.Tags{TenantID: 7, Subdomain: "greenfield"}, zap.NewNop())
	p := &Principal{UserID: 9, Role: "cashier", Binding: DynamicRoles{}}

	e := newEngine()
	assert.Equal(t, []string{FeesCollect}, e.PermissionsFor(context.Background(), NewSessionSource(f), p).Sorted())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionSource_NilFactory(t *testing.T) {
	src := NewSessionSource(nil)
	_, err := src.UserRoleIDs(context.Background(), 1)
	assert.Error(t, err)
	_, err = src.RolePermissions(context.Background(), []int64{1})
	assert.Error(t, err)
}
