package acl

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT IGNORE INTO permissions (code,module,resource,action,description) VALUES",
	)).WillReturnResult(sqlmock.NewResult(0, int64(len(AllPermissions))))
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT IGNORE INTO roles (name,description,is_system) VALUES",
	)).WillReturnResult(sqlmock.NewResult(0, int64(len(RolePermissions))))

	names := make([]string, 0, len(RolePermissions))
	for n := range RolePermissions {
		names = append(names, n)
	}
	sort.Strings(names)
	for range names {
		mock.ExpectExec(regexp.QuoteMeta(
			"INSERT IGNORE INTO role_permissions (role_id,permission_id) SELECT r.id, p.id FROM roles r, permissions p WHERE",
		)).WillReturnResult(sqlmock.NewResult(0, 1))
	}

	require.NoError(t, Seed(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeed_StopsOnError(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec("INSERT IGNORE INTO permissions").WillReturnError(errors.New("table missing"))

	err := Seed(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed permissions")
	assert.NoError(t, mock.ExpectationsWereMet())
}
