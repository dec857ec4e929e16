// internal/acl/seed.go
//
// Default role and permission seeding.
//
// Context
// -------
// A freshly migrated tenant database has empty role tables.  `Seed` fills
// them from the static catalogue in three statements:
//
//  1. every permission code, split into module / resource / action,
//  2. every role in RolePermissions as a system role, and
//  3. the role_permissions links.
//
// All three use INSERT IGNORE, so re-running Seed against a tenant adds
// what is missing and leaves existing rows (including tenant edits to
// descriptions) untouched.
//
// Notes
// -----
// • Codes with two segments (`students.view`) use the first segment as
//   both module and resource.
package acl

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// SplitCode breaks a permission code into module, resource, and action.
func SplitCode(code string) (module, resource, action string) {
	parts := strings.Split(code, ".")
	switch len(parts) {
	case 1:
		return parts[0], parts[0], "access"
	case 2:
		return parts[0], parts[0], parts[1]
	default:
		return parts[0], strings.Join(parts[1:len(parts)-1], "."), parts[len(parts)-1]
	}
}

// Seed inserts the default catalogue into the tenant database behind db.
func Seed(ctx context.Context, db sqlx.ExecerContext) error {
	// 1. permissions
	perms := sq.Insert("permissions").Options("IGNORE").
		Columns("code", "module", "resource", "action", "description")
	for _, code := range AllPermissions {
		m, r, a := SplitCode(code)
		perms = perms.Values(code, m, r, a, fmt.Sprintf("%s %s in %s", a, r, m))
	}
	if err := exec(ctx, db, perms); err != nil {
		return fmt.Errorf("seed permissions: %w", err)
	}

	// 2. roles
	names := make([]string, 0, len(RolePermissions))
	for name := range RolePermissions {
		names = append(names, name)
	}
	sort.Strings(names)

	roles := sq.Insert("roles").Options("IGNORE").Columns("name", "description", "is_system")
	for _, name := range names {
		roles = roles.Values(name, "System role: "+name, true)
	}
	if err := exec(ctx, db, roles); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	// 3. role_permissions
	for _, name := range names {
		sel := sq.Select("r.id", "p.id").
			From("roles r, permissions p").
			Where(sq.Eq{"r.name": name, "p.code": RolePermissions[name]})
		link := sq.Insert("role_permissions").Options("IGNORE").
			Columns("role_id", "permission_id").
			Select(sel)
		if err := exec(ctx, db, link); err != nil {
			return fmt.Errorf("seed role %s: %w", name, err)
		}
	}
	return nil
}

func exec(ctx context.Context, db sqlx.ExecerContext, b sq.Sqlizer) error {
	q, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, q, args...)
	return err
}
