// internal/tenant/meta/repository.go
//
// Schools-table query helpers.
//
// Context
// -------
// Registry is the authoritative store of tenant records.  Two groups of
// callers use it:
//
//   - `BySubdomain`, `ByID`             – tenant resolver on cache misses.
//   - `Exists`, `Insert`, `Update`,
//     `List`, `CountActive`             – provisioning and admin tooling.
//
// Lookups return inactive rows too; the resolver decides whether an
// inactive tenant is an error.  A missing row is reported as ErrNotFound so
// callers never depend on database/sql sentinels.
//
// Workflow
// --------
//  1. Callers supply any sqlx.ExtContext: the control-plane *sqlx.DB, or a
//     *sqlx.Tx from a scoped session.
//  2. Each helper executes exactly one statement.
//  3. Rows are scanned into `Record`.
//  4. Errors are wrapped with the operation name and returned; logging is
//     left to the caller.
//
// Notes
// -----
//   - Dynamic statements (List, Update) are built with squirrel; fixed
//     lookups stay as plain SQL constants.
//   - Oxford commas, two spaces after periods, no m-dash.
package meta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when no row matches.
var ErrNotFound = errors.New("tenant record not found")

// Registry wraps the control-plane handle.
type Registry struct {
	db sqlx.ExtContext
}

// NewRegistry binds a Registry to db.
func NewRegistry(db sqlx.ExtContext) *Registry { return &Registry{db: db} }

// With returns a Registry bound to a different handle, typically a
// transaction.
func (r *Registry) With(db sqlx.ExtContext) *Registry { return &Registry{db: db} }

var selectList = strings.Join(columns, ", ")

// BySubdomain fetches one row by its unique subdomain.
func (r *Registry) BySubdomain(ctx context.Context, subdomain string) (*Record, error) {
	q := `SELECT ` + selectList + ` FROM schools WHERE subdomain = ? LIMIT 1`
	return r.get(ctx, "by subdomain", q, subdomain)
}

// ByID fetches one row by primary key.
func (r *Registry) ByID(ctx context.Context, id int64) (*Record, error) {
	q := `SELECT ` + selectList + ` FROM schools WHERE id = ? LIMIT 1`
	return r.get(ctx, "by id", q, id)
}

func (r *Registry) get(ctx context.Context, op, q string, arg any) (*Record, error) {
	var rec Record
	if err := sqlx.GetContext(ctx, r.db, &rec, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("schools %s: %w", op, err)
	}
	return &rec, nil
}

// Exists reports which of subdomain and code are already taken.
func (r *Registry) Exists(ctx context.Context, subdomain, code string) (subTaken, codeTaken bool, err error) {
	const q = `
        SELECT COALESCE(SUM(subdomain = ?), 0) AS sub_taken,
               COALESCE(SUM(code = ?), 0)      AS code_taken
        FROM   schools
        WHERE  subdomain = ? OR code = ?`
	var row struct {
		Sub  int `db:"sub_taken"`
		Code int `db:"code_taken"`
	}
	if err := sqlx.GetContext(ctx, r.db, &row, q, subdomain, code, subdomain, code); err != nil {
		return false, false, fmt.Errorf("schools exists: %w", err)
	}
	return row.Sub > 0, row.Code > 0, nil
}

// Insert stores rec and returns the assigned id.  ID, CreatedAt, and
// UpdatedAt on rec are ignored.
func (r *Registry) Insert(ctx context.Context, rec *Record) (int64, error) {
	const q = `
        INSERT INTO schools
               (name, subdomain, code, email, phone,
                db_host, db_port, db_name, db_user, db_password_encrypted,
                is_active, max_students, max_teachers, subscription_tier)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		rec.Name, rec.Subdomain, rec.Code, rec.Email, rec.Phone,
		rec.DBHost, rec.DBPort, rec.DBName, rec.DBUser, rec.DBPasswordEncrypted,
		rec.IsActive, rec.MaxStudents, rec.MaxTeachers, rec.SubscriptionTier,
	)
	if err != nil {
		return 0, fmt.Errorf("schools insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("schools insert id: %w", err)
	}
	return id, nil
}

// Update applies p to row id.  An empty patch is a no-op.
func (r *Registry) Update(ctx context.Context, id int64, p Patch) error {
	if p.Empty() {
		return nil
	}
	set := map[string]any{}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Email != nil {
		set["email"] = *p.Email
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.MaxStudents != nil {
		set["max_students"] = *p.MaxStudents
	}
	if p.MaxTeachers != nil {
		set["max_teachers"] = *p.MaxTeachers
	}
	if p.SubscriptionTier != nil {
		set["subscription_tier"] = *p.SubscriptionTier
	}
	if p.IsActive != nil {
		set["is_active"] = *p.IsActive
	}

	q, args, err := sq.Update("schools").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("schools update sql: %w", err)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("schools update: %w", err)
	}
	// MySQL reports 0 affected rows when values are unchanged, so existence
	// is checked separately.
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.ByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// List returns rows ordered by id.
func (r *Registry) List(ctx context.Context, f Filter) ([]Record, error) {
	b := sq.Select(columns...).From("schools").OrderBy("id")
	if f.Active != nil {
		b = b.Where(sq.Eq{"is_active": *f.Active})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}
	if f.Offset > 0 {
		b = b.Offset(f.Offset)
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("schools list sql: %w", err)
	}
	var rows []Record
	if err := sqlx.SelectContext(ctx, r.db, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("schools list: %w", err)
	}
	return rows, nil
}

// CountActive returns the number of active tenants.  Used as a boot-time
// sanity check.
func (r *Registry) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM schools WHERE is_active = TRUE`); err != nil {
		return 0, fmt.Errorf("schools count: %w", err)
	}
	return n, nil
}
