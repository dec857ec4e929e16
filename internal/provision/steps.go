// internal/provision/steps.go
//
// Concrete collaborators for the pipeline's physical steps.
//
// Context
// -------
//   - `AdminCreator` issues CREATE DATABASE through the control-plane
//     administrative connection.
//   - `TenantSeeder` opens a short-lived pool against the new database and
//     runs acl.Seed inside a scoped session tagged with the new tenant.
//
// Notes
// -----
// • Database names cannot be bound as parameters, so AdminCreator checks
//   the name against a strict pattern before quoting it.

package provision

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/acl"
	"github.com/yanizio/campus/internal/database"
	"github.com/yanizio/campus/internal/session"
)

var dbNameRe = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// AdminCreator creates tenant databases.
type AdminCreator struct {
	db sqlx.ExecerContext
}

// NewAdminCreator binds an AdminCreator to the administrative connection.
func NewAdminCreator(db sqlx.ExecerContext) *AdminCreator { return &AdminCreator{db: db} }

// CreateDatabase creates name if it does not exist.
func (a *AdminCreator) CreateDatabase(ctx context.Context, name string) error {
	if !dbNameRe.MatchString(name) {
		return fmt.Errorf("illegal database name %q", name)
	}
	q := "CREATE DATABASE IF NOT EXISTS `" + name + "` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci"
	if _, err := a.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	return nil
}

// TenantSeeder seeds default roles and permissions.
type TenantSeeder struct {
	opts database.Options
	log  *zap.Logger
}

// NewTenantSeeder returns a seeder using a minimal pool.
func NewTenantSeeder(log *zap.Logger) *TenantSeeder {
	if log == nil {
		log = zap.L()
	}
	return &TenantSeeder{
		opts: database.Options{MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxLifetime: time.Minute, PingTimeout: 5 * time.Second},
		log:  log,
	}
}

// Seed runs acl.Seed against the database behind p.
func (s *TenantSeeder) Seed(ctx context.Context, tags session.Tags, p database.ConnParams) error {
	db, err := database.OpenConfig(ctx, p.Config(), s.opts)
	if err != nil {
		return err
	}
	defer db.Close()

	return session.NewFactory(db, tags, s.log).Run(ctx, func(ss *session.Session) error {
		return acl.Seed(ctx, ss.Tx)
	})
}
