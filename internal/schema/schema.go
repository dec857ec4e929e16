// internal/schema/schema.go
//
// Embedded SQL migrations and the golang-migrate runner.
//
// Context
// -------
// Two migration sets ship inside the binary:
//
//   - `tenant/`  – the per-school database (rbac, people, and academics).
//   - `control/` – the shared registry (`schools`, `super_admins`).
//
// `Migrator.Up` applies every pending file of one set against a
// `mysql://` URL.  A database already at the latest version is not an
// error.  Migrations are blocking; Up runs them on a goroutine and, when
// ctx is cancelled, asks golang-migrate to stop after the current file.
//
// Notes
// -----
// • Files follow golang-migrate naming: NNNNNN_name.{up,down}.sql.

package schema

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql" // mysql:// driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed tenant/*.sql control/*.sql
var files embed.FS

// Set names one embedded migration directory.
type Set string

const (
	Tenant  Set = "tenant"
	Control Set = "control"
)

// FS returns the migration files of set.
func (s Set) FS() (fs.FS, error) {
	return fs.Sub(files, string(s))
}

// Migrator applies one Set.
type Migrator struct {
	set Set
	log *zap.Logger
}

// NewMigrator returns a Migrator for set.  A nil logger falls back to zap.L().
func NewMigrator(set Set, log *zap.Logger) *Migrator {
	if log == nil {
		log = zap.L()
	}
	return &Migrator{set: set, log: log.With(zap.String("migrations", string(set)))}
}

func (m *Migrator) open(dbURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(files, string(m.set))
	if err != nil {
		return nil, fmt.Errorf("migration source %s: %w", m.set, err)
	}
	mg, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return nil, fmt.Errorf("migration target: %w", err)
	}
	mg.Log = migrateLogger{m.log.Sugar()}
	return mg, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context, dbURL string) error {
	mg, err := m.open(dbURL)
	if err != nil {
		return err
	}
	defer closeMigrate(mg, m.log)

	done := make(chan error, 1)
	go func() { done <- mg.Up() }()

	select {
	case err = <-done:
	case <-ctx.Done():
		m.log.Warn("migration cancelled, stopping after current file")
		mg.GracefulStop <- true
		<-done
		return ctx.Err()
	}

	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	v, dirty, _ := mg.Version()
	m.log.Info("migrations applied", zap.Uint("version", v), zap.Bool("dirty", dirty))
	return nil
}

// Version reports the applied version.  ok is false for an empty database.
func (m *Migrator) Version(dbURL string) (version uint, dirty, ok bool, err error) {
	mg, err := m.open(dbURL)
	if err != nil {
		return 0, false, false, err
	}
	defer closeMigrate(mg, m.log)

	version, dirty, err = mg.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, err
	}
	return version, dirty, true, nil
}

func closeMigrate(mg *migrate.Migrate, log *zap.Logger) {
	srcErr, dbErr := mg.Close()
	if srcErr != nil || dbErr != nil {
		log.Warn("migration close", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
	}
}

// migrateLogger adapts zap to migrate.Logger.
type migrateLogger struct {
	s *zap.SugaredLogger
}

func (l migrateLogger) Printf(format string, v ...interface{}) { l.s.Debugf(format, v...) }
func (l migrateLogger) Verbose() bool                          { return false }
