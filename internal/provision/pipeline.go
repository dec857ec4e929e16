// internal/provision/pipeline.go
//
// Tenant provisioning pipeline.
//
// Context
// -------
// `Provision` walks one Request through
//
//	Requested → DatabaseCreated → SchemaApplied → Registered → Complete
//
// and stops at the first failing step with a *Error naming it.  The order
// is what keeps the registry honest: a schools row is only inserted after
// its database exists and carries the full schema, so the resolver never
// routes to a half-built tenant.
//
// Duplicate subdomains or codes fail before anything physical happens.
// Migrations block, so they run on the worker pool while the caller waits
// on the future with its own context.  Completed steps are never rolled
// back; a database that exists without a registry row is logged at error
// for an operator to inspect.
//
// Notes
// -----
// • The plaintext password leaves the pipeline only inside the migration
//   URL and seeding connection; the registry stores the Box ciphertext.
// • Oxford commas, two spaces after periods.

package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/database"
	"github.com/yanizio/campus/internal/metrics"
	"github.com/yanizio/campus/internal/session"
	"github.com/yanizio/campus/internal/tenant/meta"
	"github.com/yanizio/campus/internal/worker"
)

// Registry is the slice of meta.Registry the pipeline needs.
type Registry interface {
	Exists(ctx context.Context, subdomain, code string) (subTaken, codeTaken bool, err error)
	Insert(ctx context.Context, rec *meta.Record) (int64, error)
}

// DatabaseCreator creates a physical database.
type DatabaseCreator interface {
	CreateDatabase(ctx context.Context, name string) error
}

// Migrator brings the database at dbURL to the latest schema.
type Migrator interface {
	Up(ctx context.Context, dbURL string) error
}

// Seeder fills a freshly registered tenant with default data.
type Seeder interface {
	Seed(ctx context.Context, tags session.Tags, p database.ConnParams) error
}

// Encrypter seals database passwords for the registry.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Config wires a Pipeline.  Seeder and Logger are optional.
type Config struct {
	Registry Registry
	Admin    DatabaseCreator
	Migrator Migrator
	Workers  *worker.Pool
	Box      Encrypter
	Seeder   Seeder
	TLS      database.TLSPolicy
	Logger   *zap.Logger
}

// Pipeline provisions tenants.  It is safe for concurrent use.
type Pipeline struct {
	reg      Registry
	admin    DatabaseCreator
	migrator Migrator
	workers  *worker.Pool
	box      Encrypter
	seeder   Seeder
	tls      database.TLSPolicy
	log      *zap.Logger
}

// New returns a Pipeline for c.
func New(c Config) *Pipeline {
	if c.Logger == nil {
		c.Logger = zap.L()
	}
	return &Pipeline{
		reg:      c.Registry,
		admin:    c.Admin,
		migrator: c.Migrator,
		workers:  c.Workers,
		box:      c.Box,
		seeder:   c.Seeder,
		tls:      c.TLS,
		log:      c.Logger,
	}
}

// Provision creates the tenant described by req.  The returned Job is
// non-nil even on failure.
func (p *Pipeline) Provision(ctx context.Context, req Request) (job *Job, err error) {
	start := time.Now()
	req.Normalize()
	job = newJob(&req)
	log := p.log.With(
		zap.String("job_id", job.ID.String()),
		zap.String("subdomain", job.Subdomain),
		zap.String("database", job.DatabaseName),
	)
	defer func() {
		outcome := StageComplete.String()
		if job.FailedAt != nil {
			outcome = "failed_" + job.FailedAt.String()
		}
		metrics.TenantProvisionTotal.WithLabelValues(outcome).Inc()
		metrics.TenantProvisionDuration.Observe(time.Since(start).Seconds())
	}()

	// 1. requested
	if err := req.Validate(); err != nil {
		return job, job.fail(StageRequested, ErrInvalidRequest, err)
	}
	subTaken, codeTaken, err := p.reg.Exists(ctx, req.Subdomain, req.Code)
	if err != nil {
		return job, job.fail(StageRequested, ErrRegistration, err)
	}
	if subTaken || codeTaken {
		return job, job.fail(StageRequested, ErrDuplicate, duplicateDetail(req, subTaken, codeTaken))
	}
	log.Info("provisioning started")

	// 2. database
	if err := p.admin.CreateDatabase(ctx, job.DatabaseName); err != nil {
		log.Error("database creation failed", zap.Error(err))
		return job, job.fail(StageDatabaseCreated, ErrDatabaseCreation, err)
	}
	job.advance(StageDatabaseCreated)

	// 3. schema
	params := database.ConnParams{
		Host:     req.DBHost,
		Port:     req.DBPort,
		Name:     job.DatabaseName,
		User:     req.DBUser,
		Password: req.DBPassword,
		TLS:      p.tls.For(req.DBHost),
	}
	if err := p.migrate(ctx, job, params); err != nil {
		log.Error("schema application failed; database left in place", zap.Error(err))
		return job, job.fail(StageSchemaApplied, ErrSchemaApplication, err)
	}
	job.advance(StageSchemaApplied)

	// 4. registry
	sealed, err := p.box.Encrypt(req.DBPassword)
	if err != nil {
		log.Error("password encryption failed; database left unregistered", zap.Error(err))
		return job, job.fail(StageRegistered, ErrRegistration, err)
	}
	id, err := p.reg.Insert(ctx, &meta.Record{
		Name:                req.Name,
		Subdomain:           req.Subdomain,
		Code:                req.Code,
		Email:               req.Email,
		Phone:               req.Phone,
		DBHost:              req.DBHost,
		DBPort:              req.DBPort,
		DBName:              job.DatabaseName,
		DBUser:              req.DBUser,
		DBPasswordEncrypted: sealed,
		IsActive:            true,
		MaxStudents:         req.MaxStudents,
		MaxTeachers:         req.MaxTeachers,
		SubscriptionTier:    req.SubscriptionTier,
	})
	if err != nil {
		log.Error("registry insert failed; database left unregistered", zap.Error(err))
		kind := ErrRegistration
		if isDuplicateKey(err) {
			kind = ErrDuplicate
		}
		return job, job.fail(StageRegistered, kind, err)
	}
	job.TenantID = id
	job.advance(StageRegistered)

	// 5. seed
	if p.seeder != nil {
		tags := session.Tags{TenantID: id, TenantName: req.Name, Subdomain: req.Subdomain}
		if err := p.seeder.Seed(ctx, tags, params); err != nil {
			log.Error("seeding failed; tenant is registered", zap.Int64("tenant_id", id), zap.Error(err))
			return job, job.fail(StageComplete, ErrSeeding, err)
		}
		job.Seeded = true
	}
	job.advance(StageComplete)

	log.Info("provisioning complete",
		zap.Int64("tenant_id", id),
		zap.Duration("elapsed", time.Since(start)),
	)
	return job, nil
}

// migrate hands the blocking migration to the worker pool.  If ctx ends
// first the migrator sees the same ctx and stops after its current file.
func (p *Pipeline) migrate(ctx context.Context, job *Job, params database.ConnParams) error {
	dbURL := params.MigrationURL()
	fut, err := p.workers.Submit("migrate "+job.DatabaseName, func() error {
		return p.migrator.Up(ctx, dbURL)
	})
	if err != nil {
		return err
	}
	return fut.Wait(ctx)
}

func duplicateDetail(req Request, subTaken, codeTaken bool) error {
	switch {
	case subTaken && codeTaken:
		return fmt.Errorf("subdomain %q and code %q are taken", req.Subdomain, req.Code)
	case subTaken:
		return fmt.Errorf("subdomain %q is taken", req.Subdomain)
	default:
		return fmt.Errorf("code %q is taken", req.Code)
	}
}

// isDuplicateKey matches MySQL error 1062 (ER_DUP_ENTRY).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
