package provision

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/database"
	"github.com/yanizio/campus/internal/session"
	"github.com/yanizio/campus/internal/tenant/meta"
	"github.com/yanizio/campus/internal/worker"
)

// recorder captures the order of side effects across fakes.
type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.steps = append(r.steps, s)
	r.mu.Unlock()
}

type fakeRegistry struct {
	rec       *recorder
	subTaken  bool
	codeTaken bool
	insertErr error
	inserted  *meta.Record
}

func (f *fakeRegistry) Exists(context.Context, string, string) (bool, bool, error) {
	f.rec.add("exists")
	return f.subTaken, f.codeTaken, nil
}

func (f *fakeRegistry) Insert(_ context.Context, r *meta.Record) (int64, error) {
	f.rec.add("insert")
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = r
	return 31, nil
}

type fakeCreator struct {
	rec  *recorder
	err  error
	name string
}

func (f *fakeCreator) CreateDatabase(_ context.Context, name string) error {
	f.rec.add("create")
	f.name = name
	return f.err
}

type fakeMigrator struct {
	rec *recorder
	err error
	url string
}

func (f *fakeMigrator) Up(_ context.Context, u string) error {
	f.rec.add("migrate")
	f.url = u
	return f.err
}

type fakeSeeder struct {
	rec  *recorder
	err  error
	tags session.Tags
}

func (f *fakeSeeder) Seed(_ context.Context, tags session.Tags, _ database.ConnParams) error {
	f.rec.add("seed")
	f.tags = tags
	return f.err
}

type fakeBox struct{}

func (fakeBox) Encrypt(s string) (string, error) { return "sealed:" + strings.ToUpper(s), nil }

type fixture struct {
	rec      *recorder
	reg      *fakeRegistry
	creator  *fakeCreator
	migrator *fakeMigrator
	seeder   *fakeSeeder
	p        *Pipeline
}

func newFixture() *fixture {
	rec := &recorder{}
	f := &fixture{
		rec:      rec,
		reg:      &fakeRegistry{rec: rec},
		creator:  &fakeCreator{rec: rec},
		migrator: &fakeMigrator{rec: rec},
		seeder:   &fakeSeeder{rec: rec},
	}
	f.p = New(Config{
		Registry: f.reg,
		Admin:    f.creator,
		Migrator: f.migrator,
		Workers:  worker.New(1, zap.NewNop()),
		Box:      fakeBox{},
		Seeder:   f.seeder,
		TLS:      database.TLSPolicy{Hosts: []string{"aivencloud.com"}},
		Logger:   zap.NewNop(),
	})
	return f
}

func validRequest() Request {
	return Request{
		Subdomain:  "New-School",
		Code:       "NS01",
		Name:       "New School",
		DBHost:     "mysql-abc.aivencloud.com",
		DBPort:     14000,
		DBUser:     "campus",
		DBPassword: "s3cr@t",
	}
}

func TestProvision_HappyPath(t *testing.T) {
	f := newFixture()

	job, err := f.p.Provision(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"exists", "create", "migrate", "insert", "seed"}, f.rec.steps)
	assert.Equal(t, StageComplete, job.Stage)
	assert.True(t, job.Created && job.Migrated && job.Registered && job.Seeded)
	assert.Equal(t, int64(31), job.TenantID)
	assert.Equal(t, "new_school_db", job.DatabaseName)
	assert.Equal(t, "new_school_db", f.creator.name)

	assert.Contains(t, f.migrator.url, "/new_school_db?")
	assert.Contains(t, f.migrator.url, "tls=true")
	assert.Contains(t, f.migrator.url, "s3cr%40t")

	require.NotNil(t, f.reg.inserted)
	assert.Equal(t, "new-school", f.reg.inserted.Subdomain)
	assert.Equal(t, "sealed:S3CR@T", f.reg.inserted.DBPasswordEncrypted)
	assert.True(t, f.reg.inserted.IsActive)
	assert.Equal(t, "basic", f.reg.inserted.SubscriptionTier)

	assert.Equal(t, session.Tags{TenantID: 31, TenantName: "New School", Subdomain: "new-school"}, f.seeder.tags)
}

func TestProvision_DuplicateStopsBeforeCreate(t *testing.T) {
	f := newFixture()
	f.reg.subTaken = true

	job, err := f.p.Provision(context.Background(), validRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, []string{"exists"}, f.rec.steps)
	assert.Equal(t, StageFailed, job.Stage)
	require.NotNil(t, job.FailedAt)
	assert.Equal(t, StageRequested, *job.FailedAt)
	assert.False(t, job.Created)
}

func TestProvision_CreateFailureNoInsert(t *testing.T) {
	f := newFixture()
	diskFull := errors.New("disk full")
	f.creator.err = diskFull

	job, err := f.p.Provision(context.Background(), validRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDatabaseCreation)
	assert.ErrorIs(t, err, diskFull)

	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StageDatabaseCreated, pe.Stage)
	assert.Equal(t, []string{"exists", "create"}, f.rec.steps)
	assert.Nil(t, f.reg.inserted)
	assert.False(t, job.Registered)
}

func TestProvision_MigrationFailureLeavesDatabase(t *testing.T) {
	f := newFixture()
	f.migrator.err = errors.New("syntax error")

	job, err := f.p.Provision(context.Background(), validRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaApplication)
	assert.Equal(t, []string{"exists", "create", "migrate"}, f.rec.steps)
	assert.True(t, job.Created)
	assert.False(t, job.Migrated)
	assert.Equal(t, StageSchemaApplied, *job.FailedAt)
}

func TestProvision_InsertRaceIsDuplicate(t *testing.T) {
	f := newFixture()
	f.reg.insertErr = &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}

	_, err := f.p.Provision(context.Background(), validRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, []string{"exists", "create", "migrate", "insert"}, f.rec.steps)
}

func TestProvision_SeedFailureKeepsRegistration(t *testing.T) {
	f := newFixture()
	f.seeder.err = errors.New("no roles table")

	job, err := f.p.Provision(context.Background(), validRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSeeding)
	assert.True(t, job.Registered)
	assert.Equal(t, int64(31), job.TenantID)
	assert.False(t, job.Seeded)
}

func TestProvision_InvalidRequest(t *testing.T) {
	f := newFixture()
	req := validRequest()
	req.Subdomain = "-bad"

	_, err := f.p.Provision(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, f.rec.steps)
}

func TestProvision_WithoutSeeder(t *testing.T) {
	f := newFixture()
	f.p.seeder = nil

	job, err := f.p.Provision(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, StageComplete, job.Stage)
	assert.False(t, job.Seeded)
}

func TestRequestValidate(t *testing.T) {
	cases := map[string]func(*Request){
		"one char subdomain": func(r *Request) { r.Subdomain = "a" },
		"underscore":         func(r *Request) { r.Subdomain = "new_school" },
		"missing host":       func(r *Request) { r.DBHost = "" },
		"missing password":   func(r *Request) { r.DBPassword = "" },
		"bad tier":           func(r *Request) { r.SubscriptionTier = "gold" },
		"bad email":          func(r *Request) { r.Email = "nope" },
		"subdomain too long": func(r *Request) { r.Subdomain = strings.Repeat("a", MaxSubdomainLen+1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := validRequest()
			mutate(&r)
			r.Normalize()
			assert.Error(t, r.Validate())
		})
	}

	r := validRequest()
	r.Normalize()
	assert.NoError(t, r.Validate())
	assert.Equal(t, "new-school", r.Subdomain)

	r.Subdomain = strings.Repeat("a", MaxSubdomainLen)
	assert.NoError(t, r.Validate())
	assert.Len(t, DatabaseName(r.Subdomain), 64)
	assert.True(t, dbNameRe.MatchString(DatabaseName(r.Subdomain)))
}

func TestProvision_LongSubdomainRejectedBeforeCreate(t *testing.T) {
	f := newFixture()
	req := validRequest()
	req.Subdomain = strings.Repeat("a", 62)

	job, err := f.p.Provision(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.NotErrorIs(t, err, ErrDatabaseCreation)
	assert.Empty(t, f.rec.steps)
	assert.Empty(t, f.creator.name)
	assert.False(t, job.Created)
}

func TestDatabaseName(t *testing.T) {
	assert.Equal(t, "greenfield_db", DatabaseName("greenfield"))
	assert.Equal(t, "st_marys_high_db", DatabaseName("St-Marys-High"))
}

func TestAdminCreator(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "sqlmock")

	mock.ExpectExec(regexp.QuoteMeta(
		"CREATE DATABASE IF NOT EXISTS `newschool_db` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci",
	)).WillReturnResult(sqlmock.NewResult(0, 1))

	a := NewAdminCreator(db)
	require.NoError(t, a.CreateDatabase(context.Background(), "newschool_db"))
	assert.Error(t, a.CreateDatabase(context.Background(), "x`; DROP DATABASE campus; --"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStageJSON(t *testing.T) {
	b, err := StageSchemaApplied.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "schema_applied", string(b))
}
