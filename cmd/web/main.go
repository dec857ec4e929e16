// cmd/web/main.go
//
// Campus – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Bootstrap console logger, then load config (.env → YAML → env →
//     Vault references).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Open the control-plane registry and the admin connection, and log
//     the active-tenant count.
//
//  4. Build the tenant metadata cache (Redis when configured, in-process
//     otherwise), the credential Box, and the tenant pool manager.
//
//  5. Build the provisioning pipeline on a bounded worker pool.
//
//  6. Serve the chi router until SIGINT or SIGTERM, then drain requests,
//     workers, and tenant pools in that order.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/acl"
	"github.com/yanizio/campus/internal/api"
	"github.com/yanizio/campus/internal/auth"
	"github.com/yanizio/campus/internal/cache"
	"github.com/yanizio/campus/internal/config"
	"github.com/yanizio/campus/internal/credential"
	"github.com/yanizio/campus/internal/database"
	"github.com/yanizio/campus/internal/logger"
	"github.com/yanizio/campus/internal/provision"
	"github.com/yanizio/campus/internal/schema"
	"github.com/yanizio/campus/internal/server"
	"github.com/yanizio/campus/internal/session"
	"github.com/yanizio/campus/internal/tenant"
	"github.com/yanizio/campus/internal/tenant/meta"
	"github.com/yanizio/campus/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "campus:", err)
		os.Exit(1)
	}
}

func run() (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	restore := logger.Bootstrap()
	cfg, err := config.Load(ctx)
	restore()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Paths.Root, cfg.Log.Level, cfg.Log.Tee || logger.RunningInTTY())
	if err != nil {
		return fmt.Errorf("start logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	//
	// ── 1.  Control plane ───────────────────────────────────────────────
	//
	controlDB, err := database.Open(ctx, cfg.Database.ControlDSN, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("connect control DB: %w", err)
	}
	defer controlDB.Close()

	adminDB := controlDB
	if cfg.Database.AdminDSN != cfg.Database.ControlDSN {
		adminDB, err = database.Open(ctx, cfg.Database.AdminDSN, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("connect admin DB: %w", err)
		}
		defer adminDB.Close()
	}

	reg := meta.NewRegistry(controlDB)
	controlSessions := session.NewFactory(controlDB, session.Tags{}, log.Named("control"))
	if n, err := reg.CountActive(ctx); err == nil {
		log.Info("control plane online", zap.Int("active_tenants", n))
	} else {
		log.Warn("active tenant count failed", zap.Error(err))
	}

	//
	// ── 2.  Cache, credentials, pools ───────────────────────────────────
	//
	var store cache.Store
	if cfg.Redis.URL != "" {
		rs, err := cache.NewRedisStore(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		if err := rs.Ping(ctx); err != nil {
			// The cache fails open; a cold Redis only costs registry reads.
			log.Warn("redis ping failed at startup", zap.Error(err))
		}
		store = rs
	} else {
		log.Info("redis not configured, using in-process tenant cache")
		store = cache.NewMemoryStore(cfg.Redis.MemoryEntries)
	}
	defer store.Close()

	tc := cache.NewTenantCache(store,
		cache.WithTTL(cfg.Redis.TTL),
		cache.WithOpTimeout(cfg.Redis.OpTimeout),
		cache.WithLogger(log.Named("cache")),
	)

	box, err := credential.New(cfg.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("credential box: %w", err)
	}
	tls := database.TLSPolicy{Hosts: cfg.Database.ManagedTLSHosts, Mode: cfg.Database.TLSMode}

	pools := tenant.NewManager(
		tenant.NewOpener(box, tls, database.TenantOptions()),
		tenant.ManagerOptions{
			ConnectTimeout: cfg.Database.ConnectTimeout,
			IdleTTL:        cfg.Database.IdleTTL,
			MaxPools:       cfg.Database.MaxPools,
			Logger:         log.Named("pools"),
		},
	)
	defer func() { err = multierr.Append(err, pools.CloseAll()) }()

	//
	// ── 3.  Provisioning ────────────────────────────────────────────────
	//
	workers := worker.New(cfg.Provisioning.Workers, log.Named("worker"))
	defer func() {
		wctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		err = multierr.Append(err, workers.Close(wctx))
	}()

	pc := provision.Config{
		Registry: reg,
		Admin:    provision.NewAdminCreator(adminDB),
		Migrator: schema.NewMigrator(schema.Tenant, log.Named("migrate")),
		Workers:  workers,
		Box:      box,
		TLS:      tls,
		Logger:   log.Named("provision"),
	}
	if cfg.Provisioning.Seed {
		pc.Seeder = provision.NewTenantSeeder(log.Named("seed"))
	}

	//
	// ── 4.  HTTP ────────────────────────────────────────────────────────
	//
	verifier, err := auth.NewVerifier([]byte(cfg.Security.JWTSecret))
	if err != nil {
		return err
	}

	router := api.NewRouter(api.Deps{
		Resolver:    tenant.NewResolver(tc, reg, log.Named("resolver")),
		Pools:       pools,
		Headers:     tenant.Headers{Subdomain: cfg.Tenancy.SubdomainHeader, TenantID: cfg.Tenancy.IDHeader},
		Verifier:    verifier,
		Engine:      acl.NewEngine(log.Named("acl")),
		Tenants:     tenant.NewDirectory(reg, controlSessions, tc, pools, log.Named("directory")),
		Provisioner: provision.New(pc),
		Health: []api.Checker{
			{Name: "control_db", Ping: controlDB.PingContext},
			{Name: "cache", Ping: store.Ping},
		},
		ForceHTTPS: cfg.HTTP.ForceHTTPS,
		Logger:     log,
	})

	return server.Run(ctx, server.New(cfg.HTTP, router), cfg.HTTP.ShutdownTimeout, log)
}
