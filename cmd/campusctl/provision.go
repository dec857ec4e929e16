package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/yanizio/campus/internal/credential"
	"github.com/yanizio/campus/internal/database"
	"github.com/yanizio/campus/internal/provision"
	"github.com/yanizio/campus/internal/schema"
	"github.com/yanizio/campus/internal/tenant/meta"
	"github.com/yanizio/campus/internal/worker"
)

func provisionCommand() *cobra.Command {
	var req provision.Request
	var noSeed bool

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create a tenant database, migrate it, and register it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			cfg, log, err := loadEnv(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			controlDB, err := database.Open(ctx, cfg.Database.ControlDSN, database.DefaultOptions())
			if err != nil {
				return fmt.Errorf("connect control DB: %w", err)
			}
			defer controlDB.Close()

			adminDB, err := database.Open(ctx, cfg.Database.AdminDSN, database.DefaultOptions())
			if err != nil {
				return fmt.Errorf("connect admin DB: %w", err)
			}
			defer adminDB.Close()

			box, err := credential.New(cfg.Security.EncryptionKey)
			if err != nil {
				return err
			}

			workers := worker.New(1, log)
			defer func() { err = multierr.Append(err, workers.Close(ctx)) }()

			pc := provision.Config{
				Registry: meta.NewRegistry(controlDB),
				Admin:    provision.NewAdminCreator(adminDB),
				Migrator: schema.NewMigrator(schema.Tenant, log),
				Workers:  workers,
				Box:      box,
				TLS:      database.TLSPolicy{Hosts: cfg.Database.ManagedTLSHosts, Mode: cfg.Database.TLSMode},
				Logger:   log,
			}
			if cfg.Provisioning.Seed && !noSeed {
				pc.Seeder = provision.NewTenantSeeder(log)
			}

			job, perr := provision.New(pc).Provision(ctx, req)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(job); err != nil {
				return err
			}
			return perr
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Subdomain, "subdomain", "", "tenant subdomain")
	f.StringVar(&req.Code, "code", "", "school code")
	f.StringVar(&req.Name, "name", "", "school display name")
	f.StringVar(&req.Email, "email", "", "contact email")
	f.StringVar(&req.Phone, "phone", "", "contact phone")
	f.StringVar(&req.DBHost, "db-host", "", "tenant database host")
	f.IntVar(&req.DBPort, "db-port", 3306, "tenant database port")
	f.StringVar(&req.DBUser, "db-user", "", "tenant database user")
	f.StringVar(&req.DBPassword, "db-password", "", "tenant database password")
	f.IntVar(&req.MaxStudents, "max-students", 0, "student limit (default 1000)")
	f.IntVar(&req.MaxTeachers, "max-teachers", 0, "teacher limit (default 100)")
	f.StringVar(&req.SubscriptionTier, "tier", "", "subscription tier (default basic)")
	f.BoolVar(&noSeed, "no-seed", false, "skip role and permission seeding")

	for _, name := range []string{"subdomain", "code", "name", "db-host", "db-user", "db-password"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
