package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/config"
	"github.com/yanizio/campus/internal/credential"
	"github.com/yanizio/campus/internal/database"
	"github.com/yanizio/campus/internal/provision"
	"github.com/yanizio/campus/internal/schema"
	"github.com/yanizio/campus/internal/tenant"
	"github.com/yanizio/campus/internal/tenant/meta"
)

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded schema migrations",
	}

	var controlURL string
	control := &cobra.Command{
		Use:   "control",
		Short: "Migrate the control-plane registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadEnv(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			target := controlURL
			if target == "" {
				if target, err = migrationURL(cfg.Database.ControlDSN); err != nil {
					return err
				}
			}
			return schema.NewMigrator(schema.Control, log).Up(ctx, target)
		},
	}
	control.Flags().StringVar(&controlURL, "url", "", "mysql:// URL (defaults to database.control_dsn)")

	var id int64
	tenantCmd := &cobra.Command{
		Use:   "tenant",
		Short: "Migrate one registered tenant database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadEnv(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			_, params, err := tenantTarget(ctx, cfg, id)
			if err != nil {
				return err
			}
			return schema.NewMigrator(schema.Tenant, log).Up(ctx, params.MigrationURL())
		},
	}
	tenantCmd.Flags().Int64Var(&id, "id", 0, "tenant id")
	_ = tenantCmd.MarkFlagRequired("id")

	cmd.AddCommand(control, tenantCmd)
	return cmd
}

func seedCommand() *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed default roles and permissions into a tenant database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadEnv(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			t, params, err := tenantTarget(ctx, cfg, id)
			if err != nil {
				return err
			}
			if err := provision.NewTenantSeeder(log).Seed(ctx, t.Tags(), params); err != nil {
				return err
			}
			log.Info("tenant seeded", zap.Int64("tenant_id", t.ID))
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "tenant id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

// tenantTarget loads tenant id from the registry and decrypts its password.
func tenantTarget(ctx context.Context, cfg *config.Config, id int64) (*tenant.Tenant, database.ConnParams, error) {
	if id <= 0 {
		return nil, database.ConnParams{}, errors.New("--id must be positive")
	}
	db, err := database.Open(ctx, cfg.Database.ControlDSN, database.DefaultOptions())
	if err != nil {
		return nil, database.ConnParams{}, fmt.Errorf("connect control DB: %w", err)
	}
	defer db.Close()

	rec, err := meta.NewRegistry(db).ByID(ctx, id)
	if err != nil {
		return nil, database.ConnParams{}, err
	}
	box, err := credential.New(cfg.Security.EncryptionKey)
	if err != nil {
		return nil, database.ConnParams{}, err
	}
	t := tenant.FromRecord(rec)
	pw, err := box.Decrypt(t.DBPasswordEncrypted)
	if err != nil {
		return nil, database.ConnParams{}, fmt.Errorf("decrypt tenant %d password: %w", id, err)
	}
	tls := database.TLSPolicy{Hosts: cfg.Database.ManagedTLSHosts, Mode: cfg.Database.TLSMode}
	return t, tenant.ConnParams(t, pw, tls), nil
}

// migrationURL turns a driver DSN into a golang-migrate URL.
func migrationURL(dsn string) (string, error) {
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse DSN: %w", err)
	}
	c.MultiStatements = true
	return "mysql://" + c.FormatDSN(), nil
}
