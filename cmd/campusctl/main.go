// cmd/campusctl/main.go
//
// campusctl – operator CLI for the Campus control plane.
//
// Context
// -------
// The same config layers the web binary uses (.env → YAML → env → Vault)
// feed every subcommand that touches a database or a secret.  Commands
// that only generate material (`keygen`) never load config.
//
//	campusctl keygen
//	campusctl encrypt <password>
//	campusctl provision --subdomain greenfield --code GF01 ...
//	campusctl migrate control
//	campusctl migrate tenant --id 7
//	campusctl seed --id 7
//	campusctl token --uid 1 --role super_admin
//
// Notes
// -----
// • Output goes to cmd.OutOrStdout() so tests can capture it.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/config"
	"github.com/yanizio/campus/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "campusctl:", err)
		os.Exit(1)
	}
}

// newRootCmd assembles the command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "campusctl",
		Short:         "Campus operator CLI",
		Long:          "Administrative utilities for Campus (keys, tenant provisioning, migrations, and dev tokens).",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(
		keygenCommand(),
		encryptCommand(),
		provisionCommand(),
		migrateCommand(),
		seedCommand(),
		tokenCommand(),
	)
	return root
}

// loadEnv reads config and starts a console-only logger at the configured
// level.
func loadEnv(ctx context.Context) (*config.Config, *zap.Logger, error) {
	restore := logger.Bootstrap()
	defer restore()

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(logger.ParseLevel(cfg.Log.Level))
	log, err := zc.Build()
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
