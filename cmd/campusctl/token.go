package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yanizio/campus/internal/auth"
)

// tokenCommand signs a development token with security.jwt_secret.
func tokenCommand() *cobra.Command {
	var (
		c        auth.Claims
		branchID int64
		roleIDs  []int
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an HS256 access token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			for _, id := range roleIDs {
				c.RoleIDs = append(c.RoleIDs, int64(id))
			}
			if branchID > 0 {
				c.BranchID = &branchID
			}
			s, err := auth.NewSigner([]byte(cfg.Security.JWTSecret), ttl)
			if err != nil {
				return err
			}
			tok, err := s.Sign(c)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	f := cmd.Flags()
	f.Int64Var(&c.UserID, "uid", 0, "user id")
	f.StringVar(&c.Role, "role", "", "role name (e.g. super_admin, school_admin)")
	f.IntSliceVar(&roleIDs, "role-ids", nil, "dynamic role ids (comma-separated)")
	f.Int64Var(&c.TenantID, "tenant", 0, "tenant id the token is bound to (0 for super_admin)")
	f.Int64Var(&branchID, "branch", 0, "branch id for branch-scoped roles")
	f.DurationVar(&ttl, "expires-in", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("uid")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}
