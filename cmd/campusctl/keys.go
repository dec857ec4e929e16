package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yanizio/campus/internal/credential"
)

func keygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new base64 credential encryption key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := credential.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func encryptCommand() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "encrypt [plaintext]",
		Short: "Encrypt a tenant database password for the registry",
		Long:  "Encrypts the argument, or stdin when no argument is given.  The key defaults to security.encryption_key from config.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				cfg, log, err := loadEnv(cmd.Context())
				if err != nil {
					return err
				}
				defer func() { _ = log.Sync() }()
				key = cfg.Security.EncryptionKey
			}
			box, err := credential.New(key)
			if err != nil {
				return err
			}

			plain, err := plaintext(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			ct, err := box.Encrypt(plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ct)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "base64 key (overrides config)")
	return cmd
}

func plaintext(in io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	s := strings.TrimRight(string(b), "\r\n")
	if s == "" {
		return "", errors.New("nothing to encrypt")
	}
	return s, nil
}
