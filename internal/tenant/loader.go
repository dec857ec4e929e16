package tenant

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/campus/internal/credential"
	"github.com/yanizio/campus/internal/database"
)

// Opener turns a tenant into a verified pool.  The Manager calls it at most
// once per tenant id at a time.
type Opener func(ctx context.Context, t *Tenant) (*sqlx.DB, error)

// NewOpener returns the production Opener.  Steps:
//
//  1. Decrypt the stored password.
//  2. Build typed connection params, attaching TLS for managed hosts.
//  3. Open and ping a pool shaped by opts.
func NewOpener(dec credential.Decrypter, tls database.TLSPolicy, opts database.Options) Opener {
	return func(ctx context.Context, t *Tenant) (*sqlx.DB, error) {
		// 1. credentials
		pw, err := dec.Decrypt(t.DBPasswordEncrypted)
		if err != nil {
			return nil, fmt.Errorf("decrypt password: %w", err)
		}

		// 2. connection params
		p := ConnParams(t, pw, tls)

		// 3. pool
		db, err := database.OpenConfig(ctx, p.Config(), opts)
		if err != nil {
			return nil, fmt.Errorf("open %s/%s: %w", p.Addr(), p.Name, err)
		}
		return db, nil
	}
}

// ConnParams derives the database target for t with a decrypted password.
func ConnParams(t *Tenant, password string, tls database.TLSPolicy) database.ConnParams {
	return database.ConnParams{
		Host:     t.DBHost,
		Port:     t.DBPort,
		Name:     t.DBName,
		User:     t.DBUser,
		Password: password,
		TLS:      tls.For(t.DBHost),
	}
}
