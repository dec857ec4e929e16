// internal/vault/vault.go
//
// Secret references backed by HashiCorp Vault (KV v2).
//
// Context
// -------
// Config values may name a secret instead of holding it:
//
//	security:
//	  encryption_key: "vault:secret/campus#encryption_key"
//
// `Client.Resolve` parses such a reference, reads the KV‑v2 entry, and
// returns the one string field it names.  Reads are cached per reference
// for RefTTL and concurrent misses on the same reference share a single
// round trip.  A background loop keeps the client token alive through the
// SDK's LifetimeWatcher for as long as the boot context lives.
//
// Environment
// -----------
// • VAULT_ADDR   – scheme and host of the Vault server.
// • VAULT_TOKEN  – client token (the SDK also reads ~/.vault-token).
//
// Notes
// -----
// • Only string fields are supported; secrets are keys and passwords.
// • Oxford commas, two spaces after periods.

package vault

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RefTTL is how long a resolved reference stays cached.
const RefTTL = 5 * time.Minute

// Prefix marks a config value as a Vault reference.
const Prefix = "vault:"

// Ref names one field of one KV‑v2 secret.
type Ref struct {
	Mount string
	Path  string
	Key   string
}

func (r Ref) String() string { return Prefix + r.Mount + "/" + r.Path + "#" + r.Key }

// ParseRef parses `vault:mount/path#key`.  Mount, path, and key are all
// required.
func ParseRef(s string) (Ref, error) {
	rest, ok := strings.CutPrefix(s, Prefix)
	if !ok {
		return Ref{}, fmt.Errorf("not a vault reference: %q", s)
	}
	loc, key, _ := strings.Cut(rest, "#")
	mount, path, _ := strings.Cut(loc, "/")
	if mount == "" || path == "" || key == "" {
		return Ref{}, fmt.Errorf("vault reference %q must look like vault:mount/path#key", s)
	}
	return Ref{Mount: mount, Path: path, Key: key}, nil
}

// kvReader reads the data map of one KV‑v2 secret.
type kvReader interface {
	Read(ctx context.Context, mount, path string) (map[string]any, error)
}

type apiReader struct{ api *vault.Client }

func (a apiReader) Read(ctx context.Context, mount, path string) (map[string]any, error) {
	sec, err := a.api.KVv2(mount).Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return sec.Data, nil
}

type entry struct {
	val     string
	expires time.Time
}

// Client resolves references.  Safe for concurrent use.
type Client struct {
	kv  kvReader
	log *zap.Logger
	now func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	cache map[Ref]entry
}

// New builds a client from the VAULT_* environment and starts token
// renewal bound to ctx.
func New(ctx context.Context, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env: %w", err)
	}
	api, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}

	c := newClient(apiReader{api}, log.Named("vault"))
	go renewToken(ctx, api, c.log)
	return c, nil
}

func newClient(kv kvReader, log *zap.Logger) *Client {
	return &Client{kv: kv, log: log, now: time.Now, cache: make(map[Ref]entry)}
}

// Resolve returns the secret named by the reference string s.
func (c *Client) Resolve(ctx context.Context, s string) (string, error) {
	ref, err := ParseRef(s)
	if err != nil {
		return "", err
	}
	return c.Lookup(ctx, ref)
}

// Lookup returns the field named by ref, from cache when fresh.
func (c *Client) Lookup(ctx context.Context, ref Ref) (string, error) {
	c.mu.RLock()
	e, ok := c.cache[ref]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expires) {
		return e.val, nil
	}

	v, err, _ := c.group.Do(ref.String(), func() (any, error) {
		data, err := c.kv.Read(ctx, ref.Mount, ref.Path)
		if err != nil {
			return nil, fmt.Errorf("vault read %s/%s: %w", ref.Mount, ref.Path, err)
		}
		raw, ok := data[ref.Key]
		if !ok {
			return nil, fmt.Errorf("vault secret %s/%s has no field %q", ref.Mount, ref.Path, ref.Key)
		}
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("vault field %s#%s is %T, want string", ref.Path, ref.Key, raw)
		}

		c.mu.Lock()
		c.cache[ref] = entry{val: s, expires: c.now().Add(RefTTL)}
		c.mu.Unlock()
		c.log.Debug("secret fetched", zap.String("mount", ref.Mount), zap.String("path", ref.Path))
		return s, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

//
// Token renewal
//

func renewToken(ctx context.Context, api *vault.Client, log *zap.Logger) {
	for ctx.Err() == nil {
		sec, err := api.Auth().Token().RenewSelfWithContext(ctx, 0)
		switch {
		case err != nil:
			log.Warn("token renew-self failed", zap.Error(err))
			sleep(ctx, 30*time.Second)
		case sec == nil || sec.Auth == nil || !sec.Auth.Renewable:
			log.Info("token not renewable, checking again in 1h")
			sleep(ctx, time.Hour)
		default:
			watch(ctx, api, sec, log)
		}
	}
}

// watch keeps sec alive until the watcher gives up or ctx ends.
func watch(ctx context.Context, api *vault.Client, sec *vault.Secret, log *zap.Logger) {
	w, err := api.NewLifetimeWatcher(&vault.LifetimeWatcherInput{Secret: sec, Grace: 15 * time.Second})
	if err != nil {
		log.Warn("lifetime watcher", zap.Error(err))
		sleep(ctx, 30*time.Second)
		return
	}
	go w.Start()
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-w.DoneCh():
			if err != nil {
				log.Warn("token renewal stopped", zap.Error(err))
			}
			sleep(ctx, 15*time.Second)
			return
		case ev := <-w.RenewCh():
			if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
				log.Debug("token renewed", zap.Int("ttl_s", ev.Secret.Auth.LeaseDuration))
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
