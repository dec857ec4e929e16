// internal/config/loader.go
//
// Layered configuration for the web server and campusctl.
//
/*
Context
--------
`Load()` merges these layers, later ones winning:

  0. Defaults() for every optional key.
  1. `<root>/conf/.env`, if present, exported into the process env.
  2. `<root>/conf/global.yaml`, if present.  Container deployments often
     ship env only.
  3. `CAMPUS_*` variables, `__` separating section and key
     (`CAMPUS_DATABASE__CONTROL_DSN → database.control_dsn`).

Any string that starts with `vault:` is then swapped for the secret it
names.  No Vault client is built unless such a string exists, so a laptop
with plain env secrets never needs VAULT_ADDR.  The merged tree is
unmarshalled, validated, stamped with the root path, and published
through an atomic pointer; `Get()` reads it and `Reload()` rebuilds it.

Instrumentation
---------------
  • DEBUG: root directory, YAML presence, and each resolved secret key
    (never the value).
  • ERROR: the layer that failed.
  • INFO:  one “config loaded” line with listen address, cache mode, and
    worker count.
  • zap.S() is used because the file logger depends on this config.

Notes
-----
  • CAMPUS_ROOT pins the root.  Otherwise the loader walks up from the
    working directory looking for conf/global.yaml, then tries the
    `<prefix>/bin/<exe>` install layout.
  • Oxford commas, two spaces after periods.
*/
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/vault"
)

// EnvPrefix marks environment overrides.
const EnvPrefix = "CAMPUS_"

// SecretPrefix marks values resolved through Vault.
const SecretPrefix = vault.Prefix

var loaded atomic.Pointer[Config]

// SecretResolver turns a `vault:` reference into its value.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// newResolver is swapped in tests.
var newResolver = func(ctx context.Context) (SecretResolver, error) {
	return vault.New(ctx, zap.L())
}

/*──────────────────────────── root discovery ───────────────────────────────*/

const yamlRel = "conf/global.yaml"

// rootDir picks the directory that holds conf/.
func rootDir() string {
	if r := os.Getenv("CAMPUS_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	for dir := wd; ; {
		if fileExists(filepath.Join(dir, yamlRel)) {
			return dir
		}
		up := filepath.Dir(dir)
		if up == dir {
			break
		}
		dir = up
	}

	if exe, err := os.Executable(); err == nil {
		if bin := filepath.Dir(exe); filepath.Base(bin) == "bin" {
			return filepath.Dir(bin)
		}
	}
	return wd
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// envKey maps CAMPUS_HTTP__LISTEN_ADDR to http.listen_addr.
func envKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(s, EnvPrefix), "__", "."))
}

// Load builds, validates, and publishes a Config.
func Load(ctx context.Context) (*Config, error) {
	log := zap.S()
	root := rootDir()
	log.Debugw("config root", "root", root)

	if err := godotenv.Load(filepath.Join(root, "conf", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnw("conf/.env unreadable, skipped", "err", err)
	}

	k := koanf.New(".")
	if err := loadYAML(k, filepath.Join(root, yamlRel)); err != nil {
		log.Errorw("config yaml", "err", err)
		return nil, err
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		log.Errorw("config env", "err", err)
		return nil, fmt.Errorf("env overlay: %w", err)
	}
	if err := resolveSecrets(ctx, k); err != nil {
		log.Errorw("config secrets", "err", err)
		return nil, err
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		log.Errorw("config unmarshal", "err", err)
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if cfg.Database.AdminDSN == "" {
		cfg.Database.AdminDSN = cfg.Database.ControlDSN
	}
	cfg.Paths.Root = root

	if err := validateStruct(&cfg); err != nil {
		log.Errorw("config validation", "err", err)
		return nil, err
	}

	loaded.Store(&cfg)
	log.Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"redis", cfg.Redis.URL != "",
		"workers", cfg.Provisioning.Workers,
		"root", root,
	)
	return &cfg, nil
}

// loadYAML merges path into k.  A missing file is not an error.
func loadYAML(k *koanf.Koanf, path string) error {
	err := k.Load(file.Provider(path), yaml.Parser())
	switch {
	case err == nil:
		zap.S().Debugw("config yaml loaded", "file", path)
		return nil
	case errors.Is(err, fs.ErrNotExist):
		zap.S().Debugw("config yaml absent", "file", path)
		return nil
	default:
		return fmt.Errorf("%s: %w", path, err)
	}
}

// resolveSecrets replaces every `vault:` string in k.
func resolveSecrets(ctx context.Context, k *koanf.Koanf) error {
	var refs []string
	for key, v := range k.All() {
		if s, ok := v.(string); ok && strings.HasPrefix(s, SecretPrefix) {
			refs = append(refs, key)
		}
	}
	if len(refs) == 0 {
		return nil
	}

	res, err := newResolver(ctx)
	if err != nil {
		return fmt.Errorf("vault client: %w", err)
	}
	for _, key := range refs {
		val, err := res.Resolve(ctx, k.String(key))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		zap.S().Debugw("config secret resolved", "key", key)
	}
	return nil
}

/*──────────────────────────── accessors ───────────────────────────────────*/

// Get returns the last Config published by Load, or nil before the first.
func Get() *Config { return loaded.Load() }

// Reload runs Load again and publishes the result on success.
func Reload(ctx context.Context) error {
	_, err := Load(ctx)
	return err
}
