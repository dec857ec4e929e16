// internal/config/model.go
//
// Typed configuration model for Campus.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                          – dotenv values,
//   • `conf/global.yaml`                       – primary static file,
//   • `CAMPUS_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *before* unmarshalling, so the model never
// stores Vault URIs, only plain strings.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.  Koanf ignores `yaml` tags
//     unless configured otherwise.
//   • Durations accept Go syntax (`250ms`, `1h`).
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr      string        `koanf:"listen_addr"      validate:"required,hostname_port"`
	ForceHTTPS      bool          `koanf:"force_https"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

//
// Database section
//

// Database holds the control-plane DSNs and tenant pool policy.
//
// `ControlDSN` reaches the registry.  `AdminDSN` must be allowed to run
// CREATE DATABASE on tenant servers; it defaults to ControlDSN.
type Database struct {
	ControlDSN      string        `koanf:"control_dsn"       validate:"required"`
	AdminDSN        string        `koanf:"admin_dsn"`
	ManagedTLSHosts []string      `koanf:"managed_tls_hosts"`
	TLSMode         string        `koanf:"tls_mode"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"   validate:"gt=0"`
	IdleTTL         time.Duration `koanf:"idle_ttl"          validate:"gte=0"`
	MaxPools        int           `koanf:"max_pools"         validate:"gte=0"`
}

//
// Redis section
//

// Redis configures the tenant metadata cache.  An empty URL selects the
// in-process store.
type Redis struct {
	URL           string        `koanf:"url"`
	TTL           time.Duration `koanf:"ttl"            validate:"gt=0"`
	OpTimeout     time.Duration `koanf:"op_timeout"     validate:"gt=0"`
	MemoryEntries int           `koanf:"memory_entries" validate:"gt=0"`
}

//
// Security section
//

// Security holds secrets.  Both are normally `vault:` references.
type Security struct {
	EncryptionKey string `koanf:"encryption_key" validate:"required"`
	JWTSecret     string `koanf:"jwt_secret"     validate:"required,min=32"`
}

//
// Tenancy section
//

// Tenancy names the identification headers.
type Tenancy struct {
	SubdomainHeader string `koanf:"subdomain_header" validate:"required"`
	IDHeader        string `koanf:"id_header"        validate:"required"`
}

//
// Provisioning section
//

// Provisioning bounds background migration work.
type Provisioning struct {
	Workers int  `koanf:"workers" validate:"gte=1,lte=64"`
	Seed    bool `koanf:"seed"`
}

//
// Log section
//

// Log configures the zap logger.
type Log struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	Tee   bool   `koanf:"tee"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.  The loader
// discovers `Root` (repo root or CAMPUS_ROOT override) so later code can
// build absolute file paths.
type Paths struct {
	Root string // CAMPUS_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP         HTTP         `koanf:"http"`
	Database     Database     `koanf:"database"`
	Redis        Redis        `koanf:"redis"`
	Security     Security     `koanf:"security"`
	Tenancy      Tenancy      `koanf:"tenancy"`
	Provisioning Provisioning `koanf:"provisioning"`
	Log          Log          `koanf:"log"`
	Paths        Paths        `koanf:"-"` // not loaded from config files
}

// Defaults returns the values used for keys absent from every layer.
func Defaults() Config {
	return Config{
		HTTP: HTTP{
			ListenAddr:      ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 20 * time.Second,
		},
		Database: Database{
			ConnectTimeout: 10 * time.Second,
		},
		Redis: Redis{
			TTL:           time.Hour,
			OpTimeout:     250 * time.Millisecond,
			MemoryEntries: 1024,
		},
		Tenancy: Tenancy{
			SubdomainHeader: "X-Tenant-Subdomain",
			IDHeader:        "X-Tenant-ID",
		},
		Provisioning: Provisioning{Workers: 2, Seed: true},
		Log:          Log{Level: "info"},
	}
}
