// internal/database/params.go
//
// Tenant connection target.
//
// Context
// -------
// One tenant database is described by host, port, database name, user, and
// a decrypted password.  The same target is rendered two ways:
//
//   - `Config`       – a *mysql.Config consumed by OpenConfig for the live
//     pool.  No escaping concerns; fields are typed.
//   - `MigrationURL` – the `mysql://` URL golang-migrate expects.  User and
//     password are query-escaped so characters such as `@`, `:`, `/`, and
//     `?` survive; the migrate driver unescapes them again.
//
// Managed cloud hosts (for example Aiven) refuse plaintext connections, so
// both renderings attach a `tls` mode when the host matches one of the
// configured patterns.
//
// Notes
// -----
//   - Character set is always utf8mb4; `parseTime=true` so DATETIME columns
//     scan into time.Time.
//   - Migration files hold several statements each, so only the migration
//     URL enables `multiStatements`.
package database

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ConnParams identifies one tenant database and the credentials to reach it.
type ConnParams struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	TLS      string // "" disables; otherwise a go-sql-driver tls value
}

// Addr renders host:port, bracketing IPv6 literals.
func (p ConnParams) Addr() string {
	port := p.Port
	if port == 0 {
		port = 3306
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(port))
}

// Config returns a typed driver config for OpenConfig.
func (p ConnParams) Config() *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = p.Addr()
	cfg.DBName = p.Name
	cfg.ParseTime = true
	cfg.CheckConnLiveness = true // probe idle connections on checkout
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	if p.TLS != "" {
		cfg.TLSConfig = p.TLS
	}
	return cfg
}

// MigrationURL returns the golang-migrate database URL for the target.
func (p ConnParams) MigrationURL() string {
	var b strings.Builder
	b.WriteString("mysql://")
	b.WriteString(url.QueryEscape(p.User))
	b.WriteByte(':')
	b.WriteString(url.QueryEscape(p.Password))
	b.WriteString("@tcp(")
	b.WriteString(p.Addr())
	b.WriteString(")/")
	b.WriteString(p.Name)
	b.WriteString("?charset=utf8mb4&parseTime=true&multiStatements=true")
	if p.TLS != "" {
		b.WriteString("&tls=")
		b.WriteString(url.QueryEscape(p.TLS))
	}
	return b.String()
}

// TLSPolicy decides whether a host needs an encrypted connection.
type TLSPolicy struct {
	Hosts []string // substrings matched case-insensitively against the host
	Mode  string   // value for the tls parameter, "true" when empty
}

// For returns the tls mode for host, or "" when no pattern matches.
func (p TLSPolicy) For(host string) string {
	h := strings.ToLower(host)
	for _, pat := range p.Hosts {
		pat = strings.ToLower(strings.TrimSpace(pat))
		if pat != "" && strings.Contains(h, pat) {
			if p.Mode == "" {
				return "true"
			}
			return p.Mode
		}
	}
	return ""
}
