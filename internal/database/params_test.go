package database

import (
	"net/url"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationURL_EscapesCredentials(t *testing.T) {
	p := ConnParams{
		Host:     "db.internal",
		Port:     3307,
		Name:     "greenfield_db",
		User:     "green@field",
		Password: "p@ss:w/rd?&#",
	}
	got := p.MigrationURL()

	assert.True(t, strings.HasPrefix(got, "mysql://"))
	assert.Contains(t, got, "@tcp(db.internal:3307)/greenfield_db?")
	assert.Contains(t, got, url.QueryEscape("p@ss:w/rd?&#"))
	assert.NotContains(t, got, "p@ss:w/rd")
	assert.NotContains(t, got, "tls=")

	// The migrate driver parses with mysql.ParseDSN and then query-unescapes.
	cfg, err := mysql.ParseDSN(strings.TrimPrefix(got, "mysql://"))
	require.NoError(t, err)
	user, err := url.QueryUnescape(cfg.User)
	require.NoError(t, err)
	pw, err := url.QueryUnescape(cfg.Passwd)
	require.NoError(t, err)
	assert.Equal(t, p.User, user)
	assert.Equal(t, p.Password, pw)
	assert.Equal(t, "greenfield_db", cfg.DBName)
}

func TestConfig_TypedFields(t *testing.T) {
	p := ConnParams{Host: "::1", Name: "a_db", User: "u", Password: "p:w@", TLS: "skip-verify"}
	cfg := p.Config()

	assert.Equal(t, "[::1]:3306", cfg.Addr)
	assert.Equal(t, "tcp", cfg.Net)
	assert.Equal(t, "p:w@", cfg.Passwd)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, "skip-verify", cfg.TLSConfig)
	assert.Equal(t, "utf8mb4", cfg.Params["charset"])
}

func TestTLSPolicy(t *testing.T) {
	pol := TLSPolicy{Hosts: []string{"aivencloud.com", " RDS.amazonaws.com "}}

	assert.Equal(t, "true", pol.For("mysql-1234.aivencloud.com"))
	assert.Equal(t, "true", pol.For("x.eu-west-1.rds.amazonaws.com"))
	assert.Equal(t, "", pol.For("127.0.0.1"))

	pol.Mode = "preferred"
	assert.Equal(t, "preferred", pol.For("foo.AIVENCLOUD.com"))

	assert.Equal(t, "", TLSPolicy{}.For("anything"))
}
