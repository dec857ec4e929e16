package tenant

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripPort(t *testing.T) {
	cases := map[string]string{
		"greenfield.campus.example:8443": "greenfield.campus.example",
		"greenfield.campus.example":      "greenfield.campus.example",
		"localhost:8080":                 "localhost",
		"[::1]:8080":                     "::1",
		"::1":                            "::1",
		"127.0.0.1":                      "127.0.0.1",
	}
	for in, want := range cases {
		assert.Equal(t, want, stripPort(in), in)
	}
}

func TestIsLoopback(t *testing.T) {
	for _, h := range []string{"localhost", "LOCALHOST", "api.localhost", "127.0.0.1", "127.0.0.2", "::1"} {
		assert.True(t, isLoopback(h), h)
	}
	for _, h := range []string{"greenfield.campus.example", "10.0.0.1", "localhost.example.com", ""} {
		assert.False(t, isLoopback(h), h)
	}
}

func TestSubdomainOf(t *testing.T) {
	assert.Equal(t, "greenfield", subdomainOf("Greenfield.campus.example"))
	assert.Equal(t, "oak-ridge", subdomainOf("oak-ridge.campus.example"))
	assert.Equal(t, "", subdomainOf("campus"))
	assert.Equal(t, "", subdomainOf("10.0.0.1"))
	assert.Equal(t, "", subdomainOf(".campus"))
	assert.Equal(t, "", subdomainOf(""))
}

func TestIdentityFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/tenant", nil)
	r.Host = "localhost:8080"
	r.Header.Set("X-Tenant-Subdomain", " Greenfield ")
	r.Header.Set("X-Tenant-ID", "7")

	in := IdentityFromRequest(r, Headers{})
	assert.Equal(t, "localhost", in.Host)
	assert.Equal(t, "greenfield", in.CandidateSubdomain())
	id, ok := in.CandidateID()
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
}

func TestIdentity_HostWinsOutsideLoopback(t *testing.T) {
	in := Identity{Host: "greenfield.campus.example", Subdomain: "other"}
	assert.Equal(t, "greenfield", in.CandidateSubdomain())
}

func TestIdentity_CustomHeaders(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Host = "127.0.0.1"
	r.Header.Set("X-School", "oak")
	in := IdentityFromRequest(r, Headers{Subdomain: "X-School", TenantID: "X-School-ID"})
	assert.Equal(t, "oak", in.CandidateSubdomain())
	_, ok := in.CandidateID()
	assert.False(t, ok)
}

func TestIdentity_CandidateIDRejectsGarbage(t *testing.T) {
	for _, v := range []string{"", "abc", "-3", "0", "1.5"} {
		_, ok := Identity{TenantID: v}.CandidateID()
		assert.False(t, ok, v)
	}
}
