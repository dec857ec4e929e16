// identity.go
//
// Identity captures only the request fields tenant resolution reads:
//
//   - Host       – r.Host without the :port suffix.
//   - Subdomain  – the override header value (honoured on loopback hosts).
//   - TenantID   – the raw tenant-id header value.
//
// Keeping the resolver input this small lets the CLI and tests build one
// without an *http.Request.
package tenant

import (
	"net/http"
	"strconv"
	"strings"
)

// Default header names.  Overridable through Headers.
const (
	HeaderSubdomain = "X-Tenant-Subdomain"
	HeaderTenantID  = "X-Tenant-ID"
)

// Headers names the request headers consulted during resolution.
type Headers struct {
	Subdomain string
	TenantID  string
}

// DefaultHeaders returns the stock header names.
func DefaultHeaders() Headers {
	return Headers{Subdomain: HeaderSubdomain, TenantID: HeaderTenantID}
}

// Identity is the resolver input.
type Identity struct {
	Host      string
	Subdomain string
	TenantID  string
}

// IdentityFromRequest extracts an Identity from r.
func IdentityFromRequest(r *http.Request, h Headers) Identity {
	if h.Subdomain == "" {
		h.Subdomain = HeaderSubdomain
	}
	if h.TenantID == "" {
		h.TenantID = HeaderTenantID
	}
	return Identity{
		Host:      stripPort(r.Host),
		Subdomain: strings.TrimSpace(r.Header.Get(h.Subdomain)),
		TenantID:  strings.TrimSpace(r.Header.Get(h.TenantID)),
	}
}

// CandidateSubdomain applies the host rules: loopback hosts use the
// override header, others use the first host label.
func (in Identity) CandidateSubdomain() string {
	if isLoopback(in.Host) {
		return strings.ToLower(in.Subdomain)
	}
	return subdomainOf(in.Host)
}

// CandidateID parses the tenant-id header.  ok is false when the header is
// absent or not a positive integer.
func (in Identity) CandidateID() (id int64, ok bool) {
	if in.TenantID == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(in.TenantID, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
