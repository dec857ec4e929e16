// internal/tenant/helpers.go
//
// Host parsing helpers shared by the resolver and tests.
//
// Context
// -------
// These helpers centralise the host-header rules:
//
//   - `stripPort`    – drops `:port`, including from bracketed IPv6 hosts.
//   - `isLoopback`   – true for `localhost`, `*.localhost`, and loopback
//     IPs, where no real subdomain exists and the override header is read
//     instead.
//   - `subdomainOf`  – first label of a host with at least two labels,
//     lower-cased.  `greenfield.campus.example` yields `greenfield`; a bare
//     `campus` yields nothing.
//
// Notes
// -----
//   - No logging here; caller decides what to log.
package tenant

import (
	"net"
	"strings"
)

// stripPort removes :port from the Host header when present.
func stripPort(h string) string {
	if host, _, err := net.SplitHostPort(h); err == nil {
		return host
	}
	return strings.Trim(h, "[]")
}

// isLoopback reports whether host names the local machine.
func isLoopback(host string) bool {
	h := strings.ToLower(host)
	if h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return true
	}
	if ip := net.ParseIP(h); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// subdomainOf returns the first label of host, or "" when host has fewer
// than two labels or is an IP literal.
func subdomainOf(host string) string {
	if net.ParseIP(host) != nil {
		return ""
	}
	first, rest, ok := strings.Cut(strings.ToLower(host), ".")
	if !ok || first == "" || rest == "" {
		return ""
	}
	return first
}
