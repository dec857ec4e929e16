// internal/auth/context.go
//
// Verified-claims helpers shared by the auth middleware and handlers.
//
// Usage
// -----
//     // Attach verified claims to the request context (middleware).
//     ctx = auth.WithClaims(ctx, claims)
//
//     // Downstream code retrieves the user id.
//     id, ok := auth.UserID(ctx)   // 123, true
//
// Notes
// -----
// • The acl principal derived from the same claims lives in the acl
//   package; this file only carries what the token said.

package auth

import "context"

// claimsKey is unexported to avoid context-key collisions.
type claimsKey struct{}

// WithClaims returns a new context carrying c.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns the claims stored by WithClaims, or nil.
func ClaimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}

// UserID extracts the user id from ctx.  It returns (0, false) if no
// verified claims are present.
func UserID(ctx context.Context) (int64, bool) {
	c := ClaimsFrom(ctx)
	if c == nil {
		return 0, false
	}
	return c.UserID, true
}
