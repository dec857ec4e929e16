// internal/auth/token.go
//
// HS256 bearer tokens.
//
// Context
// -------
// Campus does not run its own login flow; an identity service issues JWTs
// signed with the shared `security.jwt_secret`.  The claims carry just
// enough to build an acl.Principal:
//
//	uid        user id inside the tenant database
//	role       primary role name (drives super-admin bypass and branch scope)
//	role_ids   optional tenant role ids; present means dynamic roles
//	branch_id  optional branch assignment for branch roles
//	tid        optional tenant id the token was issued for
//
// `Signer` exists for campusctl and tests.  Production tokens come from
// elsewhere.
//
// Notes
// -----
// • The verifier pins the algorithm; a token signed with anything other
//   than HS256 is rejected before the key is consulted.

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned for missing, malformed, or invalid tokens.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// ErrNoSecret is returned when a Signer or Verifier is built without a key.
var ErrNoSecret = errors.New("auth: jwt secret not configured")

// Claims are the verified contents of a campus token.
type Claims struct {
	UserID   int64   `json:"uid"`
	Role     string  `json:"role"`
	RoleIDs  []int64 `json:"role_ids,omitempty"`
	BranchID *int64  `json:"branch_id,omitempty"`
	TenantID int64   `json:"tid,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens against a shared secret.
type Verifier struct {
	method jwt.SigningMethod
	secret []byte
	leeway time.Duration
}

// NewVerifier returns a Verifier for secret.
func NewVerifier(secret []byte) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	return &Verifier{method: jwt.SigningMethodHS256, secret: secret, leeway: 30 * time.Second}, nil
}

// Verify parses token and returns its claims.  Every failure wraps
// ErrUnauthenticated.
func (v *Verifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != v.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithLeeway(v.leeway), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: missing uid claim", ErrUnauthenticated)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role claim", ErrUnauthenticated)
	}
	return claims, nil
}

// Signer issues HS256 tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner returns a Signer whose tokens live for ttl.
func NewSigner(secret []byte, ttl time.Duration) (*Signer, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Signer{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Sign fills the registered time claims and returns the compact token.
func (s *Signer) Sign(c Claims) (string, error) {
	now := s.now()
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	if c.Subject == "" {
		c.Subject = fmt.Sprintf("%d", c.UserID)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, &c).SignedString(s.secret)
}
