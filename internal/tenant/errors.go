package tenant

import (
	"errors"
	"fmt"
)

var (
	// ErrTenantNotIdentified: neither the host nor the headers name a known
	// tenant.  Maps to 400.
	ErrTenantNotIdentified = errors.New("tenant not identified")

	// ErrTenantInactive: the tenant exists but has been deactivated.  Maps
	// to 403.
	ErrTenantInactive = errors.New("tenant is inactive")

	// ErrPoolCreation: the tenant's pool could not be opened.  Maps to 500.
	// Never cached; the next request retries.
	ErrPoolCreation = errors.New("tenant pool creation failed")
)

// PoolCreationError carries the tenant and the underlying cause.
// errors.Is(err, ErrPoolCreation) holds for every value.
type PoolCreationError struct {
	TenantID int64
	Err      error
}

func (e *PoolCreationError) Error() string {
	return fmt.Sprintf("tenant %d: %v: %v", e.TenantID, ErrPoolCreation, e.Err)
}

func (e *PoolCreationError) Unwrap() []error { return []error{ErrPoolCreation, e.Err} }
