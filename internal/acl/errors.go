package acl

import (
	"errors"
	"strings"
)

// Mode selects how a required permission list is evaluated.
type Mode int

const (
	// All requires every listed permission.
	All Mode = iota
	// Any requires at least one listed permission.
	Any
)

func (m Mode) String() string {
	if m == Any {
		return "any"
	}
	return "all"
}

var (
	// ErrPermissionDenied is matched by every *PermissionDeniedError.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNoBranch: a branch-scoped principal has no assigned branch.
	ErrNoBranch = errors.New("branch-scoped role has no assigned branch")
)

// PermissionDeniedError lists what was missing.  In Any mode Missing holds
// the whole alternative list; the error never says which alternative was
// closest.
type PermissionDeniedError struct {
	Mode    Mode
	Missing []string
}

func (e *PermissionDeniedError) Error() string {
	if e.Mode == Any {
		return "requires at least one of: " + strings.Join(e.Missing, ", ")
	}
	return "missing required permissions: " + strings.Join(e.Missing, ", ")
}

func (e *PermissionDeniedError) Is(target error) bool { return target == ErrPermissionDenied }
