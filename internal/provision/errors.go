package provision

import (
	"errors"
	"fmt"
)

// Failure kinds.  Match with errors.Is against the error Provision returns.
var (
	ErrInvalidRequest    = errors.New("invalid provisioning request")
	ErrDuplicate         = errors.New("subdomain or code already registered")
	ErrDatabaseCreation  = errors.New("database creation failed")
	ErrSchemaApplication = errors.New("schema application failed")
	ErrRegistration      = errors.New("tenant registration failed")
	ErrSeeding           = errors.New("seeding failed")
)

// Error reports the stage a provisioning run stopped at.
type Error struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provision %s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("provision %s: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
