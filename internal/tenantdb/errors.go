package tenantdb

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured means the base store connection settings are unset.
	ErrNotConfigured = errors.New("tenant database connection is not configured")

	// ErrDatabaseNotFound means an operation targeted a tenant database
	// that has never been provisioned.
	ErrDatabaseNotFound = errors.New("tenant database not found")

	// ErrMissingTenantID means a caller supplied an empty tenant identity.
	ErrMissingTenantID = errors.New("tenant id is required")
)

// ConnectionError wraps a failure to reach the database server. Retrying is
// the caller's (or the infrastructure's) concern, not this package's.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
