package syncengine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized means the tenant database exists but its sync
	// metadata row does not; the tenant was never provisioned properly.
	ErrNotInitialized = errors.New("sync metadata not initialized for tenant")

	// ErrInvalidCollection means the collection name is not one of the
	// synced collections.
	ErrInvalidCollection = errors.New("unknown collection")

	// ErrMissingRecordID means an inbound record has no usable id field.
	ErrMissingRecordID = errors.New("record is missing an id")
)

// SyncError wraps a failure during a batch synchronization. The failure has
// already been recorded (best-effort) in the tenant's sync metadata by the
// time the caller sees it.
type SyncError struct {
	Collection string
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s: %v", e.Collection, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
