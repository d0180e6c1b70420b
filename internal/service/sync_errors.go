package service

import (
	"errors"
	"fmt"
)

// ErrLockContention is reported when another run holds the sync lock.
var ErrLockContention = errors.New("lock contention: another directory sync is running")

// ErrEmptySnapshot is reported when a full sync would sweep against an empty
// fetch. The sweep is skipped instead of deactivating every record.
var ErrEmptySnapshot = errors.New("directory returned no records; refusing to sweep")

// EntityKind names the replicated record types.
type EntityKind string

const (
	EntityDepartment EntityKind = "department"
	EntityUser       EntityKind = "user"
)

// ValidationError marks a single directory record that cannot be replicated.
// The record is skipped and counted as failed.
type ValidationError struct {
	Kind       EntityKind
	ExternalID string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Kind, e.ExternalID, e.Reason)
}

// ItemError wraps a failure while replicating one record.
type ItemError struct {
	Kind       EntityKind
	ExternalID string
	Err        error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.ExternalID, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

func itemError(kind EntityKind, externalID string, err error) error {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return err
	}
	return &ItemError{Kind: kind, ExternalID: externalID, Err: err}
}
