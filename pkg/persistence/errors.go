package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	ErrActionNotFound     = errors.New("action not found")
	ErrDatasourceNotFound = errors.New("datasource not found")
	ErrPluginNotFound     = errors.New("plugin not found")

	// ErrOrganizationPluginNotFound indicates no installation record exists for the pair.
	ErrOrganizationPluginNotFound = errors.New("organization plugin not found")

	// ErrOrganizationPluginAlreadyExists is returned by a conditional create that lost.
	ErrOrganizationPluginAlreadyExists = errors.New("organization plugin already exists")

	ErrInvalidID = errors.New("invalid identifier")
)

// RecordError wraps repository errors with the operation and record involved.
type RecordError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	Entity string
	ID     string
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

func (e *RecordError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewRecordError(op, entity, id string, err error) *RecordError {
	return &RecordError{Op: op, Entity: entity, ID: id, Err: err}
}

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrActionNotFound) ||
		errors.Is(err, ErrDatasourceNotFound) ||
		errors.Is(err, ErrPluginNotFound) ||
		errors.Is(err, ErrOrganizationPluginNotFound)
}
