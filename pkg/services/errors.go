// Package services implements the create and update rules for actions,
// datasources and plugins.
package services

import (
	"errors"
	"fmt"
)

// Reasons recorded in Invalids when a record is saved but cannot run.
const (
	ReasonInvalidActionName        = "Invalid action name"
	ReasonNoConfigurationInAction  = "No configuration found in action"
	ReasonDatasourceNotGiven       = "Datasource not given"
	ReasonPluginNotGiven           = "Plugin not given"
	reasonDatasourceNotFoundFormat = "No datasource found with id %s"
	reasonPluginNotFoundFormat     = "No plugin found with id %s"
)

var (
	ErrIDNotAllowed = errors.New("id must not be set on create")
	ErrNameRequired = errors.New("name is required")
	ErrIDRequired   = errors.New("id is required")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrIDNotAllowed) ||
		errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrIDRequired)
}

func newValidationError(op string, err error) *ServiceError {
	return &ServiceError{Op: op, Err: err}
}

func datasourceNotFoundReason(id string) string {
	return fmt.Sprintf(reasonDatasourceNotFoundFormat, id)
}

func pluginNotFoundReason(id string) string {
	return fmt.Sprintf(reasonPluginNotFoundFormat, id)
}
