package protocol

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to callers.
type ErrorKind string

const (
	KindArgument                ErrorKind = "ARGUMENT_ERROR"
	KindConfiguration           ErrorKind = "CONFIGURATION_ERROR"
	KindDatasourceConfiguration ErrorKind = "DATASOURCE_CONFIGURATION_ERROR"
	KindActionConfiguration     ErrorKind = "ACTION_CONFIGURATION_ERROR"
	KindConnectivity            ErrorKind = "CONNECTIVITY_ERROR"
	KindAuthentication          ErrorKind = "AUTHENTICATION_ERROR"
	KindResourceNotFound        ErrorKind = "RESOURCE_NOT_FOUND"
	KindRepositorySaveFailed    ErrorKind = "REPOSITORY_SAVE_FAILED"
	KindPluginInstallation      ErrorKind = "PLUGIN_INSTALLATION_ERROR"
)

// Error codes returned in problem responses.
const (
	CodePluginIDNotGiven          = "PLUGIN_ID_NOT_GIVEN"
	CodePluginNotFound            = "PLUGIN_NOT_FOUND"
	CodePluginNotInstalled        = "PLUGIN_NOT_INSTALLED"
	CodeInvalidAction             = "INVALID_ACTION"
	CodeInvalidDatasource         = "INVALID_DATASOURCE"
	CodeActionRunKeyValueInvalid  = "ACTION_RUN_KEY_VALUE_INVALID"
	CodeNoResourceFound           = "NO_RESOURCE_FOUND"
	CodeConnectorNotFound         = "CONNECTOR_NOT_FOUND"
	CodeExecutionTimeout          = "EXECUTION_TIMEOUT"
	CodeDownloadFailed            = "PLUGIN_INSTALLATION_FAILED_DOWNLOAD_ERROR"
	CodeActivationFailed          = "PLUGIN_ACTIVATION_FAILED"
	CodeConnectorExecutionFailed  = "CONNECTOR_EXECUTION_FAILED"
	CodeDatasourceConnectFailed   = "DATASOURCE_CONNECT_FAILED"
	CodeRepositorySaveFailed      = "REPOSITORY_SAVE_FAILED"
	CodeInstallationPublishFailed = "PLUGIN_INSTALLATION_PUBLISH_FAILED"
)

var ErrExecutionTimeout = errors.New("action execution timed out")

// Error is a classified failure. Connectors may return it directly and it
// is passed through to the caller unchanged.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind and, when the target sets one, by code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	if t.Kind != e.Kind {
		return false
	}

	return t.Code == "" || t.Code == e.Code
}

func newError(kind ErrorKind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func NewArgumentError(code, message string) *Error {
	return newError(KindArgument, code, message, nil)
}

func NewConfigurationError(code, message string) *Error {
	return newError(KindConfiguration, code, message, nil)
}

func NewDatasourceConfigurationError(code, message string) *Error {
	return newError(KindDatasourceConfiguration, code, message, nil)
}

func NewActionConfigurationError(code, message string) *Error {
	return newError(KindActionConfiguration, code, message, nil)
}

func NewConnectivityError(code, message string, err error) *Error {
	return newError(KindConnectivity, code, message, err)
}

func NewAuthenticationError(message string, err error) *Error {
	return newError(KindAuthentication, "", message, err)
}

func NewResourceNotFoundError(message string) *Error {
	return newError(KindResourceNotFound, CodeNoResourceFound, message, nil)
}

func NewRepositorySaveError(message string, err error) *Error {
	return newError(KindRepositorySaveFailed, CodeRepositorySaveFailed, message, err)
}

func NewPluginInstallationError(code, message string, err error) *Error {
	return newError(KindPluginInstallation, code, message, err)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}

	return "", false
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ""
}

func NewPluginNotFoundError(pluginID string) *Error {
	return newError(KindResourceNotFound, CodePluginNotFound, fmt.Sprintf("plugin '%s' not found", pluginID), nil)
}
