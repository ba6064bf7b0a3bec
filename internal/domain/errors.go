package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for fail-fast precondition checks.
var (
	ErrMissingWorkspace = errors.New("genie space id is not configured")
	ErrMissingToken     = errors.New("databricks token is not available")
	ErrRunTimeout       = errors.New("agent run timed out")
)

// ConfigError indicates missing or invalid configuration. The turn is
// aborted and the user sees a configuration-error reply.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Field)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// AuthError indicates a failed token exchange. The turn is aborted; the
// data-query service is never called without a token.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed during %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ServiceError indicates a downstream query or runtime failure. Tool-layer
// service errors are converted into data; orchestration-layer ones surface
// as a user-visible message.
type ServiceError struct {
	Service string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }
