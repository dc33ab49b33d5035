/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package regulator

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceNotConfigured is reported when an operation references a service
	// identifier the regulator knows nothing about. Returned errors wrap it,
	// so call sites can use errors.Is.
	ErrServiceNotConfigured = errors.New("service is not configured")

	// ErrInvalidServiceConfig is reported when a service configuration fails
	// validation. Returned errors wrap it, so call sites can use errors.Is.
	ErrInvalidServiceConfig = errors.New("invalid service configuration")
)

// ServiceNotConfiguredError is returned when a wrapped call, Reconfigure,
// or Lookup references an unknown service.
type ServiceNotConfiguredError struct {
	Service string
}

// Error implements the error interface.
func (e *ServiceNotConfiguredError) Error() string {
	return fmt.Sprintf("service %q is not configured", e.Service)
}

// Unwrap returns ErrServiceNotConfigured.
func (e *ServiceNotConfiguredError) Unwrap() error {
	return ErrServiceNotConfigured
}

// ServiceConfigError is returned when a ServiceConfig fails validation
// at Configure or Reconfigure time. Inner holds the violated constraint.
type ServiceConfigError struct {
	Service string
	Inner   error
}

// Error implements the error interface.
func (e *ServiceConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for service %q: %v", e.Service, e.Inner)
}

// Unwrap returns ErrInvalidServiceConfig.
func (e *ServiceConfigError) Unwrap() error {
	return ErrInvalidServiceConfig
}
