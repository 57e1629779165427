// Package util provides shared error types and HTTP helpers for the gateway.
//
// # Error Conventions
//
// This project follows a standardized error pattern across all packages:
//
//   - Sentinel errors (errors.New) for well-known, stable conditions
//     that callers check with errors.Is(). Example: ErrRateLimited.
//   - Structured error types for context-rich errors that carry
//     additional fields (e.g., DependencyError). Each type implements
//     Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context to an
//     existing error without introducing a new type.
package util

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	ErrAuthFailed       = errors.New("authentication failed")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrDependencyDown   = errors.New("dependency unavailable")
	ErrDependencyFailed = errors.New("dependency error")
)

// DependencyError represents a failure of a downstream dependency. When
// Unavailable is true the call never reached the dependency (circuit open
// or connection refused); otherwise the dependency was reached but failed.
type DependencyError struct {
	Dependency  string
	Unavailable bool
	Cause       error
}

// Error implements the error interface.
func (e *DependencyError) Error() string {
	kind := "error"
	if e.Unavailable {
		kind = "unavailable"
	}
	if e.Cause != nil {
		return fmt.Sprintf("dependency %s %s: %v", e.Dependency, kind, e.Cause)
	}
	return fmt.Sprintf("dependency %s %s", e.Dependency, kind)
}

// Unwrap returns the underlying error.
func (e *DependencyError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *DependencyError) Is(target error) bool {
	if e.Unavailable && target == ErrDependencyDown {
		return true
	}
	if !e.Unavailable && target == ErrDependencyFailed {
		return true
	}
	_, ok := target.(*DependencyError)
	return ok || errors.Is(e.Cause, target)
}

// NewDependencyError creates a DependencyError for a reached-but-failed call.
func NewDependencyError(dependency string, cause error) *DependencyError {
	return &DependencyError{Dependency: dependency, Cause: cause}
}

// NewDependencyUnavailableError creates a DependencyError for a call that
// never reached the dependency.
func NewDependencyUnavailableError(dependency string, cause error) *DependencyError {
	return &DependencyError{Dependency: dependency, Unavailable: true, Cause: cause}
}
