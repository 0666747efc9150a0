package fragment

import (
	"errors"
	"fmt"
)

// Sentinel errors for matching with errors.Is.
var (
	// ErrBuild indicates invalid builder input detected before any I/O.
	ErrBuild = errors.New("pgweave: invalid statement input")

	// ErrNoParentScope indicates a parent column reference compiled with no
	// active lateral parent context.
	ErrNoParentScope = errors.New("pgweave: parent reference outside a lateral subquery")

	// ErrNoColumnScope indicates a Self reference compiled with no active
	// column scope.
	ErrNoColumnScope = errors.New("pgweave: self reference outside a column scope")
)

// Scope names used by ContextError.
const (
	ScopeLateral = "lateral"
	ScopeColumn  = "column"
)

// BuildError reports an invalid option value or interpolation. It is
// always synchronous and local, and never retried.
type BuildError struct {
	// Op is the operation being built, e.g. "select" or "compile".
	Op string

	// Message is the human-readable description.
	Message string
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("pgweave: %s: %s", e.Op, e.Message)
}

// Is matches the ErrBuild sentinel.
func (e *BuildError) Is(target error) bool {
	return target == ErrBuild
}

// Buildf constructs a BuildError with a formatted message.
func Buildf(op, format string, args ...interface{}) *BuildError {
	return &BuildError{Op: op, Message: fmt.Sprintf(format, args...)}
}

// ContextError reports a scope-dependent marker compiled outside its
// scope: a ParentColumn with no lateral parent active, or Self with no
// column scope.
type ContextError struct {
	// Ref is the referenced column or marker name.
	Ref string

	// Scope is the missing scope, ScopeLateral or ScopeColumn.
	Scope string
}

// Error implements the error interface.
func (e *ContextError) Error() string {
	if e.Scope == ScopeColumn {
		return "pgweave: self reference compiled outside a column scope"
	}
	return fmt.Sprintf("pgweave: parent column %q referenced outside a lateral subquery", e.Ref)
}

// Is matches the sentinel for the missing scope.
func (e *ContextError) Is(target error) bool {
	if e.Scope == ScopeColumn {
		return target == ErrNoColumnScope
	}
	return target == ErrNoParentScope
}

// IsBuildError checks if an error is a build-time input error.
func IsBuildError(err error) bool {
	return errors.Is(err, ErrBuild)
}

// IsContextError checks if an error is a scope violation.
func IsContextError(err error) bool {
	return errors.Is(err, ErrNoParentScope) || errors.Is(err, ErrNoColumnScope)
}
