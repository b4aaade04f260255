package types

import (
	"github.com/pkg/errors"
)

// ErrorKind classifies failures crossing a component boundary.
type ErrorKind string

const (
	InvalidRequest      ErrorKind = "InvalidRequest"
	ProvisioningFailure ErrorKind = "ProvisioningFailure"
	ExecutionFailure    ErrorKind = "ExecutionFailure"
	PersistenceError    ErrorKind = "PersistenceError"
	ResourceLeakRisk    ErrorKind = "ResourceLeakRisk"
)

// DeploymentError attaches an ErrorKind to an underlying error.
type DeploymentError struct {
	Kind ErrorKind
	Err  error
}

func (e *DeploymentError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *DeploymentError) Unwrap() error {
	return e.Err
}

// NewError wraps err with kind. A nil err still produces an error.
func NewError(kind ErrorKind, err error) error {
	return &DeploymentError{Kind: kind, Err: err}
}

// Errorf builds a DeploymentError from a format string.
func Errorf(kind ErrorKind, format string, args ...interface{}) error {
	return &DeploymentError{Kind: kind, Err: errors.Errorf(format, args...)}
}

// KindOf returns the kind of the first DeploymentError in err's chain, or ""
// when err carries none.
func KindOf(err error) ErrorKind {
	var de *DeploymentError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
