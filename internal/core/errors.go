package core

import "fmt"

// ServiceError reports a failed call to a remote service (network, auth, quota or a
// malformed response).
type ServiceError struct {
	Service string
	Op      string
	Err     error
}

// NewServiceError wraps err as a ServiceError for the given service operation.
func NewServiceError(service, op string, err error) *ServiceError {
	return &ServiceError{Service: service, Op: op, Err: err}
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
