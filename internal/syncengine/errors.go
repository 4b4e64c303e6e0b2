package syncengine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
)

// ServiceError tags an engine failure with a dotted operation.reason code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "sync.service.new"
	opDiff       = "sync.diff"
	opExecute    = "sync.execute"
	opPrefetch   = "sync.prefetch"
	opResolve    = "sync.resolve_refs"
	opHistory    = "sync.history"
	opStatus     = "sync.status"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// isConflictError reports whether a store error stems from a duplicate
// external key raced in by a concurrent writer. Reported per record, never
// retried.
func isConflictError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
