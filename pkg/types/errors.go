package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

var (
	// ErrNotFound is returned when an entity is absent from the active backend and the cache
	ErrNotFound = errors.New("not found")

	// ErrBackendUnavailable marks transient backend failures that trigger failover
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrQuotaExceeded marks a backend that refused a write because its quota is exhausted
	ErrQuotaExceeded = errors.New("backend quota exceeded")

	// ErrConfiguration is fatal at startup
	ErrConfiguration = errors.New("configuration error")
)

// IsFailoverError reports whether err should move traffic to another backend
func IsFailoverError(err error) bool {
	return errors.Is(err, ErrBackendUnavailable) || errors.Is(err, ErrQuotaExceeded)
}

// UnavailableError is the single error returned after every configured backend failed an operation
type UnavailableError struct {
	Operation string
	Attempts  map[string]error
}

func (e *UnavailableError) Error() string {
	names := make([]string, 0, len(e.Attempts))
	for name := range e.Attempts {
		names = append(names, name)
	}
	sort.Strings(names)

	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, fmt.Errorf("%s: %w", name, e.Attempts[name]))
	}
	return fmt.Sprintf("%s failed on all backends [%s]: %v",
		e.Operation, strings.Join(names, ", "), utilerrors.NewAggregate(errs))
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

// PartialWriteFailure means the backend write succeeded but a mirror (cache or log) did not
type PartialWriteFailure struct {
	EntityID string
	Mirror   string
	Err      error
}

func (e *PartialWriteFailure) Error() string {
	return fmt.Sprintf("entity %s written but %s mirror failed: %v", e.EntityID, e.Mirror, e.Err)
}

func (e *PartialWriteFailure) Unwrap() error {
	return e.Err
}
