package adaptive

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrInvalidAttempt     = errors.New("invalid attempt")
	ErrNoCatalogAvailable = errors.New("no catalog available")
	ErrNotFound           = errors.New("not enrolled")
	ErrDuplicateAttempt   = errors.New("attempt already recorded")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError lists rejected input fields. It matches ErrInvalidAttempt.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidAttempt }
