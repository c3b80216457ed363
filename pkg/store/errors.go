package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no record matches a key or text lookup.
var ErrNotFound = errors.New("record not found")

// ValidationError reports a record that would break a store invariant.
type ValidationError struct {
	Key   string
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record %q: %s must be non-empty", e.Key, e.Field)
}

func validate(key, english string) error {
	if key == "" {
		return &ValidationError{Key: key, Field: "key"}
	}
	if english == "" {
		return &ValidationError{Key: key, Field: "english"}
	}
	return nil
}
