package models

import "fmt"

// ValidationError rejects malformed or out-of-sequence input (for example a
// clock-out with no prior clock-in). The offending event is discarded and no
// state changes.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a *ValidationError.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConfigError rejects an invalid RBACConfig at load time. The previously
// installed configuration stays active.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config: " + e.Msg }

// StorageError wraps a persistence failure that the caller may retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }
