package notes

import "fmt"

// StoreError is returned when the database could not complete an operation:
// lost connection, a write that kept failing, a violated constraint.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("notes: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ValidationError rejects input before it reaches the database.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("notes: invalid %s: %s", e.Field, e.Reason)
}
