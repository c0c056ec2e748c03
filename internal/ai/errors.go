package ai

import "fmt"

// ClassificationError covers both transport failures and model output
// that does not match the expected JSON contract.
type ClassificationError struct {
	Op  string
	Raw string
	Err error
}

func (e *ClassificationError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("ai: %s: %v (raw=%q)", e.Op, e.Err, short(e.Raw))
	}
	return fmt.Sprintf("ai: %s: %v", e.Op, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

const maxRawLen = 180

// short trims s to at most maxRawLen bytes without splitting a rune.
func short(s string) string {
	if len(s) <= maxRawLen {
		return s
	}
	cut := 0
	for i := range s {
		if i > maxRawLen {
			break
		}
		cut = i
	}
	return s[:cut] + "..."
}
