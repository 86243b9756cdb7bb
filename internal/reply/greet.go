package reply

import "fmt"

// ValidationError reports input rejected before any processing.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Greet is the single-string entry point: it has no message or chat, only a
// name to greet.
func Greet(input string) (string, error) {
	if input == "" {
		return "", &ValidationError{Field: "input", Reason: "must not be empty"}
	}
	return fmt.Sprintf("Hi %s: 123", input), nil
}
