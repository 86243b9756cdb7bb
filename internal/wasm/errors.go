package wasm

import (
	"fmt"
	"strings"
)

// ExitError is a WASI guest that exited with a non-zero status.
type ExitError struct {
	Code   uint32
	Stderr string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("guest exited with code %d", e.Code)
	}
	return fmt.Sprintf("guest exited with code %d: %s", e.Code, msg)
}

// AbortError is an AssemblyScript guest that called abort.
type AbortError struct {
	Message string
	File    string
	Line    uint32
	Col     uint32
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("guest aborted: %s at %s:%d:%d", e.Message, e.File, e.Line, e.Col)
}
