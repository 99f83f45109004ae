// Package errors defines the bridge's error model: every failure that
// crosses a component boundary is classified as InvalidInput, Printer, or
// Internal so callers know whether to answer synchronously, retry
// indefinitely, or log and surface a 500.
package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// Kind classifies an AppError for dispatch by callers.
type Kind int

const (
	// KindInvalidInput means the request body or parameters were
	// malformed. Always answered synchronously with HTTP 400.
	KindInvalidInput Kind = iota
	// KindPrinter means the USB transport or device rejected a write.
	// Never surfaced to an HTTP caller: the retry coordinator absorbs it.
	KindPrinter
	// KindInternal means a bug or unexpected condition inside the
	// process itself. Logged and surfaced as HTTP 500.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "Invalid input"
	case KindPrinter:
		return "printer error"
	case KindInternal:
		return "internal error"
	default:
		return "unknown error"
	}
}

// StackFrame is one entry of a captured call stack.
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// AppError is the concrete error type produced by every bridge component.
type AppError struct {
	Kind    Kind         `json:"kind"`
	Message string       `json:"message"`
	Cause   error        `json:"-"`
	Stack   []StackFrame `json:"stack,omitempty"`
}

// Error implements the error interface, matching the "<Kind>: <message>"
// shape the HTTP layer echoes back in a status response's error field.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// InvalidInput builds a KindInvalidInput error from a formatted message.
func InvalidInput(format string, args ...interface{}) *AppError {
	return newError(KindInvalidInput, fmt.Sprintf(format, args...), nil)
}

// Printer builds a KindPrinter error, optionally wrapping a lower-level cause.
func Printer(cause error, format string, args ...interface{}) *AppError {
	return newError(KindPrinter, fmt.Sprintf(format, args...), cause)
}

// Internal builds a KindInternal error, optionally wrapping a lower-level cause.
func Internal(cause error, format string, args ...interface{}) *AppError {
	return newError(KindInternal, fmt.Sprintf(format, args...), cause)
}

func newError(kind Kind, message string, cause error) *AppError {
	err := &AppError{Kind: kind, Message: message, Cause: cause}
	err.captureStack(3)
	return err
}

// Is reports whether err is an *AppError of the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	appErr, ok := err.(*AppError)
	return ok && appErr.Kind == kind
}

// KindOf extracts the Kind of err, defaulting to KindInternal for errors
// that did not originate from this package.
func KindOf(err error) Kind {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus returns the status code an HTTP handler should answer with.
// KindPrinter never reaches this call in practice since the retry
// coordinator absorbs it, but it maps to 500 like KindInternal for safety.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput:
		return 400
	default:
		return 500
	}
}

func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return
	}

	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if strings.Contains(frame.Function, "runtime.") {
			if !more {
				break
			}
			continue
		}

		e.Stack = append(e.Stack, StackFrame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})

		if !more || len(e.Stack) >= 10 {
			break
		}
	}
}

// GetStack renders the captured call stack for diagnostics.
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var b strings.Builder
	for i, frame := range e.Stack {
		fmt.Fprintf(&b, "%d. %s\n   %s:%d\n", i+1, frame.Function, frame.File, frame.Line)
	}
	return b.String()
}
