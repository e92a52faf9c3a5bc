package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Is and As forward to the standard library so callers need a single
// errors import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

// CodeOf returns the code of the first ProxyError in err's chain, or
// UnknownErrorCode
func CodeOf(err error) ErrorCode {
	var pe ProxyError
	if stderrors.As(err, &pe) {
		return pe.ErrorCode()
	}
	return UnknownErrorCode
}

// ProxyError is implemented by every error raised while generating proxies
type ProxyError interface {
	error
	ErrorCode() ErrorCode
	Location() SourceLocation
	Context() map[string]any
	Suggestions() []string
	Unwrap() error
}

// ErrorCode classifies a ProxyError
type ErrorCode int

const (
	UnknownErrorCode ErrorCode = iota
	SyntaxErrorCode
	ValidationErrorCode
	ConfigurationErrorCode
	SignatureMismatchErrorCode
	GenerationErrorCode
	TemplateErrorCode
	FileSystemErrorCode
	IntrospectionErrorCode
)

var codeNames = [...]string{
	UnknownErrorCode:           "UnknownError",
	SyntaxErrorCode:            "SyntaxError",
	ValidationErrorCode:        "ValidationError",
	ConfigurationErrorCode:     "ConfigurationError",
	SignatureMismatchErrorCode: "SignatureMismatchError",
	GenerationErrorCode:        "GenerationError",
	TemplateErrorCode:          "TemplateError",
	FileSystemErrorCode:        "FileSystemError",
	IntrospectionErrorCode:     "IntrospectionError",
}

func (c ErrorCode) String() string {
	if c < 0 || int(c) >= len(codeNames) {
		return codeNames[UnknownErrorCode]
	}
	return codeNames[c]
}

// SourceLocation points at a position in a Go source file. Line and Column
// are 1-based; zero means unknown.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// String formats the location as file[:line[:column]]
func (s SourceLocation) String() string {
	switch {
	case s.File == "":
		return "unknown location"
	case s.Line == 0:
		return s.File
	case s.Column == 0:
		return fmt.Sprintf("%s:%d", s.File, s.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
	}
}

// IsEmpty reports whether the location names no file
func (s SourceLocation) IsEmpty() bool {
	return s.File == ""
}

// BaseError is the ProxyError used throughout the generator. The With*
// methods mutate and return the receiver so errors can be built in one
// expression.
type BaseError struct {
	Code        ErrorCode
	Message     string
	Loc         SourceLocation
	Cause       error
	ContextData map[string]any
	Hints       []string
}

func (e *BaseError) Error() string {
	var b strings.Builder
	if !e.Loc.IsEmpty() {
		b.WriteString(e.Loc.String())
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil && !strings.Contains(e.Message, e.Cause.Error()) {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *BaseError) ErrorCode() ErrorCode     { return e.Code }
func (e *BaseError) Location() SourceLocation { return e.Loc }
func (e *BaseError) Suggestions() []string    { return e.Hints }
func (e *BaseError) Unwrap() error            { return e.Cause }

// Context returns the attached key/value data; never nil
func (e *BaseError) Context() map[string]any {
	if e.ContextData == nil {
		return map[string]any{}
	}
	return e.ContextData
}

func (e *BaseError) WithLocation(loc SourceLocation) *BaseError {
	e.Loc = loc
	return e
}

func (e *BaseError) WithContext(key string, value any) *BaseError {
	if e.ContextData == nil {
		e.ContextData = make(map[string]any)
	}
	e.ContextData[key] = value
	return e
}

func (e *BaseError) WithSuggestion(suggestion string) *BaseError {
	return e.WithSuggestions(suggestion)
}

func (e *BaseError) WithSuggestions(suggestions ...string) *BaseError {
	e.Hints = append(e.Hints, suggestions...)
	return e
}

// New creates an error without a cause
func New(code ErrorCode, message string) *BaseError {
	return &BaseError{Code: code, Message: message}
}

// Wrap creates an error caused by cause
func Wrap(code ErrorCode, message string, cause error) *BaseError {
	return &BaseError{Code: code, Message: message, Cause: cause}
}

func Wrapf(code ErrorCode, cause error, format string, args ...any) *BaseError {
	return Wrap(code, fmt.Sprintf(format, args...), cause)
}

// MultipleErrors collects the errors of a generation run so that all of
// them can be reported at once
type MultipleErrors struct {
	Errors []ProxyError
}

// NewMultipleErrors returns an empty collection
func NewMultipleErrors() *MultipleErrors {
	return &MultipleErrors{}
}

func (e *MultipleErrors) Add(err ProxyError) {
	e.Errors = append(e.Errors, err)
}

// ErrOrNil returns e as an error, or nil when nothing was collected
func (e *MultipleErrors) ErrOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

func (e *MultipleErrors) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "multiple errors (%d total):", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, err.Error())
	}
	return b.String()
}

// Unwrap exposes every collected error to errors.Is and errors.As
func (e *MultipleErrors) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		errs[i] = err
	}
	return errs
}
