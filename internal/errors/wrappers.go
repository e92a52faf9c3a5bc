package errors

import (
	"fmt"

	"github.com/toyz/proxyman/pkg/proxyman"
)

// Common error constructors used by the generation pipeline. Configuration
// and signature errors always carry the matching proxyman sentinel so
// callers can test them with errors.Is.

// SyntaxError reports a malformed annotation
func SyntaxError(message string, loc SourceLocation, cause error) *BaseError {
	err := Wrap(SyntaxErrorCode, message, cause).WithLocation(loc)
	if cause == nil {
		err.Cause = proxyman.ErrInvalidConfiguration
	}
	return err
}

// ConfigurationError reports an invalid namespace, kind, type name or option
func ConfigurationError(subject, message string) *BaseError {
	return Wrap(ConfigurationErrorCode, fmt.Sprintf("invalid %s: %s", subject, message), proxyman.ErrInvalidConfiguration).
		WithContext("subject", subject)
}

// WrapConfigurationError wraps a configuration failure. A cause that does not
// already wrap proxyman.ErrInvalidConfiguration is joined with it.
func WrapConfigurationError(subject string, cause error) *BaseError {
	if !Is(cause, proxyman.ErrInvalidConfiguration) {
		cause = fmt.Errorf("%w: %w", proxyman.ErrInvalidConfiguration, cause)
	}
	return Wrap(ConfigurationErrorCode, fmt.Sprintf("invalid %s", subject), cause).
		WithContext("subject", subject)
}

// SignatureMismatchError reports a synthesized method whose signature differs
// from the introspected original
func SignatureMismatchError(typeName, method, expected, actual string) *BaseError {
	message := fmt.Sprintf("generated method %s.%s does not match the original signature", typeName, method)
	return Wrap(SignatureMismatchErrorCode, message, proxyman.ErrSignatureMismatch).
		WithContext("type", typeName).
		WithContext("method", method).
		WithContext("expected", expected).
		WithContext("actual", actual).
		WithSuggestion(fmt.Sprintf("expected %s, generated %s", expected, actual))
}

// WrapGenerateError wraps an error with a "failed to generate" message
func WrapGenerateError(item string, cause error) *BaseError {
	return Wrap(GenerationErrorCode, fmt.Sprintf("failed to generate %s", item), cause).
		WithContext("item", item)
}

// WrapTemplateError wraps template processing errors
func WrapTemplateError(templateName, operation string, cause error) *BaseError {
	message := fmt.Sprintf("failed to %s template '%s'", operation, templateName)
	return Wrap(TemplateErrorCode, message, cause).
		WithContext("template", templateName).
		WithContext("operation", operation)
}

// WrapFileSystemError wraps file system related errors
func WrapFileSystemError(operation, path string, cause error) *BaseError {
	message := fmt.Sprintf("failed to %s file '%s'", operation, path)
	return Wrap(FileSystemErrorCode, message, cause).
		WithContext("operation", operation).
		WithContext("path", path)
}

// WrapIntrospectionError wraps package loading and type inspection errors
func WrapIntrospectionError(pattern string, cause error) *BaseError {
	return Wrap(IntrospectionErrorCode, fmt.Sprintf("failed to load %s", pattern), cause).
		WithContext("pattern", pattern).
		WithSuggestion("Make sure the package compiles with 'go build' before generating proxies")
}
