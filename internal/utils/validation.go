package utils

import (
	"fmt"
	"go/token"
	"strings"

	"golang.org/x/mod/module"
)

// ValidationError describes a rejected value
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Validator checks a single value
type Validator[T any] func(T) error

// Chain runs validators in order and stops at the first failure
func Chain[T any](validators ...Validator[T]) Validator[T] {
	return func(value T) error {
		for _, v := range validators {
			if err := v(value); err != nil {
				return err
			}
		}
		return nil
	}
}

// NotEmpty rejects empty strings
func NotEmpty(field string) Validator[string] {
	return func(value string) error {
		if strings.TrimSpace(value) == "" {
			return ValidationError{Field: field, Value: value, Message: "cannot be empty"}
		}
		return nil
	}
}

// IsValidGoIdentifier rejects strings that are not Go identifiers
func IsValidGoIdentifier(field string) Validator[string] {
	return func(value string) error {
		if value == "" {
			return ValidationError{Field: field, Value: value, Message: "cannot be empty"}
		}
		if !token.IsIdentifier(value) {
			return ValidationError{Field: field, Value: value, Message: "must be a valid Go identifier"}
		}
		return nil
	}
}

// IsOneOf rejects values outside allowed
func IsOneOf[T comparable](field string, allowed ...T) Validator[T] {
	return func(value T) error {
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("must be one of %v, got %v", allowed, value),
		}
	}
}

// IsValidImportPath rejects strings that cannot be a Go import path
func IsValidImportPath(field string) Validator[string] {
	return func(value string) error {
		if err := module.CheckImportPath(value); err != nil {
			return ValidationError{Field: field, Value: value, Message: err.Error()}
		}
		return nil
	}
}
