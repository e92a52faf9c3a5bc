package annotations

import (
	"strconv"

	"github.com/toyz/proxyman/internal/errors"
	"github.com/toyz/proxyman/pkg/proxyman"
)

// Prefix is the comment marker that introduces a proxy annotation
const Prefix = "proxy::"

// Reserved annotation keys. They configure the generated proxy instead of
// becoming generation parameters.
const (
	KeyService = "Service"
	KeyAdapter = "Adapter"
	KeyName    = "Name"
)

// SourceLocation represents the location of an annotation in source code
type SourceLocation = errors.SourceLocation

// ParsedAnnotation represents a fully parsed //proxy:: annotation
type ParsedAnnotation struct {
	Kind       proxyman.Kind       // Proxy kind
	Parameters proxyman.Parameters // Generation parameters (reserved keys excluded)
	Options    map[string]string   // Reserved keys (Service, Adapter, Name)
	Location   SourceLocation      // Source location
	Raw        string              // Original annotation text
}

// TypeAnnotation links an annotation to the type declaration it documents
type TypeAnnotation struct {
	TypeName   string
	Annotation *ParsedAnnotation
}

// Option returns a reserved option value with optional default
func (p *ParsedAnnotation) Option(key string, defaultValue ...string) string {
	if v, ok := p.Options[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

// GetString returns a string parameter value with optional default
func (p *ParsedAnnotation) GetString(paramName string, defaultValue ...string) string {
	if value, exists := p.Parameters[paramName]; exists {
		if strValue, ok := value.(string); ok {
			return strValue
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

// GetBool returns a boolean parameter value with optional default
func (p *ParsedAnnotation) GetBool(paramName string, defaultValue ...bool) bool {
	if value, exists := p.Parameters[paramName]; exists {
		switch v := value.(type) {
		case bool:
			return v
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return false
}

// GetInt returns an integer parameter value with optional default
func (p *ParsedAnnotation) GetInt(paramName string, defaultValue ...int) int {
	if value, exists := p.Parameters[paramName]; exists {
		if intValue, ok := value.(int64); ok {
			return int(intValue)
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return 0
}

// HasParameter checks if a generation parameter exists
func (p *ParsedAnnotation) HasParameter(paramName string) bool {
	_, exists := p.Parameters[paramName]
	return exists
}
