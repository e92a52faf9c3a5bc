package proxyman

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// Separator joins the segments of a TypeName
	Separator = "."

	// ProxyMarker is the segment inserted after the proxy namespace
	ProxyMarker = "__PM__"

	// DigestPrefix keeps the digest segment a valid identifier
	DigestPrefix = "Generated"
)

// Inflector derives proxy type names from user type names and reverses the
// mapping. The zero value is not usable; create one with NewInflector.
type Inflector struct {
	namespace string
	marker    string
}

// NewInflector creates an inflector that places proxies under namespace
func NewInflector(namespace string) (*Inflector, error) {
	ns := NormalizeTypeName(namespace)
	if ns == "" {
		return nil, fmt.Errorf("%w: proxy namespace must not be empty", ErrInvalidConfiguration)
	}
	if err := ValidateTypeName(ns); err != nil {
		return nil, fmt.Errorf("invalid proxy namespace: %w", err)
	}
	return &Inflector{
		namespace: ns,
		marker:    Separator + ProxyMarker + Separator,
	}, nil
}

// Namespace returns the normalized proxy namespace
func (i *Inflector) Namespace() string {
	return i.namespace
}

// ProxyName builds Namespace.__PM__.<segments up to last>.Generated<digest>.<last>
func (i *Inflector) ProxyName(typeName string, params Parameters) (string, error) {
	original := i.OriginalName(typeName)
	if err := ValidateTypeName(original); err != nil {
		return "", err
	}

	segments := strings.Split(original, Separator)
	last := len(segments) - 1

	parts := make([]string, 0, len(segments)+3)
	parts = append(parts, i.namespace, ProxyMarker)
	parts = append(parts, segments[:last]...)
	parts = append(parts, DigestPrefix+Digest(params), segments[last])

	return strings.Join(parts, Separator), nil
}

// OriginalName returns the user type name for a proxy name. Names without
// the proxy marker are returned unchanged apart from leading separators.
func (i *Inflector) OriginalName(name string) string {
	name = NormalizeTypeName(name)
	original, ok := i.split(name)
	if !ok {
		return name
	}
	return original
}

// IsProxyName reports whether name carries the proxy marker followed by a
// digest segment and a short name.
func (i *Inflector) IsProxyName(name string) bool {
	_, ok := i.split(NormalizeTypeName(name))
	return ok
}

// split locates the last marker and strips it together with the digest
// segment that precedes the short name.
func (i *Inflector) split(name string) (string, bool) {
	pos := strings.LastIndex(name, i.marker)
	if pos < 0 {
		return "", false
	}

	rest := strings.Split(name[pos+len(i.marker):], Separator)
	if len(rest) < 2 || !isDigestSegment(rest[len(rest)-2]) {
		return "", false
	}

	segments := append(rest[:len(rest)-2:len(rest)-2], rest[len(rest)-1])
	return strings.Join(segments, Separator), true
}

func isDigestSegment(segment string) bool {
	if !strings.HasPrefix(segment, DigestPrefix) {
		return false
	}
	hexPart := segment[len(DigestPrefix):]
	if len(hexPart) != digestBytes*2 {
		return false
	}
	for _, r := range hexPart {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

// NormalizeTypeName strips leading separators and surrounding whitespace
func NormalizeTypeName(name string) string {
	return strings.TrimLeft(strings.TrimSpace(name), Separator)
}

// ValidateTypeName checks that name is non-empty and every segment is a
// valid identifier.
func ValidateTypeName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: type name must not be empty", ErrInvalidConfiguration)
	}
	for _, segment := range strings.Split(name, Separator) {
		if !isIdentifier(segment) {
			return fmt.Errorf("%w: malformed type name %q (segment %q)", ErrInvalidConfiguration, name, segment)
		}
	}
	return nil
}

// TypeNameFor builds a TypeName from a Go import path and type identifier.
// Path elements are split on "/" and "." and sanitized into identifiers.
func TypeNameFor(pkgPath, typeName string) string {
	fields := strings.FieldsFunc(pkgPath, func(r rune) bool {
		return r == '/' || r == '.'
	})

	segments := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		if s := sanitizeSegment(f); s != "" {
			segments = append(segments, s)
		}
	}
	segments = append(segments, sanitizeSegment(typeName))
	return strings.Join(segments, Separator)
}

func sanitizeSegment(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
