package proxyman

import (
	"fmt"
	"sort"
	"strings"
)

// Parameters disambiguates proxy variants generated for the same type.
// Values are expected to be scalars (strings, numbers, booleans or nil).
type Parameters map[string]any

// Param describes a single method parameter or result
type Param struct {
	// Name is the declared name, empty for unnamed results
	Name string

	// Type is the Go type expression as written in source (e.g. "*bytes.Buffer")
	Type string

	// ByRef is true when the value is passed by reference (a pointer type)
	ByRef bool

	// Variadic marks the trailing ...T parameter
	Variadic bool

	// Default is an optional default literal taken from annotations
	Default string
}

// MethodSignature describes an exported method of a wrapped type
type MethodSignature struct {
	Name       string
	Params     []Param
	Results    []Param
	ReturnsRef bool
}

// ParamNames returns the declared parameter names in order
func (m MethodSignature) ParamNames() []string {
	names := make([]string, len(m.Params))
	for i, p := range m.Params {
		names[i] = p.Name
	}
	return names
}

// ReturnsError reports whether the last result is of type error
func (m MethodSignature) ReturnsError() bool {
	return len(m.Results) > 0 && m.Results[len(m.Results)-1].Type == "error"
}

// TakesContext reports whether the first parameter is a context.Context
func (m MethodSignature) TakesContext() bool {
	return len(m.Params) > 0 && m.Params[0].Type == "context.Context"
}

// Equal compares name, parameter order, types, passing mode and results.
// Parameter names and defaults are compared too; they are part of the
// contract for remote proxies.
func (m MethodSignature) Equal(other MethodSignature) bool {
	if m.Name != other.Name || m.ReturnsRef != other.ReturnsRef {
		return false
	}
	if len(m.Params) != len(other.Params) || len(m.Results) != len(other.Results) {
		return false
	}
	for i := range m.Params {
		if m.Params[i] != other.Params[i] {
			return false
		}
	}
	for i := range m.Results {
		if m.Results[i].Type != other.Results[i].Type || m.Results[i].ByRef != other.Results[i].ByRef {
			return false
		}
	}
	return true
}

// String renders the signature in Go syntax without the func keyword
func (m MethodSignature) String() string {
	var b strings.Builder
	b.WriteString(m.Name)
	b.WriteString("(")
	for i, p := range m.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(" ")
		if p.Variadic {
			b.WriteString("...")
		}
		b.WriteString(p.Type)
	}
	b.WriteString(")")

	switch len(m.Results) {
	case 0:
	case 1:
		b.WriteString(" ")
		b.WriteString(m.Results[0].Type)
	default:
		types := make([]string, len(m.Results))
		for i, r := range m.Results {
			types[i] = r.Type
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(types, ", "))
		b.WriteString(")")
	}
	return b.String()
}

// PropertyDescriptor describes an exported field of a wrapped struct type
type PropertyDescriptor struct {
	Name string
	Type string
}

// TypeDescriptor is the read-only view of a wrapped type that the
// introspection layer hands to the proxy factory.
type TypeDescriptor struct {
	// Name is the namespaced TypeName (e.g. "github_com.acme.users.Service")
	Name string

	// Package is the Go import path of the wrapped type
	Package string

	// PackageName is the Go package name of the wrapped type
	PackageName string

	// GoName is the Go identifier of the wrapped type
	GoName string

	// Interface is true when the wrapped type is an interface
	Interface bool

	Methods    []MethodSignature
	Properties []PropertyDescriptor
}

// Method looks up a method signature by name
func (d TypeDescriptor) Method(name string) (MethodSignature, bool) {
	for _, m := range d.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return MethodSignature{}, false
}

// Property looks up a declared property by name
func (d TypeDescriptor) Property(name string) (PropertyDescriptor, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertyDescriptor{}, false
}

// PropertyNames returns the declared property names in declaration order
func (d TypeDescriptor) PropertyNames() []string {
	names := make([]string, len(d.Properties))
	for i, p := range d.Properties {
		names[i] = p.Name
	}
	return names
}

// Validate checks that the descriptor is usable for proxy generation
func (d TypeDescriptor) Validate() error {
	if err := ValidateTypeName(d.Name); err != nil {
		return err
	}
	if d.GoName == "" {
		return fmt.Errorf("%w: type %s has no Go identifier", ErrInvalidConfiguration, d.Name)
	}

	seen := make(map[string]struct{}, len(d.Methods))
	for _, m := range d.Methods {
		if !isIdentifier(m.Name) {
			return fmt.Errorf("%w: invalid method name %q on %s", ErrInvalidConfiguration, m.Name, d.Name)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("%w: duplicate method %s on %s", ErrInvalidConfiguration, m.Name, d.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

// Fingerprint is a content digest of the method signature set and the
// declared properties. It changes whenever the wrapped type's API changes.
func (d TypeDescriptor) Fingerprint() string {
	methods := make([]string, len(d.Methods))
	for i, m := range d.Methods {
		var b strings.Builder
		b.WriteString(m.String())
		for _, p := range m.Params {
			fmt.Fprintf(&b, "|%t|%s", p.ByRef, p.Default)
		}
		methods[i] = b.String()
	}
	sort.Strings(methods)

	params := Parameters{
		"type":      d.Name,
		"interface": d.Interface,
		"methods":   strings.Join(methods, "\n"),
	}
	for _, p := range d.Properties {
		params["property:"+p.Name] = p.Type
	}
	return Digest(params)
}

// Argument is one named argument of a proxied call
type Argument struct {
	Name  string
	Value any
}

// Arguments is an ordered list of named arguments
type Arguments []Argument

// Get returns the value of the named argument
func (a Arguments) Get(name string) (any, bool) {
	for _, arg := range a {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return nil, false
}

// Map converts the arguments into a name to value mapping
func (a Arguments) Map() map[string]any {
	m := make(map[string]any, len(a))
	for _, arg := range a {
		m[arg.Name] = arg.Value
	}
	return m
}

// Values returns the argument values in order
func (a Arguments) Values() []any {
	values := make([]any, len(a))
	for i, arg := range a {
		values[i] = arg.Value
	}
	return values
}

// NamedArguments translates positional values into named arguments using the
// declared parameter names of sig. A variadic tail is collected into a slice.
func NamedArguments(sig MethodSignature, values ...any) (Arguments, error) {
	params := sig.Params
	variadic := len(params) > 0 && params[len(params)-1].Variadic

	if !variadic && len(values) != len(params) {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d", ErrSignatureMismatch, sig.Name, len(params), len(values))
	}
	if variadic && len(values) < len(params)-1 {
		return nil, fmt.Errorf("%w: %s expects at least %d arguments, got %d", ErrSignatureMismatch, sig.Name, len(params)-1, len(values))
	}

	args := make(Arguments, 0, len(params))
	for i, p := range params {
		if p.Variadic {
			rest := make([]any, 0, len(values)-i)
			rest = append(rest, values[i:]...)
			args = append(args, Argument{Name: p.Name, Value: rest})
			break
		}
		args = append(args, Argument{Name: p.Name, Value: values[i]})
	}
	return args, nil
}

// Results holds the return values of a proxied call in declaration order
type Results []any

// Result extracts the i-th value of results as T. Missing or nil values and
// values of another type yield the zero value of T.
func Result[T any](results Results, i int) T {
	var zero T
	if i < 0 || i >= len(results) || results[i] == nil {
		return zero
	}
	if v, ok := results[i].(T); ok {
		return v
	}
	return zero
}
