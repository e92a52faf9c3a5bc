package factory

import (
	"fmt"
	"go/ast"
	"go/parser"
	"strconv"

	"github.com/toyz/proxyman/internal/errors"
	"github.com/toyz/proxyman/internal/templates"
	"github.com/toyz/proxyman/pkg/proxyman"
)

const contextType = "context.Context"

// MethodDefinition is one synthesized proxy method
type MethodDefinition struct {
	Signature proxyman.MethodSignature `json:"signature"`
	Source    string                   `json:"source"`
}

// Definition is a generated proxy type. Definitions returned by a Factory
// are shared between callers and must not be modified.
type Definition struct {
	ProxyName   string             `json:"proxy_name"`
	TypeName    string             `json:"type_name"`
	GoName      string             `json:"go_name"`
	Kind        proxyman.Kind      `json:"kind"`
	Original    string             `json:"original"`
	Wrapped     string             `json:"wrapped"`
	Service     string             `json:"service,omitempty"`
	Adapter     string             `json:"adapter,omitempty"`
	Properties  []string           `json:"properties,omitempty"`
	Implements  bool               `json:"implements"`
	Fingerprint string             `json:"fingerprint"`
	Methods     []MethodDefinition `json:"methods"`

	// NeedsContext is set when a method has no context parameter and the
	// generated body falls back to context.Background
	NeedsContext bool `json:"needs_context"`

	// Source is the complete Go declaration block of the proxy type
	Source string `json:"source"`
}

// Method looks up a synthesized method by name
func (d *Definition) Method(name string) (MethodDefinition, bool) {
	for _, m := range d.Methods {
		if m.Signature.Name == name {
			return m, true
		}
	}
	return MethodDefinition{}, false
}

// NeedsAdapter reports whether the generated source refers to the adapter
// package
func (d *Definition) NeedsAdapter() bool {
	return d.Kind == proxyman.KindRemote
}

// builder synthesizes the methods of one proxy
type builder struct {
	registry *templates.TemplateRegistry
	def      *Definition
}

func (b *builder) build(desc proxyman.TypeDescriptor) error {
	for _, sig := range desc.Methods {
		data, err := b.methodData(desc.Name, sig)
		if err != nil {
			return err
		}

		src, err := b.registry.Render(templates.MethodTemplate(b.def.Kind), data)
		if err != nil {
			return err
		}
		if err := verifyMethod(desc.Name, sig, src); err != nil {
			return err
		}
		b.def.Methods = append(b.def.Methods, MethodDefinition{Signature: sig, Source: src})
	}

	methods := make([]string, len(b.def.Methods))
	for i, m := range b.def.Methods {
		methods[i] = m.Source
	}
	src, err := b.registry.Render(templates.TypeTemplate(b.def.Kind), templates.ProxyData{
		GoName:      b.def.GoName,
		Original:    b.def.Original,
		Wrapped:     b.def.Wrapped,
		ProxyName:   b.def.ProxyName,
		Service:     b.def.Service,
		Adapter:     b.def.Adapter,
		Properties:  b.def.Properties,
		Implements:  b.def.Implements,
		Fingerprint: b.def.Fingerprint,
		Methods:     methods,
	})
	if err != nil {
		return err
	}
	if err := verifyDeclarations(b.def.GoName, src); err != nil {
		return err
	}
	b.def.Source = src
	return nil
}

func (b *builder) methodData(typeName string, sig proxyman.MethodSignature) (templates.MethodData, error) {
	used, err := checkShadowing(typeName, sig)
	if err != nil {
		return templates.MethodData{}, err
	}

	names := newNames(sig, used)
	data := templates.MethodData{
		Receiver:  names.fresh("p"),
		ProxyType: b.def.GoName,
		Name:      sig.Name,
	}

	for _, p := range sig.Params {
		param := templates.ParamData{Name: p.Name, Type: p.Type, Variadic: p.Variadic}
		data.Params = append(data.Params, param)
		if p.Type == contextType {
			if data.Ctx == "" {
				data.Ctx = p.Name
			}
			continue
		}
		data.RemoteArgs = append(data.RemoteArgs, param)
	}
	if data.Ctx == "" {
		data.Ctx = "context.Background()"
		b.def.NeedsContext = true
	}

	for i, r := range sig.Results {
		data.Results = append(data.Results, templates.ResultData{
			Var:     names.fresh("r" + strconv.Itoa(i)),
			Type:    r.Type,
			IsError: i == len(sig.Results)-1 && r.Type == "error",
		})
	}

	data.Instance = names.fresh("instance")
	data.Err = names.fresh("err")
	data.ResultsVar = names.fresh("results")
	data.Value = "_"
	if len(data.Values()) > 0 {
		data.Value = names.fresh("raw")
	}
	return data, nil
}

// localNames hands out identifiers that do not collide with parameters or
// with identifiers the signature refers to
type localNames map[string]bool

func newNames(sig proxyman.MethodSignature, used map[string]bool) localNames {
	names := make(localNames, len(sig.Params)+len(used))
	for id := range used {
		names[id] = true
	}
	for _, p := range sig.Params {
		names[p.Name] = true
	}
	return names
}

func (n localNames) fresh(base string) string {
	name := base
	for i := 2; n[name]; i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	n[name] = true
	return name
}

// identifiers referenced by every generated method body
var bodyIdentifiers = []string{"proxyman", "context", "new", "panic", "nil"}

// checkShadowing rejects parameter names that would hide a package or type
// the generated body refers to. It returns the referenced identifiers.
func checkShadowing(typeName string, sig proxyman.MethodSignature) (map[string]bool, error) {
	used := make(map[string]bool)
	for _, id := range bodyIdentifiers {
		used[id] = true
	}
	for _, p := range sig.Params {
		typeIdents(p.Type, used)
	}
	for _, r := range sig.Results {
		typeIdents(r.Type, used)
	}

	for _, p := range sig.Params {
		if used[p.Name] {
			return nil, errors.ConfigurationError("parameter", fmt.Sprintf("%s.%s: parameter %q shadows an identifier used by the generated code", typeName, sig.Name, p.Name)).
				WithSuggestion("Rename the parameter in the original declaration")
		}
	}
	return used, nil
}

// typeIdents collects the identifiers a type expression refers to. Field
// and parameter names inside func or struct types are skipped.
func typeIdents(expr string, into map[string]bool) {
	e, err := parser.ParseExpr(expr)
	if err != nil {
		return
	}
	var visit func(ast.Node) bool
	visit = func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Field:
			ast.Inspect(n.Type, visit)
			return false
		case *ast.SelectorExpr:
			ast.Inspect(n.X, visit)
			return false
		case *ast.Ident:
			into[n.Name] = true
		}
		return true
	}
	ast.Inspect(e, visit)
}
