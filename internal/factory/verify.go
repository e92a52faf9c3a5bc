package factory

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"

	"github.com/toyz/proxyman/internal/errors"
	"github.com/toyz/proxyman/pkg/proxyman"
)

// verifyMethod parses a synthesized method and compares its signature with
// the original. Defaults are not part of Go syntax and are ignored.
func verifyMethod(typeName string, want proxyman.MethodSignature, src string) error {
	got, err := parseMethod(src)
	if err != nil {
		return errors.WrapGenerateError(fmt.Sprintf("method %s.%s", typeName, want.Name), err)
	}

	expected := canonical(want)
	if !expected.Equal(got) {
		return errors.SignatureMismatchError(typeName, want.Name, expected.String(), got.String())
	}
	return nil
}

// verifyDeclarations checks that a rendered proxy type block is valid Go
func verifyDeclarations(goName, src string) error {
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, goName+".go", "package p\n\n"+src, parser.SkipObjectResolution); err != nil {
		return errors.WrapGenerateError("proxy "+goName, err)
	}
	return nil
}

// parseMethod rebuilds the signature of a single method declaration
func parseMethod(src string) (proxyman.MethodSignature, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "method.go", "package p\n\n"+src, parser.SkipObjectResolution)
	if err != nil {
		return proxyman.MethodSignature{}, err
	}

	var fn *ast.FuncDecl
	for _, decl := range file.Decls {
		if d, ok := decl.(*ast.FuncDecl); ok && d.Recv != nil {
			if fn != nil {
				return proxyman.MethodSignature{}, fmt.Errorf("expected one method, found several")
			}
			fn = d
		}
	}
	if fn == nil {
		return proxyman.MethodSignature{}, fmt.Errorf("no method declaration found")
	}

	sig := proxyman.MethodSignature{Name: fn.Name.Name}
	for _, field := range fn.Type.Params.List {
		typ := field.Type
		variadic := false
		if ellipsis, ok := typ.(*ast.Ellipsis); ok {
			typ = ellipsis.Elt
			variadic = true
		}
		param := proxyman.Param{
			Type:     types.ExprString(typ),
			ByRef:    isStar(typ),
			Variadic: variadic,
		}
		if len(field.Names) == 0 {
			sig.Params = append(sig.Params, param)
			continue
		}
		for _, name := range field.Names {
			param.Name = name.Name
			sig.Params = append(sig.Params, param)
		}
	}

	if fn.Type.Results != nil {
		for _, field := range fn.Type.Results.List {
			n := len(field.Names)
			if n == 0 {
				n = 1
			}
			for i := 0; i < n; i++ {
				sig.Results = append(sig.Results, proxyman.Param{
					Type:  types.ExprString(field.Type),
					ByRef: isStar(field.Type),
				})
			}
		}
	}
	sig.ReturnsRef = len(sig.Results) > 0 && sig.Results[0].ByRef
	return sig, nil
}

// canonical normalizes type spellings through the Go parser so that both
// sides of a comparison print the same way
func canonical(sig proxyman.MethodSignature) proxyman.MethodSignature {
	out := proxyman.MethodSignature{Name: sig.Name, ReturnsRef: sig.ReturnsRef}
	for _, p := range sig.Params {
		p.Type = canonicalType(p.Type)
		p.Default = ""
		out.Params = append(out.Params, p)
	}
	for _, r := range sig.Results {
		r.Type = canonicalType(r.Type)
		out.Results = append(out.Results, r)
	}
	return out
}

func canonicalType(t string) string {
	expr, err := parser.ParseExpr(t)
	if err != nil {
		return t
	}
	return types.ExprString(expr)
}

func isStar(expr ast.Expr) bool {
	_, ok := expr.(*ast.StarExpr)
	return ok
}
