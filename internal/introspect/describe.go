package introspect

import (
	"fmt"
	"go/types"

	"github.com/toyz/proxyman/internal/errors"
	"github.com/toyz/proxyman/pkg/proxyman"
)

// Describe builds the descriptor of a named type. Type expressions in
// method signatures are rendered with qualifier, which decides how other
// packages are referred to from the generated file.
func Describe(named *types.Named, qualifier types.Qualifier) (proxyman.TypeDescriptor, error) {
	obj := named.Obj()
	if obj.Pkg() == nil {
		return proxyman.TypeDescriptor{}, errors.ConfigurationError("type", fmt.Sprintf("%s is predeclared", obj.Name()))
	}
	if named.TypeParams().Len() > 0 {
		return proxyman.TypeDescriptor{}, errors.ConfigurationError("type", fmt.Sprintf("%s is generic", obj.Name())).
			WithSuggestion("Declare a non-generic interface or instantiated type and annotate that instead")
	}

	desc := proxyman.TypeDescriptor{
		Name:        proxyman.TypeNameFor(obj.Pkg().Path(), obj.Name()),
		Package:     obj.Pkg().Path(),
		PackageName: obj.Pkg().Name(),
		GoName:      obj.Name(),
	}

	var methods []*types.Func
	if iface, ok := named.Underlying().(*types.Interface); ok {
		desc.Interface = true
		for i := 0; i < iface.NumMethods(); i++ {
			methods = append(methods, iface.Method(i))
		}
	} else {
		set := types.NewMethodSet(types.NewPointer(named))
		for i := 0; i < set.Len(); i++ {
			if fn, ok := set.At(i).Obj().(*types.Func); ok {
				methods = append(methods, fn)
			}
		}
		if st, ok := named.Underlying().(*types.Struct); ok {
			desc.Properties = properties(st)
		}
	}

	for _, fn := range methods {
		if !fn.Exported() {
			continue
		}
		desc.Methods = append(desc.Methods, signatureOf(fn, qualifier))
	}

	if err := desc.Validate(); err != nil {
		return proxyman.TypeDescriptor{}, errors.WrapConfigurationError("type "+obj.Name(), err)
	}
	return desc, nil
}

// HasUnexportedMethods reports whether an interface declares methods a
// proxy cannot forward
func HasUnexportedMethods(named *types.Named) bool {
	iface, ok := named.Underlying().(*types.Interface)
	if !ok {
		return false
	}
	for i := 0; i < iface.NumMethods(); i++ {
		if !iface.Method(i).Exported() {
			return true
		}
	}
	return false
}

func signatureOf(fn *types.Func, qualifier types.Qualifier) proxyman.MethodSignature {
	sig := fn.Type().(*types.Signature)
	method := proxyman.MethodSignature{Name: fn.Name()}

	params := sig.Params()
	taken := make(map[string]bool, params.Len())
	for i := 0; i < params.Len(); i++ {
		if name := params.At(i).Name(); name != "" && name != "_" {
			taken[name] = true
		}
	}

	for i := 0; i < params.Len(); i++ {
		v := params.At(i)
		t := v.Type()
		variadic := sig.Variadic() && i == params.Len()-1
		if variadic {
			if slice, ok := t.(*types.Slice); ok {
				t = slice.Elem()
			}
		}

		name := v.Name()
		if name == "" || name == "_" {
			name = placeholder(i, taken)
		}

		method.Params = append(method.Params, proxyman.Param{
			Name:     name,
			Type:     types.TypeString(t, qualifier),
			ByRef:    isPointer(t),
			Variadic: variadic,
		})
	}

	results := sig.Results()
	for i := 0; i < results.Len(); i++ {
		t := results.At(i).Type()
		method.Results = append(method.Results, proxyman.Param{
			Type:  types.TypeString(t, qualifier),
			ByRef: isPointer(t),
		})
	}
	method.ReturnsRef = len(method.Results) > 0 && method.Results[0].ByRef

	return method
}

// placeholder names an unnamed parameter argN, skipping names in use
func placeholder(i int, taken map[string]bool) string {
	name := fmt.Sprintf("arg%d", i)
	for taken[name] {
		name += "_"
	}
	taken[name] = true
	return name
}

// properties lists the exported, non-embedded fields of st. Types are
// rendered with package names only; they are never emitted as code.
func properties(st *types.Struct) []proxyman.PropertyDescriptor {
	short := func(p *types.Package) string { return p.Name() }

	var props []proxyman.PropertyDescriptor
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if !f.Exported() || f.Embedded() {
			continue
		}
		props = append(props, proxyman.PropertyDescriptor{
			Name: f.Name(),
			Type: types.TypeString(f.Type(), short),
		})
	}
	return props
}

func isPointer(t types.Type) bool {
	_, ok := t.(*types.Pointer)
	return ok
}
