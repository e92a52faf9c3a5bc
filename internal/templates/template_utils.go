package templates

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"
)

// ParamData is one parameter of a synthesized method
type ParamData struct {
	Name     string
	Type     string
	Variadic bool
}

// ResultData is one result of a synthesized method. Var is the local
// variable the result is held in.
type ResultData struct {
	Var     string
	Type    string
	IsError bool
}

// MethodData is the input of the per-kind method templates
type MethodData struct {
	Receiver   string
	ProxyType  string
	Name       string
	Params     []ParamData
	Results    []ResultData
	RemoteArgs []ParamData // Params minus context parameters

	// Ctx is the expression passed as context to the runtime
	Ctx string

	// local identifiers, chosen not to collide with parameter names
	Instance   string
	Err        string
	Value      string
	ResultsVar string
}

// Values returns the non-error results
func (m MethodData) Values() []ResultData {
	var values []ResultData
	for _, r := range m.Results {
		if !r.IsError {
			values = append(values, r)
		}
	}
	return values
}

// ReturnsError reports whether the last result is an error
func (m MethodData) ReturnsError() bool {
	return len(m.Results) > 0 && m.Results[len(m.Results)-1].IsError
}

// ProxyData is the input of the per-kind type templates
type ProxyData struct {
	GoName      string
	Original    string
	Wrapped     string
	ProxyName   string
	Service     string
	Adapter     string
	Properties  []string
	Implements  bool
	Fingerprint string
	Methods     []string
}

// FileData is the input of the file template
type FileData struct {
	Package string
	Imports string
	Proxies []string
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"quote":      strconv.Quote,
		"signature":  signature,
		"callArgs":   callArgs,
		"arguments":  arguments,
		"failure":    failure,
		"resultVars": resultVars,
		"returnAll":  returnAll,
		"properties": properties,
	}
}

// signature renders the parameter and result lists of m
func signature(m MethodData) string {
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		if p.Variadic {
			params[i] = p.Name + " ..." + p.Type
		} else {
			params[i] = p.Name + " " + p.Type
		}
	}

	out := "(" + strings.Join(params, ", ") + ")"
	switch len(m.Results) {
	case 0:
		return out
	case 1:
		return out + " " + m.Results[0].Type
	}
	types := make([]string, len(m.Results))
	for i, r := range m.Results {
		types[i] = r.Type
	}
	return out + " (" + strings.Join(types, ", ") + ")"
}

// callArgs renders the argument list forwarding every parameter
func callArgs(m MethodData) string {
	args := make([]string, len(m.Params))
	for i, p := range m.Params {
		args[i] = p.Name
		if p.Variadic {
			args[i] += "..."
		}
	}
	return strings.Join(args, ", ")
}

// arguments renders a proxyman.Arguments literal for params
func arguments(params []ParamData) string {
	if len(params) == 0 {
		return "nil"
	}
	items := make([]string, len(params))
	for i, p := range params {
		items[i] = fmt.Sprintf("{Name: %s, Value: %s}", strconv.Quote(p.Name), p.Name)
	}
	return "proxyman.Arguments{" + strings.Join(items, ", ") + "}"
}

// failure renders the statement that reports m.Err to the caller. Methods
// without an error result panic.
func failure(m MethodData) string {
	if !m.ReturnsError() {
		return "panic(" + m.Err + ")"
	}
	parts := make([]string, 0, len(m.Results))
	for _, r := range m.Values() {
		parts = append(parts, "*new("+r.Type+")")
	}
	parts = append(parts, m.Err)
	return "return " + strings.Join(parts, ", ")
}

// resultVars renders the result variables of m, comma separated
func resultVars(results []ResultData) string {
	vars := make([]string, len(results))
	for i, r := range results {
		vars[i] = r.Var
	}
	return strings.Join(vars, ", ")
}

// returnAll renders the successful return of decoded values
func returnAll(m MethodData) string {
	parts := make([]string, 0, len(m.Results))
	for _, r := range m.Values() {
		parts = append(parts, r.Var)
	}
	if m.ReturnsError() {
		parts = append(parts, "nil")
	}
	if len(parts) == 0 {
		return ""
	}
	return "return " + strings.Join(parts, ", ")
}

// properties renders the holder option declaring names, with a leading comma
func properties(names []string) string {
	if len(names) == 0 {
		return ""
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = strconv.Quote(n)
	}
	return ", proxyman.WithProperties(" + strings.Join(quoted, ", ") + ")"
}
