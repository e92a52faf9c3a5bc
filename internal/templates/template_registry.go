package templates

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"

	"github.com/toyz/proxyman/internal/errors"
	"github.com/toyz/proxyman/pkg/proxyman"
)

// Template names
const (
	FileTemplate = "file"
)

// MethodTemplate returns the name of the method template for kind
func MethodTemplate(kind proxyman.Kind) string {
	return kind.String() + "-method"
}

// TypeTemplate returns the name of the type template for kind
func TypeTemplate(kind proxyman.Kind) string {
	return kind.String() + "-type"
}

// TemplateRegistry holds the source templates of generated proxies
type TemplateRegistry struct {
	templates map[string]string

	once   sync.Once
	parsed *template.Template
	err    error
}

// NewTemplateRegistry creates a registry with the built-in templates
func NewTemplateRegistry() *TemplateRegistry {
	registry := &TemplateRegistry{
		templates: make(map[string]string),
	}

	registry.registerFileTemplates()
	registry.registerLazyTemplates()
	registry.registerInterceptorTemplates()
	registry.registerRemoteTemplates()

	return registry
}

// Get retrieves a template source by name
func (tr *TemplateRegistry) Get(name string) (string, bool) {
	src, ok := tr.templates[name]
	return src, ok
}

// Names lists the registered template names
func (tr *TemplateRegistry) Names() []string {
	names := make([]string, 0, len(tr.templates))
	for name := range tr.templates {
		names = append(names, name)
	}
	return names
}

// Render executes the named template with data
func (tr *TemplateRegistry) Render(name string, data any) (string, error) {
	tr.once.Do(tr.parse)
	if tr.err != nil {
		return "", tr.err
	}

	t := tr.parsed.Lookup(name)
	if t == nil {
		return "", errors.WrapTemplateError(name, "find", fmt.Errorf("template not registered"))
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", errors.WrapTemplateError(name, "execute", err)
	}
	return buf.String(), nil
}

func (tr *TemplateRegistry) parse() {
	root := template.New("proxyman").Funcs(templateFuncs())
	for name, src := range tr.templates {
		if _, err := root.New(name).Parse(src); err != nil {
			tr.err = errors.WrapTemplateError(name, "parse", err)
			return
		}
	}
	tr.parsed = root
}

func (tr *TemplateRegistry) registerFileTemplates() {
	tr.templates[FileTemplate] = `// Code generated by proxyman. DO NOT EDIT.

package {{.Package}}

{{.Imports}}
{{range .Proxies}}
{{.}}
{{end}}`
}

func (tr *TemplateRegistry) registerLazyTemplates() {
	tr.templates[TypeTemplate(proxyman.KindLazy)] = `// {{.GoName}} defers creation of the wrapped {{.Original}} until first use.
type {{.GoName}} struct {
	*proxyman.LazyHolder[{{.Wrapped}}]
}

// {{.GoName}}Name is the proxy class name of {{.GoName}}.
const {{.GoName}}Name = {{quote .ProxyName}}

// New{{.GoName}} creates a proxy that runs initializer on first access.
func New{{.GoName}}(initializer proxyman.Initializer[{{.Wrapped}}]) *{{.GoName}} {
	return &{{.GoName}}{
		LazyHolder: proxyman.NewLazyHolder(initializer{{properties .Properties}}),
	}
}
{{if .Implements}}
var _ {{.Original}} = (*{{.GoName}})(nil)
{{end}}{{range .Methods}}
{{.}}
{{end}}`

	tr.templates[MethodTemplate(proxyman.KindLazy)] = `func ({{.Receiver}} *{{.ProxyType}}) {{.Name}}{{signature .}} {
	{{.Instance}}, {{.Err}} := {{.Receiver}}.LazyHolder.Instance({{.Ctx}})
	if {{.Err}} != nil {
		{{failure .}}
	}
	{{if .Results}}return {{end}}{{.Instance}}.{{.Name}}({{callArgs .}})
}`
}

func (tr *TemplateRegistry) registerInterceptorTemplates() {
	tr.templates[TypeTemplate(proxyman.KindInterceptor)] = `// {{.GoName}} runs registered interceptors around every call to {{.Original}}.
type {{.GoName}} struct {
	*proxyman.AccessInterceptorHolder[{{.Wrapped}}]
}

// {{.GoName}}Name is the proxy class name of {{.GoName}}.
const {{.GoName}}Name = {{quote .ProxyName}}

// New{{.GoName}} wraps instance with an empty interceptor chain.
func New{{.GoName}}(instance {{.Wrapped}}) *{{.GoName}} {
	return &{{.GoName}}{
		AccessInterceptorHolder: proxyman.NewAccessInterceptorHolder(instance{{properties .Properties}}),
	}
}
{{if .Implements}}
var _ {{.Original}} = (*{{.GoName}})(nil)
{{end}}{{range .Methods}}
{{.}}
{{end}}`

	tr.templates[MethodTemplate(proxyman.KindInterceptor)] = `func ({{.Receiver}} *{{.ProxyType}}) {{.Name}}{{signature .}} {
	{{.ResultsVar}} := {{.Receiver}}.AccessInterceptorHolder.Intercept({{.Ctx}}, {{.Receiver}}, {{quote .Name}}, {{arguments .Params}}, func() proxyman.Results {
		{{if .Results}}{{resultVars .Results}} := {{end}}{{.Receiver}}.AccessInterceptorHolder.WrappedInstance().{{.Name}}({{callArgs .}})
		return {{if .Results}}proxyman.Results{ {{- resultVars .Results -}} }{{else}}nil{{end}}
	})
	{{if .Results}}return {{range $i, $r := .Results}}{{if $i}}, {{end}}proxyman.Result[{{$r.Type}}]({{$.ResultsVar}}, {{$i}}){{end}}{{else}}_ = {{.ResultsVar}}{{end}}
}`
}

func (tr *TemplateRegistry) registerRemoteTemplates() {
	tr.templates[TypeTemplate(proxyman.KindRemote)] = `// {{.GoName}} forwards every call to the remote {{quote .Service}} service.
type {{.GoName}} struct {
	*proxyman.RemoteObject
}

// {{.GoName}}Name is the proxy class name of {{.GoName}}.
const {{.GoName}}Name = {{quote .ProxyName}}

// {{.GoName}}Service is the remote service name calls are sent to.
const {{.GoName}}Service = {{quote .Service}}

// New{{.GoName}} creates a proxy sending calls through a.
func New{{.GoName}}(a proxyman.Adapter) (*{{.GoName}}, error) {
	remote, err := proxyman.NewRemoteObject({{.GoName}}Service, a)
	if err != nil {
		return nil, err
	}
	return &{{.GoName}}{RemoteObject: remote}, nil
}

// New{{.GoName}}WithClient creates a proxy over a {{quote .Adapter}} adapter for client.
func New{{.GoName}}WithClient(client adapter.Client, opts ...adapter.Option) (*{{.GoName}}, error) {
	a, err := adapter.New({{quote .Adapter}}, client, opts...)
	if err != nil {
		return nil, err
	}
	return New{{.GoName}}(a)
}
{{if .Implements}}
var _ {{.Original}} = (*{{.GoName}})(nil)
{{end}}{{range .Methods}}
{{.}}
{{end}}`

	tr.templates[MethodTemplate(proxyman.KindRemote)] = `func ({{.Receiver}} *{{.ProxyType}}) {{.Name}}{{signature .}} {
	{{.Value}}, {{.Err}} := {{.Receiver}}.RemoteObject.Call({{.Ctx}}, {{quote .Name}}, {{arguments .RemoteArgs}})
	if {{.Err}} != nil {
		{{failure .}}
	}
{{- $values := .Values}}{{$single := eq (len $values) 1}}
{{- range $i, $r := $values}}
	{{$r.Var}}, {{$.Err}} := {{if $single}}proxyman.Decode[{{$r.Type}}]({{$.Value}}){{else}}proxyman.DecodeAt[{{$r.Type}}]({{$.Value}}, {{$i}}){{end}}
	if {{$.Err}} != nil {
		{{failure $}}
	}
{{- end}}
	{{returnAll .}}
}`
}
