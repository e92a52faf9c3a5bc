package introspect

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/proxyman/internal/templates"
	"github.com/toyz/proxyman/pkg/proxyman"
)

const storeSource = `package store

import (
	"context"
	"io"
)

// Store keeps blobs.
//
//proxy::lazy -Version=2
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Keys(prefix string, limit ...int) []string
	io.Closer
}

//proxy::remote -Service=users.Directory
type Users struct {
	Name string
	age  int
}

func (u *Users) Rename(_ string, n int) (*Users, error) { return u, nil }
func (u Users) Age() int                               { return u.age }
func (u *Users) hidden()                               {}

type Plain struct{}
`

func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}

	dir := t.TempDir()
	files["go.mod"] = "module example.com/demo\n\ngo 1.21\n"
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestLoader_Load(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"store/store.go": storeSource,
		"empty/empty.go": "package empty\n\ntype Nothing struct{}\n",
	})

	pkgs, err := NewLoader(nil, dir).Load(context.Background(), "./...")
	require.NoError(t, err)
	require.Len(t, pkgs, 1)

	pkg := pkgs[0]
	assert.Equal(t, "example.com/demo/store", pkg.Path)
	assert.Equal(t, "store", pkg.Name)
	assert.Equal(t, "store", filepath.Base(pkg.Dir))
	require.Len(t, pkg.Targets, 2)

	assert.Equal(t, []templates.Import{{Path: "context", Name: "context"}}, pkg.Imports.Imports())

	t.Run("interface", func(t *testing.T) {
		target := pkg.Targets[0]
		desc := target.Descriptor

		assert.Equal(t, "example.com.demo.store.Store", desc.Name)
		assert.Equal(t, "Store", desc.GoName)
		assert.True(t, desc.Interface)
		assert.True(t, target.Implements)
		assert.Equal(t, proxyman.KindLazy, target.Annotation.Kind)
		assert.Equal(t, int64(2), target.Annotation.Parameters["Version"])

		names := make([]string, len(desc.Methods))
		for i, m := range desc.Methods {
			names[i] = m.Name
		}
		assert.Equal(t, []string{"Close", "Get", "Keys", "Put"}, names)

		get, _ := desc.Method("Get")
		assert.Equal(t, "Get(ctx context.Context, key string) ([]byte, error)", get.String())
		assert.True(t, get.TakesContext())
		assert.True(t, get.ReturnsError())

		keys, _ := desc.Method("Keys")
		require.Len(t, keys.Params, 2)
		assert.Equal(t, proxyman.Param{Name: "limit", Type: "int", Variadic: true}, keys.Params[1])
		assert.Empty(t, desc.Properties)
	})

	t.Run("struct", func(t *testing.T) {
		target := pkg.Targets[1]
		desc := target.Descriptor

		assert.Equal(t, "Users", desc.GoName)
		assert.False(t, desc.Interface)
		assert.False(t, target.Implements)
		assert.Equal(t, "users.Directory", target.Annotation.Option("Service"))

		require.Len(t, desc.Methods, 2)
		assert.Equal(t, "Age", desc.Methods[0].Name)

		rename := desc.Methods[1]
		assert.Equal(t, "Rename", rename.Name)
		assert.Equal(t, []string{"arg0", "n"}, rename.ParamNames())
		assert.True(t, rename.ReturnsRef)
		assert.Equal(t, proxyman.Param{Type: "*Users", ByRef: true}, rename.Results[0])

		assert.Equal(t, []proxyman.PropertyDescriptor{{Name: "Name", Type: "string"}}, desc.Properties)
	})
}

func TestLoader_RejectsGenericTypes(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"box/box.go": "package box\n\n//proxy::lazy\ntype Box[T any] interface {\n\tGet() T\n}\n",
	})

	_, err := NewLoader(nil, dir).Load(context.Background(), "./...")
	require.Error(t, err)
	assert.ErrorIs(t, err, proxyman.ErrInvalidConfiguration)
	assert.Contains(t, err.Error(), "generic")
}

func TestLoader_ReportsAnnotationErrors(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"bad/bad.go": "package bad\n\n//proxy::ghost\ntype Thing interface{}\n",
	})

	_, err := NewLoader(nil, dir).Load(context.Background(), "./...")
	require.Error(t, err)
	assert.ErrorIs(t, err, proxyman.ErrInvalidConfiguration)
}

func TestLoader_IgnoresStaleGeneratedFile(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"svc/svc.go":           "package svc\n\n//proxy::interceptor\ntype Greeter interface {\n\tGreet(name string) string\n}\n",
		"svc/autogen_proxy.go": "package svc\n\nvar _ = undefinedThing\n",
	})

	pkgs, err := NewLoader(nil, dir).Load(context.Background(), "./...")
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "Greeter", pkgs[0].Targets[0].Descriptor.GoName)
}

func TestIsGeneratedPosition(t *testing.T) {
	assert.True(t, isGeneratedPosition("/tmp/x/autogen_proxy.go:3:9"))
	assert.True(t, isGeneratedPosition("/tmp/x/autogen_proxy.go:3"))
	assert.False(t, isGeneratedPosition("/tmp/x/svc.go:3:9"))
	assert.False(t, isGeneratedPosition(""))
	assert.False(t, isGeneratedPosition("-"))
}
