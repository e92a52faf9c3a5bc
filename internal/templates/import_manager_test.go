package templates

import (
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImportManager_Add(t *testing.T) {
	im := NewImportManager("example.com/app/store")

	assert.Equal(t, "", im.Add("example.com/app/store", "store"))
	assert.Equal(t, "time", im.Add("time", "time"))
	assert.Equal(t, "time", im.Add("time", "time"))
	assert.Equal(t, "context", im.Add("context", "context"))

	// a foreign package called like a runtime package gets an alias
	assert.Equal(t, "proxyman2", im.Add("example.com/other/proxyman", "proxyman"))
	assert.Equal(t, "v1", im.Add("example.com/a/v1", "v1"))
	assert.Equal(t, "v12", im.Add("example.com/b/v1", "v1"))

	assert.Equal(t, []Import{
		{Path: "context", Name: "context"},
		{Path: "time", Name: "time"},
		{Path: "example.com/a/v1", Name: "v1"},
		{Path: "example.com/b/v1", Name: "v12"},
		{Path: "example.com/other/proxyman", Name: "proxyman2"},
	}, im.Imports())
}

func TestImportManager_Use(t *testing.T) {
	im := NewImportManager("example.com/app")
	assert.Empty(t, im.Imports())
	assert.Equal(t, "", im.Render())

	assert.Equal(t, "proxyman", im.Use(RuntimeImport))
	assert.Equal(t, "adapter", im.Use(AdapterImport))
	assert.Panics(t, func() { im.Use("example.com/unknown") })

	assert.Equal(t, []Import{
		{Path: AdapterImport, Name: "adapter"},
		{Path: RuntimeImport, Name: "proxyman"},
	}, im.Imports())
}

func TestImportManager_Render(t *testing.T) {
	im := NewImportManager("example.com/app")
	im.Use(RuntimeImport)
	im.Use(ContextImport)
	im.Add("example.com/x/proxyman", "proxyman")
	im.Add("io", "io")

	want := "import (\n" +
		"\t\"context\"\n" +
		"\t\"io\"\n" +
		"\n" +
		"\tproxyman2 \"example.com/x/proxyman\"\n" +
		"\t\"github.com/toyz/proxyman/pkg/proxyman\"\n" +
		")\n"
	assert.Equal(t, want, im.Render())
}

func TestImportManager_Qualifier(t *testing.T) {
	im := NewImportManager("example.com/app")
	qualifier := im.Qualifier()

	self := types.NewPackage("example.com/app", "app")
	other := types.NewPackage("example.com/lib/v2", "lib")

	named := types.NewNamed(types.NewTypeName(0, other, "Client", nil), types.NewStruct(nil, nil), nil)
	local := types.NewNamed(types.NewTypeName(0, self, "Item", nil), types.NewStruct(nil, nil), nil)

	assert.Equal(t, "*lib.Client", types.TypeString(types.NewPointer(named), qualifier))
	assert.Equal(t, "[]Item", types.TypeString(types.NewSlice(local), qualifier))
	assert.Equal(t, []Import{{Path: "example.com/lib/v2", Name: "lib"}}, im.Imports())
}

func TestImport_Aliased(t *testing.T) {
	assert.False(t, Import{Path: "example.com/lib", Name: "lib"}.Aliased())
	assert.True(t, Import{Path: "example.com/lib/v2", Name: "lib"}.Aliased())
}
