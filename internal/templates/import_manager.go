package templates

import (
	"fmt"
	"go/types"
	"path"
	"sort"
	"strconv"
	"strings"
)

// Import paths the generated code refers to directly
const (
	RuntimeImport = "github.com/toyz/proxyman/pkg/proxyman"
	AdapterImport = "github.com/toyz/proxyman/pkg/proxyman/adapter"
	ContextImport = "context"
)

// Import is one entry of a generated import block
type Import struct {
	Path string
	Name string
}

// Aliased reports whether the import needs an explicit name
func (i Import) Aliased() bool {
	return i.Name != path.Base(i.Path)
}

// ImportManager assigns local names to the packages a generated file refers
// to. Names are unique within the file; a second package with a taken name
// gets a numbered alias. Only packages marked as used are rendered.
type ImportManager struct {
	self   string
	byPath map[string]string
	byName map[string]string
	used   map[string]bool
}

// NewImportManager creates a manager for a file in package selfPath. The
// runtime packages are reserved under their own names.
func NewImportManager(selfPath string) *ImportManager {
	im := &ImportManager{
		self:   selfPath,
		byPath: make(map[string]string),
		byName: make(map[string]string),
		used:   make(map[string]bool),
	}
	im.reserve(RuntimeImport, "proxyman")
	im.reserve(AdapterImport, "adapter")
	im.reserve(ContextImport, "context")
	return im
}

func (im *ImportManager) reserve(importPath, name string) {
	im.byPath[importPath] = name
	im.byName[name] = importPath
}

// Add registers importPath with its package name and marks it used. It
// returns the local name to qualify identifiers with.
func (im *ImportManager) Add(importPath, name string) string {
	if importPath == im.self {
		return ""
	}
	im.used[importPath] = true
	if local, ok := im.byPath[importPath]; ok {
		return local
	}

	local := name
	for n := 2; ; n++ {
		if _, taken := im.byName[local]; !taken {
			break
		}
		local = name + strconv.Itoa(n)
	}
	im.reserve(importPath, local)
	return local
}

// Use marks a reserved runtime import as used and returns its local name
func (im *ImportManager) Use(importPath string) string {
	local, ok := im.byPath[importPath]
	if !ok {
		panic(fmt.Sprintf("templates: import %s was never registered", importPath))
	}
	im.used[importPath] = true
	return local
}

// Qualifier returns a types.Qualifier that registers every package it sees
func (im *ImportManager) Qualifier() types.Qualifier {
	return func(pkg *types.Package) string {
		return im.Add(pkg.Path(), pkg.Name())
	}
}

// Imports returns the used imports, standard library first, each group
// sorted by path
func (im *ImportManager) Imports() []Import {
	var std, other []Import
	for p := range im.used {
		imp := Import{Path: p, Name: im.byPath[p]}
		if isStdlib(p) {
			std = append(std, imp)
		} else {
			other = append(other, imp)
		}
	}
	byPath := func(list []Import) {
		sort.Slice(list, func(i, j int) bool { return list[i].Path < list[j].Path })
	}
	byPath(std)
	byPath(other)
	return append(std, other...)
}

// Render produces the import declaration, or "" when nothing is used
func (im *ImportManager) Render() string {
	imports := im.Imports()
	if len(imports) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("import (\n")
	prevStd := true
	for i, imp := range imports {
		std := isStdlib(imp.Path)
		if i > 0 && prevStd && !std {
			b.WriteString("\n")
		}
		prevStd = std
		b.WriteString("\t")
		if imp.Aliased() {
			b.WriteString(imp.Name)
			b.WriteString(" ")
		}
		b.WriteString(strconv.Quote(imp.Path))
		b.WriteString("\n")
	}
	b.WriteString(")\n")
	return b.String()
}

func isStdlib(importPath string) bool {
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
