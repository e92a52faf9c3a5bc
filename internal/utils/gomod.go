package utils

import (
	"fmt"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

// ModuleInfo identifies the module a directory belongs to
type ModuleInfo struct {
	Path    string // module path from the module directive
	Root    string // directory holding go.mod
	GoMod   string // path to go.mod
	Version string // go directive, empty when absent
}

// GoModParser reads go.mod files through a FileReader
type GoModParser struct {
	fileReader *FileReader
}

// NewGoModParser creates a go.mod parser sharing reader's cache
func NewGoModParser(reader *FileReader) *GoModParser {
	return &GoModParser{fileReader: reader}
}

// Parse reads the go.mod at goModPath
func (p *GoModParser) Parse(goModPath string) (*ModuleInfo, error) {
	path := filepath.Clean(goModPath)
	if filepath.Base(path) != "go.mod" {
		return nil, fmt.Errorf("file is not a go.mod file: %s", goModPath)
	}

	content, err := p.fileReader.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read go.mod file: %w", err)
	}

	mod, err := modfile.ParseLax(path, []byte(content), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse go.mod file: %w", err)
	}
	if mod.Module == nil {
		return nil, fmt.Errorf("no module declaration found in %s", path)
	}

	info := &ModuleInfo{
		Path:  mod.Module.Mod.Path,
		Root:  filepath.Dir(path),
		GoMod: path,
	}
	if mod.Go != nil {
		info.Version = mod.Go.Version
	}
	return info, nil
}

// ParseModuleName returns the module path declared in goModPath
func (p *GoModParser) ParseModuleName(goModPath string) (string, error) {
	info, err := p.Parse(goModPath)
	if err != nil {
		return "", err
	}
	return info.Path, nil
}

// FindGoModFile walks up from startDir to the nearest go.mod
func (p *GoModParser) FindGoModFile(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, "go.mod")
		if content, err := p.fileReader.ReadFile(candidate); err == nil && content != "" {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod file not found above %s", startDir)
		}
		dir = parent
	}
}

// FindModule locates and parses the module enclosing startDir
func (p *GoModParser) FindModule(startDir string) (*ModuleInfo, error) {
	goMod, err := p.FindGoModFile(startDir)
	if err != nil {
		return nil, err
	}
	return p.Parse(goMod)
}

// ImportPath returns the import path of the package in dir, which must be
// inside the module
func (m *ModuleInfo) ImportPath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(m.Root, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return m.Path, nil
	}
	if rel == ".." || len(rel) > 2 && rel[:3] == "../" {
		return "", fmt.Errorf("%s is outside module %s", dir, m.Path)
	}
	return m.Path + "/" + rel, nil
}
