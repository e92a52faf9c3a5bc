package cli

import (
	"fmt"

	"github.com/toyz/proxyman/internal/errors"
	"github.com/toyz/proxyman/internal/utils"
)

// ModuleResolver handles resolving Go module information
type ModuleResolver struct {
	goMod *utils.GoModParser
}

// NewModuleResolver creates a new module resolver
func NewModuleResolver() *ModuleResolver {
	return &ModuleResolver{
		goMod: utils.NewGoModParser(utils.NewFileReader()),
	}
}

// ResolveModule finds the module enclosing dir. When customModule is set the
// go.mod file must declare that module path.
func (r *ModuleResolver) ResolveModule(customModule, dir string) (*utils.ModuleInfo, error) {
	if customModule != "" {
		if err := utils.IsValidImportPath("module")(customModule); err != nil {
			return nil, errors.WrapConfigurationError("module", err)
		}
	}

	info, err := r.goMod.FindModule(dir)
	if err != nil {
		return nil, errors.WrapConfigurationError("module", err).
			WithSuggestion("Run proxyman inside a Go module or create one with 'go mod init'")
	}

	if customModule != "" && customModule != info.Path {
		return nil, errors.ConfigurationError("module",
			fmt.Sprintf("%s declares module %s, expected %s", info.GoMod, info.Path, customModule)).
			WithSuggestion("Drop --module to use the module declared in go.mod")
	}
	return info, nil
}

// BuildPackagePaths returns the import path of every package directory
func (r *ModuleResolver) BuildPackagePaths(info *utils.ModuleInfo, packageDirs []string) ([]string, error) {
	paths := make([]string, 0, len(packageDirs))
	for _, dir := range packageDirs {
		path, err := info.ImportPath(dir)
		if err != nil {
			return nil, errors.WrapConfigurationError("package directory", err).
				WithContext("directory", dir).
				WithSuggestion("Scan directories inside module " + info.Path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
