package generator

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/toyz/proxyman/internal/annotations"
	"github.com/toyz/proxyman/internal/errors"
	"github.com/toyz/proxyman/internal/factory"
	"github.com/toyz/proxyman/internal/introspect"
	"github.com/toyz/proxyman/internal/templates"
	"github.com/toyz/proxyman/internal/utils"
)

// GeneratedFile is the proxy source of one package
type GeneratedFile struct {
	PackagePath string
	PackageName string
	FilePath    string
	Content     []byte
	Proxies     []*factory.Definition
}

// Generator renders the proxies of a package into a single Go file
type Generator struct {
	definitions DefinitionSource
	registry    *templates.TemplateRegistry
	logger      *zap.Logger
}

// NewGenerator creates a generator taking definitions from source
func NewGenerator(source DefinitionSource, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		definitions: source,
		registry:    templates.NewTemplateRegistry(),
		logger:      logger,
	}
}

// GeneratePackage builds the proxies of every target in pkg. Errors of all
// targets are collected; no file is produced when any target fails.
func (g *Generator) GeneratePackage(ctx context.Context, pkg *introspect.Package) (*GeneratedFile, error) {
	if pkg == nil {
		return nil, fmt.Errorf("package cannot be nil")
	}

	file := &GeneratedFile{
		PackagePath: pkg.Path,
		PackageName: pkg.Name,
		FilePath:    filepath.Join(pkg.Dir, utils.GeneratedFileName),
	}

	errs := errors.NewMultipleErrors()
	declared := make(map[string]annotations.SourceLocation)
	for _, target := range pkg.Targets {
		def, err := g.definitions.Definition(ctx, target.Descriptor, target.Annotation.Kind, target.Annotation.Parameters, requestOptions(target)...)
		if err != nil {
			errs.Add(locate(err, target.Annotation.Location))
			continue
		}

		if first, dup := declared[def.GoName]; dup {
			errs.Add(errors.ConfigurationError("proxy name", fmt.Sprintf("%s is generated twice in package %s (first at %s)", def.GoName, pkg.Path, first)).
				WithLocation(target.Annotation.Location).
				WithSuggestion(fmt.Sprintf("Set a distinct name with -%s=<Identifier>", annotations.KeyName)))
			continue
		}
		declared[def.GoName] = target.Annotation.Location
		file.Proxies = append(file.Proxies, def)
	}
	if err := errs.ErrOrNil(); err != nil {
		return nil, err
	}

	content, err := g.render(pkg, file.Proxies)
	if err != nil {
		return nil, errors.WrapGenerateError("package "+pkg.Path, err)
	}
	file.Content = content

	g.logger.Debug("rendered proxies",
		zap.String("package", pkg.Path),
		zap.Int("proxies", len(file.Proxies)),
	)
	return file, nil
}

// Write formats and stores the generated file
func (g *Generator) Write(file *GeneratedFile) error {
	if err := utils.FormatAndWriteGoFile(file.FilePath, file.Content); err != nil {
		return errors.WrapFileSystemError("write", file.FilePath, err)
	}
	return nil
}

func (g *Generator) render(pkg *introspect.Package, defs []*factory.Definition) ([]byte, error) {
	imports := pkg.Imports
	if imports == nil {
		imports = templates.NewImportManager(pkg.Path)
	}
	imports.Use(templates.RuntimeImport)

	sources := make([]string, len(defs))
	for i, def := range defs {
		if def.NeedsContext {
			imports.Use(templates.ContextImport)
		}
		if def.NeedsAdapter() {
			imports.Use(templates.AdapterImport)
		}
		sources[i] = def.Source
	}

	src, err := g.registry.Render(templates.FileTemplate, templates.FileData{
		Package: pkg.Name,
		Imports: imports.Render(),
		Proxies: sources,
	})
	if err != nil {
		return nil, err
	}
	return utils.FormatGoCode([]byte(src))
}

// requestOptions turns the reserved annotation keys into factory options
func requestOptions(target introspect.Target) []factory.RequestOption {
	ann := target.Annotation
	opts := []factory.RequestOption{factory.WithImplements(target.Implements)}
	if name := ann.Option(annotations.KeyName); name != "" {
		opts = append(opts, factory.WithGoName(name))
	}
	if service := ann.Option(annotations.KeyService); service != "" {
		opts = append(opts, factory.WithService(service))
	}
	if adapter := ann.Option(annotations.KeyAdapter); adapter != "" {
		opts = append(opts, factory.WithAdapter(adapter))
	}
	return opts
}

func locate(err error, loc annotations.SourceLocation) errors.ProxyError {
	var base *errors.BaseError
	if errors.As(err, &base) {
		if base.Location().IsEmpty() {
			return base.WithLocation(loc)
		}
		return base
	}
	return errors.WrapGenerateError("proxy", err).WithLocation(loc)
}
