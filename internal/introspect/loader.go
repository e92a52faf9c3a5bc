package introspect

import (
	"context"
	"fmt"
	"go/types"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/toyz/proxyman/internal/annotations"
	"github.com/toyz/proxyman/internal/errors"
	"github.com/toyz/proxyman/internal/templates"
	"github.com/toyz/proxyman/internal/utils"
	"github.com/toyz/proxyman/pkg/proxyman"
)

// Target is an annotated type ready for proxy generation
type Target struct {
	Descriptor proxyman.TypeDescriptor
	Annotation *annotations.ParsedAnnotation

	// Implements is true when the generated proxy satisfies the original
	// type, which is only possible for interfaces of exported methods
	Implements bool
}

// Package groups the targets found in one Go package. Imports holds the
// packages referenced by the targets' method signatures.
type Package struct {
	Path    string
	Name    string
	Dir     string
	Imports *templates.ImportManager
	Targets []Target
}

// Loader finds annotated types with go/packages
type Loader struct {
	parser *annotations.Parser
	dir    string
}

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo

// NewLoader creates a loader resolving patterns relative to dir
func NewLoader(parser *annotations.Parser, dir string) *Loader {
	if parser == nil {
		parser = annotations.NewParser()
	}
	return &Loader{parser: parser, dir: dir}
}

// Load loads the packages matching patterns and returns the ones holding at
// least one annotated type, sorted by import path. Type errors located in
// previously generated files are ignored so stale output never blocks a new
// run.
func (l *Loader) Load(ctx context.Context, patterns ...string) ([]*Package, error) {
	cfg := &packages.Config{
		Context: ctx,
		Dir:     l.dir,
		Mode:    loadMode,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, errors.WrapIntrospectionError(fmt.Sprint(patterns), err)
	}

	var result []*Package
	errs := errors.NewMultipleErrors()
	for _, pkg := range pkgs {
		if err := loadErrors(pkg); err != nil {
			errs.Add(errors.WrapIntrospectionError(pkg.PkgPath, err))
			continue
		}

		found, err := l.inspect(pkg)
		if err != nil {
			addAll(errs, err)
			continue
		}
		if found != nil && len(found.Targets) > 0 {
			result = append(result, found)
		}
	}
	if err := errs.ErrOrNil(); err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

func (l *Loader) inspect(pkg *packages.Package) (*Package, error) {
	if pkg.Types == nil || len(pkg.Syntax) == 0 {
		return nil, nil
	}

	out := &Package{
		Path:    pkg.PkgPath,
		Name:    pkg.Name,
		Imports: templates.NewImportManager(pkg.PkgPath),
	}
	if len(pkg.GoFiles) > 0 {
		out.Dir = filepath.Dir(pkg.GoFiles[0])
	}

	errs := errors.NewMultipleErrors()
	for _, file := range pkg.Syntax {
		filename := pkg.Fset.Position(file.Pos()).Filename
		if filepath.Base(filename) == utils.GeneratedFileName {
			continue
		}

		found, err := l.parser.ParseAST(pkg.Fset, file)
		if err != nil {
			addAll(errs, err)
		}

		for _, ta := range found {
			target, err := describeTarget(pkg.Types, ta, out.Imports)
			if err != nil {
				errs.Add(located(err, ta.Annotation.Location))
				continue
			}
			out.Targets = append(out.Targets, target)
		}
	}
	return out, errs.ErrOrNil()
}

func describeTarget(pkg *types.Package, ta *annotations.TypeAnnotation, imports *templates.ImportManager) (Target, error) {
	obj, ok := pkg.Scope().Lookup(ta.TypeName).(*types.TypeName)
	if !ok {
		return Target{}, errors.ConfigurationError("type", fmt.Sprintf("%s is not a type of package %s", ta.TypeName, pkg.Path()))
	}
	named, ok := obj.Type().(*types.Named)
	if !ok || obj.IsAlias() {
		return Target{}, errors.ConfigurationError("type", fmt.Sprintf("%s must be a defined type, not an alias", ta.TypeName))
	}

	desc, err := Describe(named, imports.Qualifier())
	if err != nil {
		return Target{}, err
	}
	return Target{
		Descriptor: desc,
		Annotation: ta.Annotation,
		Implements: desc.Interface && !HasUnexportedMethods(named),
	}, nil
}

// loadErrors joins the package errors that are not caused by generated files
func loadErrors(pkg *packages.Package) error {
	errs := errors.NewMultipleErrors()
	for _, e := range pkg.Errors {
		if isGeneratedPosition(e.Pos) {
			continue
		}
		errs.Add(errors.New(errors.IntrospectionErrorCode, e.Msg).WithContext("position", e.Pos))
	}
	return errs.ErrOrNil()
}

// isGeneratedPosition reports whether a "file:line:col" position points into
// a generated file
func isGeneratedPosition(pos string) bool {
	file := pos
	for i := 0; i < 2; i++ {
		if idx := strings.LastIndex(file, ":"); idx >= 0 {
			file = file[:idx]
		}
	}
	return filepath.Base(file) == utils.GeneratedFileName
}

func located(err error, loc errors.SourceLocation) errors.ProxyError {
	var base *errors.BaseError
	if errors.As(err, &base) {
		if base.Location().IsEmpty() {
			return base.WithLocation(loc)
		}
		return base
	}
	return errors.Wrap(errors.ConfigurationErrorCode, err.Error(), err).WithLocation(loc)
}

func addAll(errs *errors.MultipleErrors, err error) {
	if multi, ok := err.(*errors.MultipleErrors); ok {
		for _, e := range multi.Errors {
			errs.Add(e)
		}
		return
	}
	var pe errors.ProxyError
	if errors.As(err, &pe) {
		errs.Add(pe)
		return
	}
	errs.Add(errors.Wrap(errors.IntrospectionErrorCode, err.Error(), err))
}
