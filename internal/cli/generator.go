package cli

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/toyz/proxyman/internal/errors"
	"github.com/toyz/proxyman/internal/factory"
	"github.com/toyz/proxyman/internal/generator"
	"github.com/toyz/proxyman/internal/introspect"
	"github.com/toyz/proxyman/internal/utils"
	"github.com/toyz/proxyman/pkg/proxyman"
)

// Generator runs the complete scan, introspect, generate and write pipeline
type Generator struct {
	scanner        *DirectoryScanner
	moduleResolver *ModuleResolver
	cleaner        *Cleaner
	reporter       *DiagnosticReporter
	diagnostics    *utils.DiagnosticSystem
	logger         *zap.Logger
	summary        GenerationSummary
}

// NewGenerator creates a generator printing through diagnostics. A nil
// diagnostics writes at info level to stdout and stderr; a nil logger
// disables structured logging.
func NewGenerator(diagnostics *utils.DiagnosticSystem, logger *zap.Logger) *Generator {
	if diagnostics == nil {
		diagnostics = utils.NewDiagnosticSystem(utils.DiagnosticInfo)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		scanner:        NewDirectoryScanner(),
		moduleResolver: NewModuleResolver(),
		cleaner:        NewCleaner(),
		reporter:       NewDiagnosticReporter(diagnostics, diagnostics.Level() >= utils.DiagnosticVerbose),
		diagnostics:    diagnostics,
		logger:         logger,
	}
}

// GetSummary returns the summary of the last run
func (g *Generator) GetSummary() GenerationSummary {
	return g.summary
}

// Reporter returns the reporter used for errors and the final summary
func (g *Generator) Reporter() *DiagnosticReporter {
	return g.reporter
}

// Run executes the action selected by config
func (g *Generator) Run(ctx context.Context, config Config) error {
	g.summary = GenerationSummary{}
	if config.Verbose {
		g.reporter.verbose = true
	}
	if len(config.Directories) == 0 {
		return errors.ConfigurationError("directories", "at least one directory is required").
			WithSuggestion("Pass ./... to scan the current module")
	}
	if config.Clean {
		return g.clean(config)
	}
	if _, err := proxyman.NewInflector(config.namespace()); err != nil {
		return errors.WrapConfigurationError("namespace", err).
			WithSuggestion("Use a dotted name of Go identifiers, for example MyApp.Proxies")
	}
	return g.generate(ctx, config)
}

func (g *Generator) clean(config Config) error {
	g.diagnostics.PhaseHeader("Cleaning")
	removed, err := g.cleaner.CleanGeneratedFiles(config.Directories)
	g.summary.FilesRemoved = len(removed)
	for _, path := range removed {
		g.diagnostics.PhaseItem("Removed %s", path)
	}
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		g.diagnostics.Info("No %s files found", utils.GeneratedFileName)
	}
	return nil
}

func (g *Generator) generate(ctx context.Context, config Config) error {
	start := time.Now()

	g.diagnostics.PhaseHeader("Scanning")
	packageDirs, err := g.scanner.ScanDirectories(config.Directories)
	if err != nil {
		return err
	}
	if len(packageDirs) == 0 {
		return errors.ConfigurationError("directories", "no Go packages found in the specified directories").
			WithContext("directories", config.Directories).
			WithSuggestions(
				"Ensure the directories contain Go files",
				"Try scanning parent directories or use the './...' pattern",
			)
	}
	g.summary.PackagesScanned = len(packageDirs)
	g.diagnostics.PhaseItem("Found %d packages", len(packageDirs))

	info, err := g.moduleResolver.ResolveModule(config.ModuleName, packageDirs[0])
	if err != nil {
		return err
	}
	patterns, err := g.moduleResolver.BuildPackagePaths(info, packageDirs)
	if err != nil {
		return err
	}
	g.diagnostics.Verbose("Module %s at %s", info.Path, info.Root)
	for _, p := range patterns {
		g.diagnostics.Debug("package %s", p)
	}

	g.diagnostics.PhaseHeader("Introspecting")
	pkgs, err := introspect.NewLoader(nil, info.Root).Load(ctx, patterns...)
	if err != nil {
		return err
	}
	g.summary.PackagesAnnotated = len(pkgs)
	if len(pkgs) == 0 {
		g.reporter.ReportWarning("No proxy annotations found",
			"Annotate an interface or struct with //proxy::lazy, //proxy::interceptor or //proxy::remote")
		return nil
	}
	targets := 0
	for _, pkg := range pkgs {
		targets += len(pkg.Targets)
	}
	g.diagnostics.PhaseItem("Found %d annotated types in %d packages", targets, len(pkgs))

	f, closeStore, err := g.newFactory(config)
	if err != nil {
		return err
	}
	defer closeStore()

	g.diagnostics.PhaseHeader("Generating")
	gen := generator.NewGenerator(f, g.logger)
	errs := errors.NewMultipleErrors()
	for _, pkg := range pkgs {
		file, err := gen.GeneratePackage(ctx, pkg)
		if err != nil {
			collect(errs, err)
			continue
		}
		g.diagnostics.PhaseWriting(file.FilePath)
		if err := gen.Write(file); err != nil {
			collect(errs, err)
			continue
		}
		g.summary.FilesWritten++
		g.summary.ProxiesGenerated += len(file.Proxies)
		g.summary.GeneratedFiles = append(g.summary.GeneratedFiles, file.FilePath)
		for _, def := range file.Proxies {
			g.diagnostics.Verbose("%s (%s)", def.GoName, def.ProxyName)
		}
	}

	stats := f.Stats()
	g.summary.Generated = stats.Generated
	g.summary.CacheHits = stats.MemoryHits + stats.StoreHits

	g.logger.Debug("generation finished",
		zap.Int("files", g.summary.FilesWritten),
		zap.Int64("generated", stats.Generated),
		zap.Int64("store_hits", stats.StoreHits),
		zap.Int64("stale", stats.Stale),
		zap.Duration("elapsed", time.Since(start)),
	)
	return errs.ErrOrNil()
}

// newFactory builds the definition factory, backed by the persistent cache
// when one is configured
func (g *Generator) newFactory(config Config) (*factory.Factory, func(), error) {
	opts := []factory.Option{factory.WithLogger(g.logger)}
	closeStore := func() {}

	if config.CacheDir != "" {
		store, err := factory.OpenBadgerStore(config.CacheDir, g.logger)
		if err != nil {
			return nil, nil, errors.WrapFileSystemError("open cache", config.CacheDir, err).
				WithSuggestion("Make sure no other proxyman process uses the same --cache directory")
		}
		opts = append(opts, factory.WithStore(store))
		closeStore = func() {
			if err := store.Close(); err != nil {
				g.logger.Warn("closing build cache failed", zap.Error(err))
			}
		}
		g.diagnostics.Verbose("Using build cache %s", config.CacheDir)
	}

	f, err := factory.New(config.namespace(), opts...)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return f, closeStore, nil
}

func collect(errs *errors.MultipleErrors, err error) {
	var multi *errors.MultipleErrors
	if errors.As(err, &multi) {
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
	errs.Add(errors.WrapGenerateError("package", err))
}
