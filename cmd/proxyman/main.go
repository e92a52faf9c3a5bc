package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/toyz/proxyman/internal/cli"
	"github.com/toyz/proxyman/internal/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[0], os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses args, executes the generator and returns the process exit code
func run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(stderr)

	var (
		moduleFlag    = flags.String("module", "", "Module path the directories must belong to (defaults to go.mod module)")
		namespaceFlag = flags.String("namespace", cli.DefaultNamespace, "Namespace prefixing every proxy type name")
		cacheFlag     = flags.String("cache", "", "Directory of the persistent definition cache (disabled when empty)")
		verboseFlag   = flags.Bool("verbose", false, "Enable verbose output and detailed error reporting")
		quietFlag     = flags.Bool("quiet", false, "Only show errors and final results")
		cleanFlag     = flags.Bool("clean", false, "Delete all "+utils.GeneratedFileName+" files from the specified directories")
	)

	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [options] <directory-paths...>\n\n", name)
		fmt.Fprintf(stderr, "Proxy Code Generator\n")
		fmt.Fprintf(stderr, "Scans directories for types annotated with //proxy::lazy, //proxy::interceptor\n")
		fmt.Fprintf(stderr, "or //proxy::remote and writes their proxies to %s.\n\n", utils.GeneratedFileName)
		fmt.Fprintf(stderr, "Options:\n")
		flags.PrintDefaults()
		fmt.Fprintf(stderr, "\nArguments:\n")
		fmt.Fprintf(stderr, "  directory-paths    One or more directories to scan for annotated Go files\n")
		fmt.Fprintf(stderr, "                     Supports Go-style patterns like './...' for recursive scanning\n")
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  %s ./...                                  # Scan everything recursively\n", name)
		fmt.Fprintf(stderr, "  %s ./internal/store ./internal/users     # Scan specific directories\n", name)
		fmt.Fprintf(stderr, "  %s --namespace MyApp.Proxies ./...        # Custom proxy namespace\n", name)
		fmt.Fprintf(stderr, "  %s --cache .proxyman ./...               # Reuse definitions across runs\n", name)
		fmt.Fprintf(stderr, "  %s --clean ./...                          # Delete generated files\n", name)
	}

	if err := flags.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	dirs := flags.Args()
	if len(dirs) == 0 {
		fmt.Fprintf(stderr, "Error: At least one directory path is required\n\n")
		flags.Usage()
		return 1
	}
	if *verboseFlag && *quietFlag {
		fmt.Fprintf(stderr, "Error: --verbose and --quiet cannot be combined\n")
		return 1
	}

	level := utils.DiagnosticInfo
	switch {
	case *quietFlag:
		level = utils.DiagnosticError
	case *verboseFlag:
		level = utils.DiagnosticVerbose
	}
	diagnostics := utils.NewDiagnosticSystemWithWriters(level, stdout, stderr)
	logger := newLogger(stderr, *verboseFlag)
	defer func() { _ = logger.Sync() }()

	diagnostics.Header("Proxy Code Generator")
	if *verboseFlag {
		diagnostics.PhaseHeader("Configuration")
		diagnostics.Indent()
		diagnostics.List("Target directories: %s", strings.Join(dirs, ", "))
		if *moduleFlag != "" {
			diagnostics.List("Module: %s", *moduleFlag)
		}
		diagnostics.List("Namespace: %s", *namespaceFlag)
		if *cacheFlag != "" {
			diagnostics.List("Cache: %s", *cacheFlag)
		}
		diagnostics.Unindent()
	}

	config := cli.Config{
		Directories: dirs,
		ModuleName:  *moduleFlag,
		Namespace:   *namespaceFlag,
		CacheDir:    *cacheFlag,
		Verbose:     *verboseFlag,
		Clean:       *cleanFlag,
	}

	generator := cli.NewGenerator(diagnostics, logger)
	if err := generator.Run(ctx, config); err != nil {
		generator.Reporter().ReportError(err)
		return 1
	}

	summary := generator.GetSummary()
	if config.Clean {
		diagnostics.Info("Removed %d generated files", summary.FilesRemoved)
		return 0
	}
	if *quietFlag {
		fmt.Fprintf(stdout, "proxyman: %d proxies in %d files\n", summary.ProxiesGenerated, summary.FilesWritten)
		return 0
	}
	generator.Reporter().ReportSuccess(summary)
	return 0
}

// newLogger logs warnings, or everything when verbose, to w
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.AddSync(w), zap.NewAtomicLevelAt(level))
	return zap.New(core)
}
