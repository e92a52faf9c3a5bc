package cli

import (
	"sort"
	"strings"

	"github.com/toyz/proxyman/internal/errors"
	"github.com/toyz/proxyman/internal/utils"
)

// DiagnosticReporter turns generation errors and results into user-facing
// output
type DiagnosticReporter struct {
	diagnostics *utils.DiagnosticSystem
	verbose     bool
}

// NewDiagnosticReporter creates a reporter writing through diagnostics
func NewDiagnosticReporter(diagnostics *utils.DiagnosticSystem, verbose bool) *DiagnosticReporter {
	return &DiagnosticReporter{
		diagnostics: diagnostics,
		verbose:     verbose,
	}
}

// ReportWarning prints a warning with optional hints
func (r *DiagnosticReporter) ReportWarning(message string, suggestions ...string) {
	r.diagnostics.Warn("%s", message)
	for _, s := range suggestions {
		r.diagnostics.Suggestion("%s", s)
	}
}

// ReportError prints every error collected in err. Errors that carry a
// source location are printed as file:line:col so editors can jump to them.
func (r *DiagnosticReporter) ReportError(err error) {
	if err == nil {
		return
	}

	list := flatten(err)
	if len(list) == 0 {
		r.diagnostics.Error("%s", err.Error())
		return
	}
	if len(list) > 1 {
		r.diagnostics.Error("Generation failed with %d errors", len(list))
		r.diagnostics.Indent()
		defer r.diagnostics.Unindent()
	}
	for _, pe := range list {
		r.reportProxyError(pe)
	}
}

func (r *DiagnosticReporter) reportProxyError(pe errors.ProxyError) {
	r.diagnostics.Error("%s [%s]", pe.Error(), pe.ErrorCode())

	for _, s := range pe.Suggestions() {
		lines := strings.Split(s, "\n")
		r.diagnostics.Suggestion("%s", lines[0])
		for _, line := range lines[1:] {
			if strings.TrimSpace(line) != "" {
				r.diagnostics.Suggestion("  %s", line)
			}
		}
	}

	if !r.verbose {
		return
	}

	ctx := pe.Context()
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.diagnostics.Verbose("%s: %v", formatContextKey(k), ctx[k])
	}

	level := 1
	for cause := pe.Unwrap(); cause != nil; cause = unwrapOne(cause) {
		r.diagnostics.Verbose("cause %d: %s", level, cause.Error())
		level++
	}
}

// ReportSuccess prints the generation summary
func (r *DiagnosticReporter) ReportSuccess(summary GenerationSummary) {
	r.diagnostics.Summary("Summary:", summary.Stats())

	if r.verbose && len(summary.GeneratedFiles) > 0 {
		r.diagnostics.PhaseHeader("Generated files")
		r.diagnostics.Indent()
		for _, file := range summary.GeneratedFiles {
			r.diagnostics.List("%s", file)
		}
		r.diagnostics.Unindent()
	}
	r.diagnostics.GenerationComplete()
}

// flatten collects the ProxyErrors of err, expanding MultipleErrors
func flatten(err error) []errors.ProxyError {
	var multi *errors.MultipleErrors
	if errors.As(err, &multi) {
		var out []errors.ProxyError
		for _, e := range multi.Errors {
			out = append(out, flatten(e)...)
		}
		return out
	}

	var pe errors.ProxyError
	if errors.As(err, &pe) {
		return []errors.ProxyError{pe}
	}
	return nil
}

func unwrapOne(err error) error {
	if u, ok := err.(interface{ Unwrap() error }); ok {
		return u.Unwrap()
	}
	return nil
}

// formatContextKey converts snake_case context keys to Title Case
func formatContextKey(key string) string {
	parts := strings.Split(key, "_")
	for i, part := range parts {
		if len(part) > 0 {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, " ")
}

// GenerationSummary contains information about the generation process
type GenerationSummary struct {
	PackagesScanned   int
	PackagesAnnotated int
	ProxiesGenerated  int
	FilesWritten      int
	FilesRemoved      int
	CacheHits         int64
	Generated         int64
	GeneratedFiles    []string
}

// Stats lists the summary in display order
func (s GenerationSummary) Stats() []utils.Stat {
	return []utils.Stat{
		{Label: "Packages scanned", Value: s.PackagesScanned},
		{Label: "Packages with proxies", Value: s.PackagesAnnotated},
		{Label: "Proxies", Value: s.ProxiesGenerated},
		{Label: "Files written", Value: s.FilesWritten},
		{Label: "Definitions generated", Value: s.Generated},
		{Label: "Cache hits", Value: s.CacheHits},
	}
}
