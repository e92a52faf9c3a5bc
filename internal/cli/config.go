package cli

// DefaultNamespace is the proxy namespace used when none is configured
const DefaultNamespace = "ProxyManager"

// Config holds the configuration for the CLI generator
type Config struct {
	// Directories is the list of directories to scan for annotated Go files.
	// A trailing "/..." scans recursively.
	Directories []string

	// ModuleName is the module the directories are expected to belong to.
	// If empty, it is taken from the nearest go.mod file.
	ModuleName string

	// Namespace prefixes every proxy type name
	Namespace string

	// CacheDir holds the persistent definition cache; empty disables it
	CacheDir string

	// Verbose enables detailed error reporting even when the diagnostics
	// level is lower
	Verbose bool

	// Clean removes generated files instead of generating them
	Clean bool
}

func (c Config) namespace() string {
	if c.Namespace == "" {
		return DefaultNamespace
	}
	return c.Namespace
}
