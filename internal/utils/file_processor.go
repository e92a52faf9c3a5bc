package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GeneratedFileName is the file written into every package that declares
// proxy annotations
const GeneratedFileName = "autogen_proxy.go"

// GeneratedPrefix marks files produced by code generation
const GeneratedPrefix = "autogen_"

// FileFilter decides whether a directory entry takes part in processing
type FileFilter func(path string, entry os.DirEntry) bool

// DefaultGoFileFilter accepts Go sources, skipping tests and generated files
func DefaultGoFileFilter() FileFilter {
	return func(path string, entry os.DirEntry) bool {
		if entry.IsDir() {
			return false
		}
		name := entry.Name()
		return strings.HasSuffix(name, ".go") &&
			!strings.HasSuffix(name, "_test.go") &&
			!strings.HasPrefix(name, GeneratedPrefix)
	}
}

// DefaultDirectoryFilter skips hidden, vendored and build output directories
func DefaultDirectoryFilter() FileFilter {
	skip := map[string]bool{
		"vendor":       true,
		"node_modules": true,
		"testdata":     true,
		"dist":         true,
		"_examples":    true,
	}
	return func(path string, entry os.DirEntry) bool {
		if !entry.IsDir() {
			return true
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") && name != "." && name != ".." {
			return false
		}
		return !skip[name]
	}
}

// FileProcessor walks source trees looking for packages to process
type FileProcessor struct {
	fileReader *FileReader
}

// NewFileProcessor creates a processor with its own FileReader
func NewFileProcessor() *FileProcessor {
	return NewFileProcessorWithReader(NewFileReader())
}

// NewFileProcessorWithReader creates a processor sharing an existing FileReader
func NewFileProcessorWithReader(reader *FileReader) *FileProcessor {
	return &FileProcessor{fileReader: reader}
}

// GetFileReader returns the underlying FileReader
func (fp *FileProcessor) GetFileReader() *FileReader {
	return fp.fileReader
}

// ScanDirectoriesWithGoFiles returns every directory under rootDirs that
// holds at least one non-test, non-generated Go file. A root ending in
// "/..." is scanned recursively, any other root is checked on its own.
func (fp *FileProcessor) ScanDirectoriesWithGoFiles(rootDirs []string) ([]string, error) {
	var result []string
	visited := make(map[string]bool)

	for _, root := range rootDirs {
		dir, recursive := splitPattern(root)
		if !recursive {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
			}
			if visited[abs] {
				continue
			}
			visited[abs] = true

			ok, err := fp.HasGoFiles(dir)
			if err != nil {
				return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
			}
			if ok {
				result = append(result, dir)
			}
			continue
		}

		dirs, err := fp.scan(dir, visited)
		if err != nil {
			return nil, err
		}
		result = append(result, dirs...)
	}
	return result, nil
}

func (fp *FileProcessor) scan(dir string, visited map[string]bool) ([]string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if visited[abs] {
		return nil, nil
	}
	visited[abs] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var result []string
	goFiles := DefaultGoFileFilter()
	for _, entry := range entries {
		if goFiles(filepath.Join(dir, entry.Name()), entry) {
			result = append(result, dir)
			break
		}
	}

	dirs := DefaultDirectoryFilter()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !dirs(path, entry) {
			continue
		}
		sub, err := fp.scan(path, visited)
		if err != nil {
			return nil, err
		}
		result = append(result, sub...)
	}
	return result, nil
}

// HasGoFiles reports whether dir directly contains a Go source file
func (fp *FileProcessor) HasGoFiles(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	filter := DefaultGoFileFilter()
	for _, entry := range entries {
		if filter(filepath.Join(dir, entry.Name()), entry) {
			return true, nil
		}
	}
	return false, nil
}

// GoFiles lists the processable Go files of a single directory
func (fp *FileProcessor) GoFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	filter := DefaultGoFileFilter()
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if filter(path, entry) {
			files = append(files, path)
		}
	}
	return files, nil
}

// CleanDirectories removes generated proxy files below baseDirs and returns
// the removed paths
func (fp *FileProcessor) CleanDirectories(baseDirs []string) ([]string, error) {
	var removed []string
	for _, base := range baseDirs {
		dir, _ := splitPattern(base)
		if dir == "" {
			dir = "."
		}
		err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
			if err != nil {
				// unreadable subtrees are skipped
				return nil
			}
			if entry.IsDir() {
				if path != dir && !DefaultDirectoryFilter()(path, entry) {
					return filepath.SkipDir
				}
				return nil
			}
			if entry.Name() != GeneratedFileName {
				return nil
			}
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove %s: %w", path, err)
			}
			removed = append(removed, path)
			return nil
		})
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// splitPattern strips a trailing "/..." and reports whether it was present
func splitPattern(pattern string) (string, bool) {
	if pattern == "..." {
		return ".", true
	}
	if dir, ok := strings.CutSuffix(pattern, "/..."); ok {
		if dir == "" {
			dir = "/"
		}
		return dir, true
	}
	return pattern, false
}
