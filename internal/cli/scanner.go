package cli

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/toyz/proxyman/internal/errors"
	"github.com/toyz/proxyman/internal/utils"
)

// DirectoryScanner finds the package directories below the requested roots
type DirectoryScanner struct {
	fileProcessor *utils.FileProcessor
}

// NewDirectoryScanner creates a new directory scanner
func NewDirectoryScanner() *DirectoryScanner {
	return &DirectoryScanner{
		fileProcessor: utils.NewFileProcessor(),
	}
}

// ScanDirectories returns the absolute, sorted paths of every directory that
// holds Go sources. Supports Go-style patterns like "./..." for recursive
// scanning.
func (s *DirectoryScanner) ScanDirectories(rootDirs []string) ([]string, error) {
	dirs, err := s.fileProcessor.ScanDirectoriesWithGoFiles(rootDirs)
	if err != nil {
		return nil, errors.WrapFileSystemError("scan", strings.Join(rootDirs, ", "), err)
	}

	seen := make(map[string]bool, len(dirs))
	result := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, errors.WrapFileSystemError("resolve", dir, err)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		result = append(result, abs)
	}
	sort.Strings(result)
	return result, nil
}
