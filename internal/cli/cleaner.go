package cli

import (
	"strings"

	"github.com/toyz/proxyman/internal/errors"
	"github.com/toyz/proxyman/internal/utils"
)

// Cleaner handles cleaning up generated files
type Cleaner struct {
	fileProcessor *utils.FileProcessor
}

// NewCleaner creates a new cleaner
func NewCleaner() *Cleaner {
	return &Cleaner{
		fileProcessor: utils.NewFileProcessor(),
	}
}

// CleanGeneratedFiles removes every generated proxy file below directories
// and returns the removed paths
func (c *Cleaner) CleanGeneratedFiles(directories []string) ([]string, error) {
	removed, err := c.fileProcessor.CleanDirectories(directories)
	if err != nil {
		return removed, errors.WrapFileSystemError("clean", strings.Join(directories, ", "), err)
	}
	return removed, nil
}
