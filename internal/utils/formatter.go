package utils

import (
	"fmt"
	"go/format"
	"os"
	"path/filepath"
)

// FormatGoCode formats Go source the way gofmt does
func FormatGoCode(source []byte) ([]byte, error) {
	formatted, err := format.Source(source)
	if err != nil {
		return nil, fmt.Errorf("invalid Go source: %w", err)
	}
	return formatted, nil
}

// FormatAndWriteGoFile formats source and writes it to filename. The file is
// written to a temporary sibling first and renamed into place, so readers
// never observe a partial file. Unformattable source is not written.
func FormatAndWriteGoFile(filename string, source []byte) error {
	formatted, err := FormatGoCode(source)
	if err != nil {
		return err
	}
	return WriteFileAtomic(filename, formatted, 0644)
}

// WriteFileAtomic writes data to a temporary file next to filename and
// renames it over filename
func WriteFileAtomic(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filename); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
