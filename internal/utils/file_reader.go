package utils

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
)

// FileReader reads and parses source files, reusing results until the file
// changes on disk. All parsed files share one token.FileSet.
type FileReader struct {
	fset     *token.FileSet
	asts     *Cache[string, *ast.File]
	contents *Cache[string, string]
}

// NewFileReader creates a FileReader with empty caches
func NewFileReader() *FileReader {
	return &FileReader{
		fset:     token.NewFileSet(),
		asts:     NewCache[string, *ast.File](),
		contents: NewCache[string, string](),
	}
}

// ParseGoFile parses a Go source file including its comments
func (fr *FileReader) ParseGoFile(filePath string) (*ast.File, error) {
	path, err := fr.resolve(filePath)
	if err != nil {
		return nil, err
	}

	if cached, ok := fr.asts.GetWithFileValidation(path, path); ok {
		return cached, nil
	}

	file, err := parser.ParseFile(fr.fset, path, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Go file %s: %w", filepath.Base(path), err)
	}
	_ = fr.asts.SetWithFileInfo(path, file, path)
	return file, nil
}

// ReadFile returns the contents of a file
func (fr *FileReader) ReadFile(filePath string) (string, error) {
	path, err := fr.resolve(filePath)
	if err != nil {
		return "", err
	}

	if cached, ok := fr.contents.GetWithFileValidation(path, path); ok {
		return cached, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", filepath.Base(path), err)
	}
	content := string(data)
	_ = fr.contents.SetWithFileInfo(path, content, path)
	return content, nil
}

// GetFileSet returns the file set positions of parsed files belong to
func (fr *FileReader) GetFileSet() *token.FileSet {
	return fr.fset
}

// InvalidateFile drops any cached data for filePath
func (fr *FileReader) InvalidateFile(filePath string) {
	path := filepath.Clean(filePath)
	fr.asts.Delete(path)
	fr.contents.Delete(path)
}

func (fr *FileReader) resolve(filePath string) (string, error) {
	if err := NotEmpty("filePath")(filePath); err != nil {
		return "", err
	}

	path := filepath.Clean(filePath)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file does not exist: %s", path)
		}
		return "", err
	}
	return path, nil
}
