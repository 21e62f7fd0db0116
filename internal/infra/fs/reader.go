package fs

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileReader resolves client-supplied waveform paths.
type FileReader struct {
	BaseDir string
}

// NewFileReader creates a new FileReader.
func NewFileReader(baseDir string) *FileReader {
	return &FileReader{
		BaseDir: baseDir,
	}
}

// Resolve returns the absolute path for path, joined to BaseDir when relative.
// It fails unless the result names a regular file.
func (f *FileReader) Resolve(path string) (string, error) {
	fullPath := path
	if !filepath.IsAbs(path) && f.BaseDir != "" {
		fullPath = filepath.Join(f.BaseDir, path)
	}
	fullPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", fullPath, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("cannot open %s: not a regular file", fullPath)
	}
	return fullPath, nil
}
