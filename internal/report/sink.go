package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirSink writes exported reports into a directory.
type DirSink struct {
	dir string
}

func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

// Save writes data to name inside the sink directory and returns the path.
func (s *DirSink) Save(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}

	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsRune(name, '/') {
		return "", fmt.Errorf("illegal report name: %q", name)
	}
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
