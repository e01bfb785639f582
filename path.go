package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// Path validates a filesystem directory that the solver reads input
// tables from or writes persistence files to.
type Path struct {
	Dir string
}

// NewPath resolves dir, requiring it to exist and be a directory.
func NewPath(dir string) (*Path, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("path %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path %s: not a directory", dir)
	}
	return &Path{Dir: dir}, nil
}

// Join returns the path to name inside this directory.
func (p *Path) Join(name string) string {
	return filepath.Join(p.Dir, name)
}
