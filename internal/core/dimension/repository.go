package dimension

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source loads the configured dimension set.
type Source interface {
	LoadDimensions(ctx context.Context) ([]Dimension, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Dimension, error)

func (f SourceFunc) LoadDimensions(ctx context.Context) ([]Dimension, error) { return f(ctx) }

// FileSystemRepository loads dimensions from *.yaml files in a directory.
// Each file holds exactly one dimension at the top level; files are read in
// name order, which fixes the dimension order of every bucket.
// The directory is re-read on every load so edits are picked up by a refresh.
type FileSystemRepository struct {
	dir string
}

func NewFileSystemRepository(dir string) *FileSystemRepository {
	return &FileSystemRepository{dir: dir}
}

func (r *FileSystemRepository) LoadDimensions(_ context.Context) ([]Dimension, error) {
	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil, nil // no dimensions directory: a single unconstrained bucket
	}
	if err != nil {
		return nil, fmt.Errorf("dimension dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dimension path %q is not a directory", r.dir)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("reading dimension dir: %w", err)
	}

	var dims []Dimension
	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading dimension file %s: %w", path, err)
		}

		var d Dimension
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("parsing dimension file %s: %w", path, err)
		}
		if d.Name == "" {
			continue // empty / comment-only file
		}
		dims = append(dims, d)
	}

	if err := Validate(dims); err != nil {
		return nil, err
	}
	return dims, nil
}
