package graph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zero-day-ai/flowgraph/internal/ctxlog"
	"github.com/zero-day-ai/flowgraph/internal/docfmt"
)

// ErrModuleCycle is returned when a document includes itself, directly or
// through other modules.
var ErrModuleCycle = errors.New("module inclusion cycle")

// LoadError records the document that failed to load.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load reads the document at path and, recursively, every module it
// includes. Relative paths inside a document are resolved against that
// document's directory.
func Load(ctx context.Context, path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return load(ctx, abs, nil)
}

// Parse decodes a document held in memory. Modules and imports are resolved
// against baseDir and loaded from disk.
func Parse(ctx context.Context, format docfmt.Format, data []byte, baseDir string) (*Config, error) {
	return parse(ctx, format, data, baseDir, nil)
}

func load(ctx context.Context, path string, including []string) (*Config, error) {
	if slices.Contains(including, path) {
		chain := append(slices.Clip(including), path)
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: %s", ErrModuleCycle, strings.Join(chain, " -> "))}
	}

	ctxlog.FromContext(ctx).Debug("loading dataflow config", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	cfg, err := parse(ctx, docfmt.FormatOf(path), data, filepath.Dir(path), append(slices.Clip(including), path))
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return nil, err
		}
		return nil, &LoadError{Path: path, Err: err}
	}
	return cfg, nil
}

func parse(ctx context.Context, format docfmt.Format, data []byte, baseDir string, including []string) (*Config, error) {
	var cfg Config
	if err := docfmt.Unmarshal(format, data, &cfg); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.Version.Check(); err != nil {
		return nil, err
	}

	for pair := cfg.Exchanges.Oldest(); pair != nil; pair = pair.Next() {
		if err := pair.Value.Prepare(baseDir); err != nil {
			return nil, fmt.Errorf("exchange %s: %w", pair.Key, err)
		}
	}

	if cfg.Modules == nil {
		return &cfg, nil
	}
	for pair := cfg.Modules.Oldest(); pair != nil; pair = pair.Next() {
		mod := pair.Value
		if mod == nil {
			return nil, fmt.Errorf("module %s: %w", pair.Key, errEmptyModulePath)
		}
		mod.AbsPath = docfmt.Resolve(baseDir, mod.Path)

		sub, err := load(ctx, mod.AbsPath, including)
		if err != nil {
			return nil, err
		}
		mod.Config = sub
	}
	return &cfg, nil
}
