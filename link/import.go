package link

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zero-day-ai/flowgraph/internal/docfmt"
)

var (
	// ErrImportNotLoaded is returned when an import variant is built before
	// Prepare loaded the file it names.
	ErrImportNotLoaded = errors.New("transport config: import not loaded")

	// ErrImportCycle is returned when imported files import each other.
	ErrImportCycle = errors.New("transport config: import cycle")
)

// ImportConfig refers to a file holding a single transport config.
type ImportConfig struct {
	File string `json:"file" yaml:"file"`

	target *Config
}

// Validate implements validation of the variant settings.
func (c *ImportConfig) Validate() error {
	if c.File == "" {
		return errors.New("import transport config: file must be specified")
	}
	return nil
}

// Target returns the loaded config, or nil before loading.
func (c *ImportConfig) Target() *Config {
	return c.target
}

func (c *ImportConfig) load(baseDir string, importing []string) error {
	c.File = docfmt.Resolve(baseDir, c.File)
	if slices.Contains(importing, c.File) {
		return fmt.Errorf("%w: %s", ErrImportCycle, strings.Join(append(slices.Clip(importing), c.File), " -> "))
	}

	target, err := loadConfig(c.File, append(slices.Clip(importing), c.File))
	if err != nil {
		return err
	}
	c.target = target
	return nil
}

// LoadConfig reads a file holding a single transport config and prepares it
// relative to the file's directory.
func LoadConfig(path string) (*Config, error) {
	abs := docfmt.Resolve(".", path)
	return loadConfig(abs, []string{abs})
}

func loadConfig(path string, importing []string) (*Config, error) {
	var cfg Config
	if err := docfmt.ReadFile(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.prepare(filepath.Dir(path), importing); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}
