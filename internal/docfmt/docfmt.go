// Package docfmt decodes topology documents.
//
// Two encodings are accepted: JSON with comments and trailing commas (JWCC,
// normalized with hujson before decoding) and YAML. The encoding is chosen by
// file extension; anything that is not .yaml or .yml is treated as JWCC.
package docfmt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// Format identifies a document encoding.
type Format string

const (
	// FormatJSON is JSON with comments and trailing commas permitted.
	FormatJSON Format = "json"

	// FormatYAML is YAML 1.2.
	FormatYAML Format = "yaml"
)

// FormatOf returns the encoding implied by the extension of path.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Unmarshal decodes data in the given format into v.
func Unmarshal(format Format, data []byte, v any) error {
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to decode YAML: %w", err)
		}
		return nil
	case FormatJSON, "":
		std, err := hujson.Standardize(data)
		if err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
		if err := json.Unmarshal(std, v); err != nil {
			return fmt.Errorf("failed to decode JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported document format %q", format)
	}
}

// PathError records a failure to read or decode a document file.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// ReadFile reads path and decodes it into v according to its extension.
// Both I/O and decoding failures are returned as *PathError.
func ReadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &PathError{Path: path, Err: err}
	}
	if err := Unmarshal(FormatOf(path), data, v); err != nil {
		return &PathError{Path: path, Err: err}
	}
	return nil
}

// Resolve returns path made absolute relative to baseDir. Absolute paths
// are only cleaned.
func Resolve(baseDir, path string) string {
	if path == "" {
		return ""
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
