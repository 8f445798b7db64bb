package ns

import (
	"fmt"
	"strings"
)

// Dir is a possibly empty sequence of identifiers. The zero value is the
// root directory and renders as the empty string.
type Dir struct {
	path string
}

// Root is the empty Dir.
var Root = Dir{}

// NewDir joins idents into a Dir.
func NewDir(idents ...Ident) Dir {
	if len(idents) == 0 {
		return Root
	}
	return joinKey(idents).Dir()
}

// ParseDir parses the '/'-joined notation. The empty string is the root.
func ParseDir(text string) (Dir, error) {
	if text == "" {
		return Root, nil
	}
	key, err := ParseKey(text)
	if err != nil {
		return Dir{}, fmt.Errorf("dir %q: %w", text, err)
	}
	return key.Dir(), nil
}

// String returns the '/'-joined form.
func (d Dir) String() string {
	return d.path
}

// IsRoot reports whether d has no segments.
func (d Dir) IsRoot() bool {
	return d.path == ""
}

// Idents returns the segments of d, outermost first.
func (d Dir) Idents() []Ident {
	return Key{path: d.path}.Idents()
}

// Join appends id to d.
func (d Dir) Join(id Ident) Dir {
	if d.IsRoot() {
		return Dir{path: id.name}
	}
	return Dir{path: d.path + Separator + id.name}
}

// Key returns the Key that names id inside d.
func (d Dir) Key(id Ident) Key {
	return Key{path: d.Join(id).path}
}

// HasPrefix reports whether d is equal to or nested inside other.
func (d Dir) HasPrefix(other Dir) bool {
	if other.IsRoot() {
		return true
	}
	return d.path == other.path || strings.HasPrefix(d.path, other.path+Separator)
}

// MarshalText implements encoding.TextMarshaler.
func (d Dir) MarshalText() ([]byte, error) {
	return []byte(d.path), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Dir) UnmarshalText(text []byte) error {
	dir, err := ParseDir(string(text))
	if err != nil {
		return err
	}
	*d = dir
	return nil
}
