package ns

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the parsing functions of this package.
var (
	// ErrInvalidIdent indicates a name that is empty or contains a character
	// outside [A-Za-z0-9_-].
	ErrInvalidIdent = errors.New("invalid identifier")

	// ErrEmptyKey indicates an attempt to build a Key from zero identifiers.
	ErrEmptyKey = errors.New("key must not be empty")
)

// Separator joins identifiers in the textual form of Key and Dir.
const Separator = "/"

// Ident is a validated name consisting of ASCII alphanumerics, '-' and '_'.
// The zero value is not a valid identifier and is reported by IsZero.
type Ident struct {
	name string
}

// NewIdent validates name and returns it as an Ident.
func NewIdent(name string) (Ident, error) {
	if !validIdent(name) {
		return Ident{}, fmt.Errorf("%w %q", ErrInvalidIdent, name)
	}
	return Ident{name: name}, nil
}

// MustIdent is like NewIdent but panics on invalid input.
// It is meant for literals in tests and static tables.
func MustIdent(name string) Ident {
	id, err := NewIdent(name)
	if err != nil {
		panic(err)
	}
	return id
}

func validIdent(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}

// String returns the identifier text.
func (i Ident) String() string {
	return i.name
}

// IsZero reports whether i is the zero Ident.
func (i Ident) IsZero() bool {
	return i.name == ""
}

// WithPrefix builds a Key by placing prefix in front of i.
// The prefix is ordered outermost first.
func (i Ident) WithPrefix(prefix ...Ident) Key {
	idents := make([]Ident, 0, len(prefix)+1)
	idents = append(idents, prefix...)
	idents = append(idents, i)
	return joinKey(idents)
}

// Key returns the single-segment Key naming i.
func (i Ident) Key() Key {
	return Key{path: i.name}
}

// MarshalText implements encoding.TextMarshaler.
func (i Ident) MarshalText() ([]byte, error) {
	if i.IsZero() {
		return nil, fmt.Errorf("%w: zero value", ErrInvalidIdent)
	}
	return []byte(i.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Ident) UnmarshalText(text []byte) error {
	id, err := NewIdent(string(text))
	if err != nil {
		return err
	}
	*i = id
	return nil
}

// ParseIdents converts names to identifiers, failing on the first invalid one.
func ParseIdents(names ...string) ([]Ident, error) {
	idents := make([]Ident, 0, len(names))
	for _, name := range names {
		id, err := NewIdent(name)
		if err != nil {
			return nil, err
		}
		idents = append(idents, id)
	}
	return idents, nil
}
