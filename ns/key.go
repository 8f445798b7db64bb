package ns

import (
	"fmt"
	"strings"
)

// Key is a non-empty sequence of identifiers, written "a/b/c".
//
// Key keeps its canonical text form internally so that it stays comparable
// and can be used as a map key. The zero value is not a valid key.
type Key struct {
	path string
}

// NewKey joins idents into a Key. It returns ErrEmptyKey when idents is empty
// and ErrInvalidIdent when any element is the zero Ident.
func NewKey(idents ...Ident) (Key, error) {
	if len(idents) == 0 {
		return Key{}, ErrEmptyKey
	}
	for _, id := range idents {
		if id.IsZero() {
			return Key{}, fmt.Errorf("%w: zero value in key", ErrInvalidIdent)
		}
	}
	return joinKey(idents), nil
}

// ParseKey parses the '/'-joined notation. Every segment must be a valid
// identifier, so leading, trailing and doubled separators are rejected.
func ParseKey(text string) (Key, error) {
	if text == "" {
		return Key{}, ErrEmptyKey
	}
	for _, seg := range strings.Split(text, Separator) {
		if !validIdent(seg) {
			return Key{}, fmt.Errorf("%w %q in key %q", ErrInvalidIdent, seg, text)
		}
	}
	return Key{path: text}, nil
}

// MustKey is like ParseKey but panics on invalid input.
func MustKey(text string) Key {
	k, err := ParseKey(text)
	if err != nil {
		panic(err)
	}
	return k
}

func joinKey(idents []Ident) Key {
	parts := make([]string, len(idents))
	for i, id := range idents {
		parts[i] = id.name
	}
	return Key{path: strings.Join(parts, Separator)}
}

// String returns the '/'-joined form.
func (k Key) String() string {
	return k.path
}

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool {
	return k.path == ""
}

// Idents returns the segments of k, outermost first.
func (k Key) Idents() []Ident {
	if k.IsZero() {
		return nil
	}
	parts := strings.Split(k.path, Separator)
	idents := make([]Ident, len(parts))
	for i, p := range parts {
		idents[i] = Ident{name: p}
	}
	return idents
}

// Len returns the number of segments.
func (k Key) Len() int {
	if k.IsZero() {
		return 0
	}
	return strings.Count(k.path, Separator) + 1
}

// Last returns the final segment.
func (k Key) Last() Ident {
	if i := strings.LastIndex(k.path, Separator); i >= 0 {
		return Ident{name: k.path[i+1:]}
	}
	return Ident{name: k.path}
}

// IsIdent reports whether k consists of exactly one identifier.
func (k Key) IsIdent() bool {
	return !k.IsZero() && !strings.Contains(k.path, Separator)
}

// AsIdent returns the single identifier of a one-segment key.
func (k Key) AsIdent() (Ident, bool) {
	if !k.IsIdent() {
		return Ident{}, false
	}
	return Ident{name: k.path}, true
}

// Prepend returns a new key with prefix placed in front of k.
func (k Key) Prepend(prefix ...Ident) Key {
	if len(prefix) == 0 {
		return k
	}
	idents := make([]Ident, 0, len(prefix)+k.Len())
	idents = append(idents, prefix...)
	idents = append(idents, k.Idents()...)
	return joinKey(idents)
}

// Dir converts k to a Dir with the same segments.
func (k Key) Dir() Dir {
	return Dir{path: k.path}
}

// MarshalText implements encoding.TextMarshaler.
func (k Key) MarshalText() ([]byte, error) {
	if k.IsZero() {
		return nil, ErrEmptyKey
	}
	return []byte(k.path), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(text []byte) error {
	key, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = key
	return nil
}
