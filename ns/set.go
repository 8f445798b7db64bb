package ns

import (
	"encoding/json"
	"iter"

	"gopkg.in/yaml.v3"
)

// IdentSet is an insertion-ordered set of identifiers. Adding a member twice
// keeps its first position. Order is preserved for iteration and display and
// carries no other meaning.
//
// The zero value is an empty set ready to use. On the wire an IdentSet is a
// JSON array or YAML sequence of identifier strings.
type IdentSet struct {
	items []Ident
	index map[Ident]struct{}
}

// NewIdentSet returns a set holding idents in order.
func NewIdentSet(idents ...Ident) *IdentSet {
	s := &IdentSet{}
	for _, id := range idents {
		s.Add(id)
	}
	return s
}

// Add inserts id and reports whether it was not already present.
func (s *IdentSet) Add(id Ident) bool {
	if s.index == nil {
		s.index = make(map[Ident]struct{})
	}
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.items = append(s.items, id)
	return true
}

// Contains reports whether id is a member. A nil set contains nothing.
func (s *IdentSet) Contains(id Ident) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[id]
	return ok
}

// Len returns the number of members. A nil set is empty.
func (s *IdentSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// All yields the members in insertion order. A nil set yields nothing.
func (s *IdentSet) All() iter.Seq[Ident] {
	return func(yield func(Ident) bool) {
		if s == nil {
			return
		}
		for _, id := range s.items {
			if !yield(id) {
				return
			}
		}
	}
}

// Slice returns a copy of the members in insertion order.
func (s *IdentSet) Slice() []Ident {
	if s == nil {
		return nil
	}
	out := make([]Ident, len(s.items))
	copy(out, s.items)
	return out
}

// Union adds every member of other to s, keeping existing positions.
func (s *IdentSet) Union(other *IdentSet) {
	for id := range other.All() {
		s.Add(id)
	}
}

// Clone returns an independent copy of s.
func (s *IdentSet) Clone() *IdentSet {
	return NewIdentSet(s.Slice()...)
}

// MarshalJSON encodes the set as an array of strings.
func (s *IdentSet) MarshalJSON() ([]byte, error) {
	items := s.Slice()
	if items == nil {
		items = []Ident{}
	}
	return json.Marshal(items)
}

// UnmarshalJSON decodes an array of identifier strings, collapsing duplicates.
func (s *IdentSet) UnmarshalJSON(data []byte) error {
	var idents []Ident
	if err := json.Unmarshal(data, &idents); err != nil {
		return err
	}
	*s = IdentSet{}
	for _, id := range idents {
		s.Add(id)
	}
	return nil
}

// MarshalYAML encodes the set as a sequence of strings.
func (s *IdentSet) MarshalYAML() (any, error) {
	items := s.Slice()
	if items == nil {
		items = []Ident{}
	}
	return items, nil
}

// UnmarshalYAML decodes a sequence of identifier strings.
func (s *IdentSet) UnmarshalYAML(value *yaml.Node) error {
	var idents []Ident
	if err := value.Decode(&idents); err != nil {
		return err
	}
	*s = IdentSet{}
	for _, id := range idents {
		s.Add(id)
	}
	return nil
}
