package graph

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Requirement is the version constraint every document must satisfy.
const Requirement = "^0.1.0"

// CurrentVersion is the format version written by this package.
const CurrentVersion = "0.1.0"

// ErrVersionMismatch is returned for a document whose version is missing or
// does not satisfy Requirement.
var ErrVersionMismatch = errors.New("incompatible config version")

var current = semver.MustParse(CurrentVersion)

var constraint = func() *semver.Constraints {
	c, err := semver.NewConstraint(Requirement)
	if err != nil {
		panic(err)
	}
	return c
}()

// Version is the format version of a document.
type Version struct {
	v *semver.Version
}

// NewVersion parses text as a semantic version.
func NewVersion(text string) (Version, error) {
	v, err := semver.NewVersion(text)
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q is not a semantic version", ErrVersionMismatch, text)
	}
	return Version{v: v}, nil
}

// Current returns CurrentVersion.
func Current() Version {
	return Version{v: current}
}

// IsZero reports whether the version was never set.
func (v Version) IsZero() bool {
	return v.v == nil
}

// String returns the version as written.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.Original()
}

// Check reports whether v satisfies Requirement.
func (v Version) Check() error {
	if v.v == nil {
		return fmt.Errorf("%w: version must be specified", ErrVersionMismatch)
	}
	if !constraint.Check(v.v) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrVersionMismatch, v, Requirement)
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := NewVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
