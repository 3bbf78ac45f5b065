package types

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version is a strict semantic version (MAJOR.MINOR.PATCH with optional
// prerelease and build metadata). The zero value is invalid; construct
// through ParseVersion so no partially-validated version circulates.
type Version struct {
	raw    string
	parsed *semver.Version
}

// ParseVersion validates s against the strict semver grammar. Leading "v"
// prefixes, missing components, and loose forms are rejected.
func ParseVersion(s string) (Version, error) {
	parsed, err := semver.StrictNewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("invalid semantic version %q: %w", s, err)
	}
	return Version{raw: s, parsed: parsed}, nil
}

// String returns the version exactly as it was supplied
func (v Version) String() string { return v.raw }

// IsZero reports whether the version was never parsed
func (v Version) IsZero() bool { return v.parsed == nil }

// IsPrerelease reports whether the version carries a prerelease component
func (v Version) IsPrerelease() bool {
	return v.parsed != nil && v.parsed.Prerelease() != ""
}

// Compare returns -1, 0, or 1 ordering v against other
func (v Version) Compare(other Version) int {
	return v.parsed.Compare(other.parsed)
}
