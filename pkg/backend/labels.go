package backend

import "strings"

// Sentinel labels stored in the resolver cache alongside real backend names.
// They are ordinary cache values: once recorded they are never re-fetched.
const (
	// LabelDefault records the PEP 517 fallback: no build-system table (or no
	// build-backend key) was declared, so the legacy setuptools backend applies.
	// https://pip.pypa.io/en/stable/reference/build-system/pyproject-toml/#fallback-behaviour
	LabelDefault = "DEFAULT"

	// LabelParsingError records a pyproject.toml that is not valid TOML.
	LabelParsingError = "PARSING_ERROR"

	// LabelInvalidError records a build-backend value that is present but not
	// a usable string (a list, a table, an empty string).
	LabelInvalidError = "INVALID_ERROR"
)

// IsSentinel reports whether label is one of the reserved sentinel values
// rather than a declared backend name.
func IsSentinel(label string) bool {
	switch label {
	case LabelDefault, LabelParsingError, LabelInvalidError:
		return true
	}
	return false
}

// Normalize collapses a backend label to its leading project name for
// presentation: "setuptools.build_meta:__legacy__" and "setuptools.build_meta"
// both become "setuptools". LabelDefault normalizes to "setuptools" as well,
// since the PEP 517 fallback is the legacy setuptools backend. The error
// sentinels pass through unchanged so charts keep them distinguishable.
func Normalize(label string) string {
	switch label {
	case LabelDefault:
		return "setuptools"
	case LabelParsingError, LabelInvalidError:
		return label
	}
	if i := strings.IndexAny(label, "._-:"); i >= 0 {
		return label[:i]
	}
	return label
}
