// Package backend classifies pyproject.toml content by its declared PEP 517
// build backend.
//
// Classification is a pure function from raw file text to a label: either the
// declared build-backend string or one of the sentinel labels describing why
// no backend could be extracted. Sentinels are documented in labels.go.
package backend

import (
	"strings"

	"github.com/BurntSushi/toml"
)

// Classify extracts the declared build backend from raw pyproject.toml text.
//
// The fallback chain is:
//   - text that is not valid TOML → LabelParsingError (parse failures are
//     never masked by the lookup below)
//   - no build-system table, or no build-backend key in it → LabelDefault
//   - build-backend present but not a non-empty string → LabelInvalidError
//   - otherwise → the declared string, verbatim
//
// Classify never fails: every input maps to exactly one label.
func Classify(text string) string {
	var doc map[string]any
	if err := toml.Unmarshal([]byte(text), &doc); err != nil {
		return LabelParsingError
	}

	// A build-system key that is not a table counts as absent, the same way
	// a failed lookup falls through to the PEP 517 default.
	table, ok := doc["build-system"].(map[string]any)
	if !ok {
		return LabelDefault
	}
	value, ok := table["build-backend"]
	if !ok {
		return LabelDefault
	}
	declared, ok := value.(string)
	if !ok {
		return LabelInvalidError
	}
	if strings.TrimSpace(declared) == "" {
		return LabelInvalidError
	}
	return declared
}
