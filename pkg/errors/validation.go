package errors

import (
	"strings"
	"unicode"
)

// ValidateLabel validates a trace label read from a sample log header.
//
// Labels are used as lookup keys ("7", "end_7", "start_7", "Iteration"), so
// the rules are strict:
//   - No empty labels
//   - No control characters (tabs, newlines, null bytes)
//   - Maximum length of 256 characters
func ValidateLabel(label string) error {
	if label == "" {
		return New(ErrCodeInvalidInput, "trace label cannot be empty")
	}

	if len(label) > 256 {
		return New(ErrCodeInvalidInput, "trace label too long (max 256 characters)")
	}

	for _, r := range label {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "trace label %q contains control characters", label)
		}
	}

	return nil
}

// newickReserved lists characters that terminate a bare Newick token.
const newickReserved = "(),:;[]"

// ValidateTaxonName validates a tip name for use in clade matching.
// Names may be quoted in Newick, but after unquoting they must still be
// non-empty and free of control characters.
func ValidateTaxonName(name string) error {
	if strings.TrimSpace(name) == "" {
		return New(ErrCodeInvalidTree, "taxon name cannot be empty")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidTree, "taxon name %q contains control characters", name)
		}
	}

	return nil
}

// NeedsQuoting reports whether a taxon name must be single-quoted when
// written as Newick.
func NeedsQuoting(name string) bool {
	return strings.ContainsAny(name, newickReserved+" '")
}
