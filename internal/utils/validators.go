package utils

import "unicode"

// IsValidCandidateID checks that an asserted identity is usable as a storage
// key: non-empty, bounded, and limited to letters, digits, '.', '_', '-'.
func IsValidCandidateID(id string) bool {
	if len(id) == 0 || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
		case r == '.' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
