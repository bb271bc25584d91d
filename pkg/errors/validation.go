package errors

import (
	"strings"
	"unicode"
)

// maxIDLength bounds entity and snapshot identifiers accepted from user input.
const maxIDLength = 512

// ValidateEntityID validates an entity identifier supplied on the command line
// or in a request before it is used for lookups or remote queries.
//
// The validation rules are intentionally conservative:
//   - No empty ids
//   - No control characters or null bytes
//   - Maximum length of 512 characters
//
// Entity ids in the wild contain '#', ':' and '.' (for example
// "BCS-K8S-00000#k8s-idc-br#uid-0"), so no character class beyond control
// characters is rejected.
func ValidateEntityID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "entity id cannot be empty")
	}
	if len(id) > maxIDLength {
		return New(ErrCodeInvalidInput, "entity id too long (max %d characters)", maxIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "entity id contains invalid control characters")
		}
	}
	return nil
}

// ValidateSnapshotID validates a snapshot identifier used as a document key.
// In addition to the entity id rules it rejects whitespace and path
// separators, since snapshot ids are embedded in cache keys and query strings.
func ValidateSnapshotID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "snapshot id cannot be empty")
	}
	if len(id) > maxIDLength {
		return New(ErrCodeInvalidInput, "snapshot id too long (max %d characters)", maxIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidInput, "snapshot id contains invalid characters")
		}
	}
	if strings.ContainsAny(id, "/\\") {
		return New(ErrCodeInvalidInput, "snapshot id cannot contain path separators")
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
