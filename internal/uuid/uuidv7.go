// Package uuid generates the time-ordered identifiers used as primary keys.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New generates a new UUIDv7. UUIDv7 is time-ordered, so rows inserted later
// sort after earlier ones in primary key indexes.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		// Fallback to standard UUIDv4 if the random source fails
		return googleuuid.New().String()
	}
	return id.String()
}

// Parse validates and parses a UUID string, returning its canonical form.
func Parse(s string) (string, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// IsValid checks if a string is a valid UUID
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
