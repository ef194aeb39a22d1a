// Package id generates opaque identifiers.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// New returns a random UUIDv4 string for stored records.
func New() string {
	return uuid.NewString()
}

// Short returns a prefixed NanoID such as "tok-V1StGXR8_Z5jdHi6B-myT".
// Used where a compact URL-safe value reads better than a UUID.
func Short(prefix string) (string, error) {
	v, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + v, nil
}
