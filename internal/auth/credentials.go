package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// Credentials checks the shared login password. Every user logs in with the
// same password; a bcrypt hash, when configured, takes precedence over the
// plain value.
type Credentials struct {
	password []byte
	hash     []byte
}

func NewCredentials(password, hash string) *Credentials {
	c := &Credentials{password: []byte(password)}
	if hash != "" {
		c.hash = []byte(hash)
	}
	return c
}

// Check reports whether password matches the shared credential.
func (c *Credentials) Check(password string) bool {
	if c.hash != nil {
		return bcrypt.CompareHashAndPassword(c.hash, []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), c.password) == 1
}
