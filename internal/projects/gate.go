package projects

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// SecretGate checks the shared admin password.
// A bcrypt hash is preferred; a plain secret is compared in constant time.
// With neither configured every attempt is refused.
type SecretGate struct {
	hash  []byte
	plain []byte
}

// NewSecretGate creates a gate from the configured secret.
// Values starting with "$2" are treated as bcrypt hashes.
func NewSecretGate(secret string) *SecretGate {
	g := &SecretGate{}
	switch {
	case secret == "":
	case strings.HasPrefix(secret, "$2"):
		g.hash = []byte(secret)
	default:
		g.plain = []byte(secret)
	}
	return g
}

// Check reports whether password matches the configured secret
func (g *SecretGate) Check(password string) bool {
	if g == nil || password == "" {
		return false
	}
	if len(g.hash) > 0 {
		return bcrypt.CompareHashAndPassword(g.hash, []byte(password)) == nil
	}
	if len(g.plain) > 0 {
		return subtle.ConstantTimeCompare(g.plain, []byte(password)) == 1
	}
	return false
}

// Configured reports whether any secret is set
func (g *SecretGate) Configured() bool {
	return g != nil && (len(g.hash) > 0 || len(g.plain) > 0)
}
