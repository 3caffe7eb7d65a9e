package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

// ErrUnknownToken indicates the presented token matched no known subject.
var ErrUnknownToken = errors.New("unknown token")

// TokenVerifier resolves a bearer token to its subject.
// The production implementation is TokenIssuer; tests substitute a
// StaticVerifier instead of accepting magic token values in handlers.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// StaticVerifier maps fixed token strings to subjects. Intended for
// tests and local tooling only; it performs no signature checks.
type StaticVerifier struct {
	tokens map[string]string
}

// NewStaticVerifier constructs a StaticVerifier over a token→subject map.
func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	copied := make(map[string]string, len(tokens))
	for token, subject := range tokens {
		copied[token] = subject
	}
	return &StaticVerifier{tokens: copied}
}

// VerifyToken returns the subject registered for the token.
func (v *StaticVerifier) VerifyToken(token string) (string, error) {
	subject, ok := v.tokens[strings.TrimSpace(token)]
	if !ok || subject == "" {
		return "", ErrUnknownToken
	}
	return subject, nil
}

// Credentials holds the configured admin login pair.
type Credentials struct {
	Username string
	Password string
}

// Match reports whether the presented pair equals the configured pair.
// Comparison is constant time to avoid leaking prefix matches.
func (c Credentials) Match(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(c.Username), []byte(username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(c.Password), []byte(password)) == 1
	return userOK && passOK
}
