package auth

import (
	"errors"
	"testing"
)

func TestStaticVerifierResolvesKnownTokens(t *testing.T) {
	verifier := NewStaticVerifier(map[string]string{
		"token-admin": "admin",
	})

	subject, err := verifier.VerifyToken("token-admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "admin" {
		t.Fatalf("unexpected subject %s", subject)
	}
}

func TestStaticVerifierRejectsUnknownTokens(t *testing.T) {
	verifier := NewStaticVerifier(map[string]string{"token-admin": "admin"})

	if _, err := verifier.VerifyToken("token-other"); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
	if _, err := verifier.VerifyToken(""); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken for empty token, got %v", err)
	}
}

func TestCredentialsMatch(t *testing.T) {
	creds := Credentials{Username: "admin", Password: "s3cret"}

	cases := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{name: "exact match", username: "admin", password: "s3cret", want: true},
		{name: "wrong password", username: "admin", password: "guess", want: false},
		{name: "wrong username", username: "root", password: "s3cret", want: false},
		{name: "empty pair", username: "", password: "", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := creds.Match(tc.username, tc.password); got != tc.want {
				t.Fatalf("Match(%q, %q) = %v, want %v", tc.username, tc.password, got, tc.want)
			}
		})
	}
}
