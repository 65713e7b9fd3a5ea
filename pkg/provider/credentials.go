package provider

import (
	"os"
	"strings"
)

// CredentialSource resolves a symbolic key name (e.g. "LUMA_API_KEY") to its
// secret value. Config files only ever carry the symbolic name.
type CredentialSource interface {
	Lookup(name string) (string, bool)
}

// EnvCredentials reads keys from the process environment.
type EnvCredentials struct{}

// Lookup returns the environment variable's value if set and non-empty.
func (EnvCredentials) Lookup(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	v := os.Getenv(name)
	return v, v != ""
}

// StaticCredentials is a fixed map, used by tests.
type StaticCredentials map[string]string

// Lookup returns the mapped value if present and non-empty.
func (s StaticCredentials) Lookup(name string) (string, bool) {
	v, ok := s[name]
	return v, ok && v != ""
}

// Redact masks a secret for logs, keeping only the last four characters.
func Redact(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return "****" + secret[len(secret)-4:]
}
