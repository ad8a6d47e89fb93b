package models

import "fmt"

// AuthProvider names the identity provider an opaque identity token came from.
type AuthProvider string

const (
	AuthProviderGoogle    AuthProvider = "google"
	AuthProviderMicrosoft AuthProvider = "microsoft"
)

// ParseAuthProvider accepts the provider names the backend knows.
func ParseAuthProvider(s string) (AuthProvider, error) {
	switch p := AuthProvider(s); p {
	case AuthProviderGoogle, AuthProviderMicrosoft:
		return p, nil
	default:
		return "", fmt.Errorf("unknown auth provider %q", s)
	}
}

// User is the signed-in account.
type User struct {
	ID          int64
	Email       string
	CompanyName string
}

// Tokens is the bearer credential pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is what a successful authentication exchange yields: the user
// and the raw credential material, kept as separate fields.
type AuthResult struct {
	User   User
	Tokens Tokens
}
