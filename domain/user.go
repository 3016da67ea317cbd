package domain

import (
	"strings"
	"time"
)

// Sign-in provider identifiers.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google.com"
)

// ProviderLink ties a user to one sign-in provider account.
type ProviderLink struct {
	Provider  string    `json:"provider"`
	Subject   string    `json:"subject"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// User represents an authenticated identity. Providers only ever grow.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email,omitempty"`
	DisplayName  string         `json:"display_name,omitempty"`
	PasswordHash string         `json:"-"`
	Providers    []ProviderLink `json:"providers"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// HasProvider reports whether the user has a link for provider.
func (u *User) HasProvider(provider string) bool {
	if u == nil {
		return false
	}
	for _, p := range u.Providers {
		if p.Provider == provider {
			return true
		}
	}
	return false
}

// Label is what the UI shows for the signed-in user.
func (u *User) Label() string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	return u.Email
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FederatedIdentity is an external account proven by a completed sign-in
// with a federated provider. AccessToken carries the granted scopes.
type FederatedIdentity struct {
	Provider    string
	Subject     string
	Email       string
	DisplayName string
	AccessToken string
	Expiry      time.Time
}
