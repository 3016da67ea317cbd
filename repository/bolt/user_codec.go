package bolt

import "github.com/fastygo/todo/domain"

// storedUser keeps the password hash, which domain.User never serializes.
type storedUser struct {
	domain.User
	PasswordHash string `json:"password_hash,omitempty"`
}

func toStored(u *domain.User) storedUser {
	return storedUser{User: *u, PasswordHash: u.PasswordHash}
}

func (s storedUser) toDomain() *domain.User {
	u := s.User
	u.PasswordHash = s.PasswordHash
	return &u
}
