package identity

import "time"

// Account is a credential record owned by the local auth backend.
type Account struct {
	ID           string
	Email        string
	Phone        string
	FullName     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Credentials request structure.
type Credentials struct {
	Email    string
	Password string
	Phone    string
	FullName string
}
