package models

import "time"

// User is an account row. PasswordHash is a bcrypt digest; the clear-text
// password never reaches the persistence layer.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}
