package models

import "time"

// RefreshToken is a server-stored refresh token row. Tokens are rotated on
// every refresh: the presented token is deleted and a new one inserted.
type RefreshToken struct {
	UserID  string
	Token   string
	Expires time.Time
}
