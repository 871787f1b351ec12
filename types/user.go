package types

import "time"

// User represents an account on the board.
type User struct {
	// ID is the opaque identifier of the user.
	ID string `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address. It can also be used to log in.
	Email string `json:"email" db:"email"`

	// DisplayName is shown next to the user's posts.
	DisplayName string `json:"display_name" db:"display_name"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
