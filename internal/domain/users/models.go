package users

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered participant. Balance is in-game currency, mutated
// only by settlement.
type User struct {
	ID           uuid.UUID `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Balance      int64     `db:"balance"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// RegisterCommand represents the command to create an account.
type RegisterCommand struct {
	Username string
	Email    string
	Password string
}

// LoginCommand represents the command to authenticate.
type LoginCommand struct {
	Username string
	Password string
}
