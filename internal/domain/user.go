package domain

import "time"

type (
	Email    = string
	Password = string
	UserId   = string
)

// User is an account as stored in the directory. PassHash is empty when the
// record comes from a listing.
type User struct {
	Id        UserId
	Name      string
	Email     Email
	PassHash  string
	CreatedAt time.Time
}

type Credentials struct {
	Email    Email
	Password Password
}
