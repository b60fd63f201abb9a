package api

import (
	"time"

	"github.com/itchan-dev/usuarios/internal/domain"
)

// User is the public view of an account. It has no password field at all,
// so a hash can never leak through encoding.
type User struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func NewUser(u domain.User) User {
	return User{Id: u.Id, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt}
}

func NewUsers(users []domain.User) []User {
	out := make([]User, 0, len(users))
	for _, u := range users {
		out = append(out, NewUser(u))
	}
	return out
}
