package usecase

import (
	"crypto/subtle"

	domain "github.com/aq2208/gcart-api/internal/entity"
)

type Login struct {
	users UserDirectory
}

func NewLogin(users UserDirectory) *Login {
	return &Login{users: users}
}

// Authenticate checks username/password against the directory.
func (uc *Login) Authenticate(username, password string) (domain.User, error) {
	u, ok := uc.users.Lookup(username)
	if !ok || subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Profile returns the account behind an authenticated identity.
func (uc *Login) Profile(who domain.Identity) (domain.User, bool) {
	if !who.Authenticated() {
		return domain.User{}, false
	}
	return uc.users.Lookup(who.Username)
}
