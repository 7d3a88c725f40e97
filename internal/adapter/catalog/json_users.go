package catalog

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/go-faster/errors"

	domain "github.com/aq2208/gcart-api/internal/entity"
	"github.com/aq2208/gcart-api/internal/usecase"
)

// JSONUsers is the in-memory user directory.
type JSONUsers struct {
	byName map[string]domain.User
}

// LoadJSONUsers accepts either a JSON array of users or an object keyed by
// username.
func LoadJSONUsers(path string) (*JSONUsers, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read users file")
	}

	var users []domain.User
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		var byName map[string]domain.User
		if err := json.Unmarshal(trimmed, &byName); err != nil {
			return nil, errors.Wrap(err, "parse users file")
		}
		for name, u := range byName {
			if u.Username == "" {
				u.Username = name
			}
			users = append(users, u)
		}
	} else if err := json.Unmarshal(raw, &users); err != nil {
		return nil, errors.Wrap(err, "parse users file")
	}
	return NewJSONUsers(users), nil
}

func NewJSONUsers(users []domain.User) *JSONUsers {
	d := &JSONUsers{byName: make(map[string]domain.User, len(users))}
	for _, u := range users {
		d.byName[u.Username] = u
	}
	return d
}

func (d *JSONUsers) Lookup(username string) (domain.User, bool) {
	u, ok := d.byName[username]
	return u, ok
}

func (d *JSONUsers) Len() int { return len(d.byName) }

var _ usecase.UserDirectory = (*JSONUsers)(nil)
