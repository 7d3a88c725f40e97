package domain

// User is an account from the user directory. Password is only ever compared,
// never rendered.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Gender    string `json:"gender,omitempty"`
	Image     string `json:"image,omitempty"`
}

// Identity is what the auth layer hands to the cart path. Carts are keyed by
// Username; UserID is only echoed in priced views.
type Identity struct {
	UserID   int64
	Username string
}

func (i Identity) Authenticated() bool { return i.Username != "" }
