package domain

import "strings"

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

type Session struct {
	User         *User
	AccessToken  string
	RefreshToken string
}

// Valid reports whether both tokens are present. A session holding only one of
// them is treated as logged out.
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}
