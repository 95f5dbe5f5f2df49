package domain

import "strings"

// RoleAdmin grants access to the admin console.
const RoleAdmin = "admin"

// User is the identity returned by the auth service.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

// Session pairs the current user with its bearer token. Both are present or
// both are absent.
type Session struct {
	User  *User  `json:"user,omitempty"`
	Token string `json:"token,omitempty"`
}

// NewSession returns a session for user and token, or the empty session
// when either is missing.
func NewSession(user *User, token string) Session {
	if user == nil || token == "" {
		return Session{}
	}
	u := *user
	return Session{User: &u, Token: token}
}

// Authenticated reports whether the session holds a user and a token.
func (s Session) Authenticated() bool {
	return s.User != nil && s.Token != ""
}

// Admin reports whether the session user has the admin role.
func (s Session) Admin() bool {
	return s.Authenticated() && strings.EqualFold(s.User.Role, RoleAdmin)
}

// Complete reports whether the session user has a name and an email, which
// checkout requires.
func (s Session) Complete() bool {
	return s.Authenticated() &&
		strings.TrimSpace(s.User.Name) != "" &&
		strings.TrimSpace(s.User.Email) != ""
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration is the sign-up payload.
type Registration struct {
	Name                 string `json:"name" validate:"required"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,min=6"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// PasswordChange is the change-password payload.
type PasswordChange struct {
	Current string `json:"current_password" validate:"required"`
	New     string `json:"new_password" validate:"required,min=6,nefield=Current"`
}

// AuthResult is what login and registration return.
type AuthResult struct {
	User         User
	AccessToken  string
	RefreshToken string
}
