package rest

import (
	"context"
	"net/http"
	"strings"

	"bookstore/internal/domain"
)

// AuthClient implements domain.AuthGateway.
type AuthClient struct {
	api *Client
}

// NewAuthClient returns an auth gateway over c.
func NewAuthClient(c *Client) *AuthClient {
	return &AuthClient{api: c}
}

// authUser accepts both the flat user_id/nome/tipo shape of the auth service
// and the nested id/name/role shape of the gateway in front of it.
type authUser struct {
	ID     wireID `json:"id"`
	UserID wireID `json:"user_id"`
	Name   string `json:"name"`
	Nome   string `json:"nome"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Tipo   string `json:"tipo"`
	Ativo  *bool  `json:"ativo"`
}

func (u authUser) toDomain() (domain.User, bool) {
	id := u.ID
	if id == "" {
		id = u.UserID
	}
	out := domain.User{
		ID:     string(id),
		Name:   firstNonEmpty(u.Name, u.Nome),
		Email:  strings.TrimSpace(u.Email),
		Role:   firstNonEmpty(u.Role, u.Tipo),
		Active: u.Ativo == nil || *u.Ativo,
	}
	return out, out.ID != "" && out.Email != ""
}

type authResponse struct {
	authUser
	User         *authUser `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
}

func (c *AuthClient) result(res authResponse) (*domain.AuthResult, error) {
	u := res.authUser
	if res.User != nil {
		u = *res.User
	}
	user, ok := u.toDomain()
	if !ok {
		return nil, c.api.unexpected("auth response without user")
	}
	if res.AccessToken == "" {
		return nil, c.api.unexpected("auth response without access token")
	}
	return &domain.AuthResult{User: user, AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}, nil
}

// Login exchanges credentials for a session.
func (c *AuthClient) Login(ctx context.Context, cred domain.Credentials) (*domain.AuthResult, error) {
	var res authResponse
	body := map[string]string{"email": cred.Email, "password": cred.Password}
	if err := c.api.do(ctx, http.MethodPost, "/login", nil, body, &res); err != nil {
		return nil, err
	}
	return c.result(res)
}

// Register creates an account and signs it in.
func (c *AuthClient) Register(ctx context.Context, r domain.Registration) (*domain.AuthResult, error) {
	var res authResponse
	body := map[string]string{
		"name":                  r.Name,
		"email":                 r.Email,
		"password":              r.Password,
		"password_confirmation": r.PasswordConfirmation,
	}
	if err := c.api.do(ctx, http.MethodPost, "/register", nil, body, &res); err != nil {
		return nil, err
	}
	return c.result(res)
}

// Refresh trades the current bearer for a new access token.
func (c *AuthClient) Refresh(ctx context.Context) (string, error) {
	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.api.do(ctx, http.MethodPost, "/auth/refresh", nil, nil, &res); err != nil {
		return "", err
	}
	if res.AccessToken == "" {
		return "", c.api.unexpected("refresh without access token")
	}
	return res.AccessToken, nil
}

// Me returns the user the bearer belongs to.
func (c *AuthClient) Me(ctx context.Context) (*domain.User, error) {
	var res authUser
	if err := c.api.do(ctx, http.MethodGet, "/me", nil, nil, &res); err != nil {
		return nil, err
	}
	return c.user(res)
}

// UpdateProfile changes the name and email of the current user.
func (c *AuthClient) UpdateProfile(ctx context.Context, p domain.ProfileUpdate) (*domain.User, error) {
	var res authUser
	body := map[string]string{"nome": p.Name, "email": p.Email}
	if err := c.api.do(ctx, http.MethodPut, "/me", nil, body, &res); err != nil {
		return nil, err
	}
	return c.user(res)
}

// ChangePassword replaces the current user's password.
func (c *AuthClient) ChangePassword(ctx context.Context, p domain.PasswordChange) error {
	body := map[string]string{"current_password": p.Current, "new_password": p.New}
	return c.api.do(ctx, http.MethodPost, "/me/password", nil, body, nil)
}

func (c *AuthClient) user(res authUser) (*domain.User, error) {
	u, ok := res.toDomain()
	if !ok {
		return nil, c.api.unexpected("user without id or email")
	}
	return &u, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
