package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"bookstore/internal/domain"
)

var (
	// ErrNotAuthenticated indicates the visitor has no session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrIncompleteAuthResponse indicates the auth service answered without
	// a user or a token.
	ErrIncompleteAuthResponse = errors.New("auth response missing user or token")
)

// AuthService signs visitors in and out and maintains their profile.
type AuthService struct {
	auth      domain.AuthGateway
	validator *Validator
	logger    *slog.Logger
}

// NewAuthService creates an AuthService over the auth collaborator.
func NewAuthService(auth domain.AuthGateway, validator *Validator, logger *slog.Logger) *AuthService {
	return &AuthService{auth: auth, validator: validator, logger: logger}
}

// Login authenticates with credentials and replaces the visitor's session.
func (s *AuthService) Login(ctx context.Context, v *Visitor, c domain.Credentials) (domain.Session, error) {
	c.Email = strings.TrimSpace(c.Email)
	if err := s.validator.Struct(c); err != nil {
		return domain.Session{}, err
	}
	res, err := s.auth.Login(ctx, c)
	if err != nil {
		return domain.Session{}, err
	}
	return s.establish(ctx, v, res)
}

// Register creates an account and signs the visitor in.
func (s *AuthService) Register(ctx context.Context, v *Visitor, r domain.Registration) (domain.Session, error) {
	r.Email = strings.TrimSpace(r.Email)
	if err := s.validator.Struct(r); err != nil {
		return domain.Session{}, err
	}
	res, err := s.auth.Register(ctx, r)
	if err != nil {
		return domain.Session{}, err
	}
	return s.establish(ctx, v, res)
}

// SignIn replaces the visitor's session with an identity established
// elsewhere, such as single sign-on.
func (s *AuthService) SignIn(ctx context.Context, v *Visitor, user domain.User, token string) (domain.Session, error) {
	return s.establish(ctx, v, &domain.AuthResult{User: user, AccessToken: token})
}

func (s *AuthService) establish(ctx context.Context, v *Visitor, res *domain.AuthResult) (domain.Session, error) {
	if res == nil || res.User.ID == "" || res.AccessToken == "" {
		return domain.Session{}, ErrIncompleteAuthResponse
	}
	err := v.Session.Set(ctx, res.User, res.AccessToken)
	if err != nil {
		s.logger.Warn("session not persisted", "visitor", v.ID, "error", err)
	}
	return v.Session.Current(), err
}

// Logout clears the visitor's session.
func (s *AuthService) Logout(ctx context.Context, v *Visitor) error {
	return v.Session.Clear(ctx)
}

// Refresh exchanges the current token for a new one.
func (s *AuthService) Refresh(ctx context.Context, v *Visitor) (domain.Session, error) {
	if !v.Session.Current().Authenticated() {
		return domain.Session{}, ErrNotAuthenticated
	}
	token, err := s.auth.Refresh(v.Session.Context(ctx))
	if err != nil {
		return domain.Session{}, s.expire(ctx, v, err)
	}
	if token == "" {
		return domain.Session{}, ErrIncompleteAuthResponse
	}
	err = v.Session.SetToken(ctx, token)
	return v.Session.Current(), err
}

// Profile fetches the current user from the auth service and updates the
// session copy.
func (s *AuthService) Profile(ctx context.Context, v *Visitor) (*domain.User, error) {
	if !v.Session.Current().Authenticated() {
		return nil, ErrNotAuthenticated
	}
	u, err := s.auth.Me(v.Session.Context(ctx))
	if err != nil {
		return nil, s.expire(ctx, v, err)
	}
	s.keepUser(ctx, v, *u)
	return u, nil
}

// UpdateProfile changes the user's name and email.
func (s *AuthService) UpdateProfile(ctx context.Context, v *Visitor, p domain.ProfileUpdate) (*domain.User, error) {
	if !v.Session.Current().Authenticated() {
		return nil, ErrNotAuthenticated
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	if err := s.validator.Struct(p); err != nil {
		return nil, err
	}
	u, err := s.auth.UpdateProfile(v.Session.Context(ctx), p)
	if err != nil {
		return nil, s.expire(ctx, v, err)
	}
	s.keepUser(ctx, v, *u)
	return u, nil
}

// ChangePassword changes the user's password.
func (s *AuthService) ChangePassword(ctx context.Context, v *Visitor, p domain.PasswordChange) error {
	if !v.Session.Current().Authenticated() {
		return ErrNotAuthenticated
	}
	if err := s.validator.Struct(p); err != nil {
		return err
	}
	if err := s.auth.ChangePassword(v.Session.Context(ctx), p); err != nil {
		return s.expire(ctx, v, err)
	}
	return nil
}

// keepUser refreshes the session's user. A storage failure leaves the new
// user in memory and is only logged.
func (s *AuthService) keepUser(ctx context.Context, v *Visitor, u domain.User) {
	if err := v.Session.SetUser(ctx, u); err != nil {
		s.logger.Warn("session not persisted", "visitor", v.ID, "error", err)
	}
}

func (s *AuthService) expire(ctx context.Context, v *Visitor, err error) error {
	return ExpireOnUnauthorized(ctx, v, err, s.logger)
}

// ExpireOnUnauthorized clears the visitor's session when err says the
// bearer token was rejected. It returns err unchanged.
func ExpireOnUnauthorized(ctx context.Context, v *Visitor, err error, logger *slog.Logger) error {
	if errors.Is(err, domain.ErrUnauthorized) {
		logger.Info("token rejected, clearing session", "visitor", v.ID)
		if clearErr := v.Session.Clear(ctx); clearErr != nil {
			logger.Warn("session cleared in memory only", "visitor", v.ID, "error", clearErr)
		}
	}
	return err
}
