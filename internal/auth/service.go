package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/activos-fijos/activos/internal/backend"
	"github.com/activos-fijos/activos/internal/credentials"
	"github.com/activos-fijos/activos/internal/shared"
)

// API is the slice of the backend client used by the auth flow.
type API interface {
	Login(ctx context.Context, email, password string, remember bool) (backend.Session, error)
	Refresh(ctx context.Context, refreshToken string) (backend.Session, error)
	Logout(ctx context.Context, userID int64) error
}

// Service wraps the login, logout and token refresh flows. It is the only
// writer of credentials besides the gateway.
type Service struct {
	public API
	authed API
	store  credentials.Store
	logger *slog.Logger
}

// NewService constructs a new Service. public must not route through the
// gateway; authed should, so logout survives an expired access token.
func NewService(public, authed API, store credentials.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if authed == nil {
		authed = public
	}
	return &Service{public: public, authed: authed, store: store, logger: logger}
}

// Login authenticates against the backend and stores the session under key.
func (s *Service) Login(ctx context.Context, key, email, password string, remember bool) (credentials.User, error) {
	session, err := s.public.Login(ctx, email, password, remember)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) || errors.Is(err, backend.ErrNotFound) || errors.Is(err, backend.ErrValidation) {
			return credentials.User{}, shared.ErrInvalidCredentials
		}
		return credentials.User{}, fmt.Errorf("auth: login: %w", err)
	}
	if session.AccessToken == "" {
		return credentials.User{}, errors.New("auth: login answered without access token")
	}
	if err := s.store.Set(ctx, key, session.Credentials(remember)); err != nil {
		return credentials.User{}, fmt.Errorf("auth: store credentials: %w", err)
	}
	s.logger.Info("user logged in", slog.Int64("user_id", session.User.ID), slog.Bool("remember", remember))
	return session.User, nil
}

// Logout invalidates the backend session best-effort and clears key.
func (s *Service) Logout(ctx context.Context, key string) error {
	creds, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("load credentials for logout", slog.Any("error", err))
	}
	if creds.User.ID != 0 && !creds.Empty() {
		if err := s.authed.Logout(credentials.WithKey(ctx, key), creds.User.ID); err != nil {
			s.logger.Warn("backend logout", slog.Int64("user_id", creds.User.ID), slog.Any("error", err))
		}
	}
	if err := s.store.Clear(ctx, key); err != nil {
		return fmt.Errorf("auth: clear credentials: %w", err)
	}
	return nil
}

// Refresh exchanges a refresh token; it implements gateway.Refresher.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (credentials.Credentials, error) {
	session, err := s.public.Refresh(ctx, refreshToken)
	if err != nil {
		return credentials.Credentials{}, err
	}
	return session.Credentials(false), nil
}
