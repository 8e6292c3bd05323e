package backend

import (
	"context"

	"github.com/activos-fijos/activos/internal/credentials"
)

// Session is the token pair answered by login and refresh.
type Session struct {
	User         credentials.User `json:"user"`
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
}

// Credentials converts the session into storable credentials.
func (s Session) Credentials(remember bool) credentials.Credentials {
	return credentials.Credentials{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		User:         s.User,
		RememberMe:   remember,
	}
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type refreshRequest struct {
	Token string `json:"token"`
}

// Login exchanges email and password for a session.
func (c *Client) Login(ctx context.Context, email, password string, remember bool) (Session, error) {
	var session Session
	err := c.post(ctx, "/auth", loginRequest{Email: email, Password: password, RememberMe: remember}, &session)
	return session, err
}

// Refresh exchanges a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	var session Session
	err := c.post(ctx, "/auth/refresh-token", refreshRequest{Token: refreshToken}, &session)
	return session, err
}

// Logout invalidates the server-side session of a user.
func (c *Client) Logout(ctx context.Context, userID int64) error {
	return c.delete(ctx, pathf("/auth/logout/%s", userID))
}
