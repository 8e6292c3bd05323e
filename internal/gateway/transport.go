// Package gateway attaches bearer tokens to outgoing backend requests and
// recovers from expired access tokens with a single in-flight refresh per
// session.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/activos-fijos/activos/internal/credentials"
)

// DefaultRefreshTimeout bounds a refresh call when Config leaves it unset.
const DefaultRefreshTimeout = 10 * time.Second

// Refresher exchanges a refresh token for a new credential set.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (credentials.Credentials, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (credentials.Credentials, error)

// Refresh implements Refresher.
func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (credentials.Credentials, error) {
	return f(ctx, refreshToken)
}

// Config collects the gateway dependencies.
type Config struct {
	Base           http.RoundTripper
	Store          credentials.Store
	Refresher      Refresher
	Logger         *slog.Logger
	Metrics        *Metrics
	RefreshTimeout time.Duration
}

// Transport is an http.RoundTripper that authorizes requests with the
// session access token and transparently refreshes it on 401.
type Transport struct {
	base           http.RoundTripper
	store          credentials.Store
	refresher      Refresher
	logger         *slog.Logger
	metrics        *Metrics
	refreshTimeout time.Duration

	mu      sync.Mutex
	flights map[string]*flight
	// settled counts finished refreshes; join re-reads the store when it
	// moves during an unlocked read.
	settled uint64
}

// flight is an in-progress refresh. Its presence in Transport.flights is the
// refreshing flag for that credential key.
type flight struct {
	waiters []chan result
}

type result struct {
	token string
	err   error
}

type ticket struct {
	token string
	lead  bool
	creds credentials.Credentials
	wait  <-chan result
}

// New constructs a Transport.
func New(cfg Config) *Transport {
	base := cfg.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RefreshTimeout
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	return &Transport{
		base:           base,
		store:          cfg.Store,
		refresher:      cfg.Refresher,
		logger:         logger,
		metrics:        cfg.Metrics,
		refreshTimeout: timeout,
		flights:        make(map[string]*flight),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	key := credentials.KeyFromContext(ctx)
	token := t.currentToken(ctx, key)

	resp, err := t.base.RoundTrip(withBearer(req, token))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || IsRetried(ctx) || !rewindable(req) {
		return resp, nil
	}

	fresh, err := t.obtain(ctx, key, token)
	if errors.Is(err, errNoRefreshToken) {
		return resp, nil
	}
	drain(resp)
	if err != nil {
		return nil, err
	}
	return t.replay(req, fresh)
}

// EnsureToken returns a usable access token for the context's credential
// key, silently refreshing when only a refresh token is stored.
func (t *Transport) EnsureToken(ctx context.Context) (string, error) {
	key := credentials.KeyFromContext(ctx)
	creds, err := t.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("gateway: load credentials: %w", err)
	}
	if creds.AccessToken != "" {
		return creds.AccessToken, nil
	}
	token, err := t.obtain(ctx, key, "")
	if errors.Is(err, errNoRefreshToken) {
		return "", ErrUnauthenticated
	}
	return token, err
}

// InFlight reports whether a refresh is in progress for key.
func (t *Transport) InFlight(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.flights[key]
	return ok
}

// obtain yields a token to replace stale: the token rotated by an earlier
// refresh, the result of the in-flight refresh, or a refresh of its own.
func (t *Transport) obtain(ctx context.Context, key, stale string) (string, error) {
	tk, err := t.join(ctx, key, stale)
	if err != nil {
		return "", err
	}
	switch {
	case tk.wait != nil:
		t.metrics.enqueue()
		select {
		case res := <-tk.wait:
			return res.token, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	case tk.lead:
		return t.refresh(ctx, key, tk.creds)
	default:
		return tk.token, nil
	}
}

func (t *Transport) join(ctx context.Context, key, stale string) (ticket, error) {
	for {
		t.mu.Lock()
		if tk, ok := t.enqueueLocked(key); ok {
			t.mu.Unlock()
			return tk, nil
		}
		epoch := t.settled
		t.mu.Unlock()

		// The store may be a network round trip; never read it under mu.
		creds, err := t.store.Get(ctx, key)
		if err != nil {
			return ticket{}, fmt.Errorf("gateway: load credentials: %w", err)
		}

		t.mu.Lock()
		if tk, ok := t.enqueueLocked(key); ok {
			t.mu.Unlock()
			return tk, nil
		}
		if t.settled != epoch {
			// A refresh finished while reading; its tokens may be newer.
			t.mu.Unlock()
			continue
		}
		switch {
		case creds.AccessToken != "" && creds.AccessToken != stale:
			t.mu.Unlock()
			return ticket{token: creds.AccessToken}, nil
		case creds.RefreshToken == "":
			t.mu.Unlock()
			return ticket{}, errNoRefreshToken
		}
		t.flights[key] = &flight{}
		t.mu.Unlock()
		return ticket{lead: true, creds: creds}, nil
	}
}

// enqueueLocked registers a waiter on the in-flight refresh of key, if any.
func (t *Transport) enqueueLocked(key string) (ticket, bool) {
	f, ok := t.flights[key]
	if !ok {
		return ticket{}, false
	}
	ch := make(chan result, 1)
	f.waiters = append(f.waiters, ch)
	return ticket{wait: ch}, true
}

func (t *Transport) refresh(ctx context.Context, key string, creds credentials.Credentials) (token string, err error) {
	settled := false
	defer func() {
		if !settled {
			t.settle(key, result{err: &RefreshError{Key: key, Err: errors.New("refresh aborted")}})
		}
	}()

	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.refreshTimeout)
	defer cancel()

	logger := t.logger.With(slog.String("credential_key", key))
	logger.Debug("refreshing access token")

	next, err := t.refresher.Refresh(MarkRetried(refreshCtx), creds.RefreshToken)
	if err == nil && next.AccessToken == "" {
		err = errors.New("refresh returned no access token")
	}
	if err == nil {
		next.RememberMe = creds.RememberMe
		if next.RefreshToken == "" {
			next.RefreshToken = creds.RefreshToken
		}
		if next.User.ID == 0 {
			next.User = creds.User
		}
		err = t.store.Set(refreshCtx, key, next)
	}

	settled = true
	if err != nil {
		rerr := &RefreshError{Key: key, Err: err}
		t.metrics.refresh("failure")
		logger.Warn("access token refresh failed", slog.Any("error", err))
		t.settle(key, result{err: rerr})
		return "", rerr
	}
	t.metrics.refresh("success")
	logger.Info("access token refreshed", slog.Int64("user_id", next.User.ID))
	t.settle(key, result{token: next.AccessToken})
	return next.AccessToken, nil
}

// settle clears the refreshing flag and hands res to every waiter in
// enqueue order. Waiter channels are buffered so settling never blocks.
func (t *Transport) settle(key string, res result) {
	t.mu.Lock()
	f := t.flights[key]
	delete(t.flights, key)
	t.settled++
	t.mu.Unlock()
	if f == nil {
		return
	}
	for _, ch := range f.waiters {
		ch <- res
	}
}

func (t *Transport) pending(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f, ok := t.flights[key]; ok {
		return len(f.waiters)
	}
	return 0
}

func (t *Transport) replay(req *http.Request, token string) (*http.Response, error) {
	retry := req.Clone(MarkRetried(req.Context()))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("gateway: rewind body: %w", err)
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.base.RoundTrip(retry)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	t.metrics.replay(status)
	return resp, err
}

func (t *Transport) currentToken(ctx context.Context, key string) string {
	creds, err := t.store.Get(ctx, key)
	if err != nil {
		t.logger.Warn("gateway: load credentials", slog.String("credential_key", key), slog.Any("error", err))
		return ""
	}
	return creds.AccessToken
}

func withBearer(req *http.Request, token string) *http.Request {
	if token == "" {
		return req
	}
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return out
}

func rewindable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}

var _ http.RoundTripper = (*Transport)(nil)
