package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldRefreshToken = "refresh_token"
	fieldRememberMe   = "remember_me"
	fieldUser         = "user"
)

// RedisStore keeps credentials in Redis so every dashboard replica observes
// the same tokens. The refresh token, remember-me flag and user live in one
// hash; the access token lives in its own key and expires with its exp claim.
type RedisStore struct {
	client      *redis.Client
	sessionTTL  time.Duration
	rememberTTL time.Duration
	now         func() time.Time
}

// NewRedisStore constructs a RedisStore. sessionTTL bounds sessions without
// remember-me; rememberTTL is used when a remembered refresh token carries no
// expiry.
func NewRedisStore(client *redis.Client, sessionTTL, rememberTTL time.Duration) *RedisStore {
	return &RedisStore{client: client, sessionTTL: sessionTTL, rememberTTL: rememberTTL, now: time.Now}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (Credentials, error) {
	var (
		record *redis.MapStringStringCmd
		access *redis.StringCmd
	)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		record = pipe.HGetAll(ctx, recordKey(key))
		access = pipe.Get(ctx, accessKey(key))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return Credentials{}, fmt.Errorf("credentials: load %s: %w", key, err)
	}

	var creds Credentials
	fields, err := record.Result()
	if err != nil {
		return Credentials{}, fmt.Errorf("credentials: load record: %w", err)
	}
	if token, err := access.Result(); err == nil {
		creds.AccessToken = token
	} else if !errors.Is(err, redis.Nil) {
		return Credentials{}, fmt.Errorf("credentials: load access token: %w", err)
	}
	if len(fields) == 0 {
		return creds, nil
	}
	creds.RefreshToken = fields[fieldRefreshToken]
	creds.RememberMe = fields[fieldRememberMe] == "1"
	if raw := fields[fieldUser]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &creds.User); err != nil {
			return Credentials{}, fmt.Errorf("credentials: decode user: %w", err)
		}
	}
	return creds, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, creds Credentials) error {
	user, err := json.Marshal(creds.User)
	if err != nil {
		return fmt.Errorf("credentials: encode user: %w", err)
	}
	remember := "0"
	if creds.RememberMe {
		remember = "1"
	}
	recordTTL := s.recordTTL(creds)
	accessTTL := s.tokenTTL(creds.AccessToken, recordTTL)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, recordKey(key))
		pipe.HSet(ctx, recordKey(key), map[string]any{
			fieldRefreshToken: creds.RefreshToken,
			fieldRememberMe:   remember,
			fieldUser:         string(user),
		})
		pipe.Expire(ctx, recordKey(key), recordTTL)
		if creds.AccessToken == "" {
			pipe.Del(ctx, accessKey(key))
		} else {
			pipe.Set(ctx, accessKey(key), creds.AccessToken, accessTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("credentials: store %s: %w", key, err)
	}
	return nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, recordKey(key), accessKey(key)).Err(); err != nil {
		return fmt.Errorf("credentials: clear %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) recordTTL(creds Credentials) time.Duration {
	if !creds.RememberMe {
		return s.sessionTTL
	}
	return s.tokenTTL(creds.RefreshToken, s.rememberTTL)
}

// tokenTTL derives a key lifetime from the token's exp claim, falling back
// when the token is opaque or already expired.
func (s *RedisStore) tokenTTL(token string, fallback time.Duration) time.Duration {
	exp, ok := ExpiresAt(token)
	if !ok {
		return fallback
	}
	ttl := exp.Sub(s.now())
	if ttl <= 0 {
		return fallback
	}
	if fallback > 0 && ttl > fallback {
		return fallback
	}
	return ttl
}

func recordKey(key string) string {
	return "creds:" + key
}

func accessKey(key string) string {
	return "creds:" + key + ":access"
}

var _ Store = (*RedisStore)(nil)
