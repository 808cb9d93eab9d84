package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pccr10001/smsfleet/internal/config"
)

// RefreshStore keeps refresh tokens in redis so they survive server
// restarts and can be revoked centrally.
type RefreshStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRefreshStore(client *redis.Client) *RefreshStore {
	cfg := config.AppConfig
	return &RefreshStore{
		client: client,
		prefix: cfg.Redis.InstanceName + ":refresh:",
		ttl:    time.Duration(cfg.JWT.RefreshTokenDays) * 24 * time.Hour,
	}
}

// Issue creates a fresh opaque refresh token bound to the user.
func (s *RefreshStore) Issue(ctx context.Context, userID uint) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := hex.EncodeToString(raw)
	if err := s.client.Set(ctx, s.prefix+token, strconv.FormatUint(uint64(userID), 10), s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Redeem consumes a refresh token, returning the bound user id. The
// token is deleted so each one is usable once.
func (s *RefreshStore) Redeem(ctx context.Context, token string) (uint, error) {
	key := s.prefix + token
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, fmt.Errorf("refresh token not found or expired")
	}
	if err != nil {
		return 0, err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("corrupt refresh token binding")
	}
	return uint(id), nil
}

// Revoke drops a token without redeeming it.
func (s *RefreshStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.prefix+token).Err()
}
