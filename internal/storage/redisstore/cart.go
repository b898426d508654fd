// Package redisstore keeps shopper carts in Redis, keyed by session id.
package redisstore

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/cart"
)

const keyPrefix = "parrainage:cart:"

var (
	_ cart.Store  = (*CartStore)(nil)
	_ cart.Syncer = (*CartStore)(nil)
)

// Connect creates a client from a redis:// URL or a plain host:port address.
func Connect(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// CartStore stores each session's cart as a JSON array of lines.
type CartStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCartStore returns a CartStore whose carts expire ttl after their last
// update. A zero ttl keeps carts forever.
func NewCartStore(client redis.UniversalClient, ttl time.Duration) *CartStore {
	return &CartStore{client: client, ttl: ttl}
}

func cartKey(sessionID string) string {
	return keyPrefix + sessionID
}

// Lines returns the lines of the session's cart, or cart.ErrNoCart when the
// session has none.
func (s *CartStore) Lines(ctx context.Context, sessionID string) ([]cart.Line, error) {
	if sessionID == "" {
		return nil, cart.ErrNoCart
	}
	data, err := s.client.Get(ctx, cartKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cart.ErrNoCart
		}
		return nil, errors.Wrapf(err, "get cart of session %q", sessionID)
	}

	var lines []cart.Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, errors.Wrapf(err, "decode cart of session %q", sessionID)
	}
	return lines, nil
}

// Replace overwrites the session's cart and refreshes its expiry.
func (s *CartStore) Replace(ctx context.Context, sessionID string, lines []cart.Line) error {
	if lines == nil {
		lines = []cart.Line{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return errors.Wrap(err, "encode cart")
	}
	if err := s.client.Set(ctx, cartKey(sessionID), data, s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "set cart of session %q", sessionID)
	}
	return nil
}

// Ping checks the connection to Redis.
func (s *CartStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
