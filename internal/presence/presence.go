// Package presence records which users hold live realtime connections.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Keys used:
// - <prefix>:conn:<userID> set of connection ids
// - <prefix>:presence:<userID> json {status,last_seen}

type Status struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

// Store keeps presence in redis. Both keys expire after ttl unless the
// connection's owner calls Refresh, so a crashed node cannot leave users
// online forever.
type Store struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewStore(client redis.Cmdable, prefix string, ttl time.Duration) *Store {
	return &Store{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

// TTL is how long a user stays online without a Refresh.
func (s *Store) TTL() time.Duration { return s.ttl }

// Connect opens a client from a redis:// URL and checks it answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

func (s *Store) connKey(userID string) string     { return fmt.Sprintf("%s:conn:%s", s.prefix, userID) }
func (s *Store) presenceKey(userID string) string { return fmt.Sprintf("%s:presence:%s", s.prefix, userID) }

// Online adds connID to the user's live connections and marks them online.
func (s *Store) Online(ctx context.Context, userID, connID string) error {
	return s.touch(ctx, userID, connID)
}

// Refresh extends the user's presence while connID is still open. It also
// restores the connection if its entry already expired.
func (s *Store) Refresh(ctx context.Context, userID, connID string) error {
	return s.touch(ctx, userID, connID)
}

func (s *Store) touch(ctx context.Context, userID, connID string) error {
	key := s.connKey(userID)
	if err := s.client.SAdd(ctx, key, connID).Err(); err != nil {
		return err
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return err
	}
	return s.set(ctx, userID, "online", s.ttl)
}

// Offline removes connID and marks the user offline once no connection is left.
func (s *Store) Offline(ctx context.Context, userID, connID string) error {
	key := s.connKey(userID)
	if err := s.client.SRem(ctx, key, connID).Err(); err != nil {
		return err
	}
	n, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return s.set(ctx, userID, "offline", 0)
}

// Get returns the stored status; users never seen are reported offline.
func (s *Store) Get(ctx context.Context, userID string) (Status, error) {
	b, err := s.client.Get(ctx, s.presenceKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Status{Status: "offline"}, nil
	}
	if err != nil {
		return Status{}, err
	}
	var st Status
	if err := json.Unmarshal(b, &st); err != nil {
		return Status{}, err
	}
	return st, nil
}

func (s *Store) set(ctx context.Context, userID, status string, ttl time.Duration) error {
	b, err := json.Marshal(Status{Status: status, LastSeen: s.now().Unix()})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.presenceKey(userID), b, ttl).Err()
}
