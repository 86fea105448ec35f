package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	perr "vocabot/internal/platform/errors"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces session keys in redis
const KeyPrefix = "vocabot:session:"

// RedisStore keeps sessions as JSON with a TTL equal to the idle timeout, so
// redis expiry does the job of the sweeper
type RedisStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore wraps an open client
func NewRedisStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, now: time.Now}
}

func key(userID int64) string { return KeyPrefix + strconv.FormatInt(userID, 10) }

// Get loads the session or returns a new Idle one
func (st *RedisStore) Get(ctx context.Context, userID int64) (*Session, error) {
	raw, err := st.rdb.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(userID), nil
	}
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "session get %d", userID)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "session decode %d", userID)
	}
	s.UserID = userID
	return &s, nil
}

// Put stores s with a fresh TTL; Idle sessions are deleted
func (st *RedisStore) Put(ctx context.Context, s *Session) error {
	s.normalize()
	s.UpdatedAt = st.now()
	if s.IsIdle() {
		return st.Delete(ctx, s.UserID)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "session encode %d", s.UserID)
	}
	if err := st.rdb.Set(ctx, key(s.UserID), raw, st.ttl).Err(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "session put %d", s.UserID)
	}
	return nil
}

// Delete removes the session key
func (st *RedisStore) Delete(ctx context.Context, userID int64) error {
	if err := st.rdb.Del(ctx, key(userID)).Err(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "session delete %d", userID)
	}
	return nil
}
