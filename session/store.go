package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when a Redis command fails.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrStaleWrite is returned by [Store.Save] when the stored session for the same user
// already expires later than the one being written.
var ErrStaleWrite = errors.New("stale session write")

// ErrCorruptSession is returned when a stored blob cannot be decoded.
var ErrCorruptSession = errors.New("stored session corrupt")

const (
	fieldBlob   = "blob"
	fieldExpiry = "exp"
	fieldUser   = "uid"
)

// saveSessionScript writes the session hash unless the stored entry belongs to the same
// user and expires later. Two concurrent refreshes can finish out of order; the older
// token must not win.
const saveSessionScript = `
local stored_uid = redis.call("HGET", KEYS[1], "uid")
local stored_exp = tonumber(redis.call("HGET", KEYS[1], "exp") or "0")
local next_exp = tonumber(ARGV[2])
if stored_uid and stored_uid == ARGV[3] and stored_exp > next_exp and next_exp > 0 then
  return 0
end
redis.call("HSET", KEYS[1], "blob", ARGV[1], "exp", ARGV[2], "uid", ARGV[3])
local ttl = tonumber(ARGV[4])
if ttl > 0 then
  redis.call("PEXPIRE", KEYS[1], ttl)
else
  redis.call("PERSIST", KEYS[1])
end
return 1
`

var saveSessionLua = redis.NewScript(saveSessionScript)

// Store persists sessions in Redis hashes keyed by a caller-chosen storage key.
//
//	Performance: Save is one EVALSHA; Load is one HGET.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a [Store]. prefix namespaces every key.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "gs"
	}
	return &Store{
		redis:  client,
		prefix: prefix,
	}
}

func (s *Store) key(name string) string {
	return s.prefix + ":session:" + name
}

// Save writes sess under key. ttl <= 0 keeps the entry until it is deleted.
func (s *Store) Save(ctx context.Context, key string, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	var exp int64
	if !sess.ExpiresAt.IsZero() {
		exp = sess.ExpiresAt.UnixMilli()
	}
	res, err := saveSessionLua.Run(ctx, s.redis,
		[]string{s.key(key)},
		data,
		strconv.FormatInt(exp, 10),
		sess.UserID,
		strconv.FormatInt(ttl.Milliseconds(), 10),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if res == 0 {
		return ErrStaleWrite
	}
	return nil
}

// Load returns the session stored under key, or nil when there is none.
func (s *Store) Load(ctx context.Context, key string) (*Session, error) {
	data, err := s.redis.HGet(ctx, s.key(key), fieldBlob).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	return sess, nil
}

// Delete removes the session stored under key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// TTL returns the remaining lifetime of key. It returns -1 for entries without expiry
// and -2 when the key does not exist, mirroring Redis PTTL.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.redis.PTTL(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ttl, nil
}
