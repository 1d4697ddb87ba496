// Package session keeps the single active session of every staff user in Redis.
//
// Two keys describe a session: "session:<sid>" holds the owning user id and
// "user:<uid>:session" holds the current session id. Both carry the same TTL.
// Writes that touch both keys run as Lua scripts so a concurrent login for the
// same user cannot interleave between the delete of the old session and the
// write of the new one.
//
// The scripts derive the displaced "session:<sid>" key from a value read
// inside the script, so not every key they touch is declared in KEYS. That is
// only valid on a single Redis node or a replicated primary. Redis Cluster
// would reject the cross-slot access, and the session id cannot carry the
// user's hash tag because IsSessionLive looks sessions up by id alone.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheUnavailable wraps every transport failure talking to Redis.
var ErrCacheUnavailable = errors.New("session: cache unavailable")

const (
	sessionPrefix = "session:"
	userPrefix    = "user:"
	userSuffix    = ":session"
	scanBatch     = 100
)

const putScript = `
local previous = redis.call("GET", KEYS[2])
if previous and previous ~= ARGV[1] then
  redis.call("DEL", ARGV[4] .. previous)
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ttl)
  redis.call("SET", KEYS[2], ARGV[1], "PX", ttl)
else
  redis.call("SET", KEYS[1], ARGV[2])
  redis.call("SET", KEYS[2], ARGV[1])
end
if previous and previous ~= ARGV[1] then
  return previous
end
return ""
`

const deleteScript = `
local sid = redis.call("GET", KEYS[1])
if not sid then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("DEL", ARGV[1] .. sid)
return 1
`

const touchScript = `
local sid = redis.call("GET", KEYS[1])
if not sid or sid ~= ARGV[3] then
  return 0
end
local ttl = tonumber(ARGV[2])
if ttl > 0 then
  redis.call("PEXPIRE", KEYS[1], ttl)
  redis.call("PEXPIRE", ARGV[1] .. sid, ttl)
else
  redis.call("PERSIST", KEYS[1])
  redis.call("PERSIST", ARGV[1] .. sid)
end
return 1
`

var (
	putLua    = redis.NewScript(putScript)
	deleteLua = redis.NewScript(deleteScript)
	touchLua  = redis.NewScript(touchScript)
)

// Store is the Redis backed session registry.
type Store struct {
	client redis.UniversalClient
}

// NewStore constructs a Store.
func NewStore(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// Put records sid as the only live session of userID. Any previous session of
// the same user is removed in the same atomic step and its id is returned.
// A ttl of zero stores the session without expiry.
func (s *Store) Put(ctx context.Context, sessionID, userID string, ttl time.Duration) (string, error) {
	if sessionID == "" || userID == "" {
		return "", errors.New("session: session id and user id are required")
	}
	displaced, err := putLua.Run(ctx, s.client,
		[]string{sessionKey(sessionID), userKey(userID)},
		sessionID, userID, ttlMillis(ttl), sessionPrefix,
	).Text()
	if err != nil {
		return "", unavailable("put", err)
	}
	return displaced, nil
}

// IsLive reports whether userID currently holds a session.
func (s *Store) IsLive(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Exists(ctx, userKey(userID)).Result()
	if err != nil {
		return false, unavailable("is live", err)
	}
	return n == 1, nil
}

// CurrentSession returns the live session id of userID.
func (s *Store) CurrentSession(ctx context.Context, userID string) (string, bool, error) {
	sid, err := s.client.Get(ctx, userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, unavailable("current session", err)
	}
	return sid, sid != "", nil
}

// IsSessionLive reports whether the session id is still registered.
func (s *Store) IsSessionLive(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return false, unavailable("is session live", err)
	}
	return n == 1, nil
}

// Delete removes both directions of the user's session. It reports whether a
// session existed; deleting twice is not an error.
func (s *Store) Delete(ctx context.Context, userID string) (bool, error) {
	n, err := deleteLua.Run(ctx, s.client, []string{userKey(userID)}, sessionPrefix).Int64()
	if err != nil {
		return false, unavailable("delete", err)
	}
	return n == 1, nil
}

// Touch re-keys the TTL of the user's session when it is still sessionID.
// The identity mapping is left unchanged.
func (s *Store) Touch(ctx context.Context, userID, sessionID string, ttl time.Duration) (bool, error) {
	n, err := touchLua.Run(ctx, s.client, []string{userKey(userID)}, sessionPrefix, ttlMillis(ttl), sessionID).Int64()
	if err != nil {
		return false, unavailable("touch", err)
	}
	return n == 1, nil
}

// ListLiveUserIDs scans the user index. Keys that do not match the layout are skipped.
func (s *Store) ListLiveUserIDs(ctx context.Context) (map[string]struct{}, error) {
	live := make(map[string]struct{})
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, userPrefix+"*"+userSuffix, scanBatch).Result()
		if err != nil {
			return nil, unavailable("list live users", err)
		}
		for _, key := range keys {
			if id, ok := userIDFromKey(key); ok {
				live[id] = struct{}{}
			}
		}
		if next == 0 {
			return live, nil
		}
		cursor = next
	}
}

func sessionKey(sessionID string) string {
	return sessionPrefix + sessionID
}

func userKey(userID string) string {
	return userPrefix + userID + userSuffix
}

func userIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, userPrefix) || !strings.HasSuffix(key, userSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, userPrefix), userSuffix)
	if strings.TrimSpace(id) == "" || strings.Contains(id, ":") {
		return "", false
	}
	return id, true
}

func ttlMillis(ttl time.Duration) string {
	if ttl <= 0 {
		return "0"
	}
	ms := ttl.Milliseconds()
	if ms == 0 {
		ms = 1
	}
	return strconv.FormatInt(ms, 10)
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("session: %s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrCacheUnavailable, op, err)
}
