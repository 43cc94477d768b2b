package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps every Redis transport failure. Callers must treat it
// as retryable infrastructure trouble, never as an empty registry.
var ErrUnavailable = errors.New("redis unavailable")

// ErrNotFound is returned when a session id does not resolve to a live blob.
var ErrNotFound = errors.New("session not found")

// tieWindow bounds the insertion-order tie-break folded into index scores.
// Scores are createdAtMillis*tieWindow+tie, which stays inside the 2^53
// range Redis sorted-set scores represent exactly. tie is the dense rank of
// the session among the principal's sessions created in the same
// millisecond, assigned inside the registration scripts, so ordering is
// exact regardless of how many sessions any other principal created.
const tieWindow = 4096

const enforceQuotaScript = `
local index_key = KEYS[1]
local blob_prefix = ARGV[1]
local session_id = ARGV[2]
local blob = ARGV[3]
local ttl_ms = tonumber(ARGV[4])
local max_sessions = tonumber(ARGV[5])
local prevent = ARGV[6] == "1"
local created_ms = tonumber(ARGV[7])

-- Index members whose blob already expired are dead; drop them before
-- counting so a crashed session never blocks a new login.
local members = redis.call("ZRANGE", index_key, 0, -1)
for _, id in ipairs(members) do
  if id ~= session_id and redis.call("EXISTS", blob_prefix .. id) == 0 then
    redis.call("ZREM", index_key, id)
  end
end

local already = redis.call("ZSCORE", index_key, session_id)
local live = redis.call("ZCARD", index_key)
if already then
  live = live - 1
end

local result = {0}

if max_sessions > 0 then
  if prevent then
    if live >= max_sessions then
      return {1}
    end
  else
    while live >= max_sessions do
      local oldest = redis.call("ZRANGE", index_key, 0, 0)
      if #oldest == 0 or oldest[1] == session_id then
        break
      end
      redis.call("ZREM", index_key, oldest[1])
      redis.call("DEL", blob_prefix .. oldest[1])
      result[#result + 1] = oldest[1]
      live = live - 1
    end
  end
end

if not already then
  local base = created_ms * 4096
  local top = redis.call("ZREVRANGEBYSCORE", index_key, base + 4095, base, "WITHSCORES", "LIMIT", 0, 1)
  local tie = 0
  if top[1] then
    tie = tonumber(top[2]) - base + 1
    if tie > 4095 then
      tie = 4095
    end
  end
  redis.call("ZADD", index_key, "NX", base + tie, session_id)
end
redis.call("SET", blob_prefix .. session_id, blob, "PX", ttl_ms)

return result
`

var enforceQuotaLua = redis.NewScript(enforceQuotaScript)

// registerScript assigns the same per-millisecond tie-broken score as the
// quota script, without touching blobs.
const registerScript = `
local index_key = KEYS[1]
local session_id = ARGV[1]
local base = tonumber(ARGV[2]) * 4096
local top = redis.call("ZREVRANGEBYSCORE", index_key, base + 4095, base, "WITHSCORES", "LIMIT", 0, 1)
local tie = 0
if top[1] then
  tie = tonumber(top[2]) - base + 1
  if tie > 4095 then
    tie = 4095
  end
end
return redis.call("ZADD", index_key, "NX", base + tie, session_id)
`

var registerLua = redis.NewScript(registerScript)

const saveScript = `
local index_key = KEYS[1]
local blob_key = KEYS[2]
local session_id = ARGV[1]
local base = tonumber(ARGV[2]) * 4096
local top = redis.call("ZREVRANGEBYSCORE", index_key, base + 4095, base, "WITHSCORES", "LIMIT", 0, 1)
local tie = 0
if top[1] then
  tie = tonumber(top[2]) - base + 1
  if tie > 4095 then
    tie = 4095
  end
end
redis.call("ZADD", index_key, "NX", base + tie, session_id)
redis.call("SET", blob_key, ARGV[3], "PX", ARGV[4])
return 1
`

var saveLua = redis.NewScript(saveScript)

const unregisterScript = `
redis.call("ZREM", KEYS[2], ARGV[1])
return redis.call("DEL", KEYS[1])
`

var unregisterLua = redis.NewScript(unregisterScript)

// Store is the Redis-backed session store and per-principal registry.
type Store struct {
	redis   redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// NewStore creates a session Store backed by the given Redis client. prefix
// namespaces every key; timeout bounds each registry round-trip.
func NewStore(client redis.UniversalClient, prefix string, timeout time.Duration) *Store {
	return &Store{
		redis:   client,
		prefix:  prefix,
		timeout: timeout,
	}
}

func (s *Store) blobKey(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) blobPrefix() string {
	return s.prefix + ":s:"
}

func (s *Store) indexKey(principalID string) string {
	return s.prefix + ":p:" + principalID
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// QuotaResult is the outcome of EnforceQuota.
type QuotaResult struct {
	// Rejected is true when the policy refused the new login outright.
	Rejected bool
	// Evicted lists session ids invalidated to make room, oldest first.
	Evicted []string
}

// EnforceQuota registers a new session subject to the per-principal cap in
// one atomic script: prune dead index entries, count live sessions, then
// either reject the login (preventNew) or evict oldest-first until the new
// session fits, and finally persist blob and index entry.
//
// Re-running with the same session id is idempotent: the session keeps its
// original registration order and is never evicted to make room for itself.
func (s *Store) EnforceQuota(
	ctx context.Context,
	sess *Session,
	ttl time.Duration,
	maxSessions int,
	preventNew bool,
) (QuotaResult, error) {
	var res QuotaResult

	blob, err := Encode(sess)
	if err != nil {
		return res, err
	}

	preventFlag := "0"
	if preventNew {
		preventFlag = "1"
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	raw, err := enforceQuotaLua.Run(
		ctx,
		s.redis,
		[]string{s.indexKey(sess.PrincipalID)},
		s.blobPrefix(),
		sess.SessionID,
		blob,
		ttl.Milliseconds(),
		maxSessions,
		preventFlag,
		sess.CreatedAt,
	).Result()
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	parts, ok := raw.([]interface{})
	if !ok || len(parts) == 0 {
		return res, fmt.Errorf("%w: invalid quota script response", ErrUnavailable)
	}

	status, ok := parts[0].(int64)
	if !ok {
		return res, fmt.Errorf("%w: invalid quota script status", ErrUnavailable)
	}
	if status == 1 {
		res.Rejected = true
		return res, nil
	}

	for _, part := range parts[1:] {
		switch v := part.(type) {
		case string:
			res.Evicted = append(res.Evicted, v)
		case []byte:
			res.Evicted = append(res.Evicted, string(v))
		}
	}
	return res, nil
}

// Save persists a session blob and its registry entry without quota
// enforcement. Login goes through EnforceQuota; Save exists for attribute
// rewrites and tests.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	blob, err := Encode(sess)
	if err != nil {
		return err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	keys := []string{s.indexKey(sess.PrincipalID), s.blobKey(sess.SessionID)}
	err = saveLua.Run(ctx, s.redis, keys, sess.SessionID, sess.CreatedAt, blob, ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Register adds a session id to a principal's registry index. Idempotent per
// session id: re-registering keeps the original insertion order.
func (s *Store) Register(ctx context.Context, principalID, sessionID string, createdAt time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	keys := []string{s.indexKey(principalID)}
	err := registerLua.Run(ctx, s.redis, keys, sessionID, createdAt.UnixMilli()).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Unregister invalidates a session: the blob is deleted and the registry
// index entry removed atomically. Unknown session ids are a no-op.
func (s *Store) Unregister(ctx context.Context, sessionID string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	data, err := s.redis.Get(ctx, s.blobKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Blob already gone. A stale index entry, if any, is pruned
			// lazily by SessionsOf and the quota script.
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		// Corrupt blob: delete the key anyway so the token dies.
		if delErr := s.redis.Del(ctx, s.blobKey(sessionID)).Err(); delErr != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, delErr)
		}
		return nil
	}

	keys := []string{s.blobKey(sessionID), s.indexKey(sess.PrincipalID)}
	if err := unregisterLua.Run(ctx, s.redis, keys, sessionID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SessionsOf returns the principal's live session ids ordered by creation
// time, oldest first. Dead index entries found along the way are pruned.
func (s *Store) SessionsOf(ctx context.Context, principalID string) ([]string, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	ids, err := s.redis.ZRange(ctx, s.indexKey(principalID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	pipe := s.redis.Pipeline()
	existsCmds := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		existsCmds[i] = pipe.Exists(ctx, s.blobKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	live := make([]string, 0, len(ids))
	var dead []interface{}
	for i, cmd := range existsCmds {
		n, cmdErr := cmd.Result()
		if cmdErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, cmdErr)
		}
		if n == 1 {
			live = append(live, ids[i])
		} else {
			dead = append(dead, ids[i])
		}
	}

	if len(dead) > 0 {
		if err := s.redis.ZRem(ctx, s.indexKey(principalID), dead...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return live, nil
}

// Delete removes a session blob without touching the registry index; the
// index entry is pruned lazily. Unregister is the usual path, Delete exists
// for cleanup tooling.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.redis.Del(ctx, s.blobKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Touch resets a session's idle window without reading or rewriting the
// blob.
func (s *Store) Touch(ctx context.Context, sessionID string, idleTimeout time.Duration) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	ok, err := s.redis.PExpire(ctx, s.blobKey(sessionID), idleTimeout).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Exists reports whether a session blob is currently live.
func (s *Store) Exists(ctx context.Context, sessionID string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	n, err := s.redis.Exists(ctx, s.blobKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

// Get fetches a session and slides its idle window: the last-access
// timestamp is rewritten and the TTL reset to idleTimeout.
func (s *Store) Get(ctx context.Context, sessionID string, idleTimeout time.Duration) (*Session, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	sess, err := s.fetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sess.LastAccessedAt = time.Now().UnixMilli()
	blob, err := Encode(sess)
	if err != nil {
		return nil, err
	}
	// XX: the refresh only lands on a still-live key. A plain SET would
	// recreate the blob if the enforcer or a logout deleted it between the
	// read and the write, resurrecting an invalidated session.
	err = s.redis.SetArgs(ctx, s.blobKey(sessionID), blob, redis.SetArgs{
		Mode: "XX",
		TTL:  idleTimeout,
	}).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Died mid-resolve; treat as never found.
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return sess, nil
}

// GetReadOnly fetches a session without touching TTL or last-access state.
func (s *Store) GetReadOnly(ctx context.Context, sessionID string) (*Session, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return s.fetch(ctx, sessionID)
}

func (s *Store) fetch(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.blobKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		// A blob this store cannot read is as good as absent; the token is
		// treated as anonymous rather than surfacing a server error.
		return nil, ErrNotFound
	}
	sess.SessionID = sessionID
	return sess, nil
}

// PutAttribute rewrites one attribute on a live session, preserving the
// remaining TTL. The write goes through SET XX KEEPTTL, so a session deleted
// between the read and the write stays dead.
//
// ATOMICITY NOTE: still read-modify-write for the bag itself. Concurrent
// attribute writes to the same session may lose one update; the attribute
// bag is advisory state, not part of the enforcement invariant.
func (s *Store) PutAttribute(ctx context.Context, sessionID, key, value string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	sess, err := s.fetch(ctx, sessionID)
	if err != nil {
		return err
	}

	if sess.Attributes == nil {
		sess.Attributes = make(map[string]string, 1)
	}
	sess.Attributes[key] = value

	blob, err := Encode(sess)
	if err != nil {
		return err
	}
	err = s.redis.SetArgs(ctx, s.blobKey(sessionID), blob, redis.SetArgs{
		Mode:    "XX",
		KeepTTL: true,
	}).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Ping reports point-in-time registry availability and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}
