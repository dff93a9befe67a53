package pushsub

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash per subscription, a set of subscription ids and
// an endpoint index hash per user, and two sorted sets ordering active
// subscriptions by last-active time and inactive ones by deactivation time.
//
//	{prefix}:pushsub:sub:{id}            hash
//	{prefix}:pushsub:user:{user}         set of ids
//	{prefix}:pushsub:endpoints:{user}    hash endpoint -> id
//	{prefix}:pushsub:active              zset id -> last_active_at
//	{prefix}:pushsub:inactive            zset id -> deactivated_at
type RedisStore struct {
	db     redis.UniversalClient
	prefix string
}

// NewRedisStore uses prefix as the key namespace; empty means "notifyhub".
func NewRedisStore(db redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "notifyhub"
	}
	return &RedisStore{db: db, prefix: prefix + ":pushsub"}
}

func (s *RedisStore) subKey(id string) string {
	return s.prefix + ":sub:" + id
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":user:" + userID
}

func (s *RedisStore) endpointsKey(userID string) string {
	return s.prefix + ":endpoints:" + userID
}

func (s *RedisStore) activeKey() string {
	return s.prefix + ":active"
}

func (s *RedisStore) inactiveKey() string {
	return s.prefix + ":inactive"
}

func (s *RedisStore) Upsert(ctx context.Context, sub Subscription) (Subscription, error) {
	if sub.UserID == "" {
		return Subscription{}, ErrMissingUserID
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}

	// The endpoint index decides which id owns the (user, endpoint) pair.
	claimed, err := s.db.HSetNX(ctx, s.endpointsKey(sub.UserID), sub.Endpoint, sub.ID).Result()
	if err != nil {
		return Subscription{}, err
	}
	if !claimed {
		id, err := s.db.HGet(ctx, s.endpointsKey(sub.UserID), sub.Endpoint).Result()
		if err != nil {
			return Subscription{}, err
		}
		existing, err := s.Get(ctx, id)
		switch {
		case err == nil:
			sub.ID = existing.ID
			sub.CreatedAt = existing.CreatedAt
		case errors.Is(err, ErrSubscriptionNotFound):
			// Index points at a purged record; reuse its id.
			sub.ID = id
		default:
			return Subscription{}, err
		}
	}

	sub.Active = true
	sub.DeactivatedAt = nil
	sub.DeactivationReason = ""

	_, err = s.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := s.subKey(sub.ID)
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, toHash(sub))
		pipe.SAdd(ctx, s.userKey(sub.UserID), sub.ID)
		pipe.HSet(ctx, s.endpointsKey(sub.UserID), sub.Endpoint, sub.ID)
		pipe.ZRem(ctx, s.inactiveKey(), sub.ID)
		pipe.ZAdd(ctx, s.activeKey(), redis.Z{Score: score(sub.LastActiveAt), Member: sub.ID})
		return nil
	})
	if err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Subscription, error) {
	fields, err := s.db.HGetAll(ctx, s.subKey(id)).Result()
	if err != nil {
		return Subscription{}, err
	}
	if len(fields) == 0 {
		return Subscription{}, ErrSubscriptionNotFound
	}
	return fromHash(fields), nil
}

func (s *RedisStore) ListActive(ctx context.Context, userID string) ([]Subscription, error) {
	ids, err := s.db.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	subs, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := subs[:0]
	for _, sub := range subs {
		if sub.Active {
			out = append(out, sub)
		}
	}
	sortByCreated(out)
	return out, nil
}

// deactivateScript flips active to 0 only when it is 1, so concurrent
// callers agree on a single winner.
var deactivateScript = redis.NewScript(`
local active = redis.call("HGET", KEYS[1], "active")
if not active then
	return -1
end
if active ~= "1" then
	return 0
end
redis.call("HSET", KEYS[1], "active", "0", "deactivated_at", ARGV[2], "deactivation_reason", ARGV[3])
redis.call("ZREM", KEYS[2], ARGV[1])
redis.call("ZADD", KEYS[3], ARGV[4], ARGV[1])
return 1
`)

func (s *RedisStore) Deactivate(ctx context.Context, id string, reason Reason, at time.Time) (bool, error) {
	res, err := deactivateScript.Run(ctx, s.db,
		[]string{s.subKey(id), s.activeKey(), s.inactiveKey()},
		id, formatTime(at), string(reason), score(at),
	).Int()
	if err != nil {
		return false, err
	}
	switch res {
	case -1:
		return false, ErrSubscriptionNotFound
	case 0:
		return false, nil
	default:
		return true, nil
	}
}

// touchScript updates a subscription only while its hash exists, so a touch
// racing a purge cannot resurrect a partial record.
var touchScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], "last_active_at", ARGV[2])
redis.call("ZADD", KEYS[2], "XX", ARGV[3], ARGV[1])
return 1
`)

func (s *RedisStore) Touch(ctx context.Context, id string, at time.Time) error {
	res, err := touchScript.Run(ctx, s.db,
		[]string{s.subKey(id), s.activeKey()},
		id, formatTime(at), score(at),
	).Int()
	if err != nil {
		return err
	}
	if res == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (s *RedisStore) ListInactiveSince(ctx context.Context, t time.Time) ([]Subscription, error) {
	ids, err := s.db.ZRangeByScore(ctx, s.activeKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatFloat(score(t), 'f', 0, 64),
	}).Result()
	if err != nil {
		return nil, err
	}
	subs, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortByCreated(subs)
	return subs, nil
}

func (s *RedisStore) Purge(ctx context.Context, t time.Time) (int, error) {
	ids, err := s.db.ZRangeByScore(ctx, s.inactiveKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatFloat(score(t), 'f', 0, 64),
	}).Result()
	if err != nil {
		return 0, err
	}
	subs, err := s.load(ctx, ids)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, sub := range subs {
		if sub.Active {
			continue
		}
		ok, err := s.purgeOne(ctx, sub)
		if err != nil {
			return purged, err
		}
		if ok {
			purged++
		}
	}
	return purged, nil
}

// purgeScript deletes a subscription only while it is still inactive. The
// endpoint index entry is dropped only when it still points at this id.
var purgeScript = redis.NewScript(`
local active = redis.call("HGET", KEYS[1], "active")
if active ~= "0" then
	if not active then
		redis.call("ZREM", KEYS[4], ARGV[1])
	end
	return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if redis.call("HGET", KEYS[3], ARGV[2]) == ARGV[1] then
	redis.call("HDEL", KEYS[3], ARGV[2])
end
redis.call("ZREM", KEYS[4], ARGV[1])
return 1
`)

// purgeOne removes sub unless it was reactivated since it was loaded.
func (s *RedisStore) purgeOne(ctx context.Context, sub Subscription) (bool, error) {
	res, err := purgeScript.Run(ctx, s.db,
		[]string{s.subKey(sub.ID), s.userKey(sub.UserID), s.endpointsKey(sub.UserID), s.inactiveKey()},
		sub.ID, sub.Endpoint,
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (s *RedisStore) load(ctx context.Context, ids []string) ([]Subscription, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := s.db.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.subKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]Subscription, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		out = append(out, fromHash(fields))
	}
	return out, nil
}

func toHash(sub Subscription) map[string]any {
	active := "0"
	if sub.Active {
		active = "1"
	}
	h := map[string]any{
		"id":             sub.ID,
		"user_id":        sub.UserID,
		"endpoint":       sub.Endpoint,
		"p256dh":         sub.Keys.P256dh,
		"auth":           sub.Keys.Auth,
		"device_info":    sub.DeviceInfo,
		"active":         active,
		"last_active_at": formatTime(sub.LastActiveAt),
		"created_at":     formatTime(sub.CreatedAt),
	}
	if sub.DeactivatedAt != nil {
		h["deactivated_at"] = formatTime(*sub.DeactivatedAt)
		h["deactivation_reason"] = string(sub.DeactivationReason)
	}
	return h
}

func fromHash(h map[string]string) Subscription {
	sub := Subscription{
		ID:                 h["id"],
		UserID:             h["user_id"],
		Endpoint:           h["endpoint"],
		Keys:               Keys{P256dh: h["p256dh"], Auth: h["auth"]},
		DeviceInfo:         h["device_info"],
		Active:             h["active"] == "1",
		LastActiveAt:       parseTime(h["last_active_at"]),
		CreatedAt:          parseTime(h["created_at"]),
		DeactivationReason: Reason(h["deactivation_reason"]),
	}
	if v := h["deactivated_at"]; v != "" {
		t := parseTime(v)
		sub.DeactivatedAt = &t
	}
	return sub
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}
