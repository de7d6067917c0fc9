package bookings

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyGuard is the Redis fast path in front of the reservations
// unique index. It lets a retried reserve request short-circuit to the
// winning reservation without touching Postgres. The database index stays
// authoritative, the guard only has to be right when it answers.
type IdempotencyGuard struct {
	redis *redis.Client
}

// NewIdempotencyGuard creates a new idempotency guard
func NewIdempotencyGuard(redisClient *redis.Client) *IdempotencyGuard {
	return &IdempotencyGuard{
		redis: redisClient,
	}
}

// Lua script for atomic claim-or-read of an idempotency key
const luaIdempotencyClaim = `
-- KEYS[1] = idempotency key
-- ARGV[1] = reservation_id claiming the key
-- ARGV[2] = ttl_seconds

local existing = redis.call("GET", KEYS[1])
if existing then
    return {0, existing}
end

redis.call("SET", KEYS[1], ARGV[1], "EX", tonumber(ARGV[2]))
return {1, ARGV[1]}
`

// redis.Script runs EVALSHA and falls back to EVAL on NOSCRIPT.
var idempotencyClaimScript = redis.NewScript(luaIdempotencyClaim)

func idempotencyKey(key string) string {
	return "ticketly:idempotency:" + key
}

// Claim atomically claims the idempotency key for reservationID. When the
// key is already taken it returns claimed=false and the reservation ID that
// owns it.
func (g *IdempotencyGuard) Claim(ctx context.Context, key, reservationID string, ttl time.Duration) (bool, string, error) {
	if g.redis == nil {
		return true, reservationID, nil
	}

	keys := []string{idempotencyKey(key)}
	args := []interface{}{reservationID, strconv.Itoa(int(ttl.Seconds()))}

	result, err := idempotencyClaimScript.Run(ctx, g.redis, keys, args...).Result()
	if err != nil {
		return false, "", fmt.Errorf("failed to execute idempotency claim: %w", err)
	}

	resultArray, ok := result.([]interface{})
	if !ok || len(resultArray) != 2 {
		return false, "", fmt.Errorf("unexpected result format from Lua script")
	}

	claimed, ok := resultArray[0].(int64)
	if !ok {
		return false, "", fmt.Errorf("invalid claim flag in Lua script result")
	}

	owner, ok := resultArray[1].(string)
	if !ok {
		return false, "", fmt.Errorf("invalid owner in Lua script result")
	}

	return claimed == 1, owner, nil
}

// Release drops the claim after a failed reserve so a retry can start over.
func (g *IdempotencyGuard) Release(ctx context.Context, key string) error {
	if g.redis == nil {
		return nil
	}
	return g.redis.Del(ctx, idempotencyKey(key)).Err()
}

// PreloadScripts loads the Lua script into Redis so the hot path can use
// EVALSHA.
func (g *IdempotencyGuard) PreloadScripts(ctx context.Context) error {
	if g.redis == nil {
		return nil
	}
	if err := idempotencyClaimScript.Load(ctx, g.redis).Err(); err != nil {
		return fmt.Errorf("failed to load idempotency claim script: %w", err)
	}
	return nil
}
