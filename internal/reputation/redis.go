package reputation

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "labbroker:reputation"

// adjustScript seeds a missing participant with the default before
// incrementing so the first adjustment is relative to the default.
var adjustScript = redis.NewScript(`
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 0 then
  redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
end
return redis.call("HINCRBY", KEYS[1], ARGV[1], ARGV[3])
`)

type redisTracker struct {
	rdb          redis.Cmdable
	key          string
	defaultScore int
}

// NewRedisTracker stores all scores in one hash at key.
func NewRedisTracker(rdb redis.Cmdable, key string, defaultScore int) Tracker {
	if key == "" {
		key = DefaultRedisKey
	}
	return &redisTracker{
		rdb:          rdb,
		key:          key,
		defaultScore: defaultScore,
	}
}

func (t *redisTracker) Get(ctx context.Context, participant string) (int, error) {
	if participant == "" {
		return 0, fmt.Errorf("participant cannot be empty")
	}
	score, err := t.rdb.HGet(ctx, t.key, participant).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return t.defaultScore, nil
		}
		return 0, fmt.Errorf("failed to read reputation for %s: %w", participant, err)
	}
	return score, nil
}

func (t *redisTracker) Adjust(ctx context.Context, participant string, delta int) (int, error) {
	if participant == "" {
		return 0, fmt.Errorf("participant cannot be empty")
	}
	score, err := adjustScript.Run(ctx, t.rdb, []string{t.key}, participant, t.defaultScore, delta).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to adjust reputation for %s: %w", participant, err)
	}
	return score, nil
}
