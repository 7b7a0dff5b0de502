package httpx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateStore shares one budget per client across every replica.
type RedisRateStore struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// Returns {count, pttl} for the window the request landed in.
var takeScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

func NewRedisRateStore(rdb *redis.Client, limit int, window time.Duration, prefix string) *RedisRateStore {
	limit, window = rateDefaults(limit, window)
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "apptbook:ratelimit"
	}
	return &RedisRateStore{rdb: rdb, limit: limit, window: window, prefix: prefix}
}

func (s *RedisRateStore) Take(ctx context.Context, key string) (RateDecision, error) {
	res, err := takeScript.Run(ctx, s.rdb, []string{s.prefix + ":" + key}, s.window.Milliseconds()).Int64Slice()
	if err != nil {
		return RateDecision{}, err
	}
	if len(res) != 2 {
		return RateDecision{}, fmt.Errorf("rate limit script returned %d values", len(res))
	}
	resetIn := time.Duration(res[1]) * time.Millisecond
	if resetIn <= 0 {
		resetIn = s.window
	}
	return decide(int(res[0]), s.limit, resetIn), nil
}

// ReadyCheck pings Redis for /readyz.
func (s *RedisRateStore) ReadyCheck(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
