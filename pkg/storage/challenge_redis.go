package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kojibai/pbi-core/pkg/capability"
)

// challengeConsumeScript atomically marks a challenge consumed exactly once.
// KEYS[1] = challenge key (e.g. "challenge:<id>")
// ARGV[1] = ttl in seconds, applied only on first consumption
//
// Returns 1 if this call performed the consumption (maps to
// capability.ChallengeConsumed, the success case), 0 if the challenge was
// already consumed by an earlier call (maps to capability.ChallengeIssued,
// which the caller treats as already-used). The check and the mark happen
// inside a single script invocation so two concurrent verifications of the
// same challenge can never both succeed.
var challengeConsumeScript = redis.NewScript(`
local key = KEYS[1]
local ttl = tonumber(ARGV[1])

local already = redis.call("GET", key)
if already then
    return 0
end

redis.call("SET", key, "1", "EX", ttl)
return 1
`)

// RedisChallengeStore implements capability.ChallengeStore with an atomic
// Redis-backed single-use mark, the online-mode challenge ledger.
type RedisChallengeStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisChallengeStore(addr, password string, db int, ttl time.Duration) *RedisChallengeStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisChallengeStore{client: rdb, ttl: ttl}
}

func (s *RedisChallengeStore) MarkConsumed(ctx context.Context, challengeID string) (capability.ChallengeState, error) {
	key := fmt.Sprintf("challenge:%s", challengeID)
	ttlSeconds := int(s.ttl.Seconds())
	if ttlSeconds <= 0 {
		ttlSeconds = 300
	}

	res, err := challengeConsumeScript.Run(ctx, s.client, []string{key}, ttlSeconds).Result()
	if err != nil {
		return capability.ChallengeUnknown, fmt.Errorf("storage: redis challenge consume: %w", err)
	}

	consumed, ok := res.(int64)
	if !ok {
		return capability.ChallengeUnknown, fmt.Errorf("storage: redis challenge consume: unexpected script result %T", res)
	}
	if consumed == 1 {
		return capability.ChallengeConsumed, nil
	}
	return capability.ChallengeIssued, nil
}
