package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harborcrm/harbor-backend/utils"
	"github.com/redis/go-redis/v9"
)

// DailyQuota tracks how many messages a provider has sent today. The counter
// survives process restarts so a resumed drain never exceeds the daily limit.
type DailyQuota interface {
	// Used returns today's consumed quota for the provider.
	Used(ctx context.Context, provider string) (int, error)
	// Consume adds n to today's counter and returns the new total.
	Consume(ctx context.Context, provider string, n int) (int, error)
}

// quotaKeyTTL keeps yesterday's bucket around long enough for inspection
const quotaKeyTTL = 48 * time.Hour

// RedisDailyQuota stores per-day counters in redis under
// <prefix><provider>:sent:<yyyy-mm-dd>
type RedisDailyQuota struct {
	client *redis.Client
	prefix string
}

// NewRedisDailyQuota creates a redis-backed daily quota tracker
func NewRedisDailyQuota(client *redis.Client, prefix string) *RedisDailyQuota {
	return &RedisDailyQuota{client: client, prefix: prefix}
}

func (q *RedisDailyQuota) key(provider string) string {
	return fmt.Sprintf("%s%s:sent:%s", q.prefix, provider, utils.UTCDateKey(utils.UTCNow()))
}

// Used returns today's consumed quota for the provider
func (q *RedisDailyQuota) Used(ctx context.Context, provider string) (int, error) {
	val, err := q.client.Get(ctx, q.key(provider)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read daily quota: %w", err)
	}
	return val, nil
}

// Consume adds n to today's counter and returns the new total
func (q *RedisDailyQuota) Consume(ctx context.Context, provider string, n int) (int, error) {
	key := q.key(provider)

	total, err := q.client.IncrBy(ctx, key, int64(n)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment daily quota: %w", err)
	}

	// First write of the day sets the expiry
	if total == int64(n) {
		_ = q.client.Expire(ctx, key, quotaKeyTTL).Err()
	}

	return int(total), nil
}

// MemoryDailyQuota is the in-process fallback used when redis is disabled.
// Counters reset on restart, so a restarted process may resend up to a full
// day's quota.
type MemoryDailyQuota struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryDailyQuota creates an in-memory daily quota tracker
func NewMemoryDailyQuota() *MemoryDailyQuota {
	return &MemoryDailyQuota{counts: make(map[string]int)}
}

func (q *MemoryDailyQuota) key(provider string) string {
	return provider + ":" + utils.UTCDateKey(utils.UTCNow())
}

// Used returns today's consumed quota for the provider
func (q *MemoryDailyQuota) Used(_ context.Context, provider string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.counts[q.key(provider)], nil
}

// Consume adds n to today's counter and returns the new total
func (q *MemoryDailyQuota) Consume(_ context.Context, provider string, n int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := q.key(provider)
	q.counts[key] += n

	// Drop stale day buckets so the map stays small
	today := utils.UTCDateKey(utils.UTCNow())
	for k := range q.counts {
		if !strings.HasSuffix(k, ":"+today) {
			delete(q.counts, k)
		}
	}

	return q.counts[key], nil
}
