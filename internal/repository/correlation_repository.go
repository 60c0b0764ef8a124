package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// CorrelationRepository 转发给运营者的消息 ID -> 原始用户 ID。
// 只由转发引擎持有和写入；允许丢失（重启即清空）。
type CorrelationRepository interface {
	Put(ctx context.Context, outboundID int, userID int64) error
	// Get 第二个返回值表示是否命中
	Get(ctx context.Context, outboundID int) (int64, bool, error)
	Len(ctx context.Context) (int, error)
}

// memoryCorrelationRepository 容量上限 + TTL 的进程内 LRU，自带锁
type memoryCorrelationRepository struct {
	cache *expirable.LRU[int, int64]
}

// NewMemoryCorrelationRepository capacity<=0 不限容量，ttl<=0 不过期
func NewMemoryCorrelationRepository(capacity int, ttl time.Duration) CorrelationRepository {
	if capacity < 0 {
		capacity = 0
	}
	if ttl < 0 {
		ttl = 0
	}
	return &memoryCorrelationRepository{cache: expirable.NewLRU[int, int64](capacity, nil, ttl)}
}

func (r *memoryCorrelationRepository) Put(_ context.Context, outboundID int, userID int64) error {
	r.cache.Add(outboundID, userID)
	return nil
}

func (r *memoryCorrelationRepository) Get(_ context.Context, outboundID int) (int64, bool, error) {
	userID, ok := r.cache.Get(outboundID)
	return userID, ok, nil
}

func (r *memoryCorrelationRepository) Len(context.Context) (int, error) {
	return r.cache.Len(), nil
}

const correlationKeyPrefix = "relay:corr:"

// redisCorrelationRepository 多实例部署时共享关联表，TTL 交给 Redis
type redisCorrelationRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCorrelationRepository(rdb *redis.Client, ttl time.Duration) CorrelationRepository {
	return &redisCorrelationRepository{rdb: rdb, ttl: ttl}
}

func (r *redisCorrelationRepository) Put(ctx context.Context, outboundID int, userID int64) error {
	ttl := r.ttl
	if ttl < 0 {
		ttl = 0
	}
	return r.rdb.Set(ctx, correlationKey(outboundID), userID, ttl).Err()
}

func (r *redisCorrelationRepository) Get(ctx context.Context, outboundID int) (int64, bool, error) {
	userID, err := r.rdb.Get(ctx, correlationKey(outboundID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return userID, true, nil
}

func (r *redisCorrelationRepository) Len(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, correlationKeyPrefix+"*", 500).Result()
		if err != nil {
			return 0, err
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

func correlationKey(outboundID int) string {
	return correlationKeyPrefix + strconv.Itoa(outboundID)
}
