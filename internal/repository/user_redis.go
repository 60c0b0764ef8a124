package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/relay-bot/internal/model"
)

const usersSetKey = "relay:users"

type redisUserRepository struct {
	rdb *redis.Client
}

// NewRedisUserRepository 用 Redis SET 保存目录，需开启 AOF/RDB 才算持久
func NewRedisUserRepository(rdb *redis.Client) UserRepository {
	return &redisUserRepository{rdb: rdb}
}

type userProfile struct {
	FirstName string    `json:"first_name"`
	UserName  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *redisUserRepository) Register(ctx context.Context, user *model.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(userProfile{FirstName: user.FirstName, UserName: user.UserName, CreatedAt: user.CreatedAt})
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.SAdd(ctx, usersSetKey, user.ID)
	// 资料只在首次写入
	pipe.SetNX(ctx, profileKey(user.ID), payload, 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisUserRepository) AllUserIDs(ctx context.Context) ([]int64, error) {
	members, err := r.rdb.SMembers(ctx, usersSetKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *redisUserRepository) Count(ctx context.Context) (int64, error) {
	return r.rdb.SCard(ctx, usersSetKey).Result()
}

func profileKey(id int64) string {
	return "relay:user:" + strconv.FormatInt(id, 10)
}
