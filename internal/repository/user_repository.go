package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/relay-bot/internal/model"
)

// UserRepository 用户目录：可群发的用户集合，需持久化
type UserRepository interface {
	// Register 不存在才插入；重复注册不报错
	Register(ctx context.Context, user *model.User) error
	// AllUserIDs 快照枚举，顺序无意义
	AllUserIDs(ctx context.Context) ([]int64, error)
	Count(ctx context.Context) (int64, error)
}

type userRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepository{db: db} }

// Migrate 建表
func Migrate(db *gorm.DB) error { return db.AutoMigrate(&model.User{}) }

func (r *userRepository) Register(ctx context.Context, user *model.User) error {
	// 幂等：主键冲突直接忽略，名称以首次写入为准
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(user).Error
}

func (r *userRepository) AllUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Pluck("id", &ids).Error
	return ids, err
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Count(&cnt).Error
	return cnt, err
}
