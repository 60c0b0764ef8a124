package model

import "time"

// User 曾通过准入校验的用户；ID 是唯一键，名称仅供展示，首次写入后不再更新
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false"`
	FirstName string    `gorm:"type:varchar(255)"`
	UserName  string    `gorm:"type:varchar(64)"`
	CreatedAt time.Time `gorm:"index"`
}

func (User) TableName() string { return "relay_users" }

// Sender 入站消息的发送者
type Sender struct {
	ID        int64
	FirstName string
	UserName  string // 可能为空
}

// User 转成目录记录
func (s Sender) User() *User {
	return &User{ID: s.ID, FirstName: s.FirstName, UserName: s.UserName}
}
