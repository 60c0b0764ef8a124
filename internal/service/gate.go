package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/relay-bot/internal/platform"
	"github.com/d60-Lab/relay-bot/pkg/logger"
)

// MembershipGate 判断用户当前是否可以使用网关
type MembershipGate interface {
	IsAuthorized(ctx context.Context, userID int64) bool
}

type membershipGate struct {
	client  platform.Client
	group   string
	timeout time.Duration
}

// NewMembershipGate 每次都实时查询，不做缓存（被踢/退群立即生效）
func NewMembershipGate(client platform.Client, group string, timeout time.Duration) MembershipGate {
	return &membershipGate{client: client, group: group, timeout: timeout}
}

func (g *membershipGate) IsAuthorized(ctx context.Context, userID int64) bool {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	status, err := g.client.GetMembershipStatus(ctx, g.group, userID)
	if err != nil {
		// 查询失败一律拒绝
		logger.Warn("membership lookup failed", zap.Int64("user", userID), zap.String("group", g.group), zap.Error(err))
		return false
	}
	switch status {
	case platform.StatusMember, platform.StatusOwner, platform.StatusAdministrator:
		return true
	}
	logger.Debug("membership denied", zap.Int64("user", userID), zap.String("status", string(status)))
	return false
}
