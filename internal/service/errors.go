package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized 不在准入群组内（或查询失败），加入后重试即可
	ErrUnauthorized = errors.New("user is not a member of the gate group")
	// ErrDispatch 平台投递失败（被拉黑、网络、限流、超时），不自动重试
	ErrDispatch = errors.New("platform dispatch failed")
	// ErrUnknownTarget 运营者回复的消息没有关联记录
	ErrUnknownTarget = errors.New("no user recorded for the replied message")
	// ErrNotOperator 非运营者调用了运营者专属操作
	ErrNotOperator = errors.New("caller is not the operator")
	// ErrNoReplyLink 运营者的消息没有引用任何消息
	ErrNoReplyLink = errors.New("message does not reply to a forwarded item")
	// ErrEmptyBroadcast 群发内容为空
	ErrEmptyBroadcast = errors.New("broadcast text is empty")
)

func dispatchError(err error) error {
	return fmt.Errorf("%w: %w", ErrDispatch, err)
}
