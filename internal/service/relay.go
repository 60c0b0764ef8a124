package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/d60-Lab/relay-bot/internal/model"
	"github.com/d60-Lab/relay-bot/internal/platform"
	"github.com/d60-Lab/relay-bot/internal/repository"
	"github.com/d60-Lab/relay-bot/pkg/logger"
)

var tracer = otel.Tracer("github.com/d60-Lab/relay-bot/internal/service")

// RelayService 转发引擎：用户 -> 运营者，运营者回复 -> 用户
type RelayService interface {
	// Start 准入校验并登记用户（/start）
	Start(ctx context.Context, sender model.Sender) error
	// ForwardToOperator 返回运营者侧的消息 ID
	ForwardToOperator(ctx context.Context, sender model.Sender, content model.Content) (int, error)
	// ForwardReplyToUser 返回收到回复的用户 ID
	ForwardReplyToUser(ctx context.Context, operatorID int64, replyTo *int, content model.Content) (int64, error)
	IsOperator(userID int64) bool
	Stats(ctx context.Context) RelayStats
}

// RelayStats 计数为进程启动以来的累计值
type RelayStats struct {
	Users        int64 `json:"users"`
	Correlations int   `json:"correlations"`
	Forwarded    int64 `json:"forwarded"`
	Rejected     int64 `json:"rejected"`
	Replies      int64 `json:"replies"`
	Failures     int64 `json:"failures"`
}

type RelayOptions struct {
	OperatorID  int64
	CallTimeout time.Duration
}

type relayService struct {
	client       platform.Client
	gate         MembershipGate
	users        repository.UserRepository
	correlations repository.CorrelationRepository
	operatorID   int64
	callTimeout  time.Duration

	forwarded atomic.Int64
	rejected  atomic.Int64
	replies   atomic.Int64
	failures  atomic.Int64
}

// NewRelayService 关联表由调用方注入，可替换为带 TTL/容量上限的实现
func NewRelayService(client platform.Client, gate MembershipGate, users repository.UserRepository, correlations repository.CorrelationRepository, opts RelayOptions) RelayService {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	return &relayService{
		client:       client,
		gate:         gate,
		users:        users,
		correlations: correlations,
		operatorID:   opts.OperatorID,
		callTimeout:  opts.CallTimeout,
	}
}

func (s *relayService) IsOperator(userID int64) bool { return userID == s.operatorID }

func (s *relayService) Start(ctx context.Context, sender model.Sender) error {
	if !s.gate.IsAuthorized(ctx, sender.ID) {
		s.rejected.Add(1)
		return ErrUnauthorized
	}
	s.register(ctx, sender)
	return nil
}

func (s *relayService) ForwardToOperator(ctx context.Context, sender model.Sender, content model.Content) (int, error) {
	ctx, span := tracer.Start(ctx, "relay.forward_to_operator")
	defer span.End()
	span.SetAttributes(attribute.Int64("relay.sender", sender.ID), attribute.String("relay.kind", content.Kind.String()))

	if !s.gate.IsAuthorized(ctx, sender.ID) {
		s.rejected.Add(1)
		span.SetStatus(codes.Error, "unauthorized")
		return 0, ErrUnauthorized
	}
	s.register(ctx, sender)

	envelope := operatorEnvelope(sender, s.client.ProfileURL(sender.ID), content)
	outboundID, err := s.dispatch(ctx, s.operatorID, content, envelope)
	if err != nil {
		s.failures.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		logger.Warn("forward to operator failed", zap.Int64("user", sender.ID), zap.Stringer("kind", content.Kind), zap.Error(err))
		return 0, dispatchError(err)
	}

	if err := s.correlations.Put(ctx, outboundID, sender.ID); err != nil {
		// 消息已送达，只是之后无法回复
		logger.Error("record correlation failed", zap.Int("outbound", outboundID), zap.Int64("user", sender.ID), zap.Error(err))
	}
	s.forwarded.Add(1)
	span.SetAttributes(attribute.Int("relay.outbound", outboundID))
	logger.Debug("forwarded to operator", zap.Int64("user", sender.ID), zap.Int("outbound", outboundID))
	return outboundID, nil
}

func (s *relayService) ForwardReplyToUser(ctx context.Context, operatorID int64, replyTo *int, content model.Content) (int64, error) {
	if operatorID != s.operatorID {
		return 0, ErrNotOperator
	}
	if replyTo == nil {
		return 0, ErrNoReplyLink
	}

	ctx, span := tracer.Start(ctx, "relay.forward_reply_to_user")
	defer span.End()
	span.SetAttributes(attribute.Int("relay.outbound", *replyTo), attribute.String("relay.kind", content.Kind.String()))

	userID, ok, err := s.correlations.Get(ctx, *replyTo)
	if err != nil {
		logger.Error("correlation lookup failed", zap.Int("outbound", *replyTo), zap.Error(err))
	}
	if err != nil || !ok {
		span.SetStatus(codes.Error, "unknown target")
		return 0, ErrUnknownTarget
	}
	span.SetAttributes(attribute.Int64("relay.user", userID))

	if _, err := s.dispatch(ctx, userID, content, replyEnvelope(content)); err != nil {
		s.failures.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		logger.Warn("reply to user failed", zap.Int64("user", userID), zap.Error(err))
		// 关联不删，运营者可以再次回复
		return userID, dispatchError(err)
	}
	s.replies.Add(1)
	return userID, nil
}

// dispatch 按内容类型选择平台调用；每次调用单独限时
func (s *relayService) dispatch(ctx context.Context, to int64, content model.Content, text string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	switch content.Kind {
	case model.KindText, model.KindUnsupported:
		return s.client.SendText(ctx, to, text, platform.FormatHTML)
	case model.KindPhoto, model.KindDocument, model.KindVideo, model.KindAudio:
		return s.client.SendMedia(ctx, to, content.Kind, content.FileRef, text, platform.FormatHTML)
	}
	return 0, fmt.Errorf("unhandled content kind %d", content.Kind)
}

// register 目录写失败不阻断转发，只记录
func (s *relayService) register(ctx context.Context, sender model.Sender) {
	if err := s.users.Register(ctx, sender.User()); err != nil {
		logger.Error("register user failed", zap.Int64("user", sender.ID), zap.Error(err))
	}
}

func (s *relayService) Stats(ctx context.Context) RelayStats {
	st := RelayStats{
		Forwarded: s.forwarded.Load(),
		Rejected:  s.rejected.Load(),
		Replies:   s.replies.Load(),
		Failures:  s.failures.Load(),
	}
	if n, err := s.users.Count(ctx); err == nil {
		st.Users = n
	}
	if n, err := s.correlations.Len(ctx); err == nil {
		st.Correlations = n
	}
	return st
}
