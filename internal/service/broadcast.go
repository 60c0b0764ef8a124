package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/relay-bot/internal/model"
	"github.com/d60-Lab/relay-bot/internal/platform"
	"github.com/d60-Lab/relay-bot/internal/repository"
	"github.com/d60-Lab/relay-bot/pkg/logger"
)

// BroadcastService 运营者群发
type BroadcastService interface {
	Broadcast(ctx context.Context, text string, requesterID int64) (model.BroadcastSummary, error)
}

type BroadcastOptions struct {
	OperatorID  int64
	Workers     int
	Rate        float64 // 条/秒，<=0 不限
	CallTimeout time.Duration
}

type broadcastService struct {
	client  platform.Client
	users   repository.UserRepository
	opts    BroadcastOptions
	limiter *rate.Limiter
}

// NewBroadcastService 只依赖用户目录，不碰关联表
func NewBroadcastService(client platform.Client, users repository.UserRepository, opts BroadcastOptions) BroadcastService {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	s := &broadcastService{client: client, users: users, opts: opts}
	if opts.Rate > 0 {
		// 平台对机器人有全局发送配额，限速器跨任务共享
		s.limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}
	return s
}

func (s *broadcastService) Broadcast(ctx context.Context, text string, requesterID int64) (model.BroadcastSummary, error) {
	if requesterID != s.opts.OperatorID {
		return model.BroadcastSummary{}, ErrNotOperator
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.BroadcastSummary{}, ErrEmptyBroadcast
	}

	targets, err := s.users.AllUserIDs(ctx)
	if err != nil {
		return model.BroadcastSummary{}, fmt.Errorf("snapshot directory: %w", err)
	}
	job := model.BroadcastJob{
		ID:          uuid.NewString(),
		Text:        text,
		RequesterID: requesterID,
		Targets:     targets,
		CreatedAt:   time.Now(),
	}

	ctx, span := tracer.Start(ctx, "broadcast.fanout")
	defer span.End()
	span.SetAttributes(attribute.String("broadcast.job", job.ID), attribute.Int("broadcast.targets", len(targets)))

	delivered := s.fanout(ctx, job)
	summary := model.BroadcastSummary{
		JobID:     job.ID,
		Attempted: len(job.Targets),
		Delivered: int(delivered),
		Elapsed:   time.Since(job.CreatedAt),
	}
	span.SetAttributes(attribute.Int("broadcast.delivered", summary.Delivered))
	logger.Info("broadcast finished",
		zap.String("job", job.ID),
		zap.Int("attempted", summary.Attempted),
		zap.Int("delivered", summary.Delivered),
		zap.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

// fanout 单个收件人失败只计数，不影响其他人
func (s *broadcastService) fanout(ctx context.Context, job model.BroadcastJob) int64 {
	var (
		g         errgroup.Group
		delivered atomic.Int64
	)
	g.SetLimit(s.opts.Workers)
	for _, userID := range job.Targets {
		g.Go(func() error {
			if err := s.sendOne(ctx, userID, job.Text); err != nil {
				logger.Debug("broadcast recipient failed", zap.String("job", job.ID), zap.Int64("user", userID), zap.Error(err))
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return delivered.Load()
}

func (s *broadcastService) sendOne(ctx context.Context, userID int64, text string) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()
	_, err := s.client.SendText(callCtx, userID, text, platform.FormatPlain)
	return err
}
