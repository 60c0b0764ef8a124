package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/d60-Lab/relay-bot/internal/model"
	"github.com/d60-Lab/relay-bot/pkg/logger"
)

// Runner consumes the inbound stream and handles each event in its own
// goroutine, at most maxInFlight at a time.
type Runner struct {
	handler *Handler
	sem     chan struct{}
	drain   time.Duration
	wg      sync.WaitGroup
}

// NewRunner builds a runner. drain bounds how long in-flight handlers may
// keep working once the stream stops; a running broadcast finishes inside it.
func NewRunner(handler *Handler, maxInFlight int, drain time.Duration) *Runner {
	if maxInFlight <= 0 {
		maxInFlight = 64
	}
	return &Runner{handler: handler, sem: make(chan struct{}, maxInFlight), drain: drain}
}

// Run blocks until updates is closed or ctx is done, then waits for the
// in-flight handlers to return. Handlers do not see ctx's cancellation; their
// context is cancelled only after the drain window elapses.
func (r *Runner) Run(ctx context.Context, updates <-chan model.Inbound) {
	hctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	defer r.wait(cancel)
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-updates:
			if !ok {
				return
			}
			select {
			case r.sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				defer func() { <-r.sem }()
				r.handle(hctx, in)
			}()
		}
	}
}

func (r *Runner) wait(cancel context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return
	case <-time.After(r.drain):
	}
	logger.Warn("drain window elapsed, cancelling in-flight handlers", zap.Duration("drain", r.drain))
	cancel()
	<-done
}

// handle isolates one event; a panic is reported and never reaches the loop.
func (r *Runner) handle(ctx context.Context, in model.Inbound) {
	hub := sentry.CurrentHub().Clone()
	hub.Scope().SetTag("command", in.Command)
	hub.Scope().SetUser(sentry.User{ID: fmt.Sprint(in.From.ID)})
	defer func() {
		if rec := recover(); rec != nil {
			hub.Recover(rec)
			logger.Error("handler panic", zap.Any("panic", rec), zap.Int64("user", in.From.ID), zap.Int("message", in.MessageID))
		}
	}()
	r.handler.Handle(sentry.SetHubOnContext(ctx, hub), in)
}
