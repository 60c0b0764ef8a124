// Package bot routes inbound platform events to the relay and broadcast
// services and turns their outcomes into user-visible notices.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/relay-bot/internal/model"
	"github.com/d60-Lab/relay-bot/internal/platform"
	"github.com/d60-Lab/relay-bot/internal/service"
	"github.com/d60-Lab/relay-bot/pkg/logger"
)

// Handler handles one inbound event at a time; it is safe to call from
// many goroutines.
type Handler struct {
	client      platform.Client
	relay       service.RelayService
	broadcast   service.BroadcastService
	gateGroup   string
	callTimeout time.Duration
}

func NewHandler(client platform.Client, relay service.RelayService, broadcast service.BroadcastService, gateGroup string, callTimeout time.Duration) *Handler {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &Handler{
		client:      client,
		relay:       relay,
		broadcast:   broadcast,
		gateGroup:   gateGroup,
		callTimeout: callTimeout,
	}
}

// Handle dispatches a single inbound event.
func (h *Handler) Handle(ctx context.Context, in model.Inbound) {
	switch in.Command {
	case "start", "help":
		h.start(ctx, in)
	case "info":
		h.reply(ctx, in, infoText(in.From), platform.FormatHTML)
	case "broadcast":
		h.runBroadcast(ctx, in)
	default:
		if h.relay.IsOperator(in.From.ID) {
			h.operatorMessage(ctx, in)
			return
		}
		h.userMessage(ctx, in)
	}
}

func (h *Handler) start(ctx context.Context, in model.Inbound) {
	if err := h.relay.Start(ctx, in.From); err != nil {
		h.reply(ctx, in, joinPrompt(h.gateGroup), platform.FormatPlain)
		return
	}
	h.reply(ctx, in, usageNotice, platform.FormatPlain)
}

func (h *Handler) userMessage(ctx context.Context, in model.Inbound) {
	_, err := h.relay.ForwardToOperator(ctx, in.From, in.Content)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUnauthorized):
		h.reply(ctx, in, joinFirst(h.gateGroup), platform.FormatPlain)
	default:
		h.reply(ctx, in, deliveryFailed, platform.FormatPlain)
	}
}

func (h *Handler) operatorMessage(ctx context.Context, in model.Inbound) {
	userID, err := h.relay.ForwardReplyToUser(ctx, in.From.ID, in.ReplyTo, in.Content)
	switch {
	case err == nil:
		logger.Debug("operator reply delivered", zap.Int64("user", userID))
	case errors.Is(err, service.ErrNoReplyLink):
		h.reply(ctx, in, replyHint, platform.FormatPlain)
	case errors.Is(err, service.ErrUnknownTarget):
		h.reply(ctx, in, unknownTarget, platform.FormatPlain)
	case errors.Is(err, service.ErrNotOperator):
	default:
		h.reply(ctx, in, fmt.Sprintf(replyFailed, err), platform.FormatPlain)
	}
}

func (h *Handler) runBroadcast(ctx context.Context, in model.Inbound) {
	summary, err := h.broadcast.Broadcast(ctx, in.Args, in.From.ID)
	switch {
	case err == nil:
		h.reply(ctx, in, fmt.Sprintf(broadcastCompleted, summary.Delivered, summary.Attempted), platform.FormatPlain)
	case errors.Is(err, service.ErrNotOperator):
		h.reply(ctx, in, operatorOnly, platform.FormatPlain)
	case errors.Is(err, service.ErrEmptyBroadcast):
		h.reply(ctx, in, broadcastUsage, platform.FormatPlain)
	default:
		logger.Error("broadcast failed", zap.Error(err))
		h.reply(ctx, in, fmt.Sprintf(broadcastFailed, err), platform.FormatPlain)
	}
}

// reply sends a notice back to the chat the event came from. Failures are
// only logged: there is nobody left to tell.
func (h *Handler) reply(ctx context.Context, in model.Inbound, text string, format platform.Format) {
	ctx, cancel := context.WithTimeout(ctx, h.callTimeout)
	defer cancel()
	if _, err := h.client.SendText(ctx, in.ChatID, text, format); err != nil {
		logger.Warn("send notice failed", zap.Int64("chat", in.ChatID), zap.Error(err))
	}
}
