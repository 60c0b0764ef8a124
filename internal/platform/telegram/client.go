// Package telegram implements platform.Client on the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/d60-Lab/relay-bot/internal/model"
	"github.com/d60-Lab/relay-bot/internal/platform"
	"github.com/d60-Lab/relay-bot/pkg/logger"
)

// Client talks to the Bot API. The HTTP client timeout is a backstop; callers
// are expected to pass contexts with their own deadlines.
type Client struct {
	api *tgbotapi.BotAPI
}

var _ platform.Client = (*Client)(nil)

// New authenticates against the Bot API. endpoint may be empty for the
// public api.telegram.org.
func New(token, endpoint string, httpTimeout time.Duration) (*Client, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	// long polling 需要比 poll timeout 更长的 HTTP 超时
	httpClient := &http.Client{Timeout: httpTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	logger.Info("telegram bot authorized", zap.String("username", api.Self.UserName), zap.Int64("id", api.Self.ID))
	return &Client{api: api}, nil
}

// Self returns the bot's own username.
func (c *Client) Self() string { return c.api.Self.UserName }

func (c *Client) GetMembershipStatus(ctx context.Context, group string, userID int64) (platform.MembershipStatus, error) {
	cfg := tgbotapi.GetChatMemberConfig{ChatConfigWithUser: chatWithUser(group, userID)}
	member, err := call(ctx, func() (tgbotapi.ChatMember, error) {
		return c.api.GetChatMember(cfg)
	})
	if err != nil {
		return platform.StatusUnknown, err
	}
	return normalizeStatus(member.Status), nil
}

func (c *Client) SendText(ctx context.Context, recipientID int64, text string, format platform.Format) (int, error) {
	msg := tgbotapi.NewMessage(recipientID, text)
	msg.ParseMode = parseMode(format)
	msg.DisableWebPagePreview = true
	return c.send(ctx, msg)
}

func (c *Client) SendMedia(ctx context.Context, recipientID int64, kind model.ContentKind, fileRef, caption string, format platform.Format) (int, error) {
	file := tgbotapi.FileID(fileRef)
	mode := parseMode(format)
	var chattable tgbotapi.Chattable
	switch kind {
	case model.KindPhoto:
		m := tgbotapi.NewPhoto(recipientID, file)
		m.Caption, m.ParseMode = caption, mode
		chattable = m
	case model.KindDocument:
		m := tgbotapi.NewDocument(recipientID, file)
		m.Caption, m.ParseMode = caption, mode
		chattable = m
	case model.KindVideo:
		m := tgbotapi.NewVideo(recipientID, file)
		m.Caption, m.ParseMode = caption, mode
		chattable = m
	case model.KindAudio:
		m := tgbotapi.NewAudio(recipientID, file)
		m.Caption, m.ParseMode = caption, mode
		chattable = m
	default:
		return 0, fmt.Errorf("telegram: %s is not a media kind", kind)
	}
	return c.send(ctx, chattable)
}

func (c *Client) ProfileURL(userID int64) string {
	return "tg://user?id=" + strconv.FormatInt(userID, 10)
}

func (c *Client) send(ctx context.Context, chattable tgbotapi.Chattable) (int, error) {
	sent, err := call(ctx, func() (tgbotapi.Message, error) {
		return c.api.Send(chattable)
	})
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// call runs fn and gives up once ctx is done. The abandoned request keeps
// running until the HTTP client timeout fires; its result is discarded.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

// chatWithUser accepts a numeric chat ID ("-100123") or a public username ("@club" or "club").
func chatWithUser(group string, userID int64) tgbotapi.ChatConfigWithUser {
	if id, err := strconv.ParseInt(group, 10, 64); err == nil {
		return tgbotapi.ChatConfigWithUser{ChatID: id, UserID: userID}
	}
	if !strings.HasPrefix(group, "@") {
		group = "@" + group
	}
	return tgbotapi.ChatConfigWithUser{SuperGroupUsername: group, UserID: userID}
}

func normalizeStatus(s string) platform.MembershipStatus {
	switch s {
	case "creator":
		return platform.StatusOwner
	case "administrator":
		return platform.StatusAdministrator
	case "member":
		return platform.StatusMember
	case "restricted":
		return platform.StatusRestricted
	case "left":
		return platform.StatusLeft
	case "kicked":
		return platform.StatusBanned
	}
	return platform.StatusUnknown
}

func parseMode(f platform.Format) string {
	if f == platform.FormatHTML {
		return tgbotapi.ModeHTML
	}
	return ""
}
