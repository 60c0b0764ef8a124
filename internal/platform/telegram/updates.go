package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/d60-Lab/relay-bot/internal/model"
)

// Updates long-polls the Bot API and yields private-chat messages until ctx
// is cancelled. The returned channel is closed on exit.
func (c *Client) Updates(ctx context.Context, pollTimeout time.Duration) <-chan model.Inbound {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(pollTimeout / time.Second)
	src := c.api.GetUpdatesChan(u)

	out := make(chan model.Inbound)
	go func() {
		defer close(out)
		defer c.api.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-src:
				if !ok {
					return
				}
				in, ok := ToInbound(upd.Message)
				if !ok {
					continue
				}
				select {
				case out <- in:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// ToInbound converts a Bot API message. Messages outside private chats and
// messages without a sender are skipped.
func ToInbound(msg *tgbotapi.Message) (model.Inbound, bool) {
	if msg == nil || msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return model.Inbound{}, false
	}
	in := model.Inbound{
		MessageID: msg.MessageID,
		ChatID:    msg.Chat.ID,
		From: model.Sender{
			ID:        msg.From.ID,
			FirstName: msg.From.FirstName,
			UserName:  msg.From.UserName,
		},
		Content: contentOf(msg),
	}
	if msg.IsCommand() {
		in.Command = msg.Command()
		in.Args = msg.CommandArguments()
	}
	if msg.ReplyToMessage != nil {
		id := msg.ReplyToMessage.MessageID
		in.ReplyTo = &id
	}
	return in, true
}

func contentOf(msg *tgbotapi.Message) model.Content {
	switch {
	case len(msg.Photo) > 0:
		// 最后一个尺寸最大
		return model.MediaContent(model.KindPhoto, msg.Photo[len(msg.Photo)-1].FileID, msg.Caption)
	case msg.Document != nil:
		return model.MediaContent(model.KindDocument, msg.Document.FileID, msg.Caption)
	case msg.Video != nil:
		return model.MediaContent(model.KindVideo, msg.Video.FileID, msg.Caption)
	case msg.Audio != nil:
		return model.MediaContent(model.KindAudio, msg.Audio.FileID, msg.Caption)
	case msg.Text != "":
		return model.TextContent(msg.Text)
	}
	if label := unsupportedLabel(msg); label != "" {
		return model.UnsupportedContent(label, msg.Caption)
	}
	return model.TextContent("")
}

func unsupportedLabel(msg *tgbotapi.Message) string {
	switch {
	case msg.Sticker != nil:
		return "sticker"
	case msg.Voice != nil:
		return "voice"
	case msg.VideoNote != nil:
		return "video note"
	case msg.Animation != nil:
		return "animation"
	case msg.Contact != nil:
		return "contact"
	case msg.Location != nil:
		return "location"
	case msg.Venue != nil:
		return "venue"
	case msg.Poll != nil:
		return "poll"
	case msg.Dice != nil:
		return "dice"
	}
	return ""
}
