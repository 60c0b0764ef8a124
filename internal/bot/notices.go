package bot

import (
	"fmt"
	"html"

	"github.com/d60-Lab/relay-bot/internal/model"
)

func joinPrompt(group string) string {
	return fmt.Sprintf("🚫 You must join %s to use this bot.\n\n👉 Join and then press /start again.", group)
}

func joinFirst(group string) string {
	return fmt.Sprintf("⚠️ Join %s first.\n\nPress /start after joining.", group)
}

const (
	usageNotice        = "✅ Send me any message, photo, or file, and I will forward it to my owner!"
	deliveryFailed     = "❌ Your message could not be delivered right now. Please try again later."
	operatorOnly       = "🚫 Only admin can broadcast."
	broadcastUsage     = "❗ Use: /broadcast your message here"
	unknownTarget      = "⚠️ Cannot find the user to reply to. Reply directly to a forwarded message."
	replyHint          = "ℹ️ Reply to a forwarded message to answer its sender."
	replyFailed        = "❌ Reply not delivered: %s"
	broadcastFailed    = "❌ Broadcast failed: %s"
	broadcastCompleted = "✅ Broadcast sent to %d of %d users."
)

func infoText(s model.Sender) string {
	handle := "N/A"
	if s.UserName != "" {
		handle = "@" + s.UserName
	}
	return fmt.Sprintf("👤 Your Info:\n\nID: <code>%d</code>\nName: %s\nUsername: %s",
		s.ID, html.EscapeString(s.FirstName), html.EscapeString(handle))
}
