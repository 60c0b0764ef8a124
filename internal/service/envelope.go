package service

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf16"

	"github.com/d60-Lab/relay-bot/internal/model"
)

// 平台单条消息长度上限（Telegram：正文 4096，caption 1024）
const (
	maxTextLen    = 4096
	maxCaptionLen = 1024
)

const replyMarker = "💬 <b>Reply from operator</b>"

// operatorEnvelope 发给运营者的带头信息消息（HTML）
func operatorEnvelope(sender model.Sender, profileURL string, content model.Content) string {
	var b strings.Builder
	b.WriteString("📨 <b>New message</b>\n")

	name := sender.FirstName
	if name == "" {
		name = fmt.Sprintf("user %d", sender.ID)
	}
	if profileURL != "" {
		fmt.Fprintf(&b, "From: <a href=\"%s\">%s</a>\n", html.EscapeString(profileURL), html.EscapeString(name))
	} else {
		fmt.Fprintf(&b, "From: %s\n", html.EscapeString(name))
	}
	fmt.Fprintf(&b, "ID: <code>%d</code>", sender.ID)
	if sender.UserName != "" {
		fmt.Fprintf(&b, "\nUsername: @%s", html.EscapeString(sender.UserName))
	}
	if content.Kind == model.KindUnsupported {
		label := content.Label
		if label == "" {
			label = "unknown"
		}
		fmt.Fprintf(&b, "\n⚠️ Unsupported content: %s", html.EscapeString(label))
	}
	return withBody(b.String(), content.Text, limitFor(content.Kind))
}

// replyEnvelope 运营者回复，加标记以区别于机器人通知
func replyEnvelope(content model.Content) string {
	head := replyMarker
	if content.Kind == model.KindUnsupported {
		label := content.Label
		if label == "" {
			label = "attachment"
		}
		head += fmt.Sprintf("\n(the operator sent a %s that cannot be relayed)", html.EscapeString(label))
	}
	return withBody(head, content.Text, limitFor(content.Kind))
}

func limitFor(kind model.ContentKind) int {
	if kind.IsMedia() {
		return maxCaptionLen
	}
	return maxTextLen
}

// withBody 拼接头和正文；正文超长时截断。
// 平台按 UTF-16 码元计长，只算可见文本，不算 HTML 标签与实体转义。
func withBody(header, body string, limit int) string {
	if body == "" {
		return header
	}
	budget := limit - textLen(visibleText(header)) - 2
	if budget <= 1 {
		return header
	}
	if textLen(body) > budget {
		body = truncateUnits(body, budget-1) + "…"
	}
	return header + "\n\n" + html.EscapeString(body)
}

// textLen UTF-16 码元数，BMP 外的字符（emoji 等）记 2
func textLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// truncateUnits 截取不超过 max 个码元的前缀，不拆代理对
func truncateUnits(s string, max int) string {
	n := 0
	for i, r := range s {
		w := utf16.RuneLen(r)
		if n+w > max {
			return s[:i]
		}
		n += w
	}
	return s
}

// visibleText 去掉标签并还原实体，得到客户端实际显示的文本
func visibleText(markup string) string {
	var b strings.Builder
	inTag := false
	for _, r := range markup {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return html.UnescapeString(b.String())
}
