package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/d60-Lab/relay-bot/internal/model"
)

func TestOperatorEnvelope_EscapesAndLinks(t *testing.T) {
	sender := model.Sender{ID: 42, FirstName: "<Ana>", UserName: "ana"}
	got := operatorEnvelope(sender, "tg://user?id=42", model.TextContent("1 < 2 & 3"))

	assert.Contains(t, got, `<a href="tg://user?id=42">&lt;Ana&gt;</a>`)
	assert.Contains(t, got, "<code>42</code>")
	assert.Contains(t, got, "@ana")
	assert.True(t, strings.HasSuffix(got, "1 &lt; 2 &amp; 3"))
}

func TestOperatorEnvelope_NoProfileURL(t *testing.T) {
	got := operatorEnvelope(model.Sender{ID: 5, FirstName: "Bo"}, "", model.TextContent("x"))
	assert.Contains(t, got, "From: Bo")
	assert.NotContains(t, got, "<a ")
}

func TestOperatorEnvelope_TruncatesCaption(t *testing.T) {
	long := strings.Repeat("é", 3000)
	got := operatorEnvelope(model.Sender{ID: 5, FirstName: "Bo"}, "", model.MediaContent(model.KindPhoto, "f", long))

	assert.LessOrEqual(t, textLen(visibleText(got)), maxCaptionLen)
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestOperatorEnvelope_CountsUTF16Units(t *testing.T) {
	sender := model.Sender{ID: 5, FirstName: "Bo", UserName: "bo"}

	text := operatorEnvelope(sender, "tg://user?id=5", model.TextContent(strings.Repeat("😀", 2048)))
	assert.LessOrEqual(t, textLen(visibleText(text)), maxTextLen)
	assert.True(t, strings.HasSuffix(text, "…"))
	assert.True(t, utf8.ValidString(text))

	caption := operatorEnvelope(sender, "tg://user?id=5", model.MediaContent(model.KindPhoto, "f", strings.Repeat("😀", 512)))
	assert.LessOrEqual(t, textLen(visibleText(caption)), maxCaptionLen)
	assert.True(t, strings.HasSuffix(caption, "…"))
}

func TestOperatorEnvelope_KeepsBodyThatFits(t *testing.T) {
	body := strings.Repeat("😀", 100)
	got := operatorEnvelope(model.Sender{ID: 5, FirstName: "Bo"}, "", model.TextContent(body))
	assert.True(t, strings.HasSuffix(got, body))
}

func TestTextLen(t *testing.T) {
	assert.Equal(t, 0, textLen(""))
	assert.Equal(t, 3, textLen("abc"))
	assert.Equal(t, 1, textLen("é"))
	assert.Equal(t, 2, textLen("😀"))
	assert.Equal(t, "a😀", truncateUnits("a😀😀", 4))
	assert.Equal(t, "a", truncateUnits("a😀", 2))
}

func TestVisibleText(t *testing.T) {
	assert.Equal(t, "From: <Ana>", visibleText(`From: <a href="tg://user?id=1">&lt;Ana&gt;</a>`))
	assert.Equal(t, "💬 Reply from operator", visibleText(replyMarker))
}

func TestReplyEnvelope(t *testing.T) {
	assert.Equal(t, replyMarker+"\n\nhi back", replyEnvelope(model.TextContent("hi back")))
	assert.Equal(t, replyMarker, replyEnvelope(model.TextContent("")))
	assert.Contains(t, replyEnvelope(model.UnsupportedContent("sticker", "")), "sticker")
}
