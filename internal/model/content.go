package model

// ContentKind 消息内容类型
type ContentKind int

const (
	KindText ContentKind = iota + 1
	KindPhoto
	KindDocument
	KindVideo
	KindAudio
	KindUnsupported
)

func (k ContentKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPhoto:
		return "photo"
	case KindDocument:
		return "document"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindUnsupported:
		return "unsupported"
	}
	return "unknown"
}

// IsMedia 是否走 SendMedia
func (k ContentKind) IsMedia() bool {
	switch k {
	case KindPhoto, KindDocument, KindVideo, KindAudio:
		return true
	}
	return false
}

// Content 入站内容。Text 对文本消息是正文，对媒体消息是 caption。
// FileRef 是平台侧的文件引用（media 才有）。
type Content struct {
	Kind    ContentKind
	Text    string
	FileRef string
	Label   string // 平台侧的原始类型名，KindUnsupported 时用于提示
}

func TextContent(text string) Content { return Content{Kind: KindText, Text: text} }

func MediaContent(kind ContentKind, fileRef, caption string) Content {
	return Content{Kind: kind, FileRef: fileRef, Text: caption}
}

func UnsupportedContent(label, caption string) Content {
	return Content{Kind: KindUnsupported, Label: label, Text: caption}
}

// Empty 没有正文也没有文件
func (c Content) Empty() bool { return c.Text == "" && c.FileRef == "" }

// Inbound 平台无关的入站事件
type Inbound struct {
	MessageID int
	ChatID    int64
	From      Sender
	Command   string // 不含斜杠，非命令为空
	Args      string
	Content   Content
	ReplyTo   *int // 被回复消息的 ID
}
