package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message type tags, derived from which of content and media are present.
const (
	MessageTypeText      = "text"
	MessageTypeMedia     = "media"
	MessageTypeMediaText = "media+text"
)

// Supported media kinds.
const (
	MediaKindImage = "image"
	MediaKindFile  = "file"
)

func IsMediaKind(kind string) bool {
	return kind == MediaKindImage || kind == MediaKindFile
}

// MessageType computes the type tag. The caller rejects the
// neither-content-nor-media case before persistence.
func MessageType(hasContent, hasMedia bool) string {
	switch {
	case hasContent && hasMedia:
		return MessageTypeMediaText
	case hasMedia:
		return MessageTypeMedia
	default:
		return MessageTypeText
	}
}

type Media struct {
	URL  string `json:"url"`
	Kind string `json:"type"`
}

type Message struct {
	ID             uuid.UUID   `json:"_id"`
	ConversationID uuid.UUID   `json:"chat_id"`
	SenderID       uuid.UUID   `json:"sender_id"`
	Content        *string     `json:"content,omitempty"`
	Media          *Media      `json:"media,omitempty"`
	Type           string      `json:"type"`
	ReadBy         []uuid.UUID `json:"readBy"`
	CreatedAt      time.Time   `json:"createdAt"`
	// Joined fields
	SenderName   string        `json:"sender_name,omitempty"`
	SenderPic    string        `json:"sender_pic,omitempty"`
	Conversation *Conversation `json:"chat,omitempty"`
}

// Roles of a ChatTurn handed to the text generation service.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one entry of the conversation history replayed to the bot.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
