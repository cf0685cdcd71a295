package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageGIF   MessageType = "gif"
)

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

const (
	MaxTextLength    = 1000
	MaxCaptionLength = 200
)

// CanAdvance reports whether a message may move from one status to another.
// Forward moves only; failed is reachable from sent and is terminal.
func CanAdvance(from, to MessageStatus) bool {
	switch to {
	case StatusDelivered:
		return from == StatusSent
	case StatusRead:
		return from == StatusSent || from == StatusDelivered
	case StatusFailed:
		return from == StatusSent
	}
	return false
}

// AdvanceFrom lists the statuses a message can be in for a move to target.
func AdvanceFrom(to MessageStatus) []MessageStatus {
	var out []MessageStatus
	for _, s := range []MessageStatus{StatusSent, StatusDelivered, StatusRead, StatusFailed} {
		if CanAdvance(s, to) {
			out = append(out, s)
		}
	}
	return out
}

type ImageContent struct {
	URL      string `bson:"url" json:"url"`
	PublicID string `bson:"publicId,omitempty" json:"publicId,omitempty"`
	Caption  string `bson:"caption,omitempty" json:"caption,omitempty"`
}

type GIFContent struct {
	URL   string `bson:"url" json:"url"`
	Title string `bson:"title,omitempty" json:"title,omitempty"`
}

// Content holds exactly one of its fields, matching the message type.
type Content struct {
	Text  string        `bson:"text,omitempty" json:"text,omitempty"`
	Image *ImageContent `bson:"image,omitempty" json:"image,omitempty"`
	GIF   *GIFContent   `bson:"gif,omitempty" json:"gif,omitempty"`
}

var ReactionEmojis = []string{"❤️", "😂", "😮", "😢", "😡", "👍", "👎"}

func ValidReaction(emoji string) bool {
	for _, e := range ReactionEmojis {
		if e == emoji {
			return true
		}
	}
	return false
}

type Reaction struct {
	User      primitive.ObjectID `bson:"user" json:"user"`
	Emoji     string             `bson:"emoji" json:"emoji"`
	ReactedAt time.Time          `bson:"reactedAt" json:"reactedAt"`
}

type Message struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Match    primitive.ObjectID `bson:"match" json:"match"`
	Sender   primitive.ObjectID `bson:"sender" json:"sender"`
	Receiver primitive.ObjectID `bson:"receiver" json:"receiver"`
	Type     MessageType        `bson:"messageType" json:"messageType"`
	Content  Content            `bson:"content" json:"content"`
	Status   MessageStatus      `bson:"status" json:"status"`
	Seq      int64              `bson:"seq" json:"seq"`

	SentAt      time.Time  `bson:"sentAt" json:"sentAt"`
	DeliveredAt *time.Time `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	ReadAt      *time.Time `bson:"readAt,omitempty" json:"readAt,omitempty"`

	IsEdited     bool       `bson:"isEdited" json:"isEdited"`
	EditedAt     *time.Time `bson:"editedAt,omitempty" json:"editedAt,omitempty"`
	OriginalText string     `bson:"originalText,omitempty" json:"originalText,omitempty"`

	ReplyTo   *primitive.ObjectID `bson:"replyTo,omitempty" json:"replyTo,omitempty"`
	Reactions []Reaction          `bson:"reactions" json:"reactions"`
	TempID    string              `bson:"tempId,omitempty" json:"tempId,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Preview is the short text used for list views and notifications.
func Preview(m Message) string {
	switch m.Type {
	case MessageImage:
		if m.Content.Image != nil && m.Content.Image.Caption != "" {
			return m.Content.Image.Caption
		}
		return "📷 Photo"
	case MessageGIF:
		return "GIF"
	}
	return m.Content.Text
}

// WithReaction returns reactions with user's entry replaced by emoji.
func WithReaction(rs []Reaction, user primitive.ObjectID, emoji string, at time.Time) []Reaction {
	out := WithoutReaction(rs, user)
	return append(out, Reaction{User: user, Emoji: emoji, ReactedAt: at})
}

func WithoutReaction(rs []Reaction, user primitive.ObjectID) []Reaction {
	out := make([]Reaction, 0, len(rs))
	for _, r := range rs {
		if r.User != user {
			out = append(out, r)
		}
	}
	return out
}
