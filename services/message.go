package services

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"unicode/utf8"

	"spark/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultMessagePageSize = 50
	MaxMessagePageSize     = 100
)

type SendInput struct {
	Type    models.MessageType
	Content models.Content
	ReplyTo *primitive.ObjectID
	TempID  string
}

// MessageService handles messages inside a match and keeps the match's
// counters and last-message snapshot in step.
type MessageService struct {
	messages   MessageStore
	matchStore MatchStore
	matches    *MatchService
	notifier   Notifier
}

func NewMessageService(messages MessageStore, matchStore MatchStore, matches *MatchService, notifier Notifier) *MessageService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &MessageService{messages: messages, matchStore: matchStore, matches: matches, notifier: notifier}
}

func (s *MessageService) Send(ctx context.Context, matchID, sender primitive.ObjectID, in SendInput) (models.Message, error) {
	m, err := s.matches.Get(ctx, matchID, sender)
	if err != nil {
		return models.Message{}, err
	}
	if m.Status != models.MatchActive {
		return models.Message{}, newError(KindMatchNotActive, "match is %s", m.Status)
	}
	if in.Type == "" {
		in.Type = models.MessageText
	}
	content, err := ValidateContent(in.Type, in.Content)
	if err != nil {
		return models.Message{}, err
	}
	if in.ReplyTo != nil {
		parent, err := s.messages.GetMessage(ctx, *in.ReplyTo)
		if errors.Is(err, ErrRecordNotFound) || (err == nil && parent.Match != matchID) {
			return models.Message{}, newError(KindInvalidInput, "replyTo must reference a message in this match")
		}
		if err != nil {
			return models.Message{}, storageError("message", err)
		}
	}

	seq, err := s.matchStore.NextSequence(ctx, matchID)
	if errors.Is(err, ErrRecordNotFound) {
		return models.Message{}, newError(KindMatchNotActive, "match is no longer active")
	}
	if err != nil {
		return models.Message{}, storageError("match", err)
	}

	receiver, _ := models.Partner(m, sender)
	at := now()
	msg := models.Message{
		ID:        primitive.NewObjectID(),
		Match:     matchID,
		Sender:    sender,
		Receiver:  receiver,
		Type:      in.Type,
		Content:   content,
		Status:    models.StatusSent,
		Seq:       seq,
		SentAt:    at,
		ReplyTo:   in.ReplyTo,
		Reactions: []models.Reaction{},
		TempID:    in.TempID,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := s.messages.InsertMessage(ctx, msg); err != nil {
		return models.Message{}, storageError("message", err)
	}

	// The message is saved; counters and the snapshot can be re-derived, so
	// failures from here on are logged only.
	if err := s.matchStore.IncrementMessageCount(ctx, matchID, at); err != nil {
		log.Printf("[MessageService] message count for %s not updated: %v", matchID.Hex(), err)
	}
	lm := models.LastMessage{
		Text:      models.Preview(msg),
		Sender:    sender,
		Timestamp: at,
		Type:      msg.Type,
		Seq:       seq,
	}
	if err := s.matches.RecordLastMessage(ctx, matchID, lm); err != nil {
		log.Printf("[MessageService] last message for %s not updated: %v", matchID.Hex(), err)
	}
	if err := s.matches.IncrementUnread(ctx, matchID, receiver); err != nil {
		log.Printf("[MessageService] unread count for %s not updated: %v", matchID.Hex(), err)
	}

	s.notifier.MessageSent(ctx, msg)

	// Delivery may have moved the status while notifying.
	if stored, err := s.messages.GetMessage(ctx, msg.ID); err == nil {
		msg = stored
	}
	return msg, nil
}

// ValidateContent checks content against its declared type and returns it
// normalized for storage.
func ValidateContent(t models.MessageType, c models.Content) (models.Content, error) {
	switch t {
	case models.MessageText:
		text, err := validateText(c.Text)
		if err != nil {
			return models.Content{}, err
		}
		return models.Content{Text: text}, nil

	case models.MessageImage:
		if c.Image == nil || !validMediaURL(c.Image.URL) {
			return models.Content{}, newError(KindInvalidInput, "image message needs an http(s) url")
		}
		if utf8.RuneCountInString(c.Image.Caption) > models.MaxCaptionLength {
			return models.Content{}, newError(KindInvalidInput, "caption cannot exceed %d characters", models.MaxCaptionLength)
		}
		img := *c.Image
		img.Caption = strings.TrimSpace(img.Caption)
		return models.Content{Image: &img}, nil

	case models.MessageGIF:
		if c.GIF == nil || !validMediaURL(c.GIF.URL) {
			return models.Content{}, newError(KindInvalidInput, "gif message needs an http(s) url")
		}
		gif := *c.GIF
		return models.Content{GIF: &gif}, nil
	}
	return models.Content{}, newError(KindInvalidInput, "unknown message type %q", t)
}

func validateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", newError(KindInvalidInput, "message text cannot be empty")
	}
	if utf8.RuneCountInString(text) > models.MaxTextLength {
		return "", newError(KindInvalidInput, "message cannot exceed %d characters", models.MaxTextLength)
	}
	return text, nil
}

func validMediaURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (s *MessageService) get(ctx context.Context, id primitive.ObjectID) (models.Message, error) {
	msg, err := s.messages.GetMessage(ctx, id)
	if err != nil {
		return models.Message{}, storageError("message", err)
	}
	return msg, nil
}

// advance moves a message forward and reports whether it changed.
func (s *MessageService) advance(ctx context.Context, msg models.Message, to models.MessageStatus) (models.Message, bool, error) {
	applied, err := s.messages.AdvanceStatus(ctx, msg.ID, to, now())
	if err != nil {
		return models.Message{}, false, storageError("message", err)
	}
	if !applied {
		return msg, false, nil
	}
	fresh, err := s.get(ctx, msg.ID)
	if err != nil {
		return models.Message{}, false, err
	}
	return fresh, true, nil
}

// MarkDelivered moves a sent message to delivered. Only the receiver may ack.
func (s *MessageService) MarkDelivered(ctx context.Context, messageID, receiver primitive.ObjectID) (models.Message, error) {
	msg, err := s.get(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.Receiver != receiver {
		return models.Message{}, newError(KindForbidden, "only the receiver can acknowledge delivery")
	}
	msg, changed, err := s.advance(ctx, msg, models.StatusDelivered)
	if err != nil {
		return models.Message{}, err
	}
	if changed {
		s.notifier.MessageUpdated(ctx, msg)
	}
	return msg, nil
}

// MarkFailed flags a message that could not be delivered. Only sent messages move.
func (s *MessageService) MarkFailed(ctx context.Context, messageID primitive.ObjectID) (models.Message, error) {
	msg, err := s.get(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	msg, changed, err := s.advance(ctx, msg, models.StatusFailed)
	if err != nil {
		return models.Message{}, err
	}
	if changed {
		log.Printf("[MessageService] message %s marked failed", messageID.Hex())
		s.notifier.MessageUpdated(ctx, msg)
	}
	return msg, nil
}

// MarkRead marks one inbound message read and re-derives the reader's unread count.
func (s *MessageService) MarkRead(ctx context.Context, messageID, reader primitive.ObjectID) (models.Message, error) {
	msg, err := s.get(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.Receiver != reader {
		return models.Message{}, newError(KindForbidden, "only the receiver can mark a message read")
	}
	msg, changed, err := s.advance(ctx, msg, models.StatusRead)
	if err != nil {
		return models.Message{}, err
	}
	if !changed {
		return msg, nil
	}

	n, err := s.messages.CountUnread(ctx, msg.Match, reader)
	if err != nil {
		log.Printf("[MessageService] unread recount for %s failed: %v", msg.Match.Hex(), err)
	} else if err := s.matches.setUnread(ctx, msg.Match, reader, int(n)); err != nil {
		log.Printf("[MessageService] unread count for %s not updated: %v", msg.Match.Hex(), err)
	}
	s.notifier.MessageUpdated(ctx, msg)
	return msg, nil
}

// MarkAllReadForMatch reads every inbound message of the match and zeroes
// the reader's counter. The other member's counter is untouched.
func (s *MessageService) MarkAllReadForMatch(ctx context.Context, matchID, reader primitive.ObjectID) (int64, error) {
	m, err := s.matches.Get(ctx, matchID, reader)
	if err != nil {
		return 0, err
	}
	n, err := s.messages.MarkMatchRead(ctx, matchID, reader, now())
	if err != nil {
		return 0, storageError("messages", err)
	}
	if err := s.matches.ResetUnread(ctx, matchID, reader); err != nil {
		return n, err
	}
	if n > 0 {
		s.notifier.MessagesRead(ctx, m, reader)
	}
	return n, nil
}

// Edit replaces the text of the editor's own text message.
func (s *MessageService) Edit(ctx context.Context, messageID, editor primitive.ObjectID, newText string) (models.Message, error) {
	msg, err := s.get(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.Type != models.MessageText {
		return models.Message{}, newError(KindForbidden, "only text messages can be edited")
	}
	if msg.Sender != editor {
		return models.Message{}, newError(KindForbidden, "only the sender can edit a message")
	}
	text, err := validateText(newText)
	if err != nil {
		return models.Message{}, err
	}
	m, err := s.matchStore.GetMatch(ctx, msg.Match)
	if err != nil {
		return models.Message{}, storageError("match", err)
	}
	if m.Status != models.MatchActive {
		return models.Message{}, newError(KindMatchNotActive, "match is %s", m.Status)
	}

	edited, err := s.messages.EditText(ctx, messageID, text, now())
	if err != nil {
		return models.Message{}, storageError("message", err)
	}
	s.notifier.MessageUpdated(ctx, edited)
	return edited, nil
}

// React sets user's reaction, replacing any earlier one.
func (s *MessageService) React(ctx context.Context, messageID, user primitive.ObjectID, emoji string) (models.Message, error) {
	if !models.ValidReaction(emoji) {
		return models.Message{}, newError(KindInvalidInput, "unsupported reaction %q", emoji)
	}
	if _, err := s.memberMessage(ctx, messageID, user); err != nil {
		return models.Message{}, err
	}
	updated, err := s.messages.SetReaction(ctx, messageID, models.Reaction{User: user, Emoji: emoji, ReactedAt: now()})
	if err != nil {
		return models.Message{}, storageError("message", err)
	}
	s.notifier.MessageUpdated(ctx, updated)
	return updated, nil
}

func (s *MessageService) Unreact(ctx context.Context, messageID, user primitive.ObjectID) (models.Message, error) {
	if _, err := s.memberMessage(ctx, messageID, user); err != nil {
		return models.Message{}, err
	}
	updated, err := s.messages.RemoveReaction(ctx, messageID, user)
	if err != nil {
		return models.Message{}, storageError("message", err)
	}
	s.notifier.MessageUpdated(ctx, updated)
	return updated, nil
}

func (s *MessageService) memberMessage(ctx context.Context, messageID, user primitive.ObjectID) (models.Message, error) {
	msg, err := s.get(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if _, err := s.matches.Get(ctx, msg.Match, user); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListMessages pages through a match newest first.
func (s *MessageService) ListMessages(ctx context.Context, matchID, requester primitive.ObjectID, page, pageSize int) (Page[models.Message], error) {
	if _, err := s.matches.Get(ctx, matchID, requester); err != nil {
		return Page[models.Message]{}, err
	}
	page, pageSize = normalizePage(page, pageSize, DefaultMessagePageSize, MaxMessagePageSize)
	msgs, err := s.messages.ListMessages(ctx, matchID, (page-1)*pageSize, pageSize+1)
	if err != nil {
		return Page[models.Message]{}, storageError("messages", err)
	}
	return newPage(msgs, page, pageSize), nil
}

// UnreadTotal counts a user's unread inbound messages across all matches.
func (s *MessageService) UnreadTotal(ctx context.Context, user primitive.ObjectID) (int64, error) {
	n, err := s.messages.CountUnreadForUser(ctx, user)
	if err != nil {
		return 0, storageError("messages", err)
	}
	return n, nil
}
