package services

import (
	"context"
	"errors"
	"time"

	"spark/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Stores report these so services can tell expected outcomes from outages.
var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrDuplicateRecord = errors.New("duplicate record")
)

// NearQuery narrows a proximity search. Zero values disable a filter.
type NearQuery struct {
	Point     models.GeoPoint
	MaxMeters float64
	Exclude   []primitive.ObjectID
	MinAge    int
	MaxAge    int
	Gender    models.Gender
	// Limit caps the result size after sorting by distance then id.
	Limit int
}

type UserStore interface {
	GetUser(ctx context.Context, id primitive.ObjectID) (models.User, error)
	SaveUser(ctx context.Context, u models.User) error
	// Near returns active users within q.MaxMeters of q.Point, nearest first.
	Near(ctx context.Context, q NearQuery) ([]models.Candidate, error)
	// ApplySwipe moves target into the decision's list in one write.
	ApplySwipe(ctx context.Context, source, target primitive.ObjectID, d models.Decision, at time.Time) error
}

type MatchStore interface {
	// InsertMatch fails with ErrDuplicateRecord when the pair already has an active match.
	InsertMatch(ctx context.Context, m models.Match) error
	GetMatch(ctx context.Context, id primitive.ObjectID) (models.Match, error)
	FindMatchesByPair(ctx context.Context, pairKey string) ([]models.Match, error)
	// TransitionMatch sets status to `to` only if the current status is in from.
	// The returned bool reports whether the write applied.
	TransitionMatch(ctx context.Context, id primitive.ObjectID, from []models.MatchStatus, to models.MatchStatus, by primitive.ObjectID, at time.Time) (models.Match, bool, error)
	ListMatchesForUser(ctx context.Context, user primitive.ObjectID, status models.MatchStatus, skip, limit int) ([]models.Match, error)
	// NextSequence reserves the next message sequence of an active match.
	NextSequence(ctx context.Context, id primitive.ObjectID) (int64, error)
	IncrementMessageCount(ctx context.Context, id primitive.ObjectID, at time.Time) error
	// RecordLastMessage stores lm unless a message with a higher sequence is already recorded.
	RecordLastMessage(ctx context.Context, id primitive.ObjectID, lm models.LastMessage) (bool, error)
	// IncrementUnread and SetUnread report false when user is not a member.
	IncrementUnread(ctx context.Context, id, user primitive.ObjectID) (bool, error)
	SetUnread(ctx context.Context, id, user primitive.ObjectID, n int) (bool, error)
}

type MessageStore interface {
	InsertMessage(ctx context.Context, m models.Message) error
	GetMessage(ctx context.Context, id primitive.ObjectID) (models.Message, error)
	// AdvanceStatus moves a message to `to` when its status allows it.
	AdvanceStatus(ctx context.Context, id primitive.ObjectID, to models.MessageStatus, at time.Time) (bool, error)
	// MarkMatchRead marks every sent or delivered message addressed to reader as read.
	MarkMatchRead(ctx context.Context, matchID, reader primitive.ObjectID, at time.Time) (int64, error)
	CountUnread(ctx context.Context, matchID, reader primitive.ObjectID) (int64, error)
	CountUnreadForUser(ctx context.Context, user primitive.ObjectID) (int64, error)
	// EditText replaces the text and keeps the first pre-edit text as originalText.
	EditText(ctx context.Context, id primitive.ObjectID, text string, at time.Time) (models.Message, error)
	SetReaction(ctx context.Context, id primitive.ObjectID, r models.Reaction) (models.Message, error)
	RemoveReaction(ctx context.Context, id, user primitive.ObjectID) (models.Message, error)
	// ListMessages returns a match's messages newest first.
	ListMessages(ctx context.Context, matchID primitive.ObjectID, skip, limit int) ([]models.Message, error)
}

// Page is one slice of a paginated listing.
type Page[T any] struct {
	Items    []T  `json:"items"`
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasMore  bool `json:"hasMore"`
}

func normalizePage(page, size, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = def
	}
	if size > max {
		size = max
	}
	return page, size
}

// newPage trims a fetch of size+1 items and derives HasMore from the overflow.
func newPage[T any](items []T, page, size int) Page[T] {
	more := len(items) > size
	if more {
		items = items[:size]
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Page: page, PageSize: size, HasMore: more}
}

func now() time.Time { return time.Now().UTC() }
