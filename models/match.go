package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MatchStatus string

const (
	MatchActive    MatchStatus = "active"
	MatchUnmatched MatchStatus = "unmatched"
	MatchBlocked   MatchStatus = "blocked"
)

// LastMessage is the list-view snapshot of the newest message in a match.
type LastMessage struct {
	Text      string             `bson:"text" json:"text"`
	Sender    primitive.ObjectID `bson:"sender" json:"sender"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
	Type      MessageType        `bson:"messageType" json:"messageType"`
	Seq       int64              `bson:"seq" json:"seq"`
}

type Match struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Users     []primitive.ObjectID `bson:"users" json:"users"`
	PairKey   string               `bson:"pairKey" json:"-"`
	Status    MatchStatus          `bson:"status" json:"status"`
	MatchedBy primitive.ObjectID   `bson:"matchedBy" json:"matchedBy"`

	LastMessage           *LastMessage   `bson:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	MessageCount          int64          `bson:"messageCount" json:"messageCount"`
	Seq                   int64          `bson:"seq" json:"-"`
	UnreadCount           map[string]int `bson:"unreadCount" json:"unreadCount"`
	IsConversationStarted bool           `bson:"isConversationStarted" json:"isConversationStarted"`

	IsSuperLike  bool                `bson:"isSuperLike" json:"isSuperLike"`
	SuperLikedBy *primitive.ObjectID `bson:"superLikedBy,omitempty" json:"superLikedBy,omitempty"`

	UnmatchedBy *primitive.ObjectID `bson:"unmatchedBy,omitempty" json:"unmatchedBy,omitempty"`
	UnmatchedAt *time.Time          `bson:"unmatchedAt,omitempty" json:"unmatchedAt,omitempty"`
	BlockedBy   *primitive.ObjectID `bson:"blockedBy,omitempty" json:"blockedBy,omitempty"`
	BlockedAt   *time.Time          `bson:"blockedAt,omitempty" json:"blockedAt,omitempty"`

	// LastActivityAt is the newest of creation and last message time.
	LastActivityAt time.Time `bson:"lastActivityAt" json:"lastActivityAt"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

// PairKey is the order-independent identity of a user pair.
func PairKey(a, b primitive.ObjectID) string {
	x, y := a.Hex(), b.Hex()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}

// NewMatch builds an active match. initiator completed the mutual like and is listed first.
func NewMatch(initiator, other primitive.ObjectID, at time.Time) Match {
	return Match{
		ID:        primitive.NewObjectID(),
		Users:     []primitive.ObjectID{initiator, other},
		PairKey:   PairKey(initiator, other),
		Status:    MatchActive,
		MatchedBy: initiator,
		UnreadCount: map[string]int{
			initiator.Hex(): 0,
			other.Hex():     0,
		},
		LastActivityAt: at,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func IncludesUser(m Match, u primitive.ObjectID) bool {
	for _, id := range m.Users {
		if id == u {
			return true
		}
	}
	return false
}

// Partner returns the other member of the match.
func Partner(m Match, u primitive.ObjectID) (primitive.ObjectID, bool) {
	if len(m.Users) != 2 || !IncludesUser(m, u) {
		return primitive.NilObjectID, false
	}
	if m.Users[0] == u {
		return m.Users[1], true
	}
	return m.Users[0], true
}

func UnreadFor(m Match, u primitive.ObjectID) int {
	return m.UnreadCount[u.Hex()]
}
