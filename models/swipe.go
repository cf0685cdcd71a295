package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Decision string

const (
	DecisionLike      Decision = "like"
	DecisionPass      Decision = "pass"
	DecisionSuperLike Decision = "superLike"
)

func (d Decision) Valid() bool {
	switch d {
	case DecisionLike, DecisionPass, DecisionSuperLike:
		return true
	}
	return false
}

// Positive reports whether the decision counts toward mutual interest.
func (d Decision) Positive() bool {
	return d == DecisionLike || d == DecisionSuperLike
}

// Field is the bson path of the swipe list holding this decision.
func (d Decision) Field() string {
	switch d {
	case DecisionLike:
		return "swipes.liked"
	case DecisionPass:
		return "swipes.passed"
	case DecisionSuperLike:
		return "swipes.superLiked"
	}
	return ""
}

// DecisionToward returns the decision u holds for target, if any.
func DecisionToward(u User, target primitive.ObjectID) (Decision, bool) {
	lists := []struct {
		d       Decision
		entries []SwipeEntry
	}{
		{DecisionLike, u.Swipes.Liked},
		{DecisionPass, u.Swipes.Passed},
		{DecisionSuperLike, u.Swipes.SuperLiked},
	}
	for _, l := range lists {
		for _, e := range l.entries {
			if e.User == target {
				return l.d, true
			}
		}
	}
	return "", false
}

// SwipedSet collects every user the swiper has a decision for.
func SwipedSet(u User) map[primitive.ObjectID]struct{} {
	seen := make(map[primitive.ObjectID]struct{},
		len(u.Swipes.Liked)+len(u.Swipes.Passed)+len(u.Swipes.SuperLiked))
	for _, list := range [][]SwipeEntry{u.Swipes.Liked, u.Swipes.Passed, u.Swipes.SuperLiked} {
		for _, e := range list {
			seen[e.User] = struct{}{}
		}
	}
	return seen
}

// Apply drops target from every list and records the new decision.
func (s *Swipes) Apply(target primitive.ObjectID, d Decision, at time.Time) {
	s.Liked = without(s.Liked, target)
	s.Passed = without(s.Passed, target)
	s.SuperLiked = without(s.SuperLiked, target)

	entry := SwipeEntry{User: target, SwipedAt: at}
	switch d {
	case DecisionLike:
		s.Liked = append(s.Liked, entry)
	case DecisionPass:
		s.Passed = append(s.Passed, entry)
	case DecisionSuperLike:
		s.SuperLiked = append(s.SuperLiked, entry)
	}
}

func without(entries []SwipeEntry, target primitive.ObjectID) []SwipeEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.User != target {
			out = append(out, e)
		}
	}
	return out
}
