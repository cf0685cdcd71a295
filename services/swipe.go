package services

import (
	"context"
	"errors"
	"log"

	"spark/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SwipeResult struct {
	Decision models.Decision     `json:"decision"`
	Matched  bool                `json:"matched"`
	MatchID  *primitive.ObjectID `json:"matchId,omitempty"`
	Match    *models.Match       `json:"match,omitempty"`
}

// SwipeService records decisions and detects mutual interest.
type SwipeService struct {
	users    UserStore
	matches  *MatchService
	notifier Notifier
}

func NewSwipeService(users UserStore, matches *MatchService, notifier Notifier) *SwipeService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &SwipeService{users: users, matches: matches, notifier: notifier}
}

func (s *SwipeService) RecordSwipe(ctx context.Context, source, target primitive.ObjectID, d models.Decision) (SwipeResult, error) {
	if !d.Valid() {
		return SwipeResult{}, newError(KindInvalidInput, "decision must be like, pass or superLike")
	}
	if source == target {
		return SwipeResult{}, newError(KindInvalidInput, "cannot swipe on yourself")
	}

	them, err := s.users.GetUser(ctx, target)
	if err != nil {
		return SwipeResult{}, storageError("target user", err)
	}
	if !them.IsActive {
		return SwipeResult{}, newError(KindNotFound, "target user not found")
	}

	if err := s.users.ApplySwipe(ctx, source, target, d, now()); err != nil {
		return SwipeResult{}, storageError("user", err)
	}
	result := SwipeResult{Decision: d}

	if d == models.DecisionSuperLike {
		s.notifier.SuperLiked(ctx, source, target)
	}
	if !d.Positive() {
		return result, nil
	}

	// Re-read after our own write so that of two concurrent mutual likes at
	// least one sees the other.
	them, err = s.users.GetUser(ctx, target)
	if err != nil {
		return SwipeResult{}, storageError("target user", err)
	}
	theirs, ok := models.DecisionToward(them, source)
	if !ok || !theirs.Positive() {
		return result, nil
	}

	var opts MatchOptions
	switch {
	case d == models.DecisionSuperLike:
		opts.SuperLikedBy = &source
	case theirs == models.DecisionSuperLike:
		opts.SuperLikedBy = &target
	}

	m, _, err := s.matches.CreateOrGetMatch(ctx, source, target, opts)
	if errors.Is(err, ErrMatchNotActive) {
		log.Printf("[SwipeService] mutual like between blocked pair %s ignored", models.PairKey(source, target))
		return result, nil
	}
	if err != nil {
		return SwipeResult{}, err
	}

	result.Matched = true
	result.MatchID = &m.ID
	result.Match = &m
	return result, nil
}
