package services

import (
	"context"
	"errors"
	"log"

	"spark/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultMatchPageSize = 20
	MaxMatchPageSize     = 50

	// createAttempts bounds re-reads when the winning insert is not yet visible.
	createAttempts = 3
)

type MatchOptions struct {
	SuperLikedBy *primitive.ObjectID
}

// MatchService owns match lifecycle and the counters stored on a match.
type MatchService struct {
	matches  MatchStore
	notifier Notifier
}

func NewMatchService(matches MatchStore, notifier Notifier) *MatchService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &MatchService{matches: matches, notifier: notifier}
}

// CreateOrGetMatch returns the active match for the pair, creating it if absent.
// A pair with a blocked match never matches again. The bool reports whether
// this call created the match.
func (s *MatchService) CreateOrGetMatch(ctx context.Context, initiator, other primitive.ObjectID, opts MatchOptions) (models.Match, bool, error) {
	if initiator == other {
		return models.Match{}, false, newError(KindInvalidInput, "cannot match a user with themselves")
	}
	key := models.PairKey(initiator, other)

	for attempt := 0; attempt < createAttempts; attempt++ {
		existing, err := s.matches.FindMatchesByPair(ctx, key)
		if err != nil {
			return models.Match{}, false, storageError("matches", err)
		}
		for _, m := range existing {
			if m.Status == models.MatchBlocked {
				return models.Match{}, false, newError(KindMatchNotActive, "pair is blocked")
			}
		}
		for _, m := range existing {
			if m.Status == models.MatchActive {
				return m, false, nil
			}
		}

		m := models.NewMatch(initiator, other, now())
		if opts.SuperLikedBy != nil {
			m.IsSuperLike = true
			by := *opts.SuperLikedBy
			m.SuperLikedBy = &by
		}
		err = s.matches.InsertMatch(ctx, m)
		if err == nil {
			log.Printf("[MatchService] match %s created for %s", m.ID.Hex(), key)
			s.notifier.MatchCreated(ctx, m)
			return m, true, nil
		}
		if !errors.Is(err, ErrDuplicateRecord) {
			return models.Match{}, false, storageError("match", err)
		}
		log.Printf("[MatchService] concurrent create for %s, reading winner", key)
	}
	return models.Match{}, false, newError(KindConflict, "could not resolve match for %s", key)
}

func (s *MatchService) Get(ctx context.Context, matchID, requester primitive.ObjectID) (models.Match, error) {
	m, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return models.Match{}, storageError("match", err)
	}
	if !models.IncludesUser(m, requester) {
		return models.Match{}, newError(KindNotAMember, "not a member of this match")
	}
	return m, nil
}

// ListForUser returns active matches, most recent activity first.
func (s *MatchService) ListForUser(ctx context.Context, user primitive.ObjectID, page, pageSize int) (Page[models.Match], error) {
	page, pageSize = normalizePage(page, pageSize, DefaultMatchPageSize, MaxMatchPageSize)
	ms, err := s.matches.ListMatchesForUser(ctx, user, models.MatchActive, (page-1)*pageSize, pageSize+1)
	if err != nil {
		return Page[models.Match]{}, storageError("matches", err)
	}
	return newPage(ms, page, pageSize), nil
}

func (s *MatchService) Partner(ctx context.Context, matchID, user primitive.ObjectID) (primitive.ObjectID, error) {
	m, err := s.Get(ctx, matchID, user)
	if err != nil {
		return primitive.NilObjectID, err
	}
	p, _ := models.Partner(m, user)
	return p, nil
}

// Unmatch ends an active match. Repeating it, or unmatching a blocked match,
// returns the match unchanged.
func (s *MatchService) Unmatch(ctx context.Context, matchID, requester primitive.ObjectID) (models.Match, error) {
	m, err := s.Get(ctx, matchID, requester)
	if err != nil {
		return models.Match{}, err
	}
	if m.Status != models.MatchActive {
		return m, nil
	}
	updated, applied, err := s.matches.TransitionMatch(ctx, matchID,
		[]models.MatchStatus{models.MatchActive}, models.MatchUnmatched, requester, now())
	if err != nil {
		return models.Match{}, storageError("match", err)
	}
	if applied {
		log.Printf("[MatchService] match %s unmatched by %s", matchID.Hex(), requester.Hex())
	}
	return updated, nil
}

// Block moves an active or unmatched match to blocked.
func (s *MatchService) Block(ctx context.Context, matchID, requester primitive.ObjectID) (models.Match, error) {
	m, err := s.Get(ctx, matchID, requester)
	if err != nil {
		return models.Match{}, err
	}
	if m.Status == models.MatchBlocked {
		return m, nil
	}
	updated, applied, err := s.matches.TransitionMatch(ctx, matchID,
		[]models.MatchStatus{models.MatchActive, models.MatchUnmatched}, models.MatchBlocked, requester, now())
	if err != nil {
		return models.Match{}, storageError("match", err)
	}
	if applied {
		log.Printf("[MatchService] match %s blocked by %s", matchID.Hex(), requester.Hex())
	}
	if err := s.blockPair(ctx, updated, requester); err != nil {
		return models.Match{}, err
	}
	return updated, nil
}

// blockPair blocks every other active match of the pair, so a block on an
// old conversation also ends a newer one.
func (s *MatchService) blockPair(ctx context.Context, blocked models.Match, requester primitive.ObjectID) error {
	siblings, err := s.matches.FindMatchesByPair(ctx, blocked.PairKey)
	if err != nil {
		return storageError("matches", err)
	}
	for _, m := range siblings {
		if m.ID == blocked.ID || m.Status != models.MatchActive {
			continue
		}
		_, applied, err := s.matches.TransitionMatch(ctx, m.ID,
			[]models.MatchStatus{models.MatchActive}, models.MatchBlocked, requester, now())
		if err != nil {
			return storageError("match", err)
		}
		if applied {
			log.Printf("[MatchService] match %s blocked with %s", m.ID.Hex(), blocked.ID.Hex())
		}
	}
	return nil
}

// IncrementUnread bumps recipient's unread counter. A non-member is a caller
// bug and is only logged.
func (s *MatchService) IncrementUnread(ctx context.Context, matchID, recipient primitive.ObjectID) error {
	ok, err := s.matches.IncrementUnread(ctx, matchID, recipient)
	if err != nil {
		return storageError("match", err)
	}
	if !ok {
		log.Printf("[MatchService] increment unread: %s is not a member of %s", recipient.Hex(), matchID.Hex())
	}
	return nil
}

func (s *MatchService) ResetUnread(ctx context.Context, matchID, recipient primitive.ObjectID) error {
	return s.setUnread(ctx, matchID, recipient, 0)
}

func (s *MatchService) setUnread(ctx context.Context, matchID, recipient primitive.ObjectID, n int) error {
	ok, err := s.matches.SetUnread(ctx, matchID, recipient, n)
	if err != nil {
		return storageError("match", err)
	}
	if !ok {
		log.Printf("[MatchService] set unread: %s is not a member of %s", recipient.Hex(), matchID.Hex())
	}
	return nil
}

// RecordLastMessage keeps the snapshot of the highest-sequence message.
func (s *MatchService) RecordLastMessage(ctx context.Context, matchID primitive.ObjectID, lm models.LastMessage) error {
	applied, err := s.matches.RecordLastMessage(ctx, matchID, lm)
	if err != nil {
		return storageError("match", err)
	}
	if !applied {
		log.Printf("[MatchService] stale last message seq %d ignored for %s", lm.Seq, matchID.Hex())
	}
	return nil
}
