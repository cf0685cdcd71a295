// Package memstore keeps users, matches, messages and push subscriptions in
// process memory. It backs tests and the "memory" store backend.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"spark/models"
	"spark/services"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is safe for concurrent use. Values are copied on the way in and out
// so callers never share slices or maps with the store.
type Store struct {
	mu            sync.Mutex
	users         map[primitive.ObjectID]models.User
	matches       map[primitive.ObjectID]models.Match
	messages      map[primitive.ObjectID]models.Message
	subscriptions map[primitive.ObjectID]models.PushSubscription
}

func New() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Reset drops all data.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[primitive.ObjectID]models.User)
	s.matches = make(map[primitive.ObjectID]models.Match)
	s.messages = make(map[primitive.ObjectID]models.Message)
	s.subscriptions = make(map[primitive.ObjectID]models.PushSubscription)
}

// ===== USERS =====

func (s *Store) GetUser(_ context.Context, id primitive.ObjectID) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, services.ErrRecordNotFound
	}
	return copyUser(u), nil
}

func (s *Store) SaveUser(_ context.Context, u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *Store) Near(_ context.Context, q services.NearQuery) ([]models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	excluded := make(map[primitive.ObjectID]struct{}, len(q.Exclude))
	for _, id := range q.Exclude {
		excluded[id] = struct{}{}
	}

	var out []models.Candidate
	for _, u := range s.users {
		if !u.IsActive || !u.Location.Valid() {
			continue
		}
		if _, skip := excluded[u.ID]; skip {
			continue
		}
		if q.MinAge > 0 && u.Age < q.MinAge {
			continue
		}
		if q.MaxAge > 0 && u.Age > q.MaxAge {
			continue
		}
		if !models.Accepts(q.Gender, u.Gender) {
			continue
		}
		d := models.DistanceKm(q.Point, u.Location) * 1000
		if d > q.MaxMeters {
			continue
		}
		out = append(out, models.Candidate{User: copyUser(u), DistanceMeters: d})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].User.ID.Hex() < out[j].User.ID.Hex()
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) ApplySwipe(_ context.Context, source, target primitive.ObjectID, d models.Decision, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[source]
	if !ok {
		return services.ErrRecordNotFound
	}
	u = copyUser(u)
	u.Swipes.Apply(target, d, at)
	u.LastActive = at
	s.users[source] = u
	return nil
}

// ===== MATCHES =====

func (s *Store) InsertMatch(_ context.Context, m models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[m.ID]; ok {
		return services.ErrDuplicateRecord
	}
	if m.Status == models.MatchActive {
		for _, other := range s.matches {
			if other.PairKey == m.PairKey && other.Status == models.MatchActive {
				return services.ErrDuplicateRecord
			}
		}
	}
	s.matches[m.ID] = copyMatch(m)
	return nil
}

func (s *Store) GetMatch(_ context.Context, id primitive.ObjectID) (models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return models.Match{}, services.ErrRecordNotFound
	}
	return copyMatch(m), nil
}

func (s *Store) FindMatchesByPair(_ context.Context, pairKey string) ([]models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Match
	for _, m := range s.matches {
		if m.PairKey == pairKey {
			out = append(out, copyMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) TransitionMatch(_ context.Context, id primitive.ObjectID, from []models.MatchStatus, to models.MatchStatus, by primitive.ObjectID, at time.Time) (models.Match, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return models.Match{}, false, services.ErrRecordNotFound
	}
	allowed := false
	for _, st := range from {
		if m.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return copyMatch(m), false, nil
	}

	m = copyMatch(m)
	m.Status = to
	m.UpdatedAt = at
	switch to {
	case models.MatchUnmatched:
		m.UnmatchedBy, m.UnmatchedAt = &by, &at
	case models.MatchBlocked:
		m.BlockedBy, m.BlockedAt = &by, &at
	}
	s.matches[id] = m
	return copyMatch(m), true, nil
}

func (s *Store) ListMatchesForUser(_ context.Context, user primitive.ObjectID, status models.MatchStatus, skip, limit int) ([]models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Match
	for _, m := range s.matches {
		if m.Status == status && models.IncludesUser(m, user) {
			out = append(out, copyMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].LastActivityAt, out[j].LastActivityAt
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return window(out, skip, limit), nil
}

func (s *Store) NextSequence(_ context.Context, id primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok || m.Status != models.MatchActive {
		return 0, services.ErrRecordNotFound
	}
	m.Seq++
	s.matches[id] = m
	return m.Seq, nil
}

func (s *Store) IncrementMessageCount(_ context.Context, id primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return services.ErrRecordNotFound
	}
	m.MessageCount++
	m.IsConversationStarted = true
	m.UpdatedAt = at
	s.matches[id] = m
	return nil
}

func (s *Store) RecordLastMessage(_ context.Context, id primitive.ObjectID, lm models.LastMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return false, services.ErrRecordNotFound
	}
	if m.LastMessage != nil && m.LastMessage.Seq >= lm.Seq {
		return false, nil
	}
	m.LastMessage = &lm
	if lm.Timestamp.After(m.LastActivityAt) {
		m.LastActivityAt = lm.Timestamp
	}
	s.matches[id] = m
	return true, nil
}

func (s *Store) IncrementUnread(_ context.Context, id, user primitive.ObjectID) (bool, error) {
	return s.updateUnread(id, user, func(n int) int { return n + 1 })
}

func (s *Store) SetUnread(_ context.Context, id, user primitive.ObjectID, n int) (bool, error) {
	return s.updateUnread(id, user, func(int) int { return n })
}

func (s *Store) updateUnread(id, user primitive.ObjectID, f func(int) int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return false, services.ErrRecordNotFound
	}
	if !models.IncludesUser(m, user) {
		return false, nil
	}
	m = copyMatch(m)
	m.UnreadCount[user.Hex()] = f(m.UnreadCount[user.Hex()])
	s.matches[id] = m
	return true, nil
}

// ===== MESSAGES =====

func (s *Store) InsertMessage(_ context.Context, m models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[m.ID]; ok {
		return services.ErrDuplicateRecord
	}
	s.messages[m.ID] = copyMessage(m)
	return nil
}

func (s *Store) GetMessage(_ context.Context, id primitive.ObjectID) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return models.Message{}, services.ErrRecordNotFound
	}
	return copyMessage(m), nil
}

func (s *Store) AdvanceStatus(_ context.Context, id primitive.ObjectID, to models.MessageStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return false, services.ErrRecordNotFound
	}
	if !models.CanAdvance(m.Status, to) {
		return false, nil
	}
	s.messages[id] = advanced(m, to, at)
	return true, nil
}

func advanced(m models.Message, to models.MessageStatus, at time.Time) models.Message {
	m.Status = to
	m.UpdatedAt = at
	switch to {
	case models.StatusDelivered:
		m.DeliveredAt = &at
	case models.StatusRead:
		m.ReadAt = &at
	}
	return m
}

func (s *Store) MarkMatchRead(_ context.Context, matchID, reader primitive.ObjectID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.messages {
		if m.Match == matchID && m.Receiver == reader && models.CanAdvance(m.Status, models.StatusRead) {
			s.messages[id] = advanced(m, models.StatusRead, at)
			n++
		}
	}
	return n, nil
}

func (s *Store) CountUnread(_ context.Context, matchID, reader primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages {
		if m.Match == matchID && m.Receiver == reader && unread(m) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountUnreadForUser(_ context.Context, user primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages {
		if m.Receiver == user && unread(m) {
			n++
		}
	}
	return n, nil
}

func unread(m models.Message) bool {
	return m.Status == models.StatusSent || m.Status == models.StatusDelivered
}

func (s *Store) EditText(_ context.Context, id primitive.ObjectID, text string, at time.Time) (models.Message, error) {
	return s.updateMessage(id, func(m *models.Message) {
		if !m.IsEdited {
			m.OriginalText = m.Content.Text
		}
		m.Content.Text = text
		m.IsEdited = true
		m.EditedAt = &at
		m.UpdatedAt = at
	})
}

func (s *Store) SetReaction(_ context.Context, id primitive.ObjectID, r models.Reaction) (models.Message, error) {
	return s.updateMessage(id, func(m *models.Message) {
		m.Reactions = models.WithReaction(m.Reactions, r.User, r.Emoji, r.ReactedAt)
	})
}

func (s *Store) RemoveReaction(_ context.Context, id, user primitive.ObjectID) (models.Message, error) {
	return s.updateMessage(id, func(m *models.Message) {
		m.Reactions = models.WithoutReaction(m.Reactions, user)
	})
}

func (s *Store) updateMessage(id primitive.ObjectID, f func(*models.Message)) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return models.Message{}, services.ErrRecordNotFound
	}
	m = copyMessage(m)
	f(&m)
	s.messages[id] = m
	return copyMessage(m), nil
}

func (s *Store) ListMessages(_ context.Context, matchID primitive.ObjectID, skip, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.messages {
		if m.Match == matchID {
			out = append(out, copyMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	return window(out, skip, limit), nil
}

// ===== PUSH SUBSCRIPTIONS =====

func (s *Store) SaveSubscription(_ context.Context, sub models.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID.IsZero() {
		sub.ID = primitive.NewObjectID()
	}
	s.subscriptions[sub.UserID] = sub
	return nil
}

func (s *Store) FindSubscription(_ context.Context, user primitive.ObjectID) (models.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[user]
	if !ok {
		return models.PushSubscription{}, services.ErrRecordNotFound
	}
	return sub, nil
}

func (s *Store) DeleteSubscription(_ context.Context, user primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscriptions, user)
	return nil
}

// ===== COPY HELPERS =====

func window[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return nil
	}
	items = items[skip:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func copyUser(u models.User) models.User {
	u.Photos = append([]models.Photo(nil), u.Photos...)
	u.Location.Coordinates = append([]float64(nil), u.Location.Coordinates...)
	u.Swipes.Liked = append([]models.SwipeEntry(nil), u.Swipes.Liked...)
	u.Swipes.Passed = append([]models.SwipeEntry(nil), u.Swipes.Passed...)
	u.Swipes.SuperLiked = append([]models.SwipeEntry(nil), u.Swipes.SuperLiked...)
	return u
}

func copyMatch(m models.Match) models.Match {
	m.Users = append([]primitive.ObjectID(nil), m.Users...)
	unread := make(map[string]int, len(m.UnreadCount))
	for k, v := range m.UnreadCount {
		unread[k] = v
	}
	m.UnreadCount = unread
	if m.LastMessage != nil {
		lm := *m.LastMessage
		m.LastMessage = &lm
	}
	return m
}

func copyMessage(m models.Message) models.Message {
	m.Reactions = append([]models.Reaction{}, m.Reactions...)
	if m.Content.Image != nil {
		img := *m.Content.Image
		m.Content.Image = &img
	}
	if m.Content.GIF != nil {
		gif := *m.Content.GIF
		m.Content.GIF = &gif
	}
	return m
}
