package services

import (
	"context"
	"log"
	"sort"

	"spark/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultCandidatePageSize = 10
	MaxCandidatePageSize     = 20
)

// DiscoveryService builds the candidate pool shown to a user.
//
// The store narrows by distance and, where it can, by the other filters.
// Every filter is applied again here so results do not depend on how much
// of the query a backend pushes down:
//
//  1. distance within the requester's max distance
//  2. age within the requester's range and gender wanted by the requester
//  3. not the requester and not already swiped
//  4. active accounts only
type DiscoveryService struct {
	users UserStore
	// symmetric also requires the candidate's preferences to admit the requester.
	symmetric bool
}

func NewDiscoveryService(users UserStore, symmetric bool) *DiscoveryService {
	return &DiscoveryService{users: users, symmetric: symmetric}
}

func (s *DiscoveryService) ListCandidates(ctx context.Context, requester primitive.ObjectID, page, pageSize int) (Page[models.Candidate], error) {
	page, pageSize = normalizePage(page, pageSize, DefaultCandidatePageSize, MaxCandidatePageSize)

	me, err := s.users.GetUser(ctx, requester)
	if err != nil {
		return Page[models.Candidate]{}, storageError("user", err)
	}
	if !me.Location.Valid() {
		return Page[models.Candidate]{}, newError(KindPreconditionFailed, "location must be set first")
	}

	prefs := effectivePreferences(me.Preferences)
	swiped := models.SwipedSet(me)
	exclude := make([]primitive.ObjectID, 0, len(swiped)+1)
	exclude = append(exclude, me.ID)
	for id := range swiped {
		exclude = append(exclude, id)
	}

	q := NearQuery{
		Point:     me.Location,
		MaxMeters: float64(prefs.MaxDistance) * 1000,
		Exclude:   exclude,
		MinAge:    prefs.AgeRange.Min,
		MaxAge:    prefs.AgeRange.Max,
		Gender:    models.WantedGender(me),
	}
	if !s.symmetric {
		// One extra row tells us whether another page exists.
		q.Limit = page*pageSize + 1
	}

	found, err := s.users.Near(ctx, q)
	if err != nil {
		log.Printf("[DiscoveryService] near query for %s failed: %v", requester.Hex(), err)
		return Page[models.Candidate]{}, storageError("users", err)
	}

	pool := make([]models.Candidate, 0, len(found))
	for _, c := range found {
		if !withinDistance(c, q.MaxMeters) {
			continue
		}
		if !matchesPreferences(me, prefs, c.User) {
			continue
		}
		if s.symmetric && !matchesPreferences(c.User, effectivePreferences(c.User.Preferences), me) {
			continue
		}
		if c.User.ID == me.ID {
			continue
		}
		if _, seen := swiped[c.User.ID]; seen {
			continue
		}
		if !c.User.IsActive {
			continue
		}
		pool = append(pool, c)
	}
	sortCandidates(pool)

	start := (page - 1) * pageSize
	if start > len(pool) {
		start = len(pool)
	}
	end := start + pageSize + 1
	if end > len(pool) {
		end = len(pool)
	}
	return newPage(pool[start:end], page, pageSize), nil
}

// effectivePreferences fills unset preference fields with their defaults.
func effectivePreferences(p models.Preferences) models.Preferences {
	d := models.DefaultPreferences()
	if p.AgeRange.Min == 0 {
		p.AgeRange.Min = d.AgeRange.Min
	}
	if p.AgeRange.Max == 0 {
		p.AgeRange.Max = d.AgeRange.Max
	}
	if p.MaxDistance <= 0 {
		p.MaxDistance = d.MaxDistance
	}
	if p.MaxDistance > models.MaxDistanceLimit {
		p.MaxDistance = models.MaxDistanceLimit
	}
	return p
}

func withinDistance(c models.Candidate, maxMeters float64) bool {
	return c.DistanceMeters <= maxMeters
}

// matchesPreferences reports whether other fits who's age range and gender filter.
func matchesPreferences(who models.User, prefs models.Preferences, other models.User) bool {
	if other.Age < prefs.AgeRange.Min || other.Age > prefs.AgeRange.Max {
		return false
	}
	return models.Accepts(models.WantedGender(who), other.Gender)
}

func sortCandidates(cs []models.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].DistanceMeters != cs[j].DistanceMeters {
			return cs[i].DistanceMeters < cs[j].DistanceMeters
		}
		return cs[i].User.ID.Hex() < cs[j].User.ID.Hex()
	})
}
