package profile

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

const shardCount = 256

type shard struct {
	mu       sync.RWMutex
	profiles map[string]*domain.BehaviorProfile
}

// Store holds behavior profiles sharded by identity hash. Mutations for the
// same identity serialize on the shard lock; different identities proceed in
// parallel. Readers get copies, never live references.
type Store struct {
	shards [shardCount]*shard
}

func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &shard{profiles: make(map[string]*domain.BehaviorProfile)}
	}
	return s
}

func (s *Store) shardFor(identityID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(identityID))
	return s.shards[h.Sum32()%shardCount]
}

// Apply folds one event into its identity's profile, returning the snapshot
// before and after.
func (s *Store) Apply(e *domain.Event) (prev, curr domain.BehaviorProfile) {
	sh := s.shardFor(e.IdentityID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	p, ok := sh.profiles[e.IdentityID]
	if !ok {
		p = &domain.BehaviorProfile{}
		sh.profiles[e.IdentityID] = p
	}

	prev = *p
	*p = Fold(*p, e)
	return prev, *p
}

// Snapshot returns a copy of one identity's profile.
func (s *Store) Snapshot(identityID string) (domain.BehaviorProfile, bool) {
	sh := s.shardFor(identityID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	p, ok := sh.profiles[identityID]
	if !ok {
		return domain.BehaviorProfile{}, false
	}
	return *p, true
}

// SetScores persists scoring output back into the profile.
func (s *Store) SetScores(identityID string, leadScore int, churnRisk float64, band domain.ChurnBand, segment domain.Segment, at time.Time) {
	sh := s.shardFor(identityID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	p, ok := sh.profiles[identityID]
	if !ok {
		return
	}
	p.LeadScore = leadScore
	p.ChurnRisk = churnRisk
	p.ChurnBand = band
	p.Segment = segment
	p.ScoredAt = at
}

// Merge folds the merged identity's counters into the survivor additively
// and drops the merged profile. Shard locks are taken in address order so
// concurrent merges cannot deadlock.
func (s *Store) Merge(survivorID, mergedID string) {
	shA, shB := s.shardFor(survivorID), s.shardFor(mergedID)
	if shA == shB {
		shA.mu.Lock()
		defer shA.mu.Unlock()
	} else {
		first, second := shA, shB
		if s.shardIndex(survivorID) > s.shardIndex(mergedID) {
			first, second = shB, shA
		}
		first.mu.Lock()
		defer first.mu.Unlock()
		second.mu.Lock()
		defer second.mu.Unlock()
	}

	merged, ok := shB.profiles[mergedID]
	if !ok {
		return
	}
	delete(shB.profiles, mergedID)

	survivor, ok := shA.profiles[survivorID]
	if !ok {
		merged.IdentityID = survivorID
		shA.profiles[survivorID] = merged
		return
	}

	survivor.Counters.Sessions += merged.Counters.Sessions
	survivor.Counters.PageViews += merged.Counters.PageViews
	survivor.Counters.ScrollDepthHits += merged.Counters.ScrollDepthHits
	survivor.Counters.Clicks += merged.Counters.Clicks
	survivor.Counters.RageClicks += merged.Counters.RageClicks
	survivor.Counters.FormFocuses += merged.Counters.FormFocuses
	survivor.Counters.FormAbandons += merged.Counters.FormAbandons
	survivor.Counters.ServiceViews += merged.Counters.ServiceViews
	survivor.Counters.PriceChecks += merged.Counters.PriceChecks
	survivor.Counters.Comparisons += merged.Counters.Comparisons
	survivor.Counters.BookingAttempts += merged.Counters.BookingAttempts
	survivor.Counters.BookingAbandons += merged.Counters.BookingAbandons
	survivor.Counters.Bookings += merged.Counters.Bookings
	survivor.Counters.ExitIntents += merged.Counters.ExitIntents
	survivor.Counters.Searches += merged.Counters.Searches
	survivor.Counters.NegativeSignals += merged.Counters.NegativeSignals

	survivor.BouncedSessions += merged.BouncedSessions
	survivor.SessionSeconds += merged.SessionSeconds
	if merged.FirstSeenAt.Before(survivor.FirstSeenAt) {
		survivor.FirstSeenAt = merged.FirstSeenAt
	}
	if merged.LastSeenAt.After(survivor.LastSeenAt) {
		survivor.LastSeenAt = merged.LastSeenAt
	}

	if survivor.Counters.Sessions > 0 {
		survivor.BounceRate = float64(survivor.BouncedSessions) / float64(survivor.Counters.Sessions)
		survivor.ReturnVisitRate = float64(survivor.Counters.Sessions-1) / float64(survivor.Counters.Sessions)
		survivor.AvgSessionDuration = float64(survivor.SessionSeconds) / float64(survivor.Counters.Sessions)
	}
}

// Anonymize zeroes the behavioral counters of one profile under retention
// policy, keeping the row so queries still resolve.
func (s *Store) Anonymize(identityID string, at time.Time) {
	sh := s.shardFor(identityID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	p, ok := sh.profiles[identityID]
	if !ok {
		return
	}
	*p = domain.BehaviorProfile{
		IdentityID:    identityID,
		Anonymized:    true,
		LastUpdatedAt: at,
	}
}

func (s *Store) shardIndex(identityID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(identityID))
	return h.Sum32() % shardCount
}
