// Package store holds the live spot set: one spot per label, kept in
// ascending frequency order, retired after a configurable lifetime.
package store

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/spotlane/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Outcome describes what Upsert did with a submitted spot.
type Outcome int

const (
	// Inserted means the label was not present and the spot was added.
	Inserted Outcome = iota
	// Updated means the submitted spot replaced an older report for its label.
	Updated
	// Superseded means the stored report for the label was fresher and was kept.
	Superseded
	// Expired means the spot was already past the max lifetime and was dropped.
	Expired
	// Rejected means the spot had no usable frequency and was dropped.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Superseded:
		return "superseded"
	case Expired:
		return "expired"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Accepted reports whether the submitted spot is now the stored one.
func (o Outcome) Accepted() bool {
	return o == Inserted || o == Updated
}

// Store is a concurrency-safe, frequency-ordered spot collection.
//
// All operations hold a single mutex for the duration of the slice update
// only; no I/O or parsing happens under the lock.
type Store struct {
	clock clockwork.Clock

	mu          sync.Mutex
	spots       []domain.Spot // ascending by Frequency
	maxLifetime time.Duration
}

// New creates an empty Store that evicts spots older than maxLifetime.
// A nil clock uses the real clock.
func New(maxLifetime time.Duration, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:       clock,
		maxLifetime: maxLifetime,
	}
}

// SetMaxLifetime changes the hard expiration threshold. It takes effect on
// the next Upsert, Prune or Snapshot.
func (s *Store) SetMaxLifetime(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxLifetime = d
}

// MaxLifetime returns the hard expiration threshold.
func (s *Store) MaxLifetime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxLifetime
}

// Upsert submits a spot. Spots without a finite positive frequency and spots
// already older than the max lifetime are dropped. When the label is already
// present, whichever report has the later SpotTime is kept (on a tie the
// submitted spot wins) and re-sorted into frequency position.
func (s *Store) Upsert(spot domain.Spot) Outcome {
	if !domain.ValidFrequency(spot.Frequency) {
		return Rejected
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.maxLifetime)
	if spot.SpotTime.Before(cutoff) {
		return Expired
	}
	s.pruneLocked(cutoff)

	outcome := Inserted
	if i := s.indexOfLabel(spot.Label); i >= 0 {
		existing := s.spots[i]
		if existing.FresherThan(spot) {
			return Superseded
		}
		s.spots = slices.Delete(s.spots, i, i+1)
		outcome = Updated
	}

	at := sort.Search(len(s.spots), func(i int) bool {
		return s.spots[i].Frequency >= spot.Frequency
	})
	s.spots = slices.Insert(s.spots, at, spot)
	return outcome
}

// Prune removes every spot older than now minus the max lifetime and returns
// how many were removed.
func (s *Store) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(now.Add(-s.maxLifetime))
}

// Snapshot prunes expired spots and returns a frequency-ordered copy of the
// spots observed within displayLifetime of now. Spots older than that but
// younger than the max lifetime stay in the store without being returned.
func (s *Store) Snapshot(now time.Time, displayLifetime time.Duration) []domain.Spot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now.Add(-s.maxLifetime))

	displayCutoff := now.Add(-displayLifetime)
	out := make([]domain.Spot, 0, len(s.spots))
	for _, sp := range s.spots {
		if sp.SpotTime.Before(displayCutoff) {
			continue
		}
		out = append(out, sp)
	}
	return out
}

// Clear drops every spot.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spots = nil
}

// Len returns the number of retained spots, displayed or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spots)
}

// Get returns the stored spot for label, if any.
func (s *Store) Get(label string) (domain.Spot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOfLabel(label); i >= 0 {
		return s.spots[i], true
	}
	return domain.Spot{}, false
}

func (s *Store) pruneLocked(cutoff time.Time) int {
	before := len(s.spots)
	s.spots = slices.DeleteFunc(s.spots, func(sp domain.Spot) bool {
		return sp.SpotTime.Before(cutoff)
	})
	return before - len(s.spots)
}

// indexOfLabel is a linear scan; the store is ordered by frequency, not label,
// and holds at most a few hundred spots.
func (s *Store) indexOfLabel(label string) int {
	return slices.IndexFunc(s.spots, func(sp domain.Spot) bool {
		return sp.Label == label
	})
}
