package store_test

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/spotlane/internal/domain"
	"github.com/couchcryptid/spotlane/internal/store"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	displayLifetime = 30 * time.Minute
	maxLifetime     = 240 * time.Minute
)

var baseTime = time.Date(2024, time.January, 15, 12, 30, 0, 0, time.UTC)

func newTestStore() (*store.Store, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(baseTime)
	return store.New(maxLifetime, clock), clock
}

func spot(label string, freq float64, at time.Time) domain.Spot {
	return domain.Spot{Label: label, Frequency: freq, SpotTime: at}
}

func frequencies(spots []domain.Spot) []float64 {
	out := make([]float64, len(spots))
	for i, s := range spots {
		out[i] = s.Frequency
	}
	return out
}

func TestUpsert_FresherReportWins(t *testing.T) {
	s, clock := newTestStore()
	now := clock.Now()

	assert.Equal(t, store.Inserted, s.Upsert(spot("K1ABC", 14074000, now)))
	assert.Equal(t, store.Superseded, s.Upsert(spot("K1ABC", 14076000, now.Add(-10*time.Second))))

	got := s.Snapshot(now, displayLifetime)
	require.Len(t, got, 1)
	assert.Equal(t, 14074000.0, got[0].Frequency)
	assert.Equal(t, now, got[0].SpotTime)

	assert.Equal(t, store.Updated, s.Upsert(spot("K1ABC", 14076000, now.Add(10*time.Second))))

	got = s.Snapshot(now.Add(10*time.Second), displayLifetime)
	require.Len(t, got, 1)
	assert.Equal(t, 14076000.0, got[0].Frequency)
}

func TestUpsert_TieGoesToIncoming(t *testing.T) {
	s, clock := newTestStore()
	now := clock.Now()

	s.Upsert(domain.Spot{Label: "K1ABC", Frequency: 7074000, SpotTime: now, Comment: "first"})
	outcome := s.Upsert(domain.Spot{Label: "K1ABC", Frequency: 7074000, SpotTime: now, Comment: "second"})

	assert.Equal(t, store.Updated, outcome)
	got, ok := s.Get("K1ABC")
	require.True(t, ok)
	assert.Equal(t, "second", got.Comment)
}

func TestUpsert_LabelsAreCaseSensitive(t *testing.T) {
	s, clock := newTestStore()
	now := clock.Now()

	s.Upsert(spot("K1ABC", 14074000, now))
	s.Upsert(spot("k1abc", 14075000, now))

	assert.Equal(t, 2, s.Len())
}

func TestUpsert_DedupFreshnessIsOrderIndependent(t *testing.T) {
	_, clock := newTestStore()
	now := clock.Now()
	older := domain.Spot{Label: "W1AW", Frequency: 3573000, SpotTime: now.Add(-time.Minute), Spotter: "old"}
	newer := domain.Spot{Label: "W1AW", Frequency: 7074000, SpotTime: now, Spotter: "new"}

	for _, order := range [][]domain.Spot{{older, newer}, {newer, older}} {
		s := store.New(maxLifetime, clock)
		for _, sp := range order {
			s.Upsert(sp)
		}
		got := s.Snapshot(now, displayLifetime)
		if diff := cmp.Diff([]domain.Spot{newer}, got); diff != "" {
			t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestUpsert_DropsExpiredOnArrival(t *testing.T) {
	s, clock := newTestStore()
	now := clock.Now()

	outcome := s.Upsert(spot("K1ABC", 14074000, now.Add(-maxLifetime-time.Second)))

	assert.Equal(t, store.Expired, outcome)
	assert.Equal(t, 0, s.Len())
}

func TestUpsert_ExpiredLoserNeverRevivesEvictedSpot(t *testing.T) {
	s, clock := newTestStore()
	now := clock.Now()

	s.Upsert(spot("K1ABC", 14074000, now))
	later := now.Add(maxLifetime + time.Second)
	clock.Advance(maxLifetime + time.Second)

	assert.Empty(t, s.Snapshot(later, displayLifetime))
	assert.Equal(t, store.Expired, s.Upsert(spot("K1ABC", 14074000, now)))
	assert.Empty(t, s.Snapshot(later, displayLifetime))
	assert.Equal(t, 0, s.Len())
}

func TestSnapshot_FrequencyOrdered(t *testing.T) {
	s, clock := newTestStore()
	now := clock.Now()

	s.Upsert(spot("C", 21074000, now))
	s.Upsert(spot("A", 7074000, now))
	s.Upsert(spot("B", 14074000, now))
	s.Upsert(spot("A", 28074000, now.Add(time.Second)))

	got := s.Snapshot(now.Add(time.Second), displayLifetime)
	assert.Equal(t, []float64{14074000, 21074000, 28074000}, frequencies(got))
}

func TestUpsert_RejectsNonFiniteFrequency(t *testing.T) {
	s, clock := newTestStore()
	now := clock.Now()

	s.Upsert(spot("A", 7e6, now))
	s.Upsert(spot("B", 14e6, now))
	assert.Equal(t, store.Rejected, s.Upsert(spot("K1NAN", math.NaN(), now)))
	assert.Equal(t, store.Rejected, s.Upsert(spot("K1INF", math.Inf(1), now)))
	assert.Equal(t, store.Rejected, s.Upsert(spot("K1ZERO", 0, now)))
	s.Upsert(spot("C", 20e6, now))
	s.Upsert(spot("D", 10e6, now))

	got := s.Snapshot(now, displayLifetime)
	assert.Equal(t, []float64{7e6, 10e6, 14e6, 20e6}, frequencies(got))
}

func TestSnapshot_OrderingHoldsForRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	s, clock := newTestStore()
	now := clock.Now()

	for i := 0; i < 2000; i++ {
		label := fmt.Sprintf("CALL%d", rng.IntN(150))
		freq := float64(1800000 + rng.IntN(28000000))
		age := time.Duration(rng.IntN(int(displayLifetime / time.Second))) * time.Second
		s.Upsert(spot(label, freq, now.Add(-age)))
	}

	got := s.Snapshot(now, displayLifetime)
	seen := make(map[string]bool, len(got))
	for i, sp := range got {
		assert.False(t, seen[sp.Label], "duplicate label %s", sp.Label)
		seen[sp.Label] = true
		if i > 0 {
			assert.LessOrEqual(t, got[i-1].Frequency, sp.Frequency)
		}
	}
}

func TestSnapshot_TwoThresholdExpiry(t *testing.T) {
	s, clock := newTestStore()
	now := clock.Now()

	stale := spot("STALE", 7074000, now.Add(-displayLifetime-time.Second))
	fresh := spot("FRESH", 14074000, now)
	s.Upsert(stale)
	s.Upsert(fresh)

	got := s.Snapshot(now, displayLifetime)
	assert.Equal(t, []float64{14074000}, frequencies(got))
	assert.Equal(t, 2, s.Len(), "stale spot is retained but not displayed")

	// A fresher report moves the stale label back into view.
	s.Upsert(spot("STALE", 7074000, now))
	assert.Len(t, s.Snapshot(now, displayLifetime), 2)
}

func TestSnapshot_ReturnsCopy(t *testing.T) {
	s, clock := newTestStore()
	now := clock.Now()
	s.Upsert(spot("K1ABC", 14074000, now))

	got := s.Snapshot(now, displayLifetime)
	got[0].Label = "mutated"

	_, ok := s.Get("K1ABC")
	assert.True(t, ok)
}

func TestPrune(t *testing.T) {
	s, clock := newTestStore()
	now := clock.Now()

	s.Upsert(spot("OLD", 7074000, now.Add(-maxLifetime+time.Minute)))
	s.Upsert(spot("NEW", 14074000, now))

	assert.Equal(t, 0, s.Prune(now))
	assert.Equal(t, 1, s.Prune(now.Add(2*time.Minute)))
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("NEW")
	assert.True(t, ok)
}

func TestSetMaxLifetime(t *testing.T) {
	s, clock := newTestStore()
	now := clock.Now()
	s.Upsert(spot("K1ABC", 14074000, now.Add(-time.Hour)))

	s.SetMaxLifetime(30 * time.Minute)

	assert.Equal(t, 30*time.Minute, s.MaxLifetime())
	assert.Equal(t, 1, s.Prune(now))
}

func TestClear(t *testing.T) {
	s, clock := newTestStore()
	now := clock.Now()
	s.Upsert(spot("A", 7074000, now))
	s.Upsert(spot("B", 14074000, now))

	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Snapshot(now, displayLifetime))
}

func TestOutcome_Accepted(t *testing.T) {
	assert.True(t, store.Inserted.Accepted())
	assert.True(t, store.Updated.Accepted())
	assert.False(t, store.Superseded.Accepted())
	assert.False(t, store.Expired.Accepted())
	assert.False(t, store.Rejected.Accepted())
	assert.Equal(t, "rejected", store.Rejected.String())
	assert.Equal(t, "superseded", store.Superseded.String())
}

func TestStore_ConcurrentWritersAndReader(t *testing.T) {
	s, clock := newTestStore()
	now := clock.Now()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				label := fmt.Sprintf("CALL%d", i%50)
				s.Upsert(spot(label, float64(7000000+w*1000+i), now.Add(time.Duration(w)*time.Second)))
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			got := s.Snapshot(now.Add(10*time.Second), displayLifetime)
			for j := 1; j < len(got); j++ {
				if got[j-1].Frequency > got[j].Frequency {
					t.Errorf("snapshot out of order at %d", j)
					return
				}
			}
		}
	}()

	wg.Wait()
	<-done

	got := s.Snapshot(now.Add(10*time.Second), displayLifetime)
	assert.Len(t, got, 50)
	for _, sp := range got {
		// Writer 7 reports the freshest time for every label.
		assert.Equal(t, now.Add(7*time.Second), sp.SpotTime)
	}
}
