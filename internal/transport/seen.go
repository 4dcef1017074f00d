package transport

import (
	"github.com/jellydator/ttlcache/v3"

	"github.com/ssured/drawbot/internal/value"
)

// DefaultLookback is how many received tuples a peer remembers.
const DefaultLookback = 50

// seenSet remembers the fingerprints of the most recently received tuples.
// Entries never expire; the oldest is evicted once capacity is reached.
type seenSet struct {
	cache *ttlcache.Cache[string, struct{}]
}

func newSeenSet(capacity uint64) *seenSet {
	return &seenSet{
		cache: ttlcache.New[string, struct{}](
			ttlcache.WithCapacity[string, struct{}](capacity),
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
		),
	}
}

func (s *seenSet) add(t value.ChangeTuple) {
	fp := t.Fingerprint()
	if s.cache.Has(fp) {
		return
	}
	s.cache.Set(fp, struct{}{}, ttlcache.NoTTL)
}

func (s *seenSet) has(t value.ChangeTuple) bool {
	return s.cache.Has(t.Fingerprint())
}

func (s *seenSet) len() int {
	return s.cache.Len()
}
