package rescache

import "time"

// Tier capacities and TTLs. Viewport traffic is bursty and tolerates ~30 s of
// staleness; the general tier fronts per-candidate POI counts; the static tier
// holds near-constant reference data (area lists, boundaries).
const (
	viewportCapacity = 256
	viewportTTL      = 30 * time.Second

	generalCapacity = 1024
	generalTTL      = 5 * time.Minute

	staticCapacity = 64
	staticTTL      = time.Hour
)

// Tiers bundles the three cache instances. Constructed once at process start
// and passed by handle into whatever needs it; there are no package-level
// singletons.
type Tiers struct {
	// Viewport fronts spatially bucketed bbox queries (short TTL).
	Viewport *Cache

	// General fronts per-request aggregate queries (POI counts, distributions).
	General *Cache

	// Static fronts near-constant reference data (long TTL, small capacity).
	Static *Cache
}

// NewTiers creates the three cache tiers with their default sizing.
func NewTiers() *Tiers {
	return &Tiers{
		Viewport: New(viewportCapacity, viewportTTL),
		General:  New(generalCapacity, generalTTL),
		Static:   New(staticCapacity, staticTTL),
	}
}

// TierStats reports stats for all three tiers, keyed by tier name.
func (t *Tiers) TierStats() map[string]Stats {
	return map[string]Stats{
		"viewport": t.Viewport.Stats(),
		"general":  t.General.Stats(),
		"static":   t.Static.Stats(),
	}
}
