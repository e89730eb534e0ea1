package geo

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/roadwatch/roadwatch/internal/division"
	"github.com/roadwatch/roadwatch/internal/models"
	"gorm.io/gorm"
)

// Resolver outcome errors. ErrUnavailable (registry unreachable) is
// distinct from an outside-jurisdiction result, which is (nil, nil) —
// conflating the two would wrongly reject legitimate reports.
var (
	ErrInvalidCoordinate = errors.New("geo: invalid coordinate")
	ErrUnavailable       = errors.New("geo: division registry unavailable")
)

// Default resolver settings.
const (
	DefaultCacheTTL     = time.Hour
	DefaultKeyPrecision = 4
)

// cacheEntry maps a rounded coordinate key to a division ID. ID zero is
// the explicit "outside jurisdiction" marker.
type cacheEntry struct {
	divisionID uint
	expires    time.Time
}

// Resolver maps coordinates to divisions via point-in-polygon tests with a
// time-bounded memoization cache. The cache is derived data only: entries
// are reconstructable by re-running the polygon tests, so insert races are
// harmless (last writer wins).
type Resolver struct {
	db        *gorm.DB
	bounds    Bounds
	ttl       time.Duration
	precision int

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// ResolverOpts holds parameters for creating a Resolver.
type ResolverOpts struct {
	DB           *gorm.DB
	Bounds       Bounds        // coarse service-area rectangle
	CacheTTL     time.Duration // defaults to DefaultCacheTTL
	KeyPrecision int           // cache-key decimal places, defaults to DefaultKeyPrecision
}

// NewResolver creates a Resolver.
func NewResolver(opts ResolverOpts) (*Resolver, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("geo: resolver: db is required")
	}
	if opts.Bounds.MinLat >= opts.Bounds.MaxLat || opts.Bounds.MinLng >= opts.Bounds.MaxLng {
		return nil, fmt.Errorf("geo: resolver: bounds are empty")
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	precision := opts.KeyPrecision
	if precision <= 0 {
		precision = DefaultKeyPrecision
	}
	return &Resolver{
		db:        opts.DB,
		bounds:    opts.Bounds,
		ttl:       ttl,
		precision: precision,
		cache:     make(map[string]cacheEntry),
	}, nil
}

// Resolve returns the division owning the coordinate, or (nil, nil) when
// the point is outside every division's boundary. Divisions returned from
// cache hits are re-fetched by ID so officer data is always live.
func (r *Resolver) Resolve(lat, lng float64) (*models.Division, error) {
	p := Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return nil, ErrInvalidCoordinate
	}

	key := r.cacheKey(p)
	if id, ok := r.lookup(key); ok {
		if id == 0 {
			return nil, nil
		}
		div, err := division.ByID(r.db, id)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return div, nil
	}

	// Cheap short-circuit: outside the overall service area, no polygon
	// can contain the point.
	if !r.bounds.Contains(p) {
		r.store(key, 0)
		return nil, nil
	}

	var divs []models.Division
	if err := r.db.Find(&divs).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	for i := range divs {
		ring, err := ParseBoundary(divs[i].Boundary)
		if err != nil {
			log.Printf("geo: division %s: skipping malformed boundary: %v", divs[i].Code, err)
			continue
		}
		if ring.Degenerate() {
			log.Printf("geo: division %s: skipping degenerate boundary (%d vertices)", divs[i].Code, len(ring))
			continue
		}
		if ring.Contains(p) {
			// Administrative boundaries are disjoint, so first match is
			// the only match.
			r.store(key, divs[i].ID)
			div, err := division.ByID(r.db, divs[i].ID)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			return div, nil
		}
	}

	r.store(key, 0)
	return nil, nil
}

// cacheKey collapses effectively-identical points by rounding coordinates
// to the configured precision.
func (r *Resolver) cacheKey(p Point) string {
	return fmt.Sprintf("%.*f,%.*f", r.precision, p.Lat, r.precision, p.Lng)
}

// lookup returns a live cache entry's division ID.
func (r *Resolver) lookup(key string) (uint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.cache[key]
	if !ok || time.Now().After(e.expires) {
		return 0, false
	}
	return e.divisionID, true
}

// store records a resolution result under the rounded coordinate key.
func (r *Resolver) store(key string, divisionID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = cacheEntry{divisionID: divisionID, expires: time.Now().Add(r.ttl)}
}

// PurgeExpired drops expired cache entries and returns how many were
// removed. Called periodically from the cron scheduler.
func (r *Resolver) PurgeExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	removed := 0
	for k, e := range r.cache {
		if now.After(e.expires) {
			delete(r.cache, k)
			removed++
		}
	}
	return removed
}

// ClearCache empties the cache. Used by tests and after division reseeds.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]cacheEntry)
}

// CacheSize returns the number of cached entries, live or expired.
func (r *Resolver) CacheSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}
