package geo

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/roadwatch/roadwatch/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testBounds = Bounds{MinLat: 18.4, MaxLat: 18.8, MinLng: 73.6, MaxLng: 74.1}

func openGeoTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Division{}, &models.Officer{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// seedFixtureDivisions creates two disjoint rectangular divisions inside
// the test service area. DIGHI contains (18.62, 73.87).
func seedFixtureDivisions(t *testing.T, db *gorm.DB) {
	t.Helper()
	divs := []models.Division{
		{
			Name:     "DIGHI ALANDI",
			Code:     "DIGHI",
			Boundary: `[[18.55,73.80],[18.70,73.80],[18.70,73.95],[18.55,73.95]]`,
		},
		{
			Name:     "WAKAD HINJEWADI",
			Code:     "WAKAD",
			Boundary: `[[18.55,73.62],[18.70,73.62],[18.70,73.78],[18.55,73.78]]`,
		},
	}
	for i := range divs {
		if err := db.Create(&divs[i]).Error; err != nil {
			t.Fatalf("seed division: %v", err)
		}
		officer := models.Officer{
			DivisionID: divs[i].ID,
			Name:       "Officer " + divs[i].Code,
			Phone:      "+9198000000" + divs[i].Code[:2],
			IsActive:   true,
			Status:     models.OfficerStatusActive,
			JoinedAt:   time.Now(),
		}
		if err := db.Create(&officer).Error; err != nil {
			t.Fatalf("seed officer: %v", err)
		}
		db.Model(&divs[i]).Update("active_officer_id", officer.ID)
	}
}

func newTestResolver(t *testing.T, db *gorm.DB) *Resolver {
	t.Helper()
	r, err := NewResolver(ResolverOpts{DB: db, Bounds: testBounds})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

func TestResolve_InsideDivision(t *testing.T) {
	db := openGeoTestDB(t)
	seedFixtureDivisions(t, db)
	r := newTestResolver(t, db)

	div, err := r.Resolve(18.62, 73.87)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if div == nil {
		t.Fatal("expected a division for fixture point")
	}
	if div.Code != "DIGHI" {
		t.Errorf("Code = %q, want DIGHI", div.Code)
	}
	if len(div.Officers) == 0 {
		t.Error("expected roster to be loaded on resolved division")
	}
}

func TestResolve_OutsideServiceArea(t *testing.T) {
	db := openGeoTestDB(t)
	seedFixtureDivisions(t, db)
	r := newTestResolver(t, db)

	div, err := r.Resolve(0, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if div != nil {
		t.Errorf("expected nil division for (0,0), got %s", div.Code)
	}
	// The short-circuit result is cached as an explicit outside marker.
	if r.CacheSize() != 1 {
		t.Errorf("CacheSize = %d, want 1", r.CacheSize())
	}
}

func TestResolve_InBoundsButNoDivision(t *testing.T) {
	db := openGeoTestDB(t)
	seedFixtureDivisions(t, db)
	r := newTestResolver(t, db)

	// Inside the bounding box, between the two division rectangles.
	div, err := r.Resolve(18.45, 73.79)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if div != nil {
		t.Errorf("expected nil division, got %s", div.Code)
	}
}

func TestResolve_InvalidCoordinates(t *testing.T) {
	db := openGeoTestDB(t)
	r := newTestResolver(t, db)

	for _, p := range []Point{{math.NaN(), 73.8}, {18.6, math.Inf(1)}} {
		_, err := r.Resolve(p.Lat, p.Lng)
		if !errors.Is(err, ErrInvalidCoordinate) {
			t.Errorf("Resolve(%v) error = %v, want ErrInvalidCoordinate", p, err)
		}
	}
}

func TestResolve_SkipsMalformedBoundaries(t *testing.T) {
	db := openGeoTestDB(t)
	// A malformed and a degenerate division come before the good one.
	db.Create(&models.Division{Name: "Broken", Code: "BRK", Boundary: "not json"})
	db.Create(&models.Division{Name: "Line", Code: "LIN", Boundary: `[[18.5,73.8],[18.6,73.9]]`})
	db.Create(&models.Division{Name: "DIGHI ALANDI", Code: "DIGHI",
		Boundary: `[[18.55,73.80],[18.70,73.80],[18.70,73.95],[18.55,73.95]]`})
	r := newTestResolver(t, db)

	div, err := r.Resolve(18.62, 73.87)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if div == nil || div.Code != "DIGHI" {
		t.Fatalf("expected DIGHI despite malformed siblings, got %v", div)
	}
}

func TestResolve_CacheHitReturnsLiveOfficerData(t *testing.T) {
	db := openGeoTestDB(t)
	seedFixtureDivisions(t, db)
	r := newTestResolver(t, db)

	if _, err := r.Resolve(18.62, 73.87); err != nil {
		t.Fatalf("warm Resolve: %v", err)
	}

	// Change the roster after the cache is warm; a hit must see it.
	var div models.Division
	db.Where("code = ?", "DIGHI").First(&div)
	db.Model(&models.Officer{}).Where("division_id = ?", div.ID).Update("phone", "+910000000000")

	got, err := r.Resolve(18.62, 73.87)
	if err != nil {
		t.Fatalf("cached Resolve: %v", err)
	}
	if len(got.Officers) == 0 || got.Officers[0].Phone != "+910000000000" {
		t.Error("cache hit returned stale officer data")
	}
}

// Cache equivalence: warm-cache results must match cold-cache results for
// randomly sampled in-bounds and out-of-bounds points.
func TestResolve_CacheEquivalence(t *testing.T) {
	db := openGeoTestDB(t)
	seedFixtureDivisions(t, db)
	r := newTestResolver(t, db)

	rng := rand.New(rand.NewSource(42))
	type sample struct {
		lat, lng float64
		code     string // "" = no division
	}
	samples := make([]sample, 0, 1000)

	for i := 0; i < 1000; i++ {
		var lat, lng float64
		if i%2 == 0 {
			lat = testBounds.MinLat + rng.Float64()*(testBounds.MaxLat-testBounds.MinLat)
			lng = testBounds.MinLng + rng.Float64()*(testBounds.MaxLng-testBounds.MinLng)
		} else {
			lat = -90 + rng.Float64()*180
			lng = -180 + rng.Float64()*360
		}
		div, err := r.Resolve(lat, lng)
		if err != nil {
			t.Fatalf("cold Resolve(%v, %v): %v", lat, lng, err)
		}
		s := sample{lat: lat, lng: lng}
		if div != nil {
			s.code = div.Code
		}
		samples = append(samples, s)
	}

	// Warm pass: identical answers from cache.
	for _, s := range samples {
		div, err := r.Resolve(s.lat, s.lng)
		if err != nil {
			t.Fatalf("warm Resolve(%v, %v): %v", s.lat, s.lng, err)
		}
		code := ""
		if div != nil {
			code = div.Code
		}
		if code != s.code {
			t.Fatalf("warm Resolve(%v, %v) = %q, cold = %q", s.lat, s.lng, code, s.code)
		}
	}

	// Cold pass: clearing the cache reproduces every answer.
	r.ClearCache()
	for _, s := range samples[:100] {
		div, err := r.Resolve(s.lat, s.lng)
		if err != nil {
			t.Fatalf("recomputed Resolve(%v, %v): %v", s.lat, s.lng, err)
		}
		code := ""
		if div != nil {
			code = div.Code
		}
		if code != s.code {
			t.Fatalf("recomputed Resolve(%v, %v) = %q, want %q", s.lat, s.lng, code, s.code)
		}
	}
}

// Division polygons must not overlap; if data ever violates that, the
// resolver still answers deterministically by iteration order. Both the
// fixture disjointness and the determinism are asserted here rather than
// checked in the production path.
func TestResolve_DisjointFixturesAndDeterminism(t *testing.T) {
	db := openGeoTestDB(t)
	seedFixtureDivisions(t, db)

	var divs []models.Division
	db.Find(&divs)
	rings := make([]Ring, len(divs))
	for i, d := range divs {
		ring, err := ParseBoundary(d.Boundary)
		if err != nil {
			t.Fatalf("parse fixture boundary: %v", err)
		}
		rings[i] = ring
	}

	// Sampled disjointness check across the service area.
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		p := Point{
			Lat: testBounds.MinLat + rng.Float64()*(testBounds.MaxLat-testBounds.MinLat),
			Lng: testBounds.MinLng + rng.Float64()*(testBounds.MaxLng-testBounds.MinLng),
		}
		owners := 0
		for _, ring := range rings {
			if ring.Contains(p) {
				owners++
			}
		}
		if owners > 1 {
			t.Fatalf("point %v contained by %d fixture divisions, want at most 1", p, owners)
		}
	}

	// Determinism: repeated cold resolves agree.
	r := newTestResolver(t, db)
	first, err := r.Resolve(18.62, 73.87)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for i := 0; i < 5; i++ {
		r.ClearCache()
		again, err := r.Resolve(18.62, 73.87)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if again.Code != first.Code {
			t.Fatalf("nondeterministic resolve: %q then %q", first.Code, again.Code)
		}
	}
}

func TestPurgeExpired(t *testing.T) {
	db := openGeoTestDB(t)
	seedFixtureDivisions(t, db)
	r, err := NewResolver(ResolverOpts{DB: db, Bounds: testBounds, CacheTTL: time.Millisecond})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	if _, err := r.Resolve(18.62, 73.87); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := r.Resolve(0, 0); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if removed := r.PurgeExpired(); removed != 2 {
		t.Errorf("PurgeExpired = %d, want 2", removed)
	}
	if r.CacheSize() != 0 {
		t.Errorf("CacheSize = %d, want 0", r.CacheSize())
	}
}

func TestNewResolver_Validation(t *testing.T) {
	db := openGeoTestDB(t)
	if _, err := NewResolver(ResolverOpts{Bounds: testBounds}); err == nil {
		t.Error("expected error for missing db")
	}
	if _, err := NewResolver(ResolverOpts{DB: db}); err == nil {
		t.Error("expected error for empty bounds")
	}
}
