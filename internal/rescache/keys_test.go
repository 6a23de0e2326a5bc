package rescache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeKey_Deterministic(t *testing.T) {
	a := MakeKey("poi_counts", map[string]string{"area": "Saket", "category": "cafe"})
	b := MakeKey("poi_counts", map[string]string{"category": "cafe", "area": "Saket"})
	assert.Equal(t, a, b)
	assert.Equal(t, "poi_counts|area=Saket|category=cafe", a)
}

func TestMakeKey_NoParams(t *testing.T) {
	assert.Equal(t, "areas", MakeKey("areas", nil))
}

func TestMakeKey_DistinguishesValues(t *testing.T) {
	a := MakeKey("p", map[string]string{"area": "Saket"})
	b := MakeKey("p", map[string]string{"area": "Dwarka"})
	assert.NotEqual(t, a, b)
}

func TestMakeViewportKey_BucketsNearbyViewports(t *testing.T) {
	// Differences below the rounding precision collapse to the same key.
	a := MakeViewportKey(28.5501, 77.2001, 28.5601, 77.2101, 100)
	b := MakeViewportKey(28.55012, 77.20008, 28.56009, 77.21011, 100)
	assert.Equal(t, a, b)
}

func TestMakeViewportKey_SeparatesDistantViewports(t *testing.T) {
	a := MakeViewportKey(28.55, 77.20, 28.56, 77.21, 100)
	b := MakeViewportKey(28.65, 77.20, 28.66, 77.21, 100)
	assert.NotEqual(t, a, b)
}

func TestMakeViewportKey_LimitIsPartOfKey(t *testing.T) {
	a := MakeViewportKey(28.55, 77.20, 28.56, 77.21, 100)
	b := MakeViewportKey(28.55, 77.20, 28.56, 77.21, 500)
	assert.NotEqual(t, a, b)
}

func TestMakeViewportKey_RoundingBoundary(t *testing.T) {
	// Values straddling a rounding boundary land in different buckets.
	low := MakeViewportKey(28.5554, 77.20, 28.56, 77.21, 100)
	high := MakeViewportKey(28.5556, 77.20, 28.56, 77.21, 100)
	assert.NotEqual(t, low, high)

	// And values rounding to the same boundary value share a bucket.
	same := MakeViewportKey(28.55548, 77.20, 28.56, 77.21, 100)
	assert.Equal(t, low, same)
}
