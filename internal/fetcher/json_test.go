package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONObject(t *testing.T) {
	type ward struct {
		Name string  `json:"name"`
		Lat  float64 `json:"lat"`
		Lon  float64 `json:"lon"`
	}

	r := strings.NewReader(`{"name": "Hauz Khas", "lat": 28.5494, "lon": 77.2001}`)
	got, err := DecodeJSONObject[ward](r)
	require.NoError(t, err)
	assert.Equal(t, "Hauz Khas", got.Name)
	assert.InDelta(t, 28.5494, got.Lat, 1e-9)
	assert.InDelta(t, 77.2001, got.Lon, 1e-9)
}

func TestDecodeJSONObject_Malformed(t *testing.T) {
	_, err := DecodeJSONObject[map[string]any](strings.NewReader(`{"name": `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json: decode object")
}
