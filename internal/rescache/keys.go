package rescache

import (
	"fmt"
	"sort"
	"strings"
)

// viewportPrecision is the number of decimal places viewport bounds are rounded
// to before key composition. Three decimals is roughly 110 m, so nearby
// pan/zoom viewports collapse onto the same bucket.
const viewportPrecision = 3

// MakeKey composes a deterministic cache key from a method path and its
// parameters. Parameter names are sorted so equivalent requests collide
// regardless of insertion order.
func MakeKey(path string, params map[string]string) string {
	if len(params) == 0 {
		return path
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(path)
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(params[name])
	}
	return b.String()
}

// MakeViewportKey buckets a viewport query onto a spatial grid by rounding each
// bound to a fixed precision. Trades a little staleness for repeated hits while
// the caller pans and zooms.
func MakeViewportKey(minLat, minLon, maxLat, maxLon float64, limit int) string {
	return fmt.Sprintf("viewport|%.*f,%.*f,%.*f,%.*f|%d",
		viewportPrecision, minLat,
		viewportPrecision, minLon,
		viewportPrecision, maxLat,
		viewportPrecision, maxLon,
		limit,
	)
}
