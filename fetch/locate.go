package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/langurmonkey/virtualtexture-tools/svt"
)

var ErrLocationNotFound = errors.New("location not found")

// Gazetteer resolves location names from a fixed table. Names are matched case-insensitively.
type Gazetteer struct {
	places map[string]svt.GeoPoint
}

func NewGazetteer(places map[string]svt.GeoPoint) *Gazetteer {
	g := &Gazetteer{places: make(map[string]svt.GeoPoint, len(places))}
	for name, pt := range places {
		g.places[normalizeName(name)] = pt
	}
	return g
}

func (g *Gazetteer) Resolve(ctx context.Context, name string) (svt.GeoPoint, error) {
	if err := ctx.Err(); err != nil {
		return svt.GeoPoint{}, err
	}
	pt, ok := g.places[normalizeName(name)]
	if !ok {
		return svt.GeoPoint{}, fmt.Errorf("could not resolve latitude and longitude for location '%s': %w", name, ErrLocationNotFound)
	}
	return pt, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// RegionFilter keeps tiles that overlap at least one of its regions.
// Without regions every tile is kept.
type RegionFilter struct {
	Regions []svt.Extent
}

func (f RegionFilter) Keep(e svt.Extent) bool {
	if len(f.Regions) == 0 {
		return true
	}
	for _, r := range f.Regions {
		if r.Intersects(e) {
			return true
		}
	}
	return false
}
