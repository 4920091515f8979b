package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langurmonkey/virtualtexture-tools/mapslicehelp"
	"github.com/langurmonkey/virtualtexture-tools/svt"
)

var barcelona = svt.GeoPoint{Lon: 2.17, Lat: 41.39}

func TestPlanSingle(t *testing.T) {
	p, err := PlanSingle(barcelona, 5)
	require.NoError(t, err)
	assert.Equal(t, ModeSingle, p.Mode)
	assert.Equal(t, []svt.TileAddress{{Level: 5, Col: 32, Row: 8}}, p.Tiles())

	e, ok := p.Extent(svt.TileAddress{Level: 5, Col: 32, Row: 8})
	require.True(t, ok)
	assert.Equal(t, svt.TileExtent(svt.TileAddress{Level: 5, Col: 32, Row: 8}), e)

	_, err = PlanSingle(svt.GeoPoint{Lon: 200}, 5)
	var oor *svt.OutOfRangeError
	require.ErrorAs(t, err, &oor)
}

func TestPlanMulti(t *testing.T) {
	tests := []struct {
		l0, l1 int
	}{
		{l0: 3, l1: 3},
		{l0: 3, l1: 4},
		{l0: 2, l1: 5},
	}
	for _, tt := range tests {
		p, err := PlanMulti(barcelona, tt.l0, tt.l1)
		require.NoError(t, err)
		assert.Equal(t, MultiCount(tt.l0, tt.l1), p.Len())

		counts := p.PerLevel()
		assert.Equal(t, tt.l0, counts.Oldest().Key)
		for l := tt.l0; l <= tt.l1; l++ {
			n, _ := counts.Get(l)
			assert.Equal(t, 1<<(2*(l-tt.l0)), n, "level %d", l)
		}
	}
	assert.Equal(t, 21, MultiCount(0, 2))
}

func TestPlanMulti_depthFirst(t *testing.T) {
	p, err := PlanMulti(barcelona, 4, 5)
	require.NoError(t, err)
	root, err := svt.GeoToTile(barcelona.Lat, barcelona.Lon, 4)
	require.NoError(t, err)

	tiles := p.Tiles()
	require.Len(t, tiles, 5)
	assert.Equal(t, root, tiles[0])
	children := root.Children()
	assert.Equal(t, children[:], tiles[1:])

	// every descendant lies inside the root tile
	re := svt.TileExtent(root)
	for _, tile := range tiles[1:] {
		assert.True(t, re.Intersects(svt.TileExtent(tile)))
	}
}

func TestPlanMulti_errors(t *testing.T) {
	_, err := PlanMulti(barcelona, 5, 4)
	require.Error(t, err)
	_, err = PlanMulti(barcelona, 0, 31)
	require.Error(t, err)
	_, err = PlanMulti(svt.GeoPoint{Lat: -91}, 0, 1)
	require.Error(t, err)
}

func TestPlanLevel(t *testing.T) {
	p, err := PlanLevel(2)
	require.NoError(t, err)
	assert.Equal(t, ModeLevel, p.Mode)
	assert.Equal(t, svt.NumTiles(2), p.Len())
	tiles := p.Tiles()
	assert.Equal(t, svt.TileAddress{Level: 2, Col: 0, Row: 0}, tiles[0])
	assert.Equal(t, svt.TileAddress{Level: 2, Col: 0, Row: 1}, tiles[1])
	assert.Equal(t, svt.TileAddress{Level: 2, Col: 7, Row: 3}, *mapslicehelp.LastElement(tiles))

	_, err = PlanLevel(-1)
	require.Error(t, err)
}

func TestPlan_Add(t *testing.T) {
	p := newPlan(ModeMulti)
	tile := svt.TileAddress{Level: 1, Col: 2, Row: 1}
	assert.True(t, p.Add(tile))
	assert.True(t, p.Add(svt.TileAddress{Level: 1, Col: 0, Row: 0}))
	assert.False(t, p.Add(tile))
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, tile, p.Tiles()[0])
}
