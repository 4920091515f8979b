package fetch

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/langurmonkey/virtualtexture-tools/mapslicehelp"
	"github.com/langurmonkey/virtualtexture-tools/svt"
)

// Mode is the kind of selection a plan was made from
type Mode string

const (
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
	ModeLevel  Mode = "level"
)

// Plan is an ordered set of tiles to fetch. Adding a tile twice keeps the first position.
type Plan struct {
	Mode  Mode
	tiles *orderedmap.OrderedMap[svt.TileAddress, svt.Extent]
}

func newPlan(mode Mode) *Plan {
	return &Plan{Mode: mode, tiles: orderedmap.New[svt.TileAddress, svt.Extent]()}
}

// Add appends t unless it is already planned
func (p *Plan) Add(t svt.TileAddress) bool {
	if _, ok := p.tiles.Get(t); ok {
		return false
	}
	p.tiles.Set(t, svt.TileExtent(t))
	return true
}

func (p *Plan) Len() int {
	return p.tiles.Len()
}

// Tiles lists the planned tiles in order
func (p *Plan) Tiles() []svt.TileAddress {
	return mapslicehelp.OrderedMapKeys(p.tiles)
}

func (p *Plan) Extent(t svt.TileAddress) (svt.Extent, bool) {
	return p.tiles.Get(t)
}

// PerLevel counts the planned tiles of each level, coarsest level first for multi plans
func (p *Plan) PerLevel() *orderedmap.OrderedMap[int, int] {
	return mapslicehelp.CountBy(p.tiles, func(t svt.TileAddress, _ svt.Extent) int { return t.Level })
}

// PlanSingle plans the tile containing pt at level
func PlanSingle(pt svt.GeoPoint, level int) (*Plan, error) {
	t, err := svt.GeoToTile(pt.Lat, pt.Lon, level)
	if err != nil {
		return nil, err
	}
	p := newPlan(ModeSingle)
	p.Add(t)
	return p, nil
}

// PlanMulti plans the tile containing pt at level l0 and all of its descendants down to
// level l1, both included, depth first. The plan holds sum(4^(l-l0)) tiles for l in [l0, l1].
func PlanMulti(pt svt.GeoPoint, l0, l1 int) (*Plan, error) {
	if l0 > l1 {
		return nil, fmt.Errorf("level0 (%d) must not be greater than level1 (%d)", l0, l1)
	}
	if err := svt.ValidateLevel(l1); err != nil {
		return nil, err
	}
	root, err := svt.GeoToTile(pt.Lat, pt.Lon, l0)
	if err != nil {
		return nil, err
	}
	p := newPlan(ModeMulti)
	stack := []svt.TileAddress{root}
	for len(stack) > 0 {
		t := *mapslicehelp.LastElement(stack)
		stack = stack[:len(stack)-1]
		p.Add(t)
		if t.Level == l1 {
			continue
		}
		children := t.Children()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return p, nil
}

// MultiCount is the number of tiles PlanMulti plans for levels l0 to l1
func MultiCount(l0, l1 int) int {
	n := 0
	for l := l0; l <= l1; l++ {
		n += 1 << (2 * (l - l0))
	}
	return n
}

// PlanLevel plans every tile of level, column by column
func PlanLevel(level int) (*Plan, error) {
	if err := svt.ValidateLevel(level); err != nil {
		return nil, err
	}
	p := newPlan(ModeLevel)
	for col := 0; col < svt.NumCols(level); col++ {
		for row := 0; row < svt.NumRows(level); row++ {
			p.Add(svt.TileAddress{Level: level, Col: col, Row: row})
		}
	}
	return p, nil
}
