package pyramid

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/langurmonkey/virtualtexture-tools/mathhelp"
	"github.com/langurmonkey/virtualtexture-tools/morton"
	"github.com/langurmonkey/virtualtexture-tools/raster"
	"github.com/langurmonkey/virtualtexture-tools/svt"
	"github.com/langurmonkey/virtualtexture-tools/tilename"
)

// Anchor decides how 2x2 blocks are aligned and how parent tiles are numbered
type Anchor string

const (
	// AnchorAbsolute aligns blocks on even absolute indices and writes (col/2, row/2).
	// For a complete level this is the only valid grouping.
	AnchorAbsolute Anchor = "absolute"
	// AnchorOrigin starts blocks at the discovered minimum column and row and numbers
	// the parent tiles from zero. Meant for partial grids split from a sub-image.
	AnchorOrigin Anchor = "origin"
)

func ParseAnchor(s string) (Anchor, error) {
	switch a := Anchor(s); a {
	case "":
		return AnchorAbsolute, nil
	case AnchorAbsolute, AnchorOrigin:
		return a, nil
	default:
		return "", fmt.Errorf("unknown anchor %q, expected absolute or origin", s)
	}
}

// Grid is the sparse set of tiles found in one level directory
type Grid struct {
	Level  int
	Dir    string
	MinCol int
	MinRow int
	MaxCol int
	MaxRow int
	tiles  map[morton.Z]string
}

// Block is a 2x2 group of source tiles and the parent tile it becomes
type Block struct {
	// Members in NW, NE, SW, SE order
	Members [4]svt.ColRow
	Out     svt.ColRow
}

// Scan lists dir and collects the files named tx_<col>_<row>.<ext>.
// Other files are ignored.
func Scan(dir string, level int) (*Grid, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("directory for level %d not found: %w", level, err)
	}
	g := &Grid{
		Level:  level,
		Dir:    dir,
		MinCol: math.MaxInt,
		MinRow: math.MaxInt,
		MaxCol: -1,
		MaxRow: -1,
		tiles:  make(map[morton.Z]string, len(entries)),
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		col, row, _, ok := tilename.Parse(entry.Name())
		if !ok {
			continue
		}
		if err := (svt.TileAddress{Level: level, Col: col, Row: row}).Validate(); err != nil {
			return nil, fmt.Errorf("tile %s in %s: %w", entry.Name(), dir, err)
		}
		z := morton.MustEncode(uint(col), uint(row))
		if existing, ok := g.tiles[z]; ok {
			return nil, &raster.FormatError{
				Path:   filepath.Join(dir, entry.Name()),
				Reason: fmt.Sprintf("duplicate of %s", existing),
			}
		}
		g.tiles[z] = entry.Name()
		g.MinCol = min(g.MinCol, col)
		g.MinRow = min(g.MinRow, row)
		g.MaxCol = max(g.MaxCol, col)
		g.MaxRow = max(g.MaxRow, row)
	}
	if len(g.tiles) < MinTiles {
		return nil, &InsufficientTilesError{Level: level, Dir: dir, Found: len(g.tiles)}
	}
	return g, nil
}

// Len is the number of tiles found
func (g *Grid) Len() int {
	return len(g.tiles)
}

// Path returns the path of tile (col, row) if it exists
func (g *Grid) Path(col, row int) (string, bool) {
	if col < 0 || row < 0 {
		return "", false
	}
	name, ok := g.tiles[morton.MustEncode(uint(col), uint(row))]
	if !ok {
		return "", false
	}
	return filepath.Join(g.Dir, name), true
}

// Complete reports whether the discovered column and row range has no gaps
func (g *Grid) Complete() bool {
	return g.Len() == (g.MaxCol-g.MinCol+1)*(g.MaxRow-g.MinRow+1)
}

// First is the tile with the lowest row, then the lowest column
func (g *Grid) First() (svt.ColRow, string) {
	first := svt.ColRow{Col: math.MaxInt, Row: math.MaxInt}
	for z := range g.tiles {
		c, r := morton.Decode(z)
		cr := svt.ColRow{Col: int(c), Row: int(r)}
		if cr.Row < first.Row || (cr.Row == first.Row && cr.Col < first.Col) {
			first = cr
		}
	}
	p, _ := g.Path(first.Col, first.Row)
	return first, p
}

// Blocks lists the 2x2 blocks covering the grid in Z-order of their parent tiles
func (g *Grid) Blocks(anchor Anchor) []Block {
	startCol, startRow := mathhelp.AlignDown2(g.MinCol), mathhelp.AlignDown2(g.MinRow)
	if anchor == AnchorOrigin {
		startCol, startRow = g.MinCol, g.MinRow
	}
	var blocks []Block
	for col := startCol; col <= g.MaxCol; col += 2 {
		for row := startRow; row <= g.MaxRow; row += 2 {
			b := Block{
				Members: [4]svt.ColRow{
					{Col: col, Row: row},
					{Col: col + 1, Row: row},
					{Col: col, Row: row + 1},
					{Col: col + 1, Row: row + 1},
				},
				Out: svt.ColRow{Col: col / 2, Row: row / 2},
			}
			if anchor == AnchorOrigin {
				b.Out = svt.ColRow{Col: (col - startCol) / 2, Row: (row - startRow) / 2}
			}
			blocks = append(blocks, b)
		}
	}
	sort.Slice(blocks, func(i, j int) bool {
		return morton.MustEncode(uint(blocks[i].Out.Col), uint(blocks[i].Out.Row)) <
			morton.MustEncode(uint(blocks[j].Out.Col), uint(blocks[j].Out.Row))
	})
	return blocks
}
