package pyramid

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langurmonkey/virtualtexture-tools/raster"
	"github.com/langurmonkey/virtualtexture-tools/svt"
	"github.com/langurmonkey/virtualtexture-tools/tilename"
)

const tileSize = 4

func tileColor(col, row int) color.RGBA {
	return color.RGBA{R: uint8(col * 30), G: uint8(row * 60), B: 10, A: 255}
}

func writeTile(t *testing.T, dir string, col, row, size int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	c := tileColor(col, row)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	require.NoError(t, raster.Write(filepath.Join(dir, tilename.Tile(col, row, "png")), img, raster.PNG, raster.DefaultQuality))
}

// writeLevel writes a dense grid of tiles covering columns [c0, c1) and rows [r0, r1)
func writeLevel(t *testing.T, root string, level, c0, c1, r0, r1 int) string {
	t.Helper()
	dir := tilename.LevelDir(root, level)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for col := c0; col < c1; col++ {
		for row := r0; row < r1; row++ {
			writeTile(t, dir, col, row, tileSize)
		}
	}
	return dir
}

func newTestBuilder(t *testing.T, root string, anchor Anchor, workers int) *Builder {
	t.Helper()
	b, err := New(Options{OutputRoot: root, Format: raster.PNG, Kernel: raster.Nearest, Anchor: anchor, Workers: workers})
	require.NoError(t, err)
	return b
}

func countTiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if _, _, _, ok := tilename.Parse(e.Name()); ok {
			n++
		}
	}
	return n
}

func readRGBA(t *testing.T, path string) image.Image {
	t.Helper()
	img, err := raster.Read(path)
	require.NoError(t, err)
	return img
}

func TestNew_defaults(t *testing.T) {
	b, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, ".", b.OutputRoot)
	assert.Equal(t, AnchorAbsolute, b.Anchor)
	assert.Equal(t, raster.Codec{Format: raster.JPEG, Quality: 95, Kernel: raster.CatmullRom}, b.Raster)
	assert.Positive(t, b.workers())

	_, err = New(Options{Quality: 101})
	require.Error(t, err)
	_, err = New(Options{Anchor: "middle"})
	require.Error(t, err)
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	dir := writeLevel(t, root, 2, 2, 6, 0, 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tx_01_1.png"), []byte("x"), 0o644))

	g, err := Scan(dir, 2)
	require.NoError(t, err)
	assert.Equal(t, 8, g.Len())
	assert.Equal(t, [4]int{2, 0, 5, 1}, [4]int{g.MinCol, g.MinRow, g.MaxCol, g.MaxRow})
	assert.True(t, g.Complete())

	p, ok := g.Path(3, 1)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "tx_3_1.png"), p)
	_, ok = g.Path(1, 1)
	assert.False(t, ok)

	first, _ := g.First()
	assert.Equal(t, svt.ColRow{Col: 2, Row: 0}, first)
}

func TestScan_errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := Scan(filepath.Join(t.TempDir(), "level9"), 9)
		require.ErrorIs(t, err, os.ErrNotExist)
	})
	t.Run("insufficient tiles", func(t *testing.T) {
		dir := writeLevel(t, t.TempDir(), 1, 0, 3, 0, 1)
		_, err := Scan(dir, 1)
		var ite *InsufficientTilesError
		require.ErrorAs(t, err, &ite)
		assert.Equal(t, 3, ite.Found)
		assert.Equal(t, 1, ite.Level)
	})
	t.Run("tile outside the level", func(t *testing.T) {
		dir := writeLevel(t, t.TempDir(), 1, 0, 4, 0, 2)
		writeTile(t, dir, 4, 0, tileSize)
		_, err := Scan(dir, 1)
		var oor *svt.OutOfRangeError
		require.ErrorAs(t, err, &oor)
	})
	t.Run("duplicate tile", func(t *testing.T) {
		dir := writeLevel(t, t.TempDir(), 1, 0, 4, 0, 2)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "tx_0_0.jpg"), []byte("x"), 0o644))
		_, err := Scan(dir, 1)
		var fe *raster.FormatError
		require.ErrorAs(t, err, &fe)
	})
}

func TestGrid_Blocks(t *testing.T) {
	dir := writeLevel(t, t.TempDir(), 2, 1, 5, 0, 2)
	g, err := Scan(dir, 2)
	require.NoError(t, err)

	absolute := g.Blocks(AnchorAbsolute)
	require.Len(t, absolute, 3)
	assert.Equal(t, svt.ColRow{Col: 0, Row: 0}, absolute[0].Members[0])
	assert.Equal(t, svt.ColRow{Col: 2, Row: 0}, absolute[2].Out)

	origin := g.Blocks(AnchorOrigin)
	require.Len(t, origin, 2)
	assert.Equal(t, svt.ColRow{Col: 1, Row: 0}, origin[0].Members[0])
	assert.Equal(t, svt.ColRow{Col: 2, Row: 1}, origin[0].Members[3])
	assert.Equal(t, svt.ColRow{Col: 0, Row: 0}, origin[0].Out)
	assert.Equal(t, svt.ColRow{Col: 1, Row: 0}, origin[1].Out)
}

func TestBuildLevel(t *testing.T) {
	for _, workers := range []int{1, 4} {
		root := t.TempDir()
		src := writeLevel(t, root, 1, 0, svt.NumCols(1), 0, svt.NumRows(1))

		res, err := newTestBuilder(t, root, AnchorAbsolute, workers).BuildLevel(context.Background(), 1, src)
		require.NoError(t, err)
		assert.Equal(t, tilename.LevelDir(root, 0), res.OutputDir)
		assert.Equal(t, 8, res.Tiles)
		assert.Equal(t, 2, res.Written)
		assert.Equal(t, image.Pt(tileSize, tileSize), res.TileSize)
		require.Equal(t, svt.NumTiles(0), countTiles(t, res.OutputDir))

		// the east tile of level 0 is made of columns 2 and 3 of level 1
		east := readRGBA(t, filepath.Join(res.OutputDir, "tx_1_0.png"))
		require.Equal(t, image.Pt(tileSize, tileSize), east.Bounds().Size())
		assert.Equal(t, tileColor(2, 0), color.RGBAModel.Convert(east.At(0, 0)))
		assert.Equal(t, tileColor(3, 0), color.RGBAModel.Convert(east.At(tileSize-1, 0)))
		assert.Equal(t, tileColor(2, 1), color.RGBAModel.Convert(east.At(0, tileSize-1)))
		assert.Equal(t, tileColor(3, 1), color.RGBAModel.Convert(east.At(tileSize-1, tileSize-1)))
	}
}

func TestBuild_fullPyramid(t *testing.T) {
	root := t.TempDir()
	src := writeLevel(t, root, 3, 0, svt.NumCols(3), 0, svt.NumRows(3))

	report, err := newTestBuilder(t, root, AnchorAbsolute, 0).Build(context.Background(), 3, src)
	require.NoError(t, err)
	require.Len(t, report.Levels, 3)
	for _, level := range []int{2, 1, 0} {
		assert.Equal(t, svt.NumTiles(level), countTiles(t, tilename.LevelDir(root, level)), "level %d", level)
	}
	assert.Equal(t, 3, report.Levels[0].Level)
	assert.Equal(t, 1, report.Levels[2].Level)
}

func TestBuild_stopsOnInsufficientTiles(t *testing.T) {
	root := t.TempDir()
	// 4x2 partial grid at level 3 becomes 2x1 at level 2, which cannot be reduced
	src := writeLevel(t, root, 3, 0, 4, 0, 2)

	report, err := newTestBuilder(t, root, AnchorAbsolute, 2).Build(context.Background(), 3, src)
	var ite *InsufficientTilesError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, 2, ite.Level)
	assert.Equal(t, 2, ite.Found)
	require.Len(t, report.Levels, 1)
	assert.Equal(t, 2, countTiles(t, tilename.LevelDir(root, 2)))
}

func TestBuildLevel_incompleteBlocks(t *testing.T) {
	root := t.TempDir()
	src := writeLevel(t, root, 2, 0, svt.NumCols(2), 0, svt.NumRows(2))
	require.NoError(t, os.Remove(filepath.Join(src, "tx_1_1.png")))
	require.NoError(t, os.Remove(filepath.Join(src, "tx_6_3.png")))

	res, err := newTestBuilder(t, root, AnchorAbsolute, 3).BuildLevel(context.Background(), 2, src)
	require.Error(t, err)

	var ibe *IncompleteBlockError
	require.ErrorAs(t, err, &ibe)
	assert.Equal(t, svt.ColRow{Col: 0, Row: 0}, svt.ColRow{Col: ibe.Col, Row: ibe.Row})
	assert.Equal(t, []svt.ColRow{{Col: 1, Row: 1}}, ibe.Missing)
	assert.Contains(t, err.Error(), "block at (6,2)")

	// sibling blocks are still written
	assert.Equal(t, svt.NumTiles(1)-2, res.Written)
	assert.Equal(t, svt.NumTiles(1)-2, countTiles(t, res.OutputDir))
	assert.NoFileExists(t, filepath.Join(res.OutputDir, "tx_0_0.png"))
	assert.FileExists(t, filepath.Join(res.OutputDir, "tx_1_0.png"))
}

func TestBuildLevel_nonUniformTiles(t *testing.T) {
	root := t.TempDir()
	src := writeLevel(t, root, 1, 0, 4, 0, 2)
	writeTile(t, src, 3, 1, tileSize*2)

	_, err := newTestBuilder(t, root, AnchorAbsolute, 1).BuildLevel(context.Background(), 1, src)
	var fe *raster.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, filepath.Join(src, "tx_3_1.png"), fe.Path)
}

func TestBuildLevel_anchors(t *testing.T) {
	t.Run("absolute keeps indices", func(t *testing.T) {
		root := t.TempDir()
		src := writeLevel(t, root, 2, 2, 6, 0, 2)
		res, err := newTestBuilder(t, root, AnchorAbsolute, 2).BuildLevel(context.Background(), 2, src)
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(res.OutputDir, "tx_1_0.png"))
		assert.FileExists(t, filepath.Join(res.OutputDir, "tx_2_0.png"))
		assert.Equal(t, 2, countTiles(t, res.OutputDir))
	})
	t.Run("origin renumbers from zero", func(t *testing.T) {
		root := t.TempDir()
		src := writeLevel(t, root, 2, 2, 6, 0, 2)
		res, err := newTestBuilder(t, root, AnchorOrigin, 2).BuildLevel(context.Background(), 2, src)
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(res.OutputDir, "tx_0_0.png"))
		assert.FileExists(t, filepath.Join(res.OutputDir, "tx_1_0.png"))
		assert.Equal(t, 2, countTiles(t, res.OutputDir))
	})
	t.Run("absolute rejects odd offsets", func(t *testing.T) {
		root := t.TempDir()
		src := writeLevel(t, root, 2, 1, 5, 0, 2)
		_, err := newTestBuilder(t, root, AnchorAbsolute, 2).BuildLevel(context.Background(), 2, src)
		var ibe *IncompleteBlockError
		require.ErrorAs(t, err, &ibe)
	})
	t.Run("origin accepts odd offsets", func(t *testing.T) {
		root := t.TempDir()
		src := writeLevel(t, root, 2, 1, 5, 0, 2)
		res, err := newTestBuilder(t, root, AnchorOrigin, 2).BuildLevel(context.Background(), 2, src)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Written)
	})
}

func TestBuildLevel_cancelled(t *testing.T) {
	root := t.TempDir()
	src := writeLevel(t, root, 2, 0, svt.NumCols(2), 0, svt.NumRows(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestBuilder(t, root, AnchorAbsolute, 1).BuildLevel(ctx, 2, src)
	require.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Zero(t, res.Written)
}

func TestBuildLevel_levelZero(t *testing.T) {
	root := t.TempDir()
	src := writeLevel(t, root, 0, 0, 2, 0, 1)
	_, err := newTestBuilder(t, root, AnchorAbsolute, 1).BuildLevel(context.Background(), 0, src)
	var oor *svt.OutOfRangeError
	require.ErrorAs(t, err, &oor)
}
