package split

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langurmonkey/virtualtexture-tools/raster"
	"github.com/langurmonkey/virtualtexture-tools/tilename"
)

// cells returns a w x h image where every size x size cell has its own color
func cells(w, h, size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, cellColor(x/size, y/size))
		}
	}
	return img
}

func cellColor(c, r int) color.RGBA {
	return color.RGBA{R: uint8(40 * c), G: uint8(80 * r), B: 200, A: 255}
}

func TestSplit(t *testing.T) {
	tiles, err := Split(cells(8, 4, 2), 2, 0, 0)
	require.NoError(t, err)
	require.Len(t, tiles, 8)

	// row-major
	assert.Equal(t, [2]int{0, 0}, [2]int{tiles[0].Col, tiles[0].Row})
	assert.Equal(t, [2]int{3, 0}, [2]int{tiles[3].Col, tiles[3].Row})
	assert.Equal(t, [2]int{0, 1}, [2]int{tiles[4].Col, tiles[4].Row})
	for _, tile := range tiles {
		b := tile.Image.Bounds()
		assert.Equal(t, image.Pt(2, 2), b.Size())
		assert.Equal(t, cellColor(tile.Col, tile.Row), color.RGBAModel.Convert(tile.Image.At(b.Min.X+1, b.Min.Y+1)))
	}
}

func TestSplit_offsets(t *testing.T) {
	tiles, err := Split(cells(4, 4, 2), 2, 6, 3)
	require.NoError(t, err)
	require.Len(t, tiles, 4)
	assert.Equal(t, [2]int{6, 3}, [2]int{tiles[0].Col, tiles[0].Row})
	assert.Equal(t, [2]int{7, 4}, [2]int{tiles[3].Col, tiles[3].Row})
}

func TestSplit_errors(t *testing.T) {
	tests := map[string]struct {
		w, h, size int
	}{
		"height not divisible": {w: 8, h: 5, size: 2},
		"width not divisible":  {w: 9, h: 4, size: 2},
		"aspect ratio 3:1":     {w: 12, h: 4, size: 2},
		"aspect ratio 1:2":     {w: 4, h: 8, size: 2},
		"zero tile size":       {w: 4, h: 4, size: 0},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Split(cells(tt.w, tt.h, 1), tt.size, 0, 0)
			var fe *raster.FormatError
			require.ErrorAs(t, err, &fe)
		})
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		cols, rows int
		level      int
		ok         bool
	}{
		{cols: 2, rows: 1, level: 0, ok: true},
		{cols: 4, rows: 2, level: 1, ok: true},
		{cols: 1024, rows: 512, level: 9, ok: true},
		{cols: 2, rows: 2, level: -1},
		{cols: 6, rows: 3, level: -1},
		{cols: 0, rows: 0, level: -1},
	}
	for _, tt := range tests {
		level, ok := LevelFor(tt.cols, tt.rows)
		assert.Equal(t, tt.ok, ok, "%dx%d", tt.cols, tt.rows)
		assert.Equal(t, tt.level, level, "%dx%d", tt.cols, tt.rows)
	}
}

func TestToDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "world.png")
	require.NoError(t, raster.Write(src, cells(16, 8, 4), raster.PNG, raster.DefaultQuality))

	out := filepath.Join(dir, "level1")
	res, err := ToDir(context.Background(), src, out, Options{TileSize: 4, Format: raster.PNG})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Cols)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 1, res.Level)
	require.Len(t, res.Paths, 8)

	for c := 0; c < 4; c++ {
		for r := 0; r < 2; r++ {
			path := filepath.Join(out, tilename.Tile(c, r, "png"))
			require.FileExists(t, path)
			img, err := raster.Read(path)
			require.NoError(t, err)
			assert.Equal(t, image.Pt(4, 4), img.Bounds().Size())
			assert.Equal(t, cellColor(c, r), color.RGBAModel.Convert(img.At(2, 2)))
		}
	}
}

func TestToDir_errors(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "odd.png")
	require.NoError(t, raster.Write(src, cells(10, 5, 5), raster.PNG, raster.DefaultQuality))

	_, err := ToDir(context.Background(), src, dir, Options{TileSize: 4, Format: raster.PNG})
	var fe *raster.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, src, fe.Path)

	_, err = ToDir(context.Background(), src, dir, Options{})
	require.Error(t, err)

	_, err = ToDir(context.Background(), src, dir, Options{TileSize: 5, Quality: 200})
	require.Error(t, err)
}

func TestToDir_offsetsHaveNoLevel(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "part.png")
	require.NoError(t, raster.Write(src, cells(8, 4, 2), raster.PNG, raster.DefaultQuality))

	res, err := ToDir(context.Background(), src, dir, Options{TileSize: 2, StartCol: 4, Format: raster.PNG, Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, -1, res.Level)
	assert.FileExists(t, filepath.Join(dir, "tx_7_1.png"))
}
