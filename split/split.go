// Package split cuts an equirectangular image into square tiles named after their column and row.
package split

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"math/bits"
	"os"
	"path/filepath"
	"runtime"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/langurmonkey/virtualtexture-tools/raster"
	"github.com/langurmonkey/virtualtexture-tools/tilename"
)

// Tile is one square piece of a split image
type Tile struct {
	Col   int
	Row   int
	Image image.Image
}

type Options struct {
	TileSize int `validate:"required,min=1"`
	// Offsets added to the column and row in the written file names
	StartCol int           `validate:"min=0"`
	StartRow int           `validate:"min=0"`
	Format   raster.Format `default:"jpg" validate:"oneof=jpg png"`
	Quality  int           `default:"95" validate:"min=1,max=100"`
	Workers  int           `validate:"min=0"`
}

// Result describes a finished split
type Result struct {
	Cols  int
	Rows  int
	Paths []string
	// Level is the SVT level the tiles form when the image covers the whole sphere, -1 otherwise
	Level int
}

// Split cuts img into tileSize x tileSize tiles in row-major order.
// The image sides must be multiples of tileSize and its aspect ratio 1:1 or 2:1.
func Split(img image.Image, tileSize, startCol, startRow int) ([]Tile, error) {
	if tileSize <= 0 {
		return nil, &raster.FormatError{Reason: fmt.Sprintf("invalid tile size %d", tileSize)}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if h%tileSize != 0 {
		return nil, &raster.FormatError{Reason: fmt.Sprintf("image height not divisible by tile size: %d -> %d", h, tileSize)}
	}
	if w%tileSize != 0 {
		return nil, &raster.FormatError{Reason: fmt.Sprintf("image width not divisible by tile size: %d -> %d", w, tileSize)}
	}
	if w != h && w != 2*h {
		return nil, &raster.FormatError{Reason: fmt.Sprintf("image is %dx%d, aspect ratio must be 1:1 or 2:1", w, h)}
	}

	cols, rows := w/tileSize, h/tileSize
	tiles := make([]Tile, 0, cols*rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			at := b.Min.Add(image.Pt(c*tileSize, r*tileSize))
			tiles = append(tiles, Tile{
				Col:   startCol + c,
				Row:   startRow + r,
				Image: raster.Crop(img, image.Rectangle{Min: at, Max: at.Add(image.Pt(tileSize, tileSize))}),
			})
		}
	}
	return tiles, nil
}

// LevelFor returns the level whose grid is cols x rows
func LevelFor(cols, rows int) (int, bool) {
	if rows <= 0 || cols != 2*rows || rows&(rows-1) != 0 {
		return -1, false
	}
	return bits.TrailingZeros(uint(rows)), true
}

// ToDir reads src, splits it and writes the tiles to dir
func ToDir(ctx context.Context, src, dir string, opts Options) (Result, error) {
	res := Result{Level: -1}
	if err := defaults.Set(&opts); err != nil {
		return res, err
	}
	if err := validator.New().Struct(opts); err != nil {
		return res, fmt.Errorf("invalid split options: %w", err)
	}

	log.Printf("input: %s", src)
	img, err := raster.Read(src)
	if err != nil {
		return res, err
	}
	size := img.Bounds().Size()
	log.Printf("  %dx%d pixels", size.X, size.Y)

	tiles, err := Split(img, opts.TileSize, opts.StartCol, opts.StartRow)
	if err != nil {
		var fe *raster.FormatError
		if errors.As(err, &fe) && fe.Path == "" {
			fe.Path = src
		}
		return res, err
	}
	res.Cols, res.Rows = size.X/opts.TileSize, size.Y/opts.TileSize
	if level, ok := LevelFor(res.Cols, res.Rows); ok && opts.StartCol == 0 && opts.StartRow == 0 {
		res.Level = level
		log.Printf("  %dx%d tiles form level %d", res.Cols, res.Rows, level)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, fmt.Errorf("could not create %s: %w", dir, err)
	}
	res.Paths = make([]string, len(tiles))
	workers := opts.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, tile := range tiles {
		if egCtx.Err() != nil {
			break
		}
		i, tile := i, tile
		eg.Go(func() error {
			path := filepath.Join(dir, tilename.Tile(tile.Col, tile.Row, opts.Format.Ext()))
			if err := raster.Write(path, tile.Image, opts.Format, opts.Quality); err != nil {
				return fmt.Errorf("could not write %s: %w", path, err)
			}
			res.Paths[i] = path
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	log.Printf("  wrote %d tiles to %s", len(tiles), dir)
	return res, nil
}
