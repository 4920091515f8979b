// Package pyramid builds the coarser levels of a tile pyramid from its finest level.
//
// Each parent tile is made by compositing a 2x2 block of tiles of the level below it and
// resampling the composite back to the size of a single tile. Blocks of one level are
// independent and are processed concurrently. Levels are processed one after the other,
// from the finest level up to level 0.
package pyramid

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/langurmonkey/virtualtexture-tools/raster"
	"github.com/langurmonkey/virtualtexture-tools/svt"
	"github.com/langurmonkey/virtualtexture-tools/tilename"
)

// RasterIO reads, combines and writes tile images
type RasterIO interface {
	Read(path string) (image.Image, error)
	Write(path string, img image.Image) error
	Composite(nw, ne, sw, se image.Image) (image.Image, error)
	Resize(img image.Image, width, height int) image.Image
	// Ext is the file extension of written tiles
	Ext() string
}

// Options configure a Builder
type Options struct {
	// Root under which the level<L> output directories are created
	OutputRoot string        `default:"." validate:"required"`
	Format     raster.Format `default:"jpg" validate:"oneof=jpg png"`
	Quality    int           `default:"95" validate:"min=1,max=100"`
	Kernel     raster.Kernel `default:"catmullrom" validate:"oneof=nearest bilinear catmullrom"`
	Anchor     Anchor        `default:"absolute" validate:"oneof=absolute origin"`
	// Number of blocks processed concurrently, 0 means one per CPU
	Workers int `validate:"min=0"`
}

type Builder struct {
	OutputRoot string
	Raster     RasterIO
	Anchor     Anchor
	Workers    int
}

// LevelResult describes one finished level step
type LevelResult struct {
	// Source level, the written level is Level-1
	Level     int
	SourceDir string
	OutputDir string
	Tiles     int
	Written   int
	TileSize  image.Point
	Elapsed   time.Duration
}

// Report lists the finished level steps of a build, finest first
type Report struct {
	Levels []LevelResult
}

// New fills unset options with their defaults and validates them
func New(opts Options) (*Builder, error) {
	if err := defaults.Set(&opts); err != nil {
		return nil, err
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid pyramid options: %w", err)
	}
	return &Builder{
		OutputRoot: opts.OutputRoot,
		Raster:     raster.Codec{Format: opts.Format, Quality: opts.Quality, Kernel: opts.Kernel},
		Anchor:     opts.Anchor,
		Workers:    opts.Workers,
	}, nil
}

func (b *Builder) workers() int {
	if b.Workers > 0 {
		return b.Workers
	}
	return runtime.NumCPU()
}

// Build writes levels finest-1 down to 0, reading each level from the output of the
// previous step. It stops at the first failing level. Levels already written are kept.
// An InsufficientTilesError means the pyramid ran out of tiles; callers decide whether
// that is an error.
func (b *Builder) Build(ctx context.Context, finest int, srcDir string) (Report, error) {
	var report Report
	dir := srcDir
	for level := finest; level > 0; level-- {
		res, err := b.BuildLevel(ctx, level, dir)
		if err != nil {
			return report, err
		}
		report.Levels = append(report.Levels, res)
		dir = res.OutputDir
	}
	return report, nil
}

// BuildLevel reads the tiles of level from srcDir and writes level-1 under OutputRoot.
// Incomplete blocks do not stop their siblings; they are all reported together at the end.
// Any other error aborts the level.
func (b *Builder) BuildLevel(ctx context.Context, level int, srcDir string) (LevelResult, error) {
	start := time.Now()
	res := LevelResult{Level: level, SourceDir: srcDir}
	if level < 1 || level > 30 {
		return res, &svt.OutOfRangeError{What: "level", Value: float64(level), Min: 1, Max: 30}
	}
	log.Printf("processing level %d (%s)", level, srcDir)

	g, err := Scan(srcDir, level)
	if err != nil {
		return res, err
	}
	res.Tiles = g.Len()
	if !g.Complete() {
		log.Printf("  level %d: %d tiles do not fill columns %d-%d, rows %d-%d", level, g.Len(), g.MinCol, g.MaxCol, g.MinRow, g.MaxRow)
	}

	// the first tile defines the size of every tile in the level
	_, firstPath := g.First()
	first, err := b.Raster.Read(firstPath)
	if err != nil {
		return res, fmt.Errorf("level %d: %w", level, err)
	}
	tileSize := first.Bounds().Size()
	if tileSize.X != tileSize.Y || tileSize.X == 0 {
		return res, &raster.FormatError{Path: firstPath, Reason: fmt.Sprintf("tile is %dx%d, tiles must be square", tileSize.X, tileSize.Y)}
	}
	res.TileSize = tileSize

	res.OutputDir = tilename.LevelDir(b.OutputRoot, level-1)
	if err := os.MkdirAll(res.OutputDir, 0o755); err != nil {
		return res, fmt.Errorf("could not create %s: %w", res.OutputDir, err)
	}

	blocks := g.Blocks(b.Anchor)
	log.Printf("  level %d: %d tiles, %d blocks -> %s", level, g.Len(), len(blocks), res.OutputDir)

	var (
		mu         sync.Mutex
		incomplete []*IncompleteBlockError
		written    atomic.Int64
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.workers())
	for _, blk := range blocks {
		if egCtx.Err() != nil {
			break
		}
		blk := blk
		eg.Go(func() error {
			err := b.buildBlock(egCtx, g, blk, tileSize, res.OutputDir)
			var ibe *IncompleteBlockError
			switch {
			case errors.As(err, &ibe):
				mu.Lock()
				incomplete = append(incomplete, ibe)
				mu.Unlock()
				return nil
			case err != nil:
				return err
			}
			written.Add(1)
			return nil
		})
	}
	err = eg.Wait()
	res.Written = int(written.Load())
	res.Elapsed = time.Since(start)
	if err != nil {
		return res, fmt.Errorf("level %d: %w", level, err)
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("level %d: %w", level, err)
	}
	if len(incomplete) > 0 {
		sort.Slice(incomplete, func(i, j int) bool {
			if incomplete[i].Row != incomplete[j].Row {
				return incomplete[i].Row < incomplete[j].Row
			}
			return incomplete[i].Col < incomplete[j].Col
		})
		errs := make([]error, len(incomplete))
		for i := range incomplete {
			errs[i] = incomplete[i]
		}
		log.Printf("  level %d: %d of %d blocks incomplete", level, len(incomplete), len(blocks))
		return res, errors.Join(errs...)
	}
	log.Printf("  finished level %d: wrote %d tiles in %s", level-1, res.Written, res.Elapsed.Round(time.Millisecond))
	return res, nil
}

func (b *Builder) buildBlock(ctx context.Context, g *Grid, blk Block, tileSize image.Point, outDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var paths [4]string
	var missing []svt.ColRow
	for i, m := range blk.Members {
		p, ok := g.Path(m.Col, m.Row)
		if !ok {
			missing = append(missing, m)
			continue
		}
		paths[i] = p
	}
	if len(missing) > 0 {
		return &IncompleteBlockError{Level: g.Level, Col: blk.Members[0].Col, Row: blk.Members[0].Row, Missing: missing}
	}

	var imgs [4]image.Image
	for i, p := range paths {
		img, err := b.Raster.Read(p)
		if err != nil {
			return err
		}
		if size := img.Bounds().Size(); size != tileSize {
			return &raster.FormatError{Path: p, Reason: fmt.Sprintf("tile is %dx%d, expected %dx%d", size.X, size.Y, tileSize.X, tileSize.Y)}
		}
		imgs[i] = img
	}
	composite, err := b.Raster.Composite(imgs[0], imgs[1], imgs[2], imgs[3])
	if err != nil {
		return err
	}
	tile := b.Raster.Resize(composite, tileSize.X, tileSize.Y)
	out := filepath.Join(outDir, tilename.Tile(blk.Out.Col, blk.Out.Row, b.Raster.Ext()))
	if err := b.Raster.Write(out, tile); err != nil {
		return fmt.Errorf("could not write %s: %w", out, err)
	}
	return nil
}
