// Package fetch downloads imagery for SVT tiles into a level<L>/tx_<col>_<row>.<ext> tree.
//
// The imagery source, the geocoder and the tile filter are collaborators behind interfaces.
// The package ships a URL template HTTP client, a static gazetteer and a region filter.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/langurmonkey/virtualtexture-tools/raster"
	"github.com/langurmonkey/virtualtexture-tools/svt"
	"github.com/langurmonkey/virtualtexture-tools/tilename"
)

// Request is what an Imagery source needs to render one tile
type Request struct {
	Tile   svt.TileAddress
	Extent svt.Extent
	Width  int
	Height int
	From   time.Time
	To     time.Time
}

type Imagery interface {
	Fetch(ctx context.Context, req Request) (image.Image, error)
}

type Geocoder interface {
	Resolve(ctx context.Context, name string) (svt.GeoPoint, error)
}

// Filter decides whether a tile is worth fetching
type Filter interface {
	Keep(e svt.Extent) bool
}

type Options struct {
	OutputRoot string        `default:"out" validate:"required"`
	Format     raster.Format `default:"jpg" validate:"oneof=jpg png"`
	Quality    int           `default:"88" validate:"min=1,max=100"`
	Width      int           `default:"1024" validate:"min=1"`
	Height     int           `default:"1024" validate:"min=1"`
	// Zero means DefaultFrom and DefaultTo
	From      time.Time
	To        time.Time
	Overwrite bool
	Workers   int `default:"4" validate:"min=1"`
}

type Fetcher struct {
	Imagery Imagery
	// Applied to multi and level plans, nil keeps every tile
	Filter Filter
	opts   Options
}

// Stats counts the outcome of every planned tile
type Stats struct {
	Planned  int
	Fetched  int
	Existing int
	Filtered int
	Failed   int
}

type outcome int

const (
	fetched outcome = iota
	existing
	filtered
	failed
	cancelled
)

type job struct {
	n    int
	tile svt.TileAddress
}

type result struct {
	job
	outcome outcome
	path    string
	err     error
}

func New(imagery Imagery, filter Filter, opts Options) (*Fetcher, error) {
	if imagery == nil {
		return nil, errors.New("no imagery source")
	}
	if err := defaults.Set(&opts); err != nil {
		return nil, err
	}
	if opts.From.IsZero() {
		opts.From = DefaultFrom
	}
	if opts.To.IsZero() {
		opts.To = DefaultTo
	}
	if err := validator.New().Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid fetch options: %w", err)
	}
	if !opts.From.Before(opts.To) {
		return nil, fmt.Errorf("start date %s is not before end date %s", opts.From.Format(DateLayout), opts.To.Format(DateLayout))
	}
	return &Fetcher{Imagery: imagery, Filter: filter, opts: opts}, nil
}

func (f *Fetcher) Options() Options {
	return f.opts
}

// Path is where tile t is written
func (f *Fetcher) Path(t svt.TileAddress) string {
	return tilename.TilePath(f.opts.OutputRoot, t.Level, t.Col, t.Row, f.opts.Format.Ext())
}

// Run fetches every tile of plan. Existing files are kept unless Overwrite is set.
// A failing tile does not stop the others; all failures are returned together.
func (f *Fetcher) Run(ctx context.Context, plan *Plan) (Stats, error) {
	stats := Stats{Planned: plan.Len()}
	log.Printf("=== start %s fetch of %d tiles into %s ===", plan.Mode, plan.Len(), f.opts.OutputRoot)
	for p := plan.PerLevel().Oldest(); p != nil; p = p.Next() {
		log.Printf("  level %d: %d tiles", p.Key, p.Value)
	}

	jobs := make(chan job)
	results := make(chan result)
	go func() {
		defer close(jobs)
		for i, t := range plan.Tiles() {
			select {
			case jobs <- job{n: i + 1, tile: t}:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg := sync.WaitGroup{}
	for i := 0; i < f.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- f.fetchTile(ctx, plan, j)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var errs []error
	done := 0
	for r := range results {
		if r.outcome == cancelled {
			continue
		}
		done++
		progress := float64(done) * 100.0 / float64(stats.Planned)
		switch r.outcome {
		case fetched:
			stats.Fetched++
			log.Printf("  %s saved to %s (%.2f%%)", r.tile, r.path, progress)
		case existing:
			stats.Existing++
			log.Printf("  %s skipped, file exists: %s (%.2f%%)", r.tile, r.path, progress)
		case filtered:
			stats.Filtered++
			log.Printf("  %s skipped by filter (%.2f%%)", r.tile, progress)
		case failed:
			stats.Failed++
			errs = append(errs, r.err)
			log.Printf("  %s failed: %v (%.2f%%)", r.tile, r.err, progress)
		}
	}
	log.Printf("=== done: fetched %d, existing %d, filtered %d, failed %d ===", stats.Fetched, stats.Existing, stats.Filtered, stats.Failed)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, errors.Join(errs...)
}

func (f *Fetcher) fetchTile(ctx context.Context, plan *Plan, j job) result {
	r := result{job: j, path: f.Path(j.tile)}
	if ctx.Err() != nil {
		r.outcome = cancelled
		return r
	}
	extent, _ := plan.Extent(j.tile)
	if plan.Mode != ModeSingle && f.Filter != nil && !f.Filter.Keep(extent) {
		r.outcome = filtered
		return r
	}
	if _, err := os.Stat(r.path); err == nil && !f.opts.Overwrite {
		r.outcome = existing
		return r
	}

	img, err := f.Imagery.Fetch(ctx, Request{
		Tile:   j.tile,
		Extent: extent,
		Width:  f.opts.Width,
		Height: f.opts.Height,
		From:   f.opts.From,
		To:     f.opts.To,
	})
	if err != nil {
		if ctx.Err() != nil {
			r.outcome = cancelled
			return r
		}
		r.outcome, r.err = failed, fmt.Errorf("%s: %w", j.tile, err)
		return r
	}
	if err := os.MkdirAll(tilename.LevelDir(f.opts.OutputRoot, j.tile.Level), 0o755); err != nil {
		r.outcome, r.err = failed, err
		return r
	}
	if err := raster.Write(r.path, img, f.opts.Format, f.opts.Quality); err != nil {
		r.outcome, r.err = failed, fmt.Errorf("%s: %w", j.tile, err)
		return r
	}
	r.outcome = fetched
	return r
}
