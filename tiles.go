package main

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/langurmonkey/virtualtexture-tools/pyramid"
	"github.com/langurmonkey/virtualtexture-tools/raster"
	"github.com/langurmonkey/virtualtexture-tools/split"
)

const START_COL string = `start-col`
const START_ROW string = `start-row`
const ANCHOR string = `anchor`
const KERNEL string = `kernel`
const STRICT string = `strict`

func formatFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    FORMAT,
			Aliases: []string{"f"},
			Usage:   "Output image format, jpg or png",
			Value:   "jpg",
			EnvVars: envVars(FORMAT),
		},
		&cli.IntFlag{
			Name:    QUALITY,
			Aliases: []string{"q"},
			Usage:   "JPEG quality in [1,100]",
			Value:   raster.DefaultQuality,
			EnvVars: envVars(QUALITY),
		},
	}
}

func splitCommand() *cli.Command {
	return &cli.Command{
		Name:      "split",
		Usage:     "Split a 1:1 or 2:1 image into square tiles",
		ArgsUsage: "RESOLUTION FILE",
		Flags: append(formatFlags(),
			&cli.IntFlag{Name: START_COL, Aliases: []string{"c", "startcol"}, Usage: "Column of the first tile in the file names"},
			&cli.IntFlag{Name: START_ROW, Aliases: []string{"r", "startrow"}, Usage: "Row of the first tile in the file names"},
			&cli.PathFlag{Name: OUTPUT, Aliases: []string{"o"}, Usage: "Output directory", Value: "."},
			&cli.IntFlag{Name: WORKERS, Usage: "Tiles written concurrently, 0 is one per CPU", EnvVars: envVars(WORKERS)},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("expected RESOLUTION and FILE, got %d arguments", c.NArg())
			}
			resolution, err := strconv.Atoi(c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("invalid resolution %q: %w", c.Args().Get(0), err)
			}
			format, err := raster.ParseFormat(c.String(FORMAT))
			if err != nil {
				return err
			}

			log.Println("=== start splitting ===")
			res, err := split.ToDir(c.Context, c.Args().Get(1), c.Path(OUTPUT), split.Options{
				TileSize: resolution,
				StartCol: c.Int(START_COL),
				StartRow: c.Int(START_ROW),
				Format:   format,
				Quality:  c.Int(QUALITY),
				Workers:  c.Int(WORKERS),
			})
			if err != nil {
				return err
			}
			log.Printf("  wrote %d tiles (%dx%d) to %s", len(res.Paths), res.Cols, res.Rows, c.Path(OUTPUT))
			if res.Level >= 0 {
				log.Printf("  next: svt lod %d %s", res.Level, c.Path(OUTPUT))
			}
			log.Println("=== done splitting ===")
			return nil
		},
	}
}

func lodCommand() *cli.Command {
	return &cli.Command{
		Name:      "lod",
		Usage:     "Build the coarser levels of a pyramid from the tiles of one level",
		ArgsUsage: "LEVEL DIRECTORY",
		Flags: append(formatFlags(),
			&cli.PathFlag{Name: OUTPUT, Aliases: []string{"o"}, Usage: "Root of the level<L> output directories", EnvVars: envVars(OUTPUT)},
			&cli.IntFlag{Name: WORKERS, Aliases: []string{"w"}, Usage: "Blocks processed concurrently, 0 is one per CPU", EnvVars: envVars(WORKERS)},
			&cli.StringFlag{Name: ANCHOR, Usage: "Block alignment, absolute (even indices) or origin (first tile)", EnvVars: envVars(ANCHOR)},
			&cli.StringFlag{Name: KERNEL, Usage: "Resampling filter: nearest, bilinear or catmullrom", EnvVars: envVars(KERNEL)},
			&cli.BoolFlag{Name: STRICT, Usage: "Fail when the tiles run out before level 0"},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("expected LEVEL and DIRECTORY, got %d arguments", c.NArg())
			}
			level, err := strconv.Atoi(c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("invalid level %q: %w", c.Args().Get(0), err)
			}
			opts, err := lodOptions(c)
			if err != nil {
				return err
			}
			builder, err := pyramid.New(opts)
			if err != nil {
				return err
			}

			log.Printf("=== start building levels %d to 0 from %s ===", level-1, c.Args().Get(1))
			report, err := builder.Build(c.Context, level, c.Args().Get(1))
			for _, l := range report.Levels {
				log.Printf("  level %d: %d tiles of %dx%d written to %s in %s",
					l.Level-1, l.Written, l.TileSize.X, l.TileSize.Y, l.OutputDir, l.Elapsed)
			}
			var insufficient *pyramid.InsufficientTilesError
			if errors.As(err, &insufficient) && !c.Bool(STRICT) {
				log.Printf("  stopped: %v", err)
				err = nil
			}
			if err != nil {
				return err
			}
			log.Println("=== done building levels ===")
			return nil
		},
	}
}

// lodOptions merges the config file with the flags that were set
func lodOptions(c *cli.Context) (pyramid.Options, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return pyramid.Options{}, err
	}
	opts := cfg.PyramidOptions()
	override(c, OUTPUT, &opts.OutputRoot, c.Path)
	override(c, QUALITY, &opts.Quality, c.Int)
	override(c, WORKERS, &opts.Workers, c.Int)
	if c.IsSet(FORMAT) {
		if opts.Format, err = raster.ParseFormat(c.String(FORMAT)); err != nil {
			return opts, err
		}
	}
	if c.IsSet(ANCHOR) {
		if opts.Anchor, err = pyramid.ParseAnchor(c.String(ANCHOR)); err != nil {
			return opts, err
		}
	}
	if c.IsSet(KERNEL) {
		if opts.Kernel, err = raster.ParseKernel(c.String(KERNEL)); err != nil {
			return opts, err
		}
	}
	return opts, nil
}
