package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/langurmonkey/virtualtexture-tools/archive"
	"github.com/langurmonkey/virtualtexture-tools/mapslicehelp"
	"github.com/langurmonkey/virtualtexture-tools/tilename"
	"github.com/langurmonkey/virtualtexture-tools/tms20"
)

const MAX_LEVEL string = `max-level`
const TILE_SIZE string = `tile-size`
const DRY_RUN string = `dry-run`

func tmsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tms",
		Usage: "Write the OGC TileMatrixSet JSON of a texture",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: MAX_LEVEL, Aliases: []string{"z"}, Usage: "Finest level", Required: true},
			&cli.UintFlag{Name: TILE_SIZE, Aliases: []string{"s"}, Usage: "Tile width and height in pixels", Value: 1024},
			&cli.PathFlag{Name: OUTPUT, Aliases: []string{"o"}, Usage: "Output file, stdout when empty"},
		},
		Action: func(c *cli.Context) error {
			tms, err := tms20.FromSVT(c.Int(MAX_LEVEL), c.Uint(TILE_SIZE))
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(tms, "", "  ")
			if err != nil {
				return err
			}
			if c.Path(OUTPUT) == "" {
				_, err = fmt.Fprintln(c.App.Writer, string(b))
				return err
			}
			return os.WriteFile(c.Path(OUTPUT), append(b, '\n'), 0o644)
		},
	}
}

func packCommand() *cli.Command {
	return &cli.Command{
		Name:      "pack",
		Usage:     "Store the level<L> directories under ROOT in a single GeoPackage",
		ArgsUsage: "ROOT ARCHIVE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: OVERWRITE, Usage: "Replace ARCHIVE if it exists", EnvVars: envVars(OVERWRITE)},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("expected ROOT and ARCHIVE, got %d arguments", c.NArg())
			}
			root, path := c.Args().Get(0), c.Args().Get(1)
			if c.Bool(OVERWRITE) {
				if err := removeIfExists(path); err != nil {
					return fmt.Errorf("could not remove archive: %w", err)
				}
			}
			log.Printf("=== start packing %s ===", root)
			res, err := archive.Pack(c.Context, root, path)
			if err != nil {
				return err
			}
			log.Printf("=== done packing %d tiles (%d bytes) into %s ===", res.Tiles, res.Bytes, path)
			return nil
		},
	}
}

func levelsCommand() *cli.Command {
	return &cli.Command{
		Name:  "levels",
		Usage: "Maintain level directories",
		Subcommands: []*cli.Command{
			{
				Name:      "normalize",
				Usage:     "Rename zero-padded level directories (level07) to level7",
				ArgsUsage: "ROOT",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: DRY_RUN, Aliases: []string{"n"}, Usage: "Only list the renames"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected ROOT, got %d arguments", c.NArg())
					}
					renames, err := tilename.Normalize(c.Args().First(), c.Bool(DRY_RUN))
					for _, r := range renames {
						log.Printf("  level %d: %s -> %s", r.Level, r.From, r.To)
					}
					if err != nil {
						return err
					}
					log.Printf("%d level directories normalized", len(renames))
					return nil
				},
			},
		},
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "List the levels and metadata of an archive",
		ArgsUsage: "ARCHIVE",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected ARCHIVE, got %d arguments", c.NArg())
			}
			a, err := archive.Open(c.Args().First())
			if err != nil {
				return err
			}
			defer a.Close()
			meta, err := a.Metadata()
			if err != nil {
				return err
			}
			levels, err := a.Levels()
			if err != nil {
				return err
			}
			w := c.App.Writer
			for _, name := range mapslicehelp.SortedKeys(meta) {
				fmt.Fprintf(w, "%-12s%s\n", name+":", meta[name])
			}
			for _, l := range levels {
				fmt.Fprintf(w, "level %d: %d tiles, columns %d-%d, rows %d-%d\n", l.Level, l.Tiles, l.MinCol, l.MaxCol, l.MinRow, l.MaxRow)
			}
			return nil
		},
	}
}
