package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/langurmonkey/virtualtexture-tools/fetch"
	"github.com/langurmonkey/virtualtexture-tools/raster"
	"github.com/langurmonkey/virtualtexture-tools/svt"
)

const LEVEL0 string = `l0`
const LEVEL1 string = `l1`
const LOCATION string = `location`
const WHOLE_LEVEL string = `whole-level`
const YES string = `yes`
const URL_TEMPLATE string = `url-template`
const FROM string = `from`
const TO string = `to`
const WIDTH string = `width`
const HEIGHT string = `height`
const RETRIES string = `retries`
const KEEP_ALL string = `keep-all`

// selection is what the fetch flags ask for
type selection struct {
	Level      *int
	L0, L1     *int
	Point      *svt.GeoPoint
	Location   string
	WholeLevel bool
}

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Download tiles from an imagery service into level<L> directories",
		UsageText: "svt fetch -l LEVEL (-lat LAT -lon LON | --location NAME | --whole-level)\n" +
			"svt fetch -l0 L0 -l1 L1 (-lat LAT -lon LON | --location NAME)",
		Flags: append(formatFlags(),
			&cli.IntFlag{Name: LEVEL, Aliases: []string{"l"}, Usage: "Single level, fetches one tile or the whole level"},
			&cli.IntFlag{Name: LEVEL0, Aliases: []string{"level0"}, Usage: "Upper level of a multi level fetch"},
			&cli.IntFlag{Name: LEVEL1, Aliases: []string{"level1"}, Usage: "Lower level of a multi level fetch, included"},
			&cli.Float64Flag{Name: LAT, Aliases: []string{"latitude"}, Usage: "Latitude of the point"},
			&cli.Float64Flag{Name: LON, Aliases: []string{"longitude"}, Usage: "Longitude of the point"},
			&cli.StringFlag{Name: LOCATION, Usage: "Name of a location from the config file"},
			&cli.BoolFlag{Name: WHOLE_LEVEL, Usage: "Fetch every tile of --level"},
			&cli.BoolFlag{Name: YES, Aliases: []string{"y"}, Usage: "Do not ask before fetching a whole level"},
			&cli.StringFlag{Name: URL_TEMPLATE, Usage: "Imagery URL with {level} {col} {row} {lon0} {lat0} {lon1} {lat1} {width} {height} {from} {to}", EnvVars: envVars(URL_TEMPLATE)},
			&cli.PathFlag{Name: OUTPUT, Aliases: []string{"o"}, Usage: "Root of the level<L> output directories", EnvVars: envVars(OUTPUT)},
			&cli.StringFlag{Name: FROM, Usage: "Start date, ISO 8601 or YYYYMMDD", EnvVars: envVars(FROM)},
			&cli.StringFlag{Name: TO, Usage: "End date, ISO 8601 or YYYYMMDD", EnvVars: envVars(TO)},
			&cli.IntFlag{Name: WIDTH, Usage: "Tile width in pixels", EnvVars: envVars(WIDTH)},
			&cli.IntFlag{Name: HEIGHT, Usage: "Tile height in pixels", EnvVars: envVars(HEIGHT)},
			&cli.IntFlag{Name: WORKERS, Aliases: []string{"w"}, Usage: "Concurrent downloads", EnvVars: envVars(WORKERS)},
			&cli.IntFlag{Name: RETRIES, Usage: "Attempts per tile", EnvVars: envVars(RETRIES)},
			&cli.BoolFlag{Name: OVERWRITE, Usage: "Fetch tiles again even if the file exists", EnvVars: envVars(OVERWRITE)},
			&cli.BoolFlag{Name: KEEP_ALL, Aliases: []string{"k"}, Usage: "Ignore the regions of the config file"},
		),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			opts, err := cfg.FetchOptions()
			if err != nil {
				return err
			}
			if opts, err = fetchOptions(c, opts); err != nil {
				return err
			}
			template := cfg.Fetch.URLTemplate
			override(c, URL_TEMPLATE, &template, c.String)
			if template == "" {
				return fmt.Errorf("no imagery URL, set --%s or url_template in the config file", URL_TEMPLATE)
			}
			retries := cfg.Fetch.Retries
			override(c, RETRIES, &retries, c.Int)

			confirm := func(n int) bool {
				if c.Bool(YES) {
					return true
				}
				return askConfirm(c.App.Reader, c.App.Writer, n)
			}
			plan, err := selectPlan(c.Context, selectionFromFlags(c), cfg.Gazetteer(), confirm)
			if err != nil {
				return err
			}

			var filter fetch.Filter
			if regions := cfg.RegionFilter(); len(regions.Regions) > 0 && !c.Bool(KEEP_ALL) {
				filter = regions
			}
			imagery := &fetch.HTTPImagery{Template: template, Retries: retries}
			fetcher, err := fetch.New(imagery, filter, opts)
			if err != nil {
				return err
			}
			_, err = fetcher.Run(c.Context, plan)
			return err
		},
	}
}

func fetchOptions(c *cli.Context, opts fetch.Options) (fetch.Options, error) {
	var err error
	override(c, OUTPUT, &opts.OutputRoot, c.Path)
	override(c, QUALITY, &opts.Quality, c.Int)
	override(c, WIDTH, &opts.Width, c.Int)
	override(c, HEIGHT, &opts.Height, c.Int)
	override(c, WORKERS, &opts.Workers, c.Int)
	override(c, OVERWRITE, &opts.Overwrite, c.Bool)
	if c.IsSet(FORMAT) {
		if opts.Format, err = raster.ParseFormat(c.String(FORMAT)); err != nil {
			return opts, err
		}
	}
	if c.IsSet(FROM) {
		if opts.From, err = fetch.ParseDate(c.String(FROM)); err != nil {
			return opts, err
		}
	}
	if c.IsSet(TO) {
		if opts.To, err = fetch.ParseDate(c.String(TO)); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

func selectionFromFlags(c *cli.Context) selection {
	var s selection
	intFlag := func(name string) *int {
		if !c.IsSet(name) {
			return nil
		}
		v := c.Int(name)
		return &v
	}
	s.Level, s.L0, s.L1 = intFlag(LEVEL), intFlag(LEVEL0), intFlag(LEVEL1)
	if c.IsSet(LAT) && c.IsSet(LON) {
		s.Point = &svt.GeoPoint{Lon: c.Float64(LON), Lat: c.Float64(LAT)}
	}
	s.Location = c.String(LOCATION)
	s.WholeLevel = c.Bool(WHOLE_LEVEL)
	return s
}

// selectPlan turns the fetch flags into a plan. A whole level is only planned after confirm
// accepted the number of tiles.
func selectPlan(ctx context.Context, s selection, geocoder fetch.Geocoder, confirm func(n int) bool) (*fetch.Plan, error) {
	single := s.Level != nil
	multi := s.L0 != nil && s.L1 != nil
	if single == multi {
		return nil, errors.New("give either both -l0 and -l1, or -l (but not both)")
	}
	located := s.Location != ""
	if s.Point != nil && located {
		return nil, errors.New("give either -lat and -lon, or --location (but not both)")
	}

	if s.Point == nil && !located {
		if multi {
			return nil, errors.New("a multi level fetch needs -lat and -lon, or --location")
		}
		if !s.WholeLevel {
			return nil, fmt.Errorf("no point given, use --%s to fetch all of level %d", WHOLE_LEVEL, *s.Level)
		}
		if err := svt.ValidateLevel(*s.Level); err != nil {
			return nil, err
		}
		if !confirm(svt.NumTiles(*s.Level)) {
			return nil, errors.New("whole level fetch cancelled")
		}
		return fetch.PlanLevel(*s.Level)
	}

	pt := s.Point
	if located {
		resolved, err := geocoder.Resolve(ctx, s.Location)
		if err != nil {
			return nil, err
		}
		log.Printf("resolved '%s' to lat=%v, lon=%v", s.Location, resolved.Lat, resolved.Lon)
		pt = &resolved
	}
	if single {
		return fetch.PlanSingle(*pt, *s.Level)
	}
	log.Printf("we need to fetch %d tiles", fetch.MultiCount(*s.L0, *s.L1))
	return fetch.PlanMulti(*pt, *s.L0, *s.L1)
}

// askConfirm asks on w and reads the answer from r, an empty answer is a yes
func askConfirm(r io.Reader, w io.Writer, n int) bool {
	fmt.Fprintf(w, "About to fetch all %d tiles of a level for the whole planet. Continue? (Y/n): ", n)
	answer, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.TrimSpace(answer)
	return answer == "" || strings.EqualFold(answer, "y")
}
