// Package config reads the optional TOML configuration file of the svt tool.
//
// Every value has a default, so an empty or missing section is fine. Command line flags
// that are explicitly set override the file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/langurmonkey/virtualtexture-tools/fetch"
	"github.com/langurmonkey/virtualtexture-tools/pyramid"
	"github.com/langurmonkey/virtualtexture-tools/raster"
	"github.com/langurmonkey/virtualtexture-tools/svt"
)

type Config struct {
	Output  Output  `toml:"output"`
	Pyramid Pyramid `toml:"pyramid"`
	Fetch   Fetch   `toml:"fetch"`
}

type Output struct {
	Root    string `toml:"root" default:"out" validate:"required"`
	Format  string `toml:"format" default:"jpg" validate:"oneof=jpg png"`
	Quality int    `toml:"quality" default:"95" validate:"min=1,max=100"`
}

type Pyramid struct {
	Kernel  string `toml:"kernel" default:"catmullrom" validate:"oneof=nearest bilinear catmullrom"`
	Anchor  string `toml:"anchor" default:"absolute" validate:"oneof=absolute origin"`
	Workers int    `toml:"workers" validate:"min=0"`
}

type Fetch struct {
	// Placeholders as in fetch.HTTPImagery
	URLTemplate string `toml:"url_template"`
	Quality     int    `toml:"quality" default:"88" validate:"min=1,max=100"`
	Width       int    `toml:"width" default:"1024" validate:"min=1"`
	Height      int    `toml:"height" default:"1024" validate:"min=1"`
	From        string `toml:"from"`
	To          string `toml:"to"`
	Workers     int    `toml:"workers" default:"4" validate:"min=1"`
	Retries     int    `toml:"retries" default:"3" validate:"min=0"`

	Locations map[string]Location `toml:"locations" validate:"dive"`
	Regions   []Region            `toml:"regions" validate:"dive"`
}

type Location struct {
	Lat float64 `toml:"lat" validate:"min=-90,max=90"`
	Lon float64 `toml:"lon" validate:"min=-180,max=180"`
}

// Region is a rectangle from its northwest (Lon0, Lat0) to its southeast (Lon1, Lat1) corner
type Region struct {
	Name string  `toml:"name"`
	Lon0 float64 `toml:"lon0" validate:"min=-180,max=180"`
	Lat0 float64 `toml:"lat0" validate:"min=-90,max=90"`
	Lon1 float64 `toml:"lon1" validate:"min=-180,max=180,gtfield=Lon0"`
	Lat1 float64 `toml:"lat1" validate:"min=-90,max=90,ltfield=Lat0"`
}

// Default is the configuration without a file
func Default() Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(err)
	}
	return c
}

// Load reads path on top of the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	c := Default()
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return c, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return c, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if err = c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	_, _, err := c.Fetch.Dates()
	return err
}

// Dates parses From and To, an empty value leaves the time zero
func (f Fetch) Dates() (from, to time.Time, err error) {
	if f.From != "" {
		if from, err = fetch.ParseDate(f.From); err != nil {
			return
		}
	}
	if f.To != "" {
		if to, err = fetch.ParseDate(f.To); err != nil {
			return
		}
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		err = errors.New("fetch from date must be before the to date")
	}
	return
}

func (o Output) RasterFormat() raster.Format {
	f, _ := raster.ParseFormat(o.Format)
	return f
}

// PyramidOptions fills pyramid.Options from the output and pyramid sections
func (c Config) PyramidOptions() pyramid.Options {
	return pyramid.Options{
		OutputRoot: c.Output.Root,
		Format:     c.Output.RasterFormat(),
		Quality:    c.Output.Quality,
		Kernel:     raster.Kernel(c.Pyramid.Kernel),
		Anchor:     pyramid.Anchor(c.Pyramid.Anchor),
		Workers:    c.Pyramid.Workers,
	}
}

// FetchOptions fills fetch.Options from the output and fetch sections
func (c Config) FetchOptions() (fetch.Options, error) {
	from, to, err := c.Fetch.Dates()
	if err != nil {
		return fetch.Options{}, err
	}
	return fetch.Options{
		OutputRoot: c.Output.Root,
		Format:     c.Output.RasterFormat(),
		Quality:    c.Fetch.Quality,
		Width:      c.Fetch.Width,
		Height:     c.Fetch.Height,
		From:       from,
		To:         to,
		Workers:    c.Fetch.Workers,
	}, nil
}

func (c Config) Gazetteer() *fetch.Gazetteer {
	places := make(map[string]svt.GeoPoint, len(c.Fetch.Locations))
	for name, l := range c.Fetch.Locations {
		places[name] = svt.GeoPoint{Lon: l.Lon, Lat: l.Lat}
	}
	return fetch.NewGazetteer(places)
}

func (c Config) RegionFilter() fetch.RegionFilter {
	regions := make([]svt.Extent, 0, len(c.Fetch.Regions))
	for _, r := range c.Fetch.Regions {
		regions = append(regions, svt.Extent{Lon0: r.Lon0, Lat0: r.Lat0, Lon1: r.Lon1, Lat1: r.Lat1})
	}
	return fetch.RegionFilter{Regions: regions}
}
