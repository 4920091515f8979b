package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/carlmjohnson/versioninfo"
	"github.com/iancoleman/strcase"
	"github.com/urfave/cli/v2"

	"github.com/langurmonkey/virtualtexture-tools/config"
)

const CONFIG string = `config`
const LEVEL string = `level`
const COL string = `col`
const ROW string = `row`
const LAT string = `lat`
const LON string = `lon`
const OUTPUT string = `output`
const FORMAT string = `format`
const QUALITY string = `quality`
const WORKERS string = `workers`
const OVERWRITE string = `overwrite`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := newApp().RunContext(ctx, os.Args)
	if err != nil {
		stop()
		if errors.Is(err, context.Canceled) {
			log.Fatal("interrupted")
		}
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "svt"
	app.Usage = "Tools to build and inspect spherical virtual textures"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.PathFlag{
			Name:    CONFIG,
			Usage:   "TOML config file, explicitly set flags take precedence",
			EnvVars: envVars(CONFIG),
		},
	}
	app.Commands = []*cli.Command{
		infoCommand(),
		splitCommand(),
		lodCommand(),
		fetchCommand(),
		tmsCommand(),
		packCommand(),
		inspectCommand(),
		levelsCommand(),
	}
	return app
}

// envVars names the environment variable that can stand in for a flag, e.g. SVT_URL_TEMPLATE
func envVars(flag string) []string {
	return []string{"SVT_" + strcase.ToScreamingSnake(flag)}
}

// loadConfig reads the --config file, or the defaults without one
func loadConfig(c *cli.Context) (config.Config, error) {
	if path := c.Path(CONFIG); path != "" {
		return config.Load(path)
	}
	return config.Default(), nil
}

// override replaces *dst with the value of flag when it was set on the command line or in the environment
func override[T any](c *cli.Context, flag string, dst *T, get func(string) T) {
	if c.IsSet(flag) {
		*dst = get(flag)
	}
}

// removeIfExists deletes path, a missing file is fine
func removeIfExists(path string) error {
	err := os.Remove(path)
	var pathError *os.PathError
	if err != nil && !(errors.As(err, &pathError) && errors.Is(pathError.Err, syscall.ENOENT)) {
		return err
	}
	return nil
}
