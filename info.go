package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/langurmonkey/virtualtexture-tools/geomhelp"
	"github.com/langurmonkey/virtualtexture-tools/svt"
)

type tileInfo struct {
	Input    svt.GeoPoint
	Tile     svt.TileAddress
	Extent   svt.Extent
	UV0, UV1 svt.UV
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "Convert between tile indices and longitude/latitude at a level",
		UsageText: "svt info -l LEVEL (-c COL -r ROW | -lat LAT -lon LON)",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: LEVEL, Aliases: []string{"l"}, Usage: "SVT level", Required: true},
			&cli.IntFlag{Name: COL, Aliases: []string{"c", "column"}, Usage: "Column in the level"},
			&cli.IntFlag{Name: ROW, Aliases: []string{"r"}, Usage: "Row in the level"},
			&cli.Float64Flag{Name: LAT, Usage: "Latitude in [-90, 90]"},
			&cli.Float64Flag{Name: LON, Usage: "Longitude in [-180, 180]"},
		},
		Action: func(c *cli.Context) error {
			var info tileInfo
			var err error
			switch {
			case c.IsSet(LAT) && c.IsSet(LON):
				info, err = describePoint(c.Int(LEVEL), svt.GeoPoint{Lon: c.Float64(LON), Lat: c.Float64(LAT)})
			case c.IsSet(COL) && c.IsSet(ROW):
				info, err = describeTile(svt.TileAddress{Level: c.Int(LEVEL), Col: c.Int(COL), Row: c.Int(ROW)})
			default:
				_ = cli.ShowSubcommandHelp(c)
				return errors.New("nothing to convert, give either -c and -r or -lat and -lon")
			}
			if err != nil {
				return err
			}
			writeInfo(c.App.Writer, info)
			return nil
		},
	}
}

func describePoint(level int, pt svt.GeoPoint) (tileInfo, error) {
	t, err := svt.GeoToTile(pt.Lat, pt.Lon, level)
	if err != nil {
		return tileInfo{}, err
	}
	info := newTileInfo(t)
	info.Input = pt
	return info, nil
}

// describeTile uses the northwest corner of the tile as the input point
func describeTile(t svt.TileAddress) (tileInfo, error) {
	if err := t.Validate(); err != nil {
		return tileInfo{}, err
	}
	info := newTileInfo(t)
	info.Input = info.Extent.NW()
	return info, nil
}

func newTileInfo(t svt.TileAddress) tileInfo {
	uv0, uv1 := svt.UVExtent(t)
	return tileInfo{Tile: t, Extent: svt.TileExtent(t), UV0: uv0, UV1: uv1}
}

func writeInfo(w io.Writer, info tileInfo) {
	e := info.Extent
	size := e.Size()
	dLonM, dLatM := size.Meters(e.Center().Lat)
	polygon := geomhelp.ExtentPolygon(e.ToGeomExtent())

	fmt.Fprintf(w, "%-25s%d\n\n", "Level:", info.Tile.Level)
	fmt.Fprintf(w, "%-25slat=%v, lon=%v\n", "Input point:", info.Input.Lat, info.Input.Lon)
	fmt.Fprintf(w, "%-25scol=%d, row=%d\n", "Tile indices:", info.Tile.Col, info.Tile.Row)
	fmt.Fprintf(w, "%-25s(%v, %v) -> (%v, %v)\n", "Tile extent (lon/lat):", e.Lon0, e.Lat0, e.Lon1, e.Lat1)
	fmt.Fprintf(w, "%-25s%v x %v deg, %.0f x %.0f m at the tile center\n", "Tile size:", size.DLon, size.DLat, dLonM, dLatM)
	fmt.Fprintf(w, "%-25s%v square deg\n\n", "Area:", geomhelp.Shoelace(polygon[0][:4]))
	fmt.Fprintf(w, "WKT POLYGON:\n  %s\n\n", geomhelp.WktMustEncode(polygon, 0))
	fmt.Fprintf(w, "%-25s[%v %v] -> [%v %v] (extent [%v %v])\n", "UV (start -> end):",
		info.UV0.U, info.UV0.V, info.UV1.U, info.UV1.V, info.UV1.U-info.UV0.U, info.UV0.V-info.UV1.V)
}
