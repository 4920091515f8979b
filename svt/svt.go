// Package svt maps between spherical virtual texture tile indices, normalized UV
// texture coordinates and geographic coordinates (longitude, latitude in degrees).
//
// Level L of the texture has 2^(L+1) columns and 2^L rows of square tiles in an
// equirectangular layout. Column 0 starts at longitude -180, row 0 starts at latitude 90.
// UV is the pivot for every conversion: u=0 is longitude -180, u=1 is longitude 180,
// v=0 is latitude -90 and v=1 is latitude 90. Rows increase southward, so the row index
// counts from the top while v counts from the bottom.
package svt

import (
	"fmt"
	"math"

	"github.com/go-spatial/geom"
	"github.com/langurmonkey/virtualtexture-tools/mathhelp"
)

const (
	MinLon = -180.0
	MaxLon = 180.0
	MinLat = -90.0
	MaxLat = 90.0

	// MetersPerDegreeLat is the length of one degree of latitude, used for reporting only
	MetersPerDegreeLat = 110574.0
	// MetersPerDegreeLon is the length of one degree of longitude at the equator
	MetersPerDegreeLon = 111320.0
)

// TileAddress identifies a single tile
type TileAddress struct {
	Level int
	Col   int
	Row   int
}

// ColRow is a tile position within a level
type ColRow struct {
	Col int
	Row int
}

// UV is a normalized texture coordinate
type UV struct {
	U float64
	V float64
}

// GeoPoint is a position in degrees
type GeoPoint struct {
	Lon float64
	Lat float64
}

// Extent is the geographic rectangle covered by a tile.
// (Lon0, Lat0) is the northwest corner, (Lon1, Lat1) the southeast corner.
type Extent struct {
	Lon0 float64
	Lat0 float64
	Lon1 float64
	Lat1 float64
}

// Size is an absolute difference in degrees
type Size struct {
	DLon float64
	DLat float64
}

// NumCols is the number of tile columns at the given level
func NumCols(level int) int {
	return int(mathhelp.Pow2(uint(level) + 1))
}

// NumRows is the number of tile rows at the given level
func NumRows(level int) int {
	return int(mathhelp.Pow2(uint(level)))
}

// NumTiles is the number of tiles in a complete level
func NumTiles(level int) int {
	return NumCols(level) * NumRows(level)
}

// ColRowToUV returns the UV of the top-left corner of tile (col, row).
// Nothing is clamped: indices outside the level give coordinates outside [0,1].
func ColRowToUV(col, row, level int) UV {
	return UV{
		U: float64(col) / float64(NumCols(level)),
		V: 1.0 - float64(row)/float64(NumRows(level)),
	}
}

func UVToGeo(uv UV) GeoPoint {
	return GeoPoint{
		Lon: uv.U*360.0 - 180.0,
		Lat: uv.V*180.0 - 90.0,
	}
}

func GeoToUV(lat, lon float64) UV {
	return UV{
		U: (lon + 180.0) / 360.0,
		V: (lat + 90.0) / 180.0,
	}
}

// GeoToTile returns the tile containing (lat, lon) at the given level.
// Points on the east (lon=180) or south (lat=-90) edge of the sphere belong to the
// last column or row.
func GeoToTile(lat, lon float64, level int) (TileAddress, error) {
	if err := ValidateLevel(level); err != nil {
		return TileAddress{}, err
	}
	if math.IsNaN(lat) || lat < MinLat || lat > MaxLat {
		return TileAddress{}, &OutOfRangeError{What: "latitude", Value: lat, Min: MinLat, Max: MaxLat}
	}
	if math.IsNaN(lon) || lon < MinLon || lon > MaxLon {
		return TileAddress{}, &OutOfRangeError{What: "longitude", Value: lon, Min: MinLon, Max: MaxLon}
	}
	uv := GeoToUV(lat, lon)
	nc, nr := NumCols(level), NumRows(level)
	col := int(math.Floor(uv.U * float64(nc)))
	row := int(math.Floor((1.0 - uv.V) * float64(nr)))
	return TileAddress{
		Level: level,
		Col:   mathhelp.Clamp(col, 0, nc-1),
		Row:   mathhelp.Clamp(row, 0, nr-1),
	}, nil
}

// TileExtent maps the top-left (col, row) and bottom-right (col+1, row+1) UV corners of
// the tile to geographic coordinates.
func TileExtent(t TileAddress) Extent {
	nw := UVToGeo(ColRowToUV(t.Col, t.Row, t.Level))
	se := UVToGeo(ColRowToUV(t.Col+1, t.Row+1, t.Level))
	return Extent{Lon0: nw.Lon, Lat0: nw.Lat, Lon1: se.Lon, Lat1: se.Lat}
}

// UVExtent returns the UV of the top-left and bottom-right corners of the tile
func UVExtent(t TileAddress) (UV, UV) {
	return ColRowToUV(t.Col, t.Row, t.Level), ColRowToUV(t.Col+1, t.Row+1, t.Level)
}

// ExtentSize is the absolute elementwise difference between two points.
// It is not a distance; see Size.Meters.
func ExtentSize(a, b GeoPoint) Size {
	return Size{
		DLon: math.Abs(b.Lon - a.Lon),
		DLat: math.Abs(b.Lat - a.Lat),
	}
}

// Meters approximates the size in meters at the given latitude (equirectangular,
// not geodesically exact).
func (s Size) Meters(lat float64) (dLonM, dLatM float64) {
	dLatM = s.DLat * MetersPerDegreeLat
	dLonM = s.DLon * math.Cos(lat*math.Pi/180.0) * MetersPerDegreeLon
	return dLonM, dLatM
}

// ValidateLevel checks that the level is non-negative and small enough for int indices
func ValidateLevel(level int) error {
	if level < 0 || level > 30 {
		return &OutOfRangeError{What: "level", Value: float64(level), Min: 0, Max: 30}
	}
	return nil
}

// Validate checks the tile's column and row against its level's grid
func (t TileAddress) Validate() error {
	if err := ValidateLevel(t.Level); err != nil {
		return err
	}
	if !mathhelp.BetweenExc(t.Col, 0, NumCols(t.Level)) {
		return &OutOfRangeError{What: "column", Value: float64(t.Col), Min: 0, Max: float64(NumCols(t.Level) - 1), Level: t.Level}
	}
	if !mathhelp.BetweenExc(t.Row, 0, NumRows(t.Level)) {
		return &OutOfRangeError{What: "row", Value: float64(t.Row), Min: 0, Max: float64(NumRows(t.Level) - 1), Level: t.Level}
	}
	return nil
}

// Parent is the tile one level up that this tile is composited into.
// The parent of a level 0 tile is itself.
func (t TileAddress) Parent() TileAddress {
	if t.Level == 0 {
		return t
	}
	return TileAddress{Level: t.Level - 1, Col: t.Col / 2, Row: t.Row / 2}
}

// Children returns the 2x2 block one level down, ordered NW, NE, SW, SE.
func (t TileAddress) Children() [4]TileAddress {
	l, c, r := t.Level+1, t.Col*2, t.Row*2
	return [4]TileAddress{
		{Level: l, Col: c, Row: r},
		{Level: l, Col: c + 1, Row: r},
		{Level: l, Col: c, Row: r + 1},
		{Level: l, Col: c + 1, Row: r + 1},
	}
}

func (t TileAddress) String() string {
	return fmt.Sprintf("L%d (%d,%d)", t.Level, t.Col, t.Row)
}

// NW is the northwest corner
func (e Extent) NW() GeoPoint { return GeoPoint{Lon: e.Lon0, Lat: e.Lat0} }

// SE is the southeast corner
func (e Extent) SE() GeoPoint { return GeoPoint{Lon: e.Lon1, Lat: e.Lat1} }

func (e Extent) Center() GeoPoint {
	return GeoPoint{Lon: (e.Lon0 + e.Lon1) / 2, Lat: (e.Lat0 + e.Lat1) / 2}
}

func (e Extent) Size() Size {
	return ExtentSize(e.NW(), e.SE())
}

// Intersects reports whether both extents share interior area
func (e Extent) Intersects(o Extent) bool {
	a, b := e.ToGeomExtent(), o.ToGeomExtent()
	return a.MinX() < b.MaxX() && b.MinX() < a.MaxX() && a.MinY() < b.MaxY() && b.MinY() < a.MaxY()
}

// ToGeomExtent returns minx (west), miny (south), maxx (east), maxy (north)
func (e Extent) ToGeomExtent() geom.Extent {
	return geom.Extent{
		math.Min(e.Lon0, e.Lon1),
		math.Min(e.Lat0, e.Lat1),
		math.Max(e.Lon0, e.Lon1),
		math.Max(e.Lat0, e.Lat1),
	}
}
