// Package tms20 describes the SVT grid as an OGC Tile Matrix Set (v2.0) and implements it as a slippy.Grid
// See https://www.ogc.org/standard/tms/
package tms20

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"

	"github.com/go-spatial/geom"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/go-spatial/geom/slippy"
	"github.com/perimeterx/marshmallow"

	"github.com/langurmonkey/virtualtexture-tools/svt"
)

const (
	CRS84URI = "http://www.opengis.net/def/crs/OGC/1.3/CRS84"
	// SVTQuadID identifies the tile matrix set made by FromSVT
	SVTQuadID = "SVTCRS84Quad"

	// length of one degree on the equator of the WGS84 ellipsoid, as used by the OGC well-known scale sets
	metersPerDegree = 111319.49079327358
	// the OGC standardized rendering pixel size of 0.28 mm
	standardPixelSize = 0.00028
)

// TileMatrixSet is a definition of a tile matrix set following the Tile Matrix Set standard.
type TileMatrixSet struct {
	// Tile matrix set identifier. Implementation of 'identifier'
	ID string `json:"id,omitempty"`
	// Title of this tile matrix set, normally used for display to a human
	Title string `json:"title,omitempty"`
	// Brief narrative description of this tile matrix set, normally available for display to a human
	Description string `json:"description,omitempty"`
	// Reference to an official source for this TileMatrixSet
	URI         string   `validate:"omitempty,uri" json:"uri,omitempty"`
	OrderedAxes []string `validate:"omitnil,min=1" json:"orderedAxes,omitempty"`
	// Coordinate Reference System (CRS)
	CRS URICRS `json:"-"`
	// Minimum bounding rectangle surrounding the tile matrix set, in the supported CRS
	BoundingBox *TwoDBoundingBox `json:"boundingBox,omitempty"`
	// Describes scale levels and its tile matrices
	TileMatrices map[int]TileMatrix `validate:"required,min=1" json:"-"`
}

// FromSVT describes SVT levels 0 to maxLevel with square tiles of tileSize pixels.
// Matrix L is SVT level L: 2^(L+1) columns and 2^L rows numbered from the top-left corner (-180, 90).
func FromSVT(maxLevel int, tileSize uint) (*TileMatrixSet, error) {
	if err := svt.ValidateLevel(maxLevel); err != nil {
		return nil, err
	}
	if tileSize == 0 {
		return nil, errors.New("tile size must be at least 1 pixel")
	}
	tms := &TileMatrixSet{
		ID:          SVTQuadID,
		Title:       "Spherical virtual texture grid in CRS84",
		Description: fmt.Sprintf("SVT levels 0 to %d, level L has 2^(L+1) columns and 2^L rows of %dx%d pixel tiles", maxLevel, tileSize, tileSize),
		OrderedAxes: []string{"Lon", "Lat"},
		CRS:         NewURICRS(CRS84URI),
		BoundingBox: &TwoDBoundingBox{
			LowerLeft:  TwoDPoint{svt.MinLon, svt.MinLat},
			UpperRight: TwoDPoint{svt.MaxLon, svt.MaxLat},
		},
		TileMatrices: make(map[int]TileMatrix, maxLevel+1),
	}
	for level := 0; level <= maxLevel; level++ {
		cols, rows := uint(svt.NumCols(level)), uint(svt.NumRows(level))
		cellSize := (svt.MaxLon - svt.MinLon) / float64(cols*tileSize)
		tms.TileMatrices[level] = TileMatrix{
			ID:               strconv.Itoa(level),
			ScaleDenominator: cellSize * metersPerDegree / standardPixelSize,
			CellSize:         cellSize,
			CornerOfOrigin:   TopLeft,
			PointOfOrigin:    TwoDPoint{svt.MinLon, svt.MaxLat},
			TileWidth:        tileSize,
			TileHeight:       tileSize,
			MatrixWidth:      cols,
			MatrixHeight:     rows,
		}
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(tms); err != nil {
		return nil, err
	}
	return tms, nil
}

// LoadJSONTileMatrixSet reads a tile matrix set from a JSON file
func LoadJSONTileMatrixSet(path string) (TileMatrixSet, error) {
	var tms TileMatrixSet
	tmsJSON, err := os.ReadFile(path)
	if err != nil {
		return tms, err
	}
	err = json.Unmarshal(tmsJSON, &tms)
	if err != nil {
		return tms, fmt.Errorf("could not read tile matrix set %s: %w", path, err)
	}
	return tms, nil
}

func (tms *TileMatrixSet) MarshalJSON() ([]byte, error) {
	tileMatrices := make([]*TileMatrix, 0, len(tms.TileMatrices))
	for i := range tms.TileMatrices {
		tm := tms.TileMatrices[i]
		tileMatrices = append(tileMatrices, &tm)
	}
	sort.Slice(tileMatrices, func(i, j int) bool {
		iID, _ := strconv.ParseInt(tileMatrices[i].ID, 10, 64)
		jID, _ := strconv.ParseInt(tileMatrices[j].ID, 10, 64)
		return iID < jID
	})
	return json.Marshal(struct {
		TileMatrixSet                     // not a pointer, because it would cause recursion to this function
		SpecialCRS          *URICRS       `json:"crs"`
		SpecialTileMatrices []*TileMatrix `json:"tileMatrices"`
	}{
		TileMatrixSet:       *tms,
		SpecialCRS:          &tms.CRS,
		SpecialTileMatrices: tileMatrices,
	})
}

func (tms *TileMatrixSet) UnmarshalJSON(data []byte) error {
	err := defaults.Set(tms)
	if err != nil {
		return err
	}

	specials, err := marshmallow.Unmarshal(data, tms, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}

	rawCrs, ok := specials["crs"]
	if !ok {
		return fmt.Errorf(`missing key "crs"`)
	}
	if err = tms.CRS.UnmarshalJSONFromMap(rawCrs); err != nil {
		return err
	}

	rawTileMatrices, ok := specials["tileMatrices"]
	if !ok {
		return fmt.Errorf(`missing key "tileMatrices"`)
	}
	tms.TileMatrices, err = unmarshalTileMatrices(rawTileMatrices)
	if err != nil {
		return err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(tms)
}

func unmarshalTileMatrices(rawTileMatrices interface{}) (map[int]TileMatrix, error) {
	rawTileMatricesList, ok := rawTileMatrices.([]interface{})
	if !ok {
		return nil, fmt.Errorf(`"tileMatrices" should be an array`)
	}
	tileMatrices := make(map[int]TileMatrix, len(rawTileMatricesList))
	for _, rawTileMatrix := range rawTileMatricesList {
		var tileMatrix TileMatrix
		if err := tileMatrix.UnmarshalJSONFromMap(rawTileMatrix); err != nil {
			return nil, err
		}
		tileMatrixID, err := strconv.ParseInt(tileMatrix.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("only integer-like ids are supported for tile matrices: %w", err)
		}
		tileMatrices[int(tileMatrixID)] = tileMatrix
	}
	return tileMatrices, nil
}

// SRID is the EPSG code of the CRS. CRS84 has the axes of EPSG:4326 swapped but the same datum,
// so it maps to 4326.
func (tms *TileMatrixSet) SRID() (uint, error) {
	if tms.CRS.AuthorityName() == "OGC" && tms.CRS.AuthorityCode() == "CRS84" {
		return 4326, nil
	}
	code, err := strconv.ParseUint(tms.CRS.AuthorityCode(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf(`could not parse uri authority code "%s": %w`, tms.CRS.AuthorityCode(), err)
	}
	return uint(code), nil
}

func (tms *TileMatrixSet) Size(zoom uint) (*slippy.Tile, bool) {
	tm, ok := tms.TileMatrices[int(zoom)]
	if !ok {
		return nil, false
	}
	return slippy.NewTile(zoom, tm.MatrixWidth, tm.MatrixHeight), true
}

// FromNative returns the tile containing pt. Points on the right or bottom edge of the
// matrix are outside of it.
func (tms *TileMatrixSet) FromNative(zoom uint, pt geom.Point) (*slippy.Tile, bool) {
	tm, ok := tms.TileMatrices[int(zoom)]
	if !ok {
		return nil, false
	}

	tileSizeX := float64(tm.TileWidth) * tm.CellSize
	minX := tm.PointOfOrigin.XY()[0]
	x := (pt.X() - minX) / tileSizeX
	if x < 0 || uint(x) >= tm.MatrixWidth {
		return nil, false
	}

	tileSizeY := float64(tm.TileHeight) * tm.CellSize
	var y float64
	switch tm.CornerOfOrigin {
	case BottomLeft:
		y = (pt.Y() - tm.PointOfOrigin.XY()[1]) / tileSizeY
	default:
		y = (tm.PointOfOrigin.XY()[1] - pt.Y()) / tileSizeY
	}
	if y < 0 || uint(y) >= tm.MatrixHeight {
		return nil, false
	}

	return slippy.NewTile(zoom, uint(x), uint(y)), true
}

// ToNative returns the top-left corner of tile
func (tms *TileMatrixSet) ToNative(tile *slippy.Tile) (geom.Point, bool) {
	topLeftPt := geom.Point{}
	tm, ok := tms.TileMatrices[int(tile.Z)]
	if !ok {
		return topLeftPt, false
	}
	if tile.X > tm.MatrixWidth || tile.Y > tm.MatrixHeight {
		// >, not >= because "should be able to take tiles with x and y values 1 higher than the max"
		return topLeftPt, false
	}

	tileSizeX := float64(tm.TileWidth) * tm.CellSize
	topLeftPt[0] = tm.PointOfOrigin.XY()[0] + float64(tile.X)*tileSizeX

	tileSizeY := float64(tm.TileHeight) * tm.CellSize
	switch tm.CornerOfOrigin {
	case BottomLeft:
		topLeftPt[1] = tm.PointOfOrigin.XY()[1] + float64(tile.Y+1)*tileSizeY
	default:
		topLeftPt[1] = tm.PointOfOrigin.XY()[1] - float64(tile.Y)*tileSizeY
	}

	return topLeftPt, true
}

var (
	crsURIRegexURL = regexp.MustCompile("https?://.+/def/crs/(?P<authority>[^/]+)/[^/]+/(?P<code>[^/]+)$")
	crsURIRegexURN = regexp.MustCompile("^urn:ogc:def:crs:(?P<authority>[^:]+):[^:]*:(?P<code>[^:]+)$")
)

// URICRS is a coordinate reference system given by reference
type URICRS struct {
	description   string
	uri           string
	authorityName string
	authorityCode string
	// Whether it should be marshalled as just a string
	asString bool
}

// NewURICRS panics on a uri that is not an OGC CRS URL or URN
func NewURICRS(uri string) URICRS {
	var crs URICRS
	if err := crs.UnmarshalJSONFromMap(uri); err != nil {
		panic(err)
	}
	return crs
}

func (crs *URICRS) MarshalJSON() ([]byte, error) {
	if crs.asString {
		return json.Marshal(crs.uri)
	}
	return json.Marshal(struct {
		Description string `json:"description,omitempty"`
		URI         string `json:"uri"`
	}{
		Description: crs.description,
		URI:         crs.uri,
	})
}

func (crs *URICRS) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return crs.UnmarshalJSONFromMap(raw)
}

// UnmarshalJSONFromMap accepts a bare uri string or an object with a uri and an optional description
func (crs *URICRS) UnmarshalJSONFromMap(data interface{}) error {
	*crs = URICRS{}
	switch d := data.(type) {
	case string:
		crs.uri = d
		crs.asString = true
	case map[string]interface{}:
		if rawDescription, ok := d["description"]; ok {
			if crs.description, ok = rawDescription.(string); !ok {
				return fmt.Errorf(`description property is not a string but a %T`, rawDescription)
			}
		}
		rawURI, ok := d["uri"]
		if !ok {
			return fmt.Errorf(`uri property not found`)
		}
		if crs.uri, ok = rawURI.(string); !ok {
			return fmt.Errorf(`uri property is not a string but a %T`, rawURI)
		}
	default:
		return fmt.Errorf(`wrong type key "crs": %T`, data)
	}

	uriParts := crsURIRegexURL.FindStringSubmatch(crs.uri)
	if uriParts == nil {
		uriParts = crsURIRegexURN.FindStringSubmatch(crs.uri)
	}
	if uriParts == nil {
		return fmt.Errorf(`could not parse crs uri "%v"`, crs.uri)
	}
	crs.authorityName = uriParts[1]
	crs.authorityCode = uriParts[2]
	return nil
}

func (crs *URICRS) URI() string {
	return crs.uri
}

func (crs *URICRS) Description() string {
	return crs.description
}

func (crs *URICRS) AuthorityName() string {
	return crs.authorityName
}

func (crs *URICRS) AuthorityCode() string {
	return crs.authorityCode
}

// Minimum bounding rectangle surrounding a 2D resource in the CRS of the tile matrix set
type TwoDBoundingBox struct {
	LowerLeft   TwoDPoint `validate:"required" json:"lowerLeft"`
	UpperRight  TwoDPoint `validate:"required" json:"upperRight"`
	OrderedAxes []string  `validate:"omitempty,len=2" json:"orderedAxes,omitempty"`
}

// A 2D Point in the CRS indicated elsewhere
type TwoDPoint [2]float64

func (p TwoDPoint) XY() [2]float64 {
	return p
}

// A tile matrix, usually corresponding to a particular zoom level of a TileMatrixSet.
type TileMatrix struct {
	// Identifier selecting one of the scales defined in the TileMatrixSet and representing the scaleDenominator the tile.
	// Implementation of 'identifier'
	ID string `validate:"required" json:"id"`
	// Title of this tile matrix, normally used for display to a human
	Title string `json:"title,omitempty"`
	// Scale denominator of this tile matrix
	ScaleDenominator float64 `validate:"required,gt=0" json:"scaleDenominator"`
	// Cell size of this tile matrix
	CellSize float64 `validate:"required,gt=0" json:"cellSize"`
	// The corner of the tile matrix (_topLeft_ or _bottomLeft_) used as the origin for numbering tile rows and columns.
	// This corner is also a corner of the (0, 0) tile.
	CornerOfOrigin CornerOfOrigin `validate:"omitempty,oneof=topLeft bottomLeft" json:"cornerOfOrigin,omitempty"`
	// Precise position in CRS coordinates of the corner of origin (e.g. the top-left corner) for this tile matrix.
	PointOfOrigin TwoDPoint `validate:"required" json:"pointOfOrigin"`
	// Width of each tile of this tile matrix in pixels
	TileWidth uint `validate:"required,min=1" json:"tileWidth"`
	// Height of each tile of this tile matrix in pixels
	TileHeight uint `validate:"required,min=1" json:"tileHeight"`
	// Width of the matrix (number of tiles in width)
	MatrixWidth uint `validate:"required,min=1" json:"matrixWidth"`
	// Height of the matrix (number of tiles in height)
	MatrixHeight uint `validate:"required,min=1" json:"matrixHeight"`
}

func (tm *TileMatrix) UnmarshalJSON(data []byte) error {
	return UnmarshalJSONMapUsingUnmarshalJSONFromMap(tm, data)
}

func (tm *TileMatrix) UnmarshalJSONFromMap(data interface{}) error {
	err := defaults.Set(tm)
	if err != nil {
		return err
	}

	dataMap, ok := data.(map[string]interface{})
	if !ok {
		return fmt.Errorf(`data is not a map but a %T`, data)
	}

	_, err = marshmallow.UnmarshalFromJSONMap(dataMap, tm, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(tm)
}

type CornerOfOrigin string

const (
	TopLeft    CornerOfOrigin = "topLeft"
	BottomLeft CornerOfOrigin = "bottomLeft"
)

func UnmarshalJSONMapUsingUnmarshalJSONFromMap(target marshmallow.UnmarshalerFromJSONMap, data []byte) error {
	var dataMap map[string]interface{}
	err := json.Unmarshal(data, &dataMap)
	if err != nil {
		return err
	}
	return target.UnmarshalJSONFromMap(dataMap)
}
