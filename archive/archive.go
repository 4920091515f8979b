// Package archive stores a tile pyramid in a single GeoPackage file.
//
// Every tile is a row of the svt_tiles feature table holding the encoded image and the
// tile footprint as a polygon in EPSG:4326, so the archive opens as a layer in any GIS.
// Build information is kept in the svt_metadata table.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/gpkg"
	_ "github.com/mattn/go-sqlite3"

	"github.com/langurmonkey/virtualtexture-tools/geomhelp"
	"github.com/langurmonkey/virtualtexture-tools/mapslicehelp"
	"github.com/langurmonkey/virtualtexture-tools/raster"
	"github.com/langurmonkey/virtualtexture-tools/svt"
	"github.com/langurmonkey/virtualtexture-tools/tilename"
)

const (
	TilesTable    = "svt_tiles"
	MetadataTable = "svt_metadata"
	srsID         = 4326
)

var ErrTileNotFound = errors.New("tile not found in archive")

var wgs84 = gpkg.SpatialReferenceSystem{
	Name:                   "WGS 84 geodetic",
	ID:                     srsID,
	Organization:           "EPSG",
	OrganizationCoordsysID: srsID,
	Definition:             `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`,
	Description:            "longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid",
}

type Archive struct {
	Path   string
	handle *gpkg.Handle
}

// LevelInfo summarizes the tiles of one level in an archive
type LevelInfo struct {
	Level  int
	Tiles  int
	MinCol int
	MinRow int
	MaxCol int
	MaxRow int
}

// PackResult describes a finished Pack
type PackResult struct {
	Levels []LevelInfo
	Tiles  int
	Bytes  int64
}

// Pack writes every tile under the canonical level<L> directories of root into a new
// archive at path. Zero-padded level directories are skipped; run levels normalize first.
func Pack(ctx context.Context, root, path string) (PackResult, error) {
	var res PackResult
	if _, err := os.Stat(path); err == nil {
		return res, fmt.Errorf("archive %s already exists", path)
	}
	levels, err := levelDirs(root)
	if err != nil {
		return res, err
	}
	if len(levels) == 0 {
		return res, fmt.Errorf("no level directories found in %s", root)
	}

	handle, err := gpkg.Open(path)
	if err != nil {
		return res, fmt.Errorf("error opening GeoPackage %s: %w", path, err)
	}
	defer handle.Close()
	if err = createTables(handle); err != nil {
		return res, err
	}

	var ext *geom.Extent
	formats := make(map[string]bool)
	for _, level := range mapslicehelp.SortedKeys(levels) {
		info, size, err := packLevel(ctx, handle, level, levels[level], &ext, formats)
		if err != nil {
			return res, err
		}
		if info.Tiles == 0 {
			continue
		}
		res.Levels = append(res.Levels, info)
		res.Tiles += info.Tiles
		res.Bytes += size
		log.Printf("  level %d: %d tiles", level, info.Tiles)
	}
	if ext != nil {
		if err = handle.UpdateGeometryExtent(TilesTable, ext); err != nil {
			return res, fmt.Errorf("failed to update extent: %w", err)
		}
	}

	meta := map[string]string{
		"name":       filepath.Base(filepath.Clean(root)),
		"scheme":     "svt",
		"formats":    fmt.Sprint(mapslicehelp.SortedKeys(formats)),
		"tile_count": strconv.Itoa(res.Tiles),
		"created":    time.Now().UTC().Format(time.RFC3339),
	}
	if len(res.Levels) > 0 {
		meta["min_level"] = strconv.Itoa(res.Levels[0].Level)
		meta["max_level"] = strconv.Itoa(mapslicehelp.LastElement(res.Levels).Level)
	}
	for name, value := range meta {
		if _, err = handle.Exec(`INSERT OR REPLACE INTO "`+MetadataTable+`"(name, value) VALUES(?, ?)`, name, value); err != nil {
			return res, fmt.Errorf("could not write metadata %s: %w", name, err)
		}
	}
	return res, nil
}

func levelDirs(root string) (map[int]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	levels := make(map[int]string)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if level, ok := tilename.ParseLevelDir(e.Name()); ok {
			levels[level] = filepath.Join(root, e.Name())
			continue
		}
		if _, ok := tilename.ParseLegacyLevelDir(e.Name()); ok {
			log.Printf("skipping zero-padded level directory %s, normalize it first", e.Name())
		}
	}
	return levels, nil
}

func createTables(h *gpkg.Handle) error {
	if err := h.UpdateSRS(wgs84); err != nil {
		return err
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS "` + TilesTable + `"(fid INTEGER PRIMARY KEY AUTOINCREMENT, level INTEGER NOT NULL, tile_column INTEGER NOT NULL, tile_row INTEGER NOT NULL, format TEXT NOT NULL, data BLOB NOT NULL, geom POLYGON);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS "` + TilesTable + `_index" ON "` + TilesTable + `"(level, tile_column, tile_row);`,
		`CREATE TABLE IF NOT EXISTS "` + MetadataTable + `"(name TEXT PRIMARY KEY, value TEXT);`,
	}
	for _, statement := range statements {
		if _, err := h.Exec(statement); err != nil {
			return fmt.Errorf("%w: %s", err, statement)
		}
	}
	return h.AddGeometryTable(gpkg.TableDescription{
		Name:          TilesTable,
		ShortName:     TilesTable,
		Description:   "spherical virtual texture tiles",
		GeometryField: "geom",
		GeometryType:  gpkg.Polygon,
		SRS:           srsID,
		Z:             gpkg.Prohibited,
		M:             gpkg.Prohibited,
	})
}

func packLevel(ctx context.Context, h *gpkg.Handle, level int, dir string, ext **geom.Extent, formats map[string]bool) (info LevelInfo, size int64, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return info, 0, err
	}
	tx, err := h.Begin()
	if err != nil {
		return info, 0, fmt.Errorf("could not start a transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	stmt, err := tx.Prepare(`INSERT INTO "` + TilesTable + `"(level, tile_column, tile_row, format, data, geom) VALUES(?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return info, 0, fmt.Errorf("could not prepare a statement: %w", err)
	}
	defer stmt.Close()

	info = LevelInfo{Level: level, MinCol: -1, MinRow: -1, MaxCol: -1, MaxRow: -1}
	for _, e := range entries {
		if err = ctx.Err(); err != nil {
			return info, size, err
		}
		col, row, format, ok := tilename.Parse(e.Name())
		if !ok {
			continue
		}
		t := svt.TileAddress{Level: level, Col: col, Row: row}
		if err = t.Validate(); err != nil {
			return info, size, fmt.Errorf("tile %s in %s: %w", e.Name(), dir, err)
		}
		var data []byte
		if data, err = os.ReadFile(filepath.Join(dir, e.Name())); err != nil {
			return info, size, err
		}
		footprint := geomhelp.ExtentPolygon(svt.TileExtent(t).ToGeomExtent())
		var sb *gpkg.StandardBinary
		if sb, err = gpkg.NewBinary(srsID, footprint); err != nil {
			return info, size, fmt.Errorf("could not create a binary geometry: %w", err)
		}
		if _, err = stmt.Exec(level, col, row, format, data, sb); err != nil {
			return info, size, fmt.Errorf("could not insert %s: %w", t, err)
		}

		if *ext == nil {
			if *ext, err = geom.NewExtentFromGeometry(footprint); err != nil {
				return info, size, err
			}
		} else {
			(*ext).AddGeometry(footprint)
		}
		formats[format] = true
		size += int64(len(data))
		info.Tiles++
		if info.Tiles == 1 {
			info.MinCol, info.MaxCol, info.MinRow, info.MaxRow = col, col, row, row
		}
		info.MinCol, info.MaxCol = min(info.MinCol, col), max(info.MaxCol, col)
		info.MinRow, info.MaxRow = min(info.MinRow, row), max(info.MaxRow, row)
	}
	return info, size, nil
}

// Open opens an existing archive made by Pack
func Open(path string) (*Archive, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	handle, err := gpkg.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening GeoPackage %s: %w", path, err)
	}
	var n int
	if err = handle.QueryRow(`SELECT count(*) FROM gpkg_contents WHERE table_name = ?`, TilesTable).Scan(&n); err != nil || n == 0 {
		handle.Close()
		return nil, fmt.Errorf("%s is not a tile archive", path)
	}
	return &Archive{Path: path, handle: handle}, nil
}

func (a *Archive) Close() error {
	return a.handle.Close()
}

// Tile returns the encoded image of a tile and its format
func (a *Archive) Tile(level, col, row int) ([]byte, raster.Format, error) {
	var data []byte
	var format string
	err := a.handle.QueryRow(`SELECT data, format FROM "`+TilesTable+`" WHERE level = ? AND tile_column = ? AND tile_row = ?`, level, col, row).Scan(&data, &format)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("%s: %w", svt.TileAddress{Level: level, Col: col, Row: row}, ErrTileNotFound)
	}
	if err != nil {
		return nil, "", err
	}
	f, err := raster.ParseFormat(format)
	return data, f, err
}

// Footprint returns the stored polygon of a tile
func (a *Archive) Footprint(level, col, row int) (geom.Geometry, error) {
	var raw []byte
	err := a.handle.QueryRow(`SELECT geom FROM "`+TilesTable+`" WHERE level = ? AND tile_column = ? AND tile_row = ?`, level, col, row).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", svt.TileAddress{Level: level, Col: col, Row: row}, ErrTileNotFound)
	}
	if err != nil {
		return nil, err
	}
	sb, err := gpkg.DecodeGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("error decoding the geometry: %w", err)
	}
	return sb.Geometry, nil
}

// Levels lists the levels in the archive, coarsest first
func (a *Archive) Levels() ([]LevelInfo, error) {
	rows, err := a.handle.Query(`SELECT level, count(*), min(tile_column), min(tile_row), max(tile_column), max(tile_row) FROM "` + TilesTable + `" GROUP BY level ORDER BY level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var levels []LevelInfo
	for rows.Next() {
		var l LevelInfo
		if err := rows.Scan(&l.Level, &l.Tiles, &l.MinCol, &l.MinRow, &l.MaxCol, &l.MaxRow); err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

func (a *Archive) Metadata() (map[string]string, error) {
	rows, err := a.handle.Query(`SELECT name, value FROM "` + MetadataTable + `"`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	meta := make(map[string]string)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		meta[name] = value.String
	}
	return meta, rows.Err()
}
