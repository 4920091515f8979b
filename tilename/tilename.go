// Package tilename holds the on-disk naming conventions of a tile pyramid.
//
// Tiles are named tx_<col>_<row>.<ext>, with decimal indices without leading zeros
// and ext one of jpg or png. Every level lives in its own directory named level<L>,
// without zero-padding. Zero-padded directories (level07) written by older fetch tools
// are only recognized by ParseLegacyLevelDir and converted by Normalize.
package tilename

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

const (
	prefix         = "tx_"
	levelDirPrefix = "level"
)

var (
	tileRegex        = regexp.MustCompile(`^tx_(0|[1-9][0-9]*)_(0|[1-9][0-9]*)\.(jpg|png)$`)
	levelDirRegex    = regexp.MustCompile(`^level(0|[1-9][0-9]*)$`)
	legacyLevelRegex = regexp.MustCompile(`^level([0-9]+)$`)
)

// Tile returns the file name of tile (col, row)
func Tile(col, row int, ext string) string {
	return prefix + strconv.Itoa(col) + "_" + strconv.Itoa(row) + "." + ext
}

// Parse extracts column, row and extension from a tile file name
func Parse(name string) (col, row int, ext string, ok bool) {
	m := tileRegex.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, "", false
	}
	col, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, "", false
	}
	row, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, "", false
	}
	return col, row, m[3], true
}

// LevelDirName is the canonical directory name of a level
func LevelDirName(level int) string {
	return levelDirPrefix + strconv.Itoa(level)
}

// LevelDir joins root with the canonical directory name of a level
func LevelDir(root string, level int) string {
	return filepath.Join(root, LevelDirName(level))
}

// TilePath is the canonical path of a tile under root
func TilePath(root string, level, col, row int, ext string) string {
	return filepath.Join(LevelDir(root, level), Tile(col, row, ext))
}

// ParseLevelDir accepts canonical level directory names only
func ParseLevelDir(name string) (int, bool) {
	m := levelDirRegex.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	level, err := strconv.Atoi(m[1])
	return level, err == nil
}

// ParseLegacyLevelDir also accepts zero-padded names like level07
func ParseLegacyLevelDir(name string) (int, bool) {
	m := legacyLevelRegex.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	level, err := strconv.Atoi(m[1])
	return level, err == nil
}

// Rename is a single level directory conversion done by Normalize
type Rename struct {
	Level int
	From  string
	To    string
}

// Normalize renames zero-padded level directories under root to the canonical form.
// It refuses to merge into an existing canonical directory.
func Normalize(root string, dryRun bool) ([]Rename, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("could not list %s: %w", root, err)
	}
	var renames []Rename
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		level, ok := ParseLegacyLevelDir(entry.Name())
		if !ok || entry.Name() == LevelDirName(level) {
			continue
		}
		r := Rename{
			Level: level,
			From:  filepath.Join(root, entry.Name()),
			To:    LevelDir(root, level),
		}
		if _, err := os.Stat(r.To); err == nil {
			return renames, fmt.Errorf("cannot rename %s: %s already exists", r.From, r.To)
		}
		if !dryRun {
			if err := os.Rename(r.From, r.To); err != nil {
				return renames, fmt.Errorf("could not rename %s: %w", r.From, err)
			}
		}
		renames = append(renames, r)
	}
	return renames, nil
}
