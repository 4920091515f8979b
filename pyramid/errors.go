package pyramid

import (
	"fmt"

	"github.com/langurmonkey/virtualtexture-tools/svt"
)

// MinTiles is the minimum number of tiles a source directory needs to build a parent level
const MinTiles = 4

// InsufficientTilesError signals that a directory has too few tiles to build the next level.
// At the top of a pyramid this is the normal end of a build.
type InsufficientTilesError struct {
	Level int
	Dir   string
	Found int
}

func (e *InsufficientTilesError) Error() string {
	return fmt.Sprintf("not enough tiles to continue at level %d: found %d in %s, need at least %d", e.Level, e.Found, e.Dir, MinTiles)
}

// IncompleteBlockError reports a 2x2 block with missing members.
// Col and Row are the source indices of the block's northwest member.
type IncompleteBlockError struct {
	Level   int
	Col     int
	Row     int
	Missing []svt.ColRow
}

func (e *IncompleteBlockError) Error() string {
	return fmt.Sprintf("level %d: block at (%d,%d) is missing tiles %v", e.Level, e.Col, e.Row, e.Missing)
}
