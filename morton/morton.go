// Package morton interleaves tile columns and rows into Z-order codes.
// Tiles sharing a parent get consecutive codes: the four members of a 2x2 block
// are z, z+1, z+2 and z+3 when the block is aligned on even indices.
package morton

import (
	"fmt"
	"math"
)

type Z = uint

var (
	masks = [...]uint{
		0b0101010101010101010101010101010101010101010101010101010101010101,
		0b0011001100110011001100110011001100110011001100110011001100110011,
		0b0000111100001111000011110000111100001111000011110000111100001111,
		0b0000000011111111000000001111111100000000111111110000000011111111,
		0b0000000000000000111111111111111100000000000000001111111111111111,
		0b0000000000000000000000000000000011111111111111111111111111111111,
	}
	shifts = [...]uint{0, 1, 2, 4, 8, 16}
)

// Encode interleaves col (even bits) and row (odd bits).
// ok is false when either index does not fit in 32 bits.
func Encode(col, row uint) (z Z, ok bool) {
	ok = col <= math.MaxUint32 && row <= math.MaxUint32
	for i := 4; i >= 0; i-- {
		col = (col | (col << shifts[i+1])) & masks[i]
		row = (row | (row << shifts[i+1])) & masks[i]
	}
	return col | (row << 1), ok
}

func MustEncode(col, row uint) Z {
	z, ok := Encode(col, row)
	if !ok {
		panic(fmt.Errorf(`cannot make Z out of col %v and row %v`, col, row))
	}
	return z
}

// Decode splits z back into col and row
func Decode(z Z) (col, row uint) {
	col = z
	row = z >> 1
	for i := 0; i <= 5; i++ {
		col = (col | (col >> shifts[i])) & masks[i]
		row = (row | (row >> shifts[i])) & masks[i]
	}
	return col, row
}

// Parent returns the code of the tile one level up
func Parent(z Z) Z {
	return z >> 2
}
