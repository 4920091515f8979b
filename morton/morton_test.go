package morton

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		col   uint
		row   uint
		z     Z
		notOK bool
	}{
		{col: 0b0, row: 0b0, z: 0b0},
		{col: 0b1, row: 0b0, z: 0b01},
		{col: 0b0, row: 0b1, z: 0b10},
		{col: 0b1, row: 0b1, z: 0b11},
		{col: 0b11, row: 0b0, z: 0b0101},
		{col: 0b1111111111111111, row: 0b0, z: 0b01010101010101010101010101010101},
		{col: 0b100000000000000000000000000000000, notOK: true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf(`Encode(%b, %b)`, tt.col, tt.row), func(t *testing.T) {
			got, ok := Encode(tt.col, tt.row)
			if tt.notOK {
				require.False(t, ok)
				require.Panics(t, func() { MustEncode(tt.col, tt.row) })
				return
			}
			require.True(t, ok)
			require.Equalf(t, tt.z, got, `%032b and %032b should interleave into: %064b, got: %064b`, tt.col, tt.row, tt.z, got)
		})
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	for col := uint(0); col < 16; col++ {
		for row := uint(0); row < 8; row++ {
			gotCol, gotRow := Decode(MustEncode(col, row))
			require.Equal(t, [2]uint{col, row}, [2]uint{gotCol, gotRow})
		}
	}
}

func TestParentGroupsBlocks(t *testing.T) {
	// the four members of an aligned 2x2 block share the parent code
	parent := Parent(MustEncode(4, 2))
	for _, cr := range [][2]uint{{4, 2}, {5, 2}, {4, 3}, {5, 3}} {
		require.Equal(t, parent, Parent(MustEncode(cr[0], cr[1])))
	}
	require.Equal(t, MustEncode(2, 1), parent)
}
