package mathhelp

import "cmp"

// Pow2 returns 2^n
func Pow2(n uint) uint {
	return 1 << n
}

// BetweenExc reports whether lo <= f < hi
func BetweenExc[T cmp.Ordered](f, lo, hi T) bool {
	return lo <= f && f < hi
}

// Clamp limits v to [lo, hi]
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

func EuclidianMod(d, m int) int {
	r := d % m
	if (r < 0 && m > 0) || (r > 0 && m < 0) {
		return r + m
	}
	return r
}

// AlignDown2 rounds n down to the nearest even number, also for negative n
func AlignDown2(n int) int {
	return n - EuclidianMod(n, 2)
}
