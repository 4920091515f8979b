package mapslicehelp

import (
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"
)

func LastElement[T any](elements []T) *T {
	length := len(elements)
	if length > 0 {
		return &elements[length-1]
	}
	return nil
}

func OrderedMapKeys[K comparable, V any](m *orderedmap.OrderedMap[K, V]) []K {
	l := make([]K, m.Len())
	i := 0
	for p := m.Oldest(); p != nil; p = p.Next() {
		l[i] = p.Key
		i++
	}
	return l
}

// CountBy counts the entries of m per group, in insertion order of the groups
func CountBy[K comparable, V any, G comparable](m *orderedmap.OrderedMap[K, V], group func(K, V) G) *orderedmap.OrderedMap[G, int] {
	counts := orderedmap.New[G, int]()
	for p := m.Oldest(); p != nil; p = p.Next() {
		g := group(p.Key, p.Value)
		n, _ := counts.Get(g)
		counts.Set(g, n+1)
	}
	return counts
}

// SortedKeys returns the keys of m in ascending order
func SortedKeys[K constraints.Ordered, V any](m map[K]V) []K {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}
