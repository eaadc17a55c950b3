package tuple

import (
	"github.com/samber/lo"

	"github.com/benz9527/xcontainer/lib/infra"
)

// Pair binds two values into one element, ordered lexicographically by
// the comparators composed below. It is a plain value, copying it
// copies both fields.
type Pair[F, S any] struct {
	First  F
	Second S
}

func PairOf[F, S any](first F, second S) Pair[F, S] {
	return Pair[F, S]{First: first, Second: second}
}

func (p Pair[F, S]) Unpack() (F, S) {
	return p.First, p.Second
}

// T2 hands the pair over to the lo tuple flavor.
func (p Pair[F, S]) T2() lo.Tuple2[F, S] {
	return lo.T2(p.First, p.Second)
}

func FromT2[F, S any](t lo.Tuple2[F, S]) Pair[F, S] {
	return Pair[F, S]{First: t.A, Second: t.B}
}

// PairComparator composes two component comparators into the
// lexicographic pair order: First decides, Second breaks ties. The
// result plugs directly into the tree and its validators.
func PairComparator[F, S any](cmpF func(i, j F) int64, cmpS func(i, j S) int64) func(i, j Pair[F, S]) int64 {
	return func(i, j Pair[F, S]) int64 {
		if res := cmpF(i.First, j.First); res != 0 {
			return res
		}
		return cmpS(i.Second, j.Second)
	}
}

// OrderedPairComparator is PairComparator over the natural key order of
// both components.
func OrderedPairComparator[F, S infra.OrderedKey]() func(i, j Pair[F, S]) int64 {
	return PairComparator[F, S](infra.CompareOrderedKeys[F], infra.CompareOrderedKeys[S])
}
