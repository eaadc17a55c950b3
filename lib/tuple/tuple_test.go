package tuple

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/benz9527/xcontainer/lib/infra"
	"github.com/benz9527/xcontainer/lib/tree"
)

func TestPairRoundTrip(t *testing.T) {
	p := PairOf[uint64, string](42, "answer")
	f, s := p.Unpack()
	require.Equal(t, uint64(42), f)
	require.Equal(t, "answer", s)

	t2 := p.T2()
	require.Equal(t, lo.T2(uint64(42), "answer"), t2)
	require.Equal(t, p, FromT2(t2))
}

func TestPairComparator(t *testing.T) {
	type testcase struct {
		name string
		i    Pair[uint64, string]
		j    Pair[uint64, string]
		want int64
	}
	testcases := []testcase{
		{
			name: "first decides less",
			i:    PairOf(uint64(1), "z"),
			j:    PairOf(uint64(2), "a"),
			want: -1,
		},
		{
			name: "first decides greater",
			i:    PairOf(uint64(3), "a"),
			j:    PairOf(uint64(2), "z"),
			want: 1,
		},
		{
			name: "second breaks the tie",
			i:    PairOf(uint64(2), "a"),
			j:    PairOf(uint64(2), "b"),
			want: -1,
		},
		{
			name: "full equality",
			i:    PairOf(uint64(2), "a"),
			j:    PairOf(uint64(2), "a"),
			want: 0,
		},
	}
	cmp := OrderedPairComparator[uint64, string]()
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			require.Equal(tt, tc.want, cmp(tc.i, tc.j))
		})
	}

	// Components compose with reversed orders too.
	desc := PairComparator[uint64, uint64](
		infra.ReverseOrderedKeyComparator[uint64](infra.CompareOrderedKeys[uint64]),
		infra.CompareOrderedKeys[uint64],
	)
	require.Equal(t, int64(1), desc(PairOf(uint64(1), uint64(0)), PairOf(uint64(2), uint64(0))))
	require.Equal(t, int64(-1), desc(PairOf(uint64(2), uint64(1)), PairOf(uint64(2), uint64(9))))
}

func TestTreeOfPairs(t *testing.T) {
	avl := tree.NewAVLTree[Pair[uint64, string]](OrderedPairComparator[uint64, string]())
	require.NoError(t, avl.Insert(PairOf(uint64(2), "b")))
	require.NoError(t, avl.Insert(PairOf(uint64(1), "z")))
	require.NoError(t, avl.Insert(PairOf(uint64(2), "a")))
	require.NoError(t, avl.Insert(PairOf(uint64(1), "a")))

	require.NoError(t, tree.OrderViolationValidate(avl))
	require.NoError(t, tree.HeightViolationValidate(avl))
	require.NoError(t, tree.BalanceViolationValidate(avl))
	require.NoError(t, tree.ParentViolationValidate(avl))

	got := make([]Pair[uint64, string], 0, avl.Len())
	avl.Foreach(func(idx int64, p Pair[uint64, string]) bool {
		got = append(got, p)
		return true
	})
	require.Equal(t, []Pair[uint64, string]{
		PairOf(uint64(1), "a"),
		PairOf(uint64(1), "z"),
		PairOf(uint64(2), "a"),
		PairOf(uint64(2), "b"),
	}, got)

	// The whole pair is the identity, only an exact match collides.
	require.ErrorIs(t, avl.Insert(PairOf(uint64(1), "a")), tree.ErrAVLTreeDuplicate)
	loaded, ok := avl.Load(PairOf(uint64(2), "a"))
	require.True(t, ok)
	require.Equal(t, "a", loaded.Second)
	require.True(t, avl.Remove(PairOf(uint64(1), "z")))
	require.Equal(t, int64(3), avl.Len())
	avl.Release()
}
