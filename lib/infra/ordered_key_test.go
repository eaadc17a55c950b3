package infra

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareOrderedKeys(t *testing.T) {
	type testcase struct {
		name string
		res  int64
		want int64
	}
	testcases := []testcase{
		{"int lt", CompareOrderedKeys(1, 2), -1},
		{"int gt", CompareOrderedKeys(5, 2), 1},
		{"int eq", CompareOrderedKeys(3, 3), 0},
		{"uint8 gt", CompareOrderedKeys[uint8](200, 100), 1},
		{"string lt", CompareOrderedKeys("abc", "abd"), -1},
		{"string eq", CompareOrderedKeys("", ""), 0},
		{"float lt", CompareOrderedKeys(1.5, 2.5), -1},
		{"nan lt num", CompareOrderedKeys(math.NaN(), 0.0), -1},
		{"num gt nan", CompareOrderedKeys(0.0, math.NaN()), 1},
		{"nan eq nan", CompareOrderedKeys(math.NaN(), math.NaN()), 0},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			assert.Equal(tt, tc.want, tc.res)
		})
	}
}

func TestReverseOrderedKeyComparator(t *testing.T) {
	desc := ReverseOrderedKeyComparator[int](CompareOrderedKeys[int])
	require.Equal(t, int64(1), desc(1, 2))
	require.Equal(t, int64(-1), desc(5, 2))
	require.Equal(t, int64(0), desc(3, 3))
}
