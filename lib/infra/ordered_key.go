package infra

type Signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

// Unsigned is a constraint that permits any unsigned integer type.
// If future releases of Go add new predeclared unsigned integer types,
// this constraint will be modified to include them.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Integer is a constraint that permits any integer type.
type Integer interface {
	Signed | Unsigned
}

// Float is a constraint that permits any floating-point type.
type Float interface {
	~float32 | ~float64
}

// OrderedKey
// byte => ~uint8
type OrderedKey interface {
	Integer | Float | ~string
}

// OrderedKeyComparator
// Assume i is the new key.
//  1. i == j (i-j == 0, return 0)
//  2. i > j (i-j > 0, return 1), turn to right part.
//  3. i < j (i-j < 0, return -1), turn to left part.
type OrderedKeyComparator[K OrderedKey] func(i, j K) int64

// CompareOrderedKeys is the natural-order comparator for any OrderedKey
// type. Float NaN values compare as the smallest key so a total order
// is kept.
func CompareOrderedKeys[K OrderedKey](i, j K) int64 {
	switch {
	case i < j:
		return -1
	case i > j:
		return 1
	case i == j:
		return 0
	}
	// Only NaN floats fall through all three branches.
	if i != i {
		if j != j {
			return 0
		}
		return -1
	}
	return 1
}

// ReverseOrderedKeyComparator flips the order of cmp.
func ReverseOrderedKeyComparator[K OrderedKey](cmp OrderedKeyComparator[K]) OrderedKeyComparator[K] {
	return func(i, j K) int64 {
		return cmp(j, i)
	}
}
