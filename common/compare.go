package common

import "golang.org/x/exp/constraints"

// Compare orders two values of an ordered type, returning -1, 0, or 1.
func Compare[T constraints.Ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
