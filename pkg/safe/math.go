// Package safe provides int64 arithmetic that panics on overflow instead
// of silently wrapping. Fixed-point price math must never wrap.
package safe

import (
	"math"
)

// SafeAdd returns a+b, panicking on overflow.
func SafeAdd(a, b int64) int64 {
	sum := a + b
	// Overflow flips the sign bit relative to both operands.
	if ((a ^ sum) & (b ^ sum)) < 0 {
		panic("safe: int64 add overflow")
	}
	return sum
}

// SafeSub returns a-b, panicking on overflow.
func SafeSub(a, b int64) int64 {
	diff := a - b
	if ((a ^ b) & (a ^ diff)) < 0 {
		panic("safe: int64 sub overflow")
	}
	return diff
}

// SafeMul returns a*b, panicking on overflow.
func SafeMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	// MinInt64 * -1 wraps back to MinInt64 and would pass the division
	// check below.
	if (a == math.MinInt64 && b == -1) || (b == math.MinInt64 && a == -1) {
		panic("safe: int64 mul overflow")
	}
	p := a * b
	if p/b != a {
		panic("safe: int64 mul overflow")
	}
	return p
}

// SafeDiv returns a/b, panicking on division by zero and on the single
// overflowing quotient MinInt64 / -1.
func SafeDiv(a, b int64) int64 {
	if b == 0 {
		panic("safe: int64 division by zero")
	}
	if a == math.MinInt64 && b == -1 {
		panic("safe: int64 div overflow")
	}
	return a / b
}
