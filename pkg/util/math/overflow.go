package math

import "errors"

const (
	MINUINT64 = uint64(0)
	MAXUINT64 = ^MINUINT64
)

var (
	ErrAddOverflow = errors.New("uint64 add overflow")
	ErrSubOverflow = errors.New("uint64 sub overflow")
	ErrMulOverflow = errors.New("uint64 mul overflow")
)

// AddUint64Overflow returns a + b... or ErrAddOverflow
func AddUint64Overflow(a uint64, b ...uint64) (uint64, error) {
	for _, v := range b {
		if MAXUINT64-a < v {
			return 0, ErrAddOverflow
		}
		a += v
	}

	return a, nil
}

// SubUint64Overflow returns a - b... or ErrSubOverflow
func SubUint64Overflow(a uint64, b ...uint64) (uint64, error) {
	for _, v := range b {
		if a < v {
			return 0, ErrSubOverflow
		}
		a -= v
	}

	return a, nil
}

// MulUint64Overflow returns a * b or ErrMulOverflow
func MulUint64Overflow(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > MAXUINT64/b {
		return 0, ErrMulOverflow
	}
	return a * b, nil
}
