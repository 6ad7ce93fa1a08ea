package tgam

import "math/bits"

// CeilPow2 returns the smallest power of two that is greater than or equal
// to n. It returns ErrInvalidDimension if n is less than one.
func CeilPow2(n int) (int, error) {
	if n < 1 {
		return 0, ErrInvalidDimension
	}
	return 1 << bits.Len(uint(n-1)), nil
}

// paddedExtent returns the padded width and height for an image of w by h
// pixels.
func paddedExtent(w, h int) (int, int, error) {
	pw, err := CeilPow2(w)
	if err != nil {
		return 0, 0, err
	}
	ph, err := CeilPow2(h)
	if err != nil {
		return 0, 0, err
	}
	return pw, ph, nil
}
