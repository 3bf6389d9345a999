// Package xslices has generic slice helper functions used across the library.
package xslices

import (
	"golang.org/x/exp/constraints"
)

// Number represents the types supported by Iota and similar numeric helpers.
type Number interface {
	constraints.Integer | constraints.Float
}

// Iota returns a slice of the given size with increasing numbers, starting with start.
func Iota[T Number](start T, size int) (slice []T) {
	slice = make([]T, size)
	value := start
	for ii := range slice {
		slice[ii] = value
		value += 1
	}
	return
}

// SliceWithValue creates a slice of the given size, filled with the given value.
func SliceWithValue[T any](size int, value T) []T {
	slice := make([]T, size)
	for ii := range slice {
		slice[ii] = value
	}
	return slice
}

// FillSlice fills (in-place) the given slice with the value.
func FillSlice[T any](slice []T, value T) {
	for ii := range slice {
		slice[ii] = value
	}
}

// Map applies fn to each element of in, returning the new mapped slice.
func Map[In, Out any](in []In, fn func(In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, value := range in {
		out[ii] = fn(value)
	}
	return
}

// At returns the element at the given index, where negative indices are taken
// from the end -- so At(s, -1) is the last element.
func At[T any](slice []T, index int) T {
	if index < 0 {
		index = len(slice) + index
	}
	return slice[index]
}

// Last returns the last element of the slice.
func Last[T any](slice []T) T {
	return slice[len(slice)-1]
}

// AdjustAxisToRank converts a possibly negative axis to its non-negative
// counterpart for the given rank: -1 becomes rank-1 and so on. The result
// may still be out of range, callers are expected to check.
func AdjustAxisToRank(axis, rank int) int {
	if axis < 0 {
		return axis + rank
	}
	return axis
}
