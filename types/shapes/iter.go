package shapes

import "iter"

// IterDimensions iterates over all coordinates of the given dimensions, in
// row-major order (the last axis changes fastest).
//
// To avoid allocating per step, the yielded coordinates slice is owned by the
// iterator: don't modify or retain it inside the loop.
//
// An empty dims list (a scalar) yields one empty coordinates slice; any
// zero-sized axis yields nothing.
func IterDimensions(dims []int) iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		rank := len(dims)
		if rank == 0 {
			_ = yield(make([]int, 0))
			return
		}
		for _, dim := range dims {
			if dim <= 0 {
				return
			}
		}

		coords := make([]int, rank)
		for {
			if !yield(coords) {
				return
			}

			// Increment coords to the next set of coordinates.
			axis := rank - 1
			for ; axis >= 0; axis-- {
				if dims[axis] == 1 {
					continue
				}
				coords[axis]++
				if coords[axis] < dims[axis] {
					break
				}
				// The current axis overflowed; carry over to the next one.
				coords[axis] = 0
			}
			if axis < 0 {
				break
			}
		}
	}
}

// Iter iterates over all coordinates of the shape. See IterDimensions.
func (s Shape) Iter() iter.Seq[[]int] {
	if !s.Ok() {
		return func(yield func([]int) bool) {}
	}
	return IterDimensions(s.Dimensions)
}
