package tensors

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/types/xslices"
)

// This file exposes the backend primitives as Tensor methods. All methods
// return new tensors and panic (with a stack trace) on invalid arguments,
// like bad shapes or finalized tensors.

// newFromOp wraps the result of a backend primitive, panicking on error.
func (t *Tensor) newFromOp(opName string, buffer backends.Buffer, err error) *Tensor {
	if err != nil {
		exceptions.Panicf("tensors.%s: %+v", opName, err)
	}
	return FromBuffer(t.backend, buffer)
}

// sameBackend panics if other lives on a different backend.
func (t *Tensor) sameBackend(opName string, other *Tensor) {
	other.AssertValid()
	if other.backend != t.backend {
		exceptions.Panicf("tensors.%s: tensors live on different backends (%q and %q)",
			opName, t.backend.Name(), other.backend.Name())
	}
}

// Slice extracts a sub-tensor: one (start, limit, stride) triple per axis.
// Strides may be negative to walk an axis backwards, in which case
// start > limit, and limit may be -1 to include index 0.
func (t *Tensor) Slice(starts, limits, strides []int) *Tensor {
	t.AssertValid()
	buffer, err := t.backend.Slice(t.buffer, starts, limits, strides)
	return t.newFromOp("Slice", buffer, err)
}

// SliceUpdate returns a copy of t with the region addressed by the
// (start, limit, stride) triples overwritten by update, which is broadcast
// to the addressed window.
func (t *Tensor) SliceUpdate(update *Tensor, starts, limits, strides []int) *Tensor {
	t.AssertValid()
	t.sameBackend("SliceUpdate", update)
	buffer, err := t.backend.SliceUpdate(t.buffer, update.buffer, starts, limits, strides)
	return t.newFromOp("SliceUpdate", buffer, err)
}

// Gather reads slices of t addressed by the index tensors: indices[i]
// provides offsets along axes[i]. The index tensors are broadcast together
// to a common index shape, and the output has shape idxShape ++ sliceSizes.
// Negative index values count from the end of the indexed axis.
func (t *Tensor) Gather(indices []*Tensor, axes []int, sliceSizes []int) *Tensor {
	t.AssertValid()
	idxBuffers := make([]backends.Buffer, len(indices))
	for ii, idx := range indices {
		t.sameBackend("Gather", idx)
		idxBuffers[ii] = idx.buffer
	}
	buffer, err := t.backend.Gather(t.buffer, idxBuffers, axes, sliceSizes)
	return t.newFromOp("Gather", buffer, err)
}

// Scatter returns a copy of t where, for each position of the broadcast
// index shape, the corresponding window of update is written at the
// addressed offsets. The update must have shape idxShape ++ window, with one
// window dimension per axis of t.
func (t *Tensor) Scatter(indices []*Tensor, update *Tensor, axes []int) *Tensor {
	t.AssertValid()
	t.sameBackend("Scatter", update)
	idxBuffers := make([]backends.Buffer, len(indices))
	for ii, idx := range indices {
		t.sameBackend("Scatter", idx)
		idxBuffers[ii] = idx.buffer
	}
	buffer, err := t.backend.Scatter(t.buffer, idxBuffers, update.buffer, axes)
	return t.newFromOp("Scatter", buffer, err)
}

// Take gathers elements along one axis: the output shape is t's shape with
// the given axis replaced by the indices' dimensions (removed, for scalar
// indices). Negative index values count from the end of the axis.
func (t *Tensor) Take(indices *Tensor, axis int) *Tensor {
	t.AssertValid()
	t.sameBackend("Take", indices)
	buffer, err := t.backend.Take(t.buffer, indices.buffer, axis)
	return t.newFromOp("Take", buffer, err)
}

// Reshape returns t reorganized to the given dimensions. The total size must
// not change.
func (t *Tensor) Reshape(dimensions ...int) *Tensor {
	t.AssertValid()
	buffer, err := t.backend.Reshape(t.buffer, dimensions...)
	return t.newFromOp("Reshape", buffer, err)
}

// ExpandDims inserts size-1 axes at the given positions, given relative to
// the resulting shape. Axes may be negative, counting from the end of the
// resulting shape. E.g.: for t with shape [3, 4],
//
//	t.ExpandDims(0, -1)  // shape [1, 3, 4, 1]
func (t *Tensor) ExpandDims(axes ...int) *Tensor {
	t.AssertValid()
	if len(axes) == 0 {
		return t.Reshape(t.shape.Dimensions...)
	}
	newRank := t.Rank() + len(axes)
	inserted := make([]bool, newRank)
	for _, axis := range axes {
		if axis < 0 {
			axis += newRank
		}
		if axis < 0 || axis >= newRank {
			exceptions.Panicf("tensors.ExpandDims: axis %d out of range for resulting rank %d", axis, newRank)
		}
		if inserted[axis] {
			exceptions.Panicf("tensors.ExpandDims: axis %d inserted more than once", axis)
		}
		inserted[axis] = true
	}
	newDims := make([]int, 0, newRank)
	fromAxis := 0
	for axis := range inserted {
		if inserted[axis] {
			newDims = append(newDims, 1)
		} else {
			newDims = append(newDims, t.shape.Dimensions[fromAxis])
			fromAxis++
		}
	}
	return t.Reshape(newDims...)
}

// Squeeze removes the given size-1 axes. Axes may be negative, counting from
// the end. With no arguments all size-1 axes are removed. It panics if a
// selected axis is not of size 1.
func (t *Tensor) Squeeze(axes ...int) *Tensor {
	t.AssertValid()
	rank := t.Rank()
	selected := make([]bool, rank)
	if len(axes) == 0 {
		for axis, dim := range t.shape.Dimensions {
			selected[axis] = dim == 1
		}
	} else {
		for _, axis := range axes {
			adjusted := xslices.AdjustAxisToRank(axis, rank)
			if adjusted < 0 || adjusted >= rank {
				exceptions.Panicf("tensors.Squeeze: axis %d out of range for rank %d", axis, rank)
			}
			if t.shape.Dimensions[adjusted] != 1 {
				exceptions.Panicf("tensors.Squeeze: axis %d has dimension %d, it must be 1 to be squeezed",
					axis, t.shape.Dimensions[adjusted])
			}
			selected[adjusted] = true
		}
	}
	newDims := make([]int, 0, rank)
	for axis, dim := range t.shape.Dimensions {
		if !selected[axis] {
			newDims = append(newDims, dim)
		}
	}
	return t.Reshape(newDims...)
}

// BroadcastTo broadcasts t to the given dimensions, NumPy-style: t's axes
// are aligned to the trailing output axes, and size-1 axes are repeated.
func (t *Tensor) BroadcastTo(dimensions ...int) *Tensor {
	t.AssertValid()
	buffer, err := t.backend.BroadcastTo(t.buffer, dimensions...)
	return t.newFromOp("BroadcastTo", buffer, err)
}

// Concatenate the operands with t along the given axis.
func (t *Tensor) Concatenate(axis int, operands ...*Tensor) *Tensor {
	t.AssertValid()
	buffers := make([]backends.Buffer, 0, len(operands)+1)
	buffers = append(buffers, t.buffer)
	for _, operand := range operands {
		t.sameBackend("Concatenate", operand)
		buffers = append(buffers, operand.buffer)
	}
	buffer, err := t.backend.Concatenate(axis, buffers...)
	return t.newFromOp("Concatenate", buffer, err)
}
