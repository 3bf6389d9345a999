package simplego

import (
	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/types/shapes"
	"github.com/pkg/errors"
)

// Slice extracts a sub-array addressed by one (start, limit, stride) triple
// per axis. Strides may be negative to walk an axis backwards, in which case
// start > limit and limit may be -1 to include index 0.
func (b *Backend) Slice(x backends.Buffer, starts, limits, strides []int) (backends.Buffer, error) {
	buf, err := castBuffer(x, "Slice")
	if err != nil {
		return nil, err
	}
	outDims, err := checkSliceArgs(buf, starts, limits, strides, "Slice")
	if err != nil {
		return nil, err
	}
	output := b.newBuffer(shapes.Make(buf.shape.DType, outDims...))
	if output.shape.Size() == 0 {
		return output, nil
	}

	elemSize := dtypeSize(buf.shape.DType)
	srcBytes, dstBytes := buf.bytes(), output.bytes()
	srcStrides := rowMajorStrides(buf.shape.Dimensions)
	rank := buf.shape.Rank()
	if rank == 0 {
		copy(dstBytes, srcBytes)
		return output, nil
	}

	last := rank - 1
	innerDim := outDims[last]
	dstPos := 0
	for coords := range shapes.IterDimensions(outDims[:last]) {
		srcPos := 0
		for axis, coord := range coords {
			srcPos += (starts[axis] + coord*strides[axis]) * srcStrides[axis]
		}
		srcPos += starts[last]
		if strides[last] == 1 {
			copy(dstBytes[dstPos:dstPos+innerDim*elemSize], srcBytes[srcPos*elemSize:])
			dstPos += innerDim * elemSize
		} else {
			for ii := 0; ii < innerDim; ii++ {
				copy(dstBytes[dstPos:dstPos+elemSize], srcBytes[(srcPos+ii*strides[last])*elemSize:])
				dstPos += elemSize
			}
		}
	}
	return output, nil
}

// SliceUpdate returns a copy of x with the region addressed by the
// (start, limit, stride) triples overwritten with update, which is broadcast
// to the addressed window.
func (b *Backend) SliceUpdate(x, update backends.Buffer, starts, limits, strides []int) (backends.Buffer, error) {
	buf, err := castBuffer(x, "SliceUpdate")
	if err != nil {
		return nil, err
	}
	updateBuf, err := castBuffer(update, "SliceUpdate")
	if err != nil {
		return nil, err
	}
	if updateBuf.shape.DType != buf.shape.DType {
		return nil, errors.Errorf("SliceUpdate: update dtype (%s) must match operand dtype (%s)",
			updateBuf.shape, buf.shape)
	}
	windowDims, err := checkSliceArgs(buf, starts, limits, strides, "SliceUpdate")
	if err != nil {
		return nil, err
	}

	output := b.cloneBuffer(buf)
	windowSize := 1
	for _, dim := range windowDims {
		windowSize *= dim
	}
	if windowSize == 0 {
		return output, nil
	}

	// Materialize the update broadcast to the window.
	broadcastUpdate, err := b.BroadcastTo(updateBuf, windowDims...)
	if err != nil {
		return nil, errors.WithMessagef(err, "SliceUpdate: update %s does not fit window %v", updateBuf.shape, windowDims)
	}
	updateWindow := broadcastUpdate.(*Buffer)
	defer b.putBuffer(updateWindow)

	elemSize := dtypeSize(buf.shape.DType)
	srcBytes, dstBytes := updateWindow.bytes(), output.bytes()
	dstStrides := rowMajorStrides(buf.shape.Dimensions)
	rank := buf.shape.Rank()
	if rank == 0 {
		copy(dstBytes, srcBytes)
		return output, nil
	}

	last := rank - 1
	innerDim := windowDims[last]
	srcPos := 0
	for coords := range shapes.IterDimensions(windowDims[:last]) {
		dstPos := 0
		for axis, coord := range coords {
			dstPos += (starts[axis] + coord*strides[axis]) * dstStrides[axis]
		}
		dstPos += starts[last]
		if strides[last] == 1 {
			copy(dstBytes[dstPos*elemSize:(dstPos+innerDim)*elemSize], srcBytes[srcPos:])
			srcPos += innerDim * elemSize
		} else {
			for ii := 0; ii < innerDim; ii++ {
				copy(dstBytes[(dstPos+ii*strides[last])*elemSize:(dstPos+ii*strides[last])*elemSize+elemSize], srcBytes[srcPos:])
				srcPos += elemSize
			}
		}
	}
	return output, nil
}

// Take gathers elements of x along one axis: the output shape is x's shape
// with the given axis replaced by the indices' dimensions (removed, for
// scalar indices). Negative index values count from the end of the axis.
func (b *Backend) Take(x backends.Buffer, indices backends.Buffer, axis int) (backends.Buffer, error) {
	buf, err := castBuffer(x, "Take")
	if err != nil {
		return nil, err
	}
	idxBuf, err := castBuffer(indices, "Take")
	if err != nil {
		return nil, err
	}
	if err := checkIntIndices(idxBuf, "Take"); err != nil {
		return nil, err
	}
	rank := buf.shape.Rank()
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return nil, errors.Errorf("Take: axis %d out of range for operand rank %d", axis, rank)
	}

	outDims := make([]int, 0, rank-1+idxBuf.shape.Rank())
	outDims = append(outDims, buf.shape.Dimensions[:axis]...)
	outDims = append(outDims, idxBuf.shape.Dimensions...)
	outDims = append(outDims, buf.shape.Dimensions[axis+1:]...)
	output := b.newBuffer(shapes.Make(buf.shape.DType, outDims...))
	if output.shape.Size() == 0 {
		return output, nil
	}

	elemSize := dtypeSize(buf.shape.DType)
	srcBytes, dstBytes := buf.bytes(), output.bytes()
	axisDim := buf.shape.Dimensions[axis]
	inner := 1
	for ii := axis + 1; ii < rank; ii++ {
		inner *= buf.shape.Dimensions[ii]
	}
	outer := 1
	for ii := 0; ii < axis; ii++ {
		outer *= buf.shape.Dimensions[ii]
	}
	numIndices := idxBuf.shape.Size()
	block := inner * elemSize

	dstPos := 0
	for oo := 0; oo < outer; oo++ {
		for ii := 0; ii < numIndices; ii++ {
			idx := resolveNegIndex(indexAt(idxBuf, ii), axisDim)
			srcPos := (oo*axisDim + idx) * block
			copy(dstBytes[dstPos:dstPos+block], srcBytes[srcPos:srcPos+block])
			dstPos += block
		}
	}
	return output, nil
}
