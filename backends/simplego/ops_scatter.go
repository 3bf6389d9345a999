package simplego

import (
	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/types/shapes"
	"github.com/pkg/errors"
)

// Scatter returns a copy of x with windows overwritten from update. For each
// position of the broadcast index arrays, the window update[position] (one
// slice per operand axis, of the update's trailing dimensions) is written at
// the indexed offsets. The update shape must be the broadcast index shape
// followed by one dimension per operand axis. With no index arrays the single
// window is written at offset zero on every axis.
func (b *Backend) Scatter(x backends.Buffer, indices []backends.Buffer, update backends.Buffer, axes []int) (backends.Buffer, error) {
	buf, err := castBuffer(x, "Scatter")
	if err != nil {
		return nil, err
	}
	updateBuf, err := castBuffer(update, "Scatter")
	if err != nil {
		return nil, err
	}
	if updateBuf.shape.DType != buf.shape.DType {
		return nil, errors.Errorf("Scatter: update dtype (%s) must match operand dtype (%s)",
			updateBuf.shape, buf.shape)
	}
	args, err := prepareGatherArgs(buf, indices, axes, "Scatter")
	if err != nil {
		return nil, err
	}

	rank := buf.shape.Rank()
	idxRank := len(args.idxDims)
	if updateBuf.shape.Rank() != idxRank+rank {
		return nil, errors.Errorf("Scatter: update rank must be %d (index rank %d + operand rank %d), got %s",
			idxRank+rank, idxRank, rank, updateBuf.shape)
	}
	for axis, dim := range args.idxDims {
		if updateBuf.shape.Dimensions[axis] != dim {
			return nil, errors.Errorf("Scatter: update %s does not match broadcast index dimensions %v",
				updateBuf.shape, args.idxDims)
		}
	}
	window := updateBuf.shape.Dimensions[idxRank:]
	for axis, dim := range window {
		if dim > buf.shape.Dimensions[axis] {
			return nil, errors.Errorf("Scatter: window %v does not fit operand %s", window, buf.shape)
		}
	}

	output := b.cloneBuffer(buf)
	if updateBuf.shape.Size() == 0 {
		return output, nil
	}

	elemSize := dtypeSize(buf.shape.DType)
	srcBytes, dstBytes := updateBuf.bytes(), output.bytes()
	dstStrides := rowMajorStrides(buf.shape.Dimensions)
	offsets := make([]int, rank)
	srcPos := 0

	if rank == 0 {
		// Scalar operand: the last index position wins.
		for range shapes.IterDimensions(args.idxDims) {
			copy(dstBytes, srcBytes[srcPos:srcPos+elemSize])
			srcPos += elemSize
		}
		return output, nil
	}

	last := rank - 1
	innerRun := window[last] * elemSize
	for coords := range shapes.IterDimensions(args.idxDims) {
		for axis := range offsets {
			offsets[axis] = 0
		}
		args.offsetsAt(buf, coords, offsets)
		for winCoords := range shapes.IterDimensions(window[:last]) {
			dstPos := offsets[last]
			for axis, coord := range winCoords {
				dstPos += (offsets[axis] + coord) * dstStrides[axis]
			}
			copy(dstBytes[dstPos*elemSize:dstPos*elemSize+innerRun], srcBytes[srcPos:srcPos+innerRun])
			srcPos += innerRun
		}
	}
	return output, nil
}
