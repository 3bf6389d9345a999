package simplego

import (
	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/types/shapes"
	"github.com/pkg/errors"
)

// gatherArgs holds the validated, broadcast-aligned pieces shared by Gather
// and Scatter: one index buffer per indexed axis, all broadcast to a common
// index shape, plus per-buffer strides into that shape.
type gatherArgs struct {
	idxDims    []int
	idxBuffers []*Buffer
	idxStrides [][]int
	axes       []int
}

func prepareGatherArgs(operand *Buffer, indices []backends.Buffer, axes []int, opName string) (*gatherArgs, error) {
	if len(indices) != len(axes) {
		return nil, errors.Errorf("%s: got %d index arrays for %d axes", opName, len(indices), len(axes))
	}
	args := &gatherArgs{
		idxBuffers: make([]*Buffer, len(indices)),
		idxStrides: make([][]int, len(indices)),
		axes:       axes,
	}
	idxDimsList := make([][]int, len(indices))
	rank := operand.shape.Rank()
	for ii, idx := range indices {
		axis := axes[ii]
		if axis < 0 || axis >= rank {
			return nil, errors.Errorf("%s: axis %d out of range for operand rank %d", opName, axis, rank)
		}
		idxBuf, err := castBuffer(idx, opName)
		if err != nil {
			return nil, err
		}
		if err := checkIntIndices(idxBuf, opName); err != nil {
			return nil, err
		}
		args.idxBuffers[ii] = idxBuf
		idxDimsList[ii] = idxBuf.shape.Dimensions
	}
	var err error
	args.idxDims, err = shapes.BroadcastDimensions(idxDimsList...)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s: index arrays are not broadcast-compatible", opName)
	}
	for ii, idxBuf := range args.idxBuffers {
		args.idxStrides[ii] = broadcastStrides(idxBuf.shape.Dimensions, args.idxDims)
	}
	return args, nil
}

// offsetsAt returns the per-axis start offsets into operand for one position
// of the broadcast index shape. Negative index values are resolved against
// the corresponding operand dimension.
func (args *gatherArgs) offsetsAt(operand *Buffer, coords []int, offsets []int) {
	for ii, idxBuf := range args.idxBuffers {
		flat := 0
		for axis, coord := range coords {
			flat += coord * args.idxStrides[ii][axis]
		}
		axis := args.axes[ii]
		offsets[axis] = resolveNegIndex(indexAt(idxBuf, flat), operand.shape.Dimensions[axis])
	}
}

// Gather extracts, for each position of the broadcast index arrays, the
// sliceSizes-shaped window of x starting at the indexed offsets. The output
// shape is the broadcast index shape followed by sliceSizes. Axes without an
// index array start at offset 0.
func (b *Backend) Gather(x backends.Buffer, indices []backends.Buffer, axes []int, sliceSizes []int) (backends.Buffer, error) {
	buf, err := castBuffer(x, "Gather")
	if err != nil {
		return nil, err
	}
	rank := buf.shape.Rank()
	if len(sliceSizes) != rank {
		return nil, errors.Errorf("Gather: got %d slice sizes for operand rank %d", len(sliceSizes), rank)
	}
	for axis, size := range sliceSizes {
		if size < 0 || size > buf.shape.Dimensions[axis] {
			return nil, errors.Errorf("Gather: slice size %d on axis %d out of range for operand %s",
				size, axis, buf.shape)
		}
	}
	args, err := prepareGatherArgs(buf, indices, axes, "Gather")
	if err != nil {
		return nil, err
	}

	outDims := append(append([]int{}, args.idxDims...), sliceSizes...)
	output := b.newBuffer(shapes.Make(buf.shape.DType, outDims...))
	if output.shape.Size() == 0 {
		return output, nil
	}

	elemSize := dtypeSize(buf.shape.DType)
	srcBytes, dstBytes := buf.bytes(), output.bytes()
	srcStrides := rowMajorStrides(buf.shape.Dimensions)
	offsets := make([]int, rank)
	dstPos := 0

	if rank == 0 {
		// Scalar operand: each index position copies the single element.
		for range shapes.IterDimensions(args.idxDims) {
			copy(dstBytes[dstPos:dstPos+elemSize], srcBytes)
			dstPos += elemSize
		}
		return output, nil
	}

	last := rank - 1
	innerRun := sliceSizes[last] * elemSize
	for coords := range shapes.IterDimensions(args.idxDims) {
		for axis := range offsets {
			offsets[axis] = 0
		}
		args.offsetsAt(buf, coords, offsets)
		for window := range shapes.IterDimensions(sliceSizes[:last]) {
			srcPos := offsets[last]
			for axis, coord := range window {
				srcPos += (offsets[axis] + coord) * srcStrides[axis]
			}
			copy(dstBytes[dstPos:dstPos+innerRun], srcBytes[srcPos*elemSize:])
			dstPos += innerRun
		}
	}
	return output, nil
}
