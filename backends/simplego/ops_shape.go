package simplego

import (
	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/types/shapes"
	"github.com/pkg/errors"
)

// Reshape returns a new buffer with the same contents and the new dimensions.
// The total size must not change.
func (b *Backend) Reshape(x backends.Buffer, dimensions ...int) (backends.Buffer, error) {
	buf, err := castBuffer(x, "Reshape")
	if err != nil {
		return nil, err
	}
	newShape := shapes.Shape{DType: buf.shape.DType, Dimensions: append([]int{}, dimensions...)}
	if newShape.Size() != buf.shape.Size() {
		return nil, errors.Errorf("Reshape: cannot reshape %s to dimensions %v, total sizes differ (%d vs %d)",
			buf.shape, dimensions, buf.shape.Size(), newShape.Size())
	}
	for _, dim := range dimensions {
		if dim < 0 {
			return nil, errors.Errorf("Reshape: dimensions %v must not be negative", dimensions)
		}
	}
	output := b.newBuffer(newShape)
	copyFlat(output.flat, buf.flat)
	return output, nil
}

// BroadcastTo broadcasts x to the given dimensions, NumPy-style: x's axes
// are aligned to the trailing output axes, and axes of size 1 (or absent)
// are repeated.
func (b *Backend) BroadcastTo(x backends.Buffer, dimensions ...int) (backends.Buffer, error) {
	buf, err := castBuffer(x, "BroadcastTo")
	if err != nil {
		return nil, err
	}
	fromDims := buf.shape.Dimensions
	if len(fromDims) > len(dimensions) {
		return nil, errors.Errorf("BroadcastTo: cannot broadcast %s to lower rank dimensions %v", buf.shape, dimensions)
	}
	shift := len(dimensions) - len(fromDims)
	for axis, dim := range fromDims {
		if dim != dimensions[axis+shift] && dim != 1 {
			return nil, errors.Errorf("BroadcastTo: cannot broadcast %s to dimensions %v (axis %d: %d vs %d)",
				buf.shape, dimensions, axis, dim, dimensions[axis+shift])
		}
	}

	output := b.newBuffer(shapes.Make(buf.shape.DType, dimensions...))
	if output.shape.Size() == 0 {
		return output, nil
	}
	elemSize := dtypeSize(buf.shape.DType)
	srcBytes, dstBytes := buf.bytes(), output.bytes()
	srcStrides := broadcastStrides(fromDims, dimensions)

	if len(dimensions) == 0 {
		copy(dstBytes, srcBytes)
		return output, nil
	}
	last := len(dimensions) - 1
	innerDim := dimensions[last]
	innerSrcStride := srcStrides[last]
	dstPos := 0
	for coords := range shapes.IterDimensions(dimensions[:last]) {
		srcPos := 0
		for axis, coord := range coords {
			srcPos += coord * srcStrides[axis]
		}
		if innerSrcStride == 1 {
			copy(dstBytes[dstPos:dstPos+innerDim*elemSize], srcBytes[srcPos*elemSize:])
		} else {
			// Inner axis is broadcast: replicate the single source element.
			elem := srcBytes[srcPos*elemSize : (srcPos+1)*elemSize]
			for ii := 0; ii < innerDim; ii++ {
				copy(dstBytes[dstPos+ii*elemSize:], elem)
			}
		}
		dstPos += innerDim * elemSize
	}
	return output, nil
}

// Concatenate the operands along the given axis. All operands must have the
// same dtype and equal dimensions on every other axis.
func (b *Backend) Concatenate(axis int, operands ...backends.Buffer) (backends.Buffer, error) {
	if len(operands) == 0 {
		return nil, errors.Errorf("Concatenate: requires at least one operand")
	}
	bufs := make([]*Buffer, len(operands))
	for ii, operand := range operands {
		buf, err := castBuffer(operand, "Concatenate")
		if err != nil {
			return nil, err
		}
		bufs[ii] = buf
	}
	baseShape := bufs[0].shape
	rank := baseShape.Rank()
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return nil, errors.Errorf("Concatenate: axis %d out of range for rank %d", axis, rank)
	}
	concatDim := 0
	for ii, buf := range bufs {
		if buf.shape.DType != baseShape.DType || buf.shape.Rank() != rank {
			return nil, errors.Errorf("Concatenate: operand #%d (%s) incompatible with operand 0 (%s)",
				ii, buf.shape, baseShape)
		}
		for otherAxis, dim := range buf.shape.Dimensions {
			if otherAxis != axis && dim != baseShape.Dimensions[otherAxis] {
				return nil, errors.Errorf("Concatenate(axis=%d): operand #%d (%s) dimensions must match operand 0 (%s) on all other axes",
					axis, ii, buf.shape, baseShape)
			}
		}
		concatDim += buf.shape.Dimensions[axis]
	}

	outDims := append([]int{}, baseShape.Dimensions...)
	outDims[axis] = concatDim
	output := b.newBuffer(shapes.Make(baseShape.DType, outDims...))
	elemSize := dtypeSize(baseShape.DType)
	inner := 1
	for ii := axis + 1; ii < rank; ii++ {
		inner *= outDims[ii]
	}
	outer := 1
	for ii := 0; ii < axis; ii++ {
		outer *= outDims[ii]
	}

	dstBytes := output.bytes()
	dstRow := concatDim * inner * elemSize
	offset := 0
	for _, buf := range bufs {
		srcBytes := buf.bytes()
		block := buf.shape.Dimensions[axis] * inner * elemSize
		for oo := 0; oo < outer; oo++ {
			copy(dstBytes[oo*dstRow+offset:], srcBytes[oo*block:(oo+1)*block])
		}
		offset += block
	}
	return output, nil
}
