package simplego

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// rowMajorStrides returns the flat-index stride of each axis for a row-major
// layout of the given dimensions.
func rowMajorStrides(dimensions []int) []int {
	strides := make([]int, len(dimensions))
	stride := 1
	for axis := len(dimensions) - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= dimensions[axis]
	}
	return strides
}

// indexAt reads the index value at the flat position i of the buffer, which
// must have an integer dtype.
func indexAt(buf *Buffer, i int) int {
	switch flat := buf.flat.(type) {
	case []int8:
		return int(flat[i])
	case []int16:
		return int(flat[i])
	case []int32:
		return int(flat[i])
	case []int64:
		return int(flat[i])
	case []uint8:
		return int(flat[i])
	case []uint16:
		return int(flat[i])
	case []uint32:
		return int(flat[i])
	case []uint64:
		return int(flat[i])
	}
	panic(errors.Errorf("buffer with dtype %s cannot be used as indices", buf.shape.DType))
}

// checkIntIndices validates that the buffer holds an integer dtype usable as
// indices.
func checkIntIndices(buf *Buffer, opName string) error {
	if !buf.shape.DType.IsInt() {
		return errors.Errorf("%s: indices must have an integer dtype, got %s", opName, buf.shape)
	}
	return nil
}

// resolveNegIndex converts a negative index to its position counting from the
// end of an axis of the given dimension. Out-of-range values are left as is:
// they are undefined behavior.
func resolveNegIndex(index, dim int) int {
	if index < 0 {
		return index + dim
	}
	return index
}

// broadcastStrides returns the strides of the operand dimensions when
// broadcast (NumPy-style, trailing axes aligned) to the target dimensions:
// absent and size-1 axes get stride 0. The operand must have been validated
// to broadcast to the target.
func broadcastStrides(operandDims, targetDims []int) []int {
	operandStrides := rowMajorStrides(operandDims)
	strides := make([]int, len(targetDims))
	shift := len(targetDims) - len(operandDims)
	for axis := range operandDims {
		if operandDims[axis] != 1 {
			strides[axis+shift] = operandStrides[axis]
		}
	}
	return strides
}

// sliceSpanSize returns the number of elements a (start, limit, stride)
// triple addresses. Stride must not be 0; a negative stride walks backwards.
func sliceSpanSize(start, limit, stride int) int {
	if stride > 0 {
		if limit <= start {
			return 0
		}
		return (limit - start + stride - 1) / stride
	}
	if limit >= start {
		return 0
	}
	return (limit - start + stride + 1) / stride
}

// checkSliceArgs validates the per-axis (start, limit, stride) triples
// against the operand shape and returns the resulting dimensions.
func checkSliceArgs(buf *Buffer, starts, limits, strides []int, opName string) ([]int, error) {
	rank := buf.shape.Rank()
	if len(starts) != rank || len(limits) != rank || len(strides) != rank {
		return nil, errors.Errorf("%s: operand has rank %d, but got %d starts, %d limits and %d strides",
			opName, rank, len(starts), len(limits), len(strides))
	}
	outDims := make([]int, rank)
	for axis := range starts {
		dim := buf.shape.Dimensions[axis]
		stride := strides[axis]
		if stride == 0 {
			return nil, errors.Errorf("%s: stride for axis %d is 0, it must be positive or negative", opName, axis)
		}
		start, limit := starts[axis], limits[axis]
		if start < 0 || start >= max(dim, 1) {
			return nil, errors.Errorf("%s: start %d for axis %d out of range for dimension %d", opName, start, axis, dim)
		}
		if stride > 0 && limit > dim {
			return nil, errors.Errorf("%s: limit %d for axis %d out of range for dimension %d", opName, limit, axis, dim)
		}
		if stride < 0 && limit < -1 {
			return nil, errors.Errorf("%s: limit %d for axis %d out of range for backwards slice", opName, limit, axis)
		}
		outDims[axis] = sliceSpanSize(start, limit, stride)
	}
	return outDims, nil
}

// dtypeSize returns the element size in bytes for the dtype.
func dtypeSize(dtype dtypes.DType) int {
	return int(dtype.Memory())
}
