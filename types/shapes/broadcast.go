package shapes

import (
	"github.com/pkg/errors"
)

// BroadcastDimensions returns the NumPy-style broadcast of the given
// dimension lists: ranks are aligned at the trailing axes, and on each axis
// the dimensions must either match or one of them be 1.
//
// An empty list of operands broadcasts to a scalar (empty dimensions).
func BroadcastDimensions(dimsList ...[]int) ([]int, error) {
	rank := 0
	for _, dims := range dimsList {
		rank = max(rank, len(dims))
	}
	output := make([]int, rank)
	for ii := range output {
		output[ii] = 1
	}
	for _, dims := range dimsList {
		shift := rank - len(dims)
		for axis, dim := range dims {
			outAxis := axis + shift
			if output[outAxis] == 1 {
				output[outAxis] = dim
			} else if dim != 1 && dim != output[outAxis] {
				return nil, errors.Errorf("dimensions %v cannot be broadcast together with %v (axis %d: %d vs %d)",
					dims, output, axis, dim, output[outAxis])
			}
		}
	}
	return output, nil
}

// BroadcastShapes broadcasts the dimensions of the given shapes (see
// BroadcastDimensions). All shapes must have the same dtype, which is also
// the dtype of the result.
func BroadcastShapes(shapeList ...Shape) (Shape, error) {
	if len(shapeList) == 0 {
		return Invalid(), errors.Errorf("BroadcastShapes requires at least one shape")
	}
	dtype := shapeList[0].DType
	dimsList := make([][]int, len(shapeList))
	for ii, s := range shapeList {
		if s.DType != dtype {
			return Invalid(), errors.Errorf("BroadcastShapes requires matching dtypes, got %s and %s", shapeList[0], s)
		}
		dimsList[ii] = s.Dimensions
	}
	dims, err := BroadcastDimensions(dimsList...)
	if err != nil {
		return Invalid(), err
	}
	return Shape{DType: dtype, Dimensions: dims}, nil
}
