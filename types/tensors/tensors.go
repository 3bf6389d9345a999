// Package tensors implements an eager, immutable N-dimensional array backed
// by a backends.Backend buffer.
//
// A Tensor is a thin handle: its shape lives in Go, its data in the backend
// buffer. All operations create new tensors; the inputs are never mutated.
// Tensors must be explicitly finalized (see Tensor.FinalizeAll) when no
// longer needed, so the backend can reuse the buffer space, although leaving
// them to the garbage collector only wastes memory, it is not unsafe.
package tensors

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/types/shapes"
	"github.com/pkg/errors"
)

// Tensor is a handle to an N-dimensional array stored in a backend buffer.
//
// It is immutable: every operation returns a new Tensor. It is not
// synchronized, but since it never mutates, concurrent reads are safe.
type Tensor struct {
	shape   shapes.Shape
	backend backends.Backend
	buffer  backends.Buffer
}

// FromBuffer creates a Tensor from an existing backend buffer. The Tensor
// takes ownership of the buffer.
func FromBuffer(backend backends.Backend, buffer backends.Buffer) *Tensor {
	shape, err := backend.BufferShape(buffer)
	if err != nil {
		exceptions.Panicf("tensors.FromBuffer: %+v", err)
	}
	return &Tensor{shape: shape, backend: backend, buffer: buffer}
}

// FromShape creates a zero-initialized Tensor with the given shape.
func FromShape(backend backends.Backend, shape shapes.Shape) *Tensor {
	flat := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), shape.Size(), shape.Size())
	buffer, err := backend.BufferFromFlatData(0, flat.Interface(), shape)
	if err != nil {
		exceptions.Panicf("tensors.FromShape(%s): %+v", shape, err)
	}
	return &Tensor{shape: shape, backend: backend, buffer: buffer}
}

// FromFlatDataAndDimensions creates a Tensor from a flat slice of values and
// its dimensions. The flat slice must hold exactly the product of the
// dimensions elements.
func FromFlatDataAndDimensions[T dtypes.Supported](backend backends.Backend, flat []T, dimensions ...int) *Tensor {
	shape := shapes.Make(dtypes.FromGenericsType[T](), dimensions...)
	buffer, err := backend.BufferFromFlatData(0, flat, shape)
	if err != nil {
		exceptions.Panicf("tensors.FromFlatDataAndDimensions(%s): %+v", shape, err)
	}
	return &Tensor{shape: shape, backend: backend, buffer: buffer}
}

// FromScalar creates a rank-0 Tensor holding one value.
func FromScalar[T dtypes.Supported](backend backends.Backend, value T) *Tensor {
	return FromFlatDataAndDimensions(backend, []T{value})
}

// FromValue creates a Tensor from a Go scalar or (multi-dimensional) slice.
// All innermost slices must have the same length. E.g.:
//
//	FromValue(backend, [][]float32{{1, 2}, {3, 4}, {5, 6}})  // shape (Float32)[3 2]
func FromValue[S MultiDimensionSlice](backend backends.Backend, value S) *Tensor {
	return FromAnyValue(backend, value)
}

// MultiDimensionSlice lists the Go types FromValue accepts: scalars and
// slices of up to 4 dimensions.
type MultiDimensionSlice interface {
	dtypes.Supported |
		[]bool | []int8 | []int16 | []int32 | []int64 | []uint8 | []uint16 | []uint32 | []uint64 | []float32 | []float64 | []complex64 | []complex128 |
		[][]bool | [][]int8 | [][]int16 | [][]int32 | [][]int64 | [][]uint8 | [][]uint16 | [][]uint32 | [][]uint64 | [][]float32 | [][]float64 | [][]complex64 | [][]complex128 |
		[][][]bool | [][][]int8 | [][][]int16 | [][][]int32 | [][][]int64 | [][][]uint8 | [][][]uint16 | [][][]uint32 | [][][]uint64 | [][][]float32 | [][][]float64 | [][][]complex64 | [][][]complex128 |
		[][][][]bool | [][][][]int8 | [][][][]int16 | [][][][]int32 | [][][][]int64 | [][][][]uint8 | [][][][]uint16 | [][][][]uint32 | [][][][]uint64 | [][][][]float32 | [][][][]float64 | [][][][]complex64 | [][][][]complex128
}

// FromAnyValue is a non-generic version of FromValue. It panics if the value
// type is not supported.
func FromAnyValue(backend backends.Backend, value any) *Tensor {
	shape, err := shapeForValue(value)
	if err != nil {
		exceptions.Panicf("tensors.FromAnyValue: %+v", err)
	}
	flat := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), shape.Size(), shape.Size())
	copyValueToFlat(reflect.ValueOf(value), flat, 0)
	buffer, err := backend.BufferFromFlatData(0, flat.Interface(), shape)
	if err != nil {
		exceptions.Panicf("tensors.FromAnyValue(%s): %+v", shape, err)
	}
	return &Tensor{shape: shape, backend: backend, buffer: buffer}
}

// shapeForValue returns the shape of a Go scalar or nested slice, checking
// that all slices at the same depth have the same length.
func shapeForValue(value any) (shapes.Shape, error) {
	valueT := reflect.TypeOf(value)
	var dimensions []int
	valueV := reflect.ValueOf(value)
	for valueT.Kind() == reflect.Slice {
		if valueV.Len() == 0 && valueT.Elem().Kind() == reflect.Slice {
			return shapes.Invalid(), errors.Errorf("empty outer slice of slices (%T) has no defined shape", value)
		}
		dimensions = append(dimensions, valueV.Len())
		valueT = valueT.Elem()
		if valueV.Len() == 0 {
			break
		}
		valueV = valueV.Index(0)
	}
	dtype := dtypes.FromGoType(valueT)
	if dtype == dtypes.InvalidDType {
		return shapes.Invalid(), errors.Errorf("cannot convert type %T to a tensor", value)
	}
	shape := shapes.Make(dtype, dimensions...)
	if err := checkValueShape(reflect.ValueOf(value), dimensions); err != nil {
		return shapes.Invalid(), err
	}
	return shape, nil
}

func checkValueShape(valueV reflect.Value, dimensions []int) error {
	if len(dimensions) == 0 {
		return nil
	}
	if valueV.Len() != dimensions[0] {
		return errors.Errorf("inner slices have inconsistent lengths (%d vs %d), a tensor must be dense",
			valueV.Len(), dimensions[0])
	}
	if len(dimensions) > 1 {
		for ii := 0; ii < valueV.Len(); ii++ {
			if err := checkValueShape(valueV.Index(ii), dimensions[1:]); err != nil {
				return err
			}
		}
	}
	return nil
}

// copyValueToFlat recursively copies a nested slice into the flat slice
// starting at pos, returning the position after the copied values.
func copyValueToFlat(valueV reflect.Value, flat reflect.Value, pos int) int {
	if valueV.Kind() != reflect.Slice {
		flat.Index(pos).Set(valueV)
		return pos + 1
	}
	if valueV.Type().Elem().Kind() != reflect.Slice {
		pos += reflect.Copy(flat.Slice(pos, flat.Len()), valueV)
		return pos
	}
	for ii := 0; ii < valueV.Len(); ii++ {
		pos = copyValueToFlat(valueV.Index(ii), flat, pos)
	}
	return pos
}

// AssertValid panics if the tensor is nil or has already been finalized.
func (t *Tensor) AssertValid() {
	if t == nil {
		exceptions.Panicf("tensors.Tensor is nil")
	}
	if t.buffer == nil {
		exceptions.Panicf("tensors.Tensor (%s) has already been finalized", t.shape)
	}
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's shape.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank of the tensor's shape.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// IsScalar returns whether the tensor is rank-0.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// Size returns the number of elements of the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// Backend this tensor's buffer lives on.
func (t *Tensor) Backend() backends.Backend { return t.backend }

// Buffer returns the underlying backend buffer. The tensor keeps ownership.
func (t *Tensor) Buffer() backends.Buffer {
	t.AssertValid()
	return t.buffer
}

// FinalizeAll returns the tensor's buffer to the backend for immediate
// reuse. The tensor becomes invalid.
func (t *Tensor) FinalizeAll() {
	if t == nil || t.buffer == nil {
		return
	}
	_ = t.backend.BufferFinalize(t.buffer)
	t.buffer = nil
	t.shape = shapes.Invalid()
}

// flatValue returns a copy of the tensor's data as a flat reflect slice.
func (t *Tensor) flatValue() reflect.Value {
	t.AssertValid()
	flat := reflect.MakeSlice(reflect.SliceOf(t.shape.DType.GoType()), t.Size(), t.Size())
	if err := t.backend.BufferToFlatData(t.buffer, flat.Interface()); err != nil {
		exceptions.Panicf("tensors.Tensor: failed to read buffer: %+v", err)
	}
	return flat
}

// Value returns a copy of the tensor's data as a Go value: a scalar for
// rank-0 tensors, otherwise a (nested) slice.
func (t *Tensor) Value() any {
	flat := t.flatValue()
	if t.IsScalar() {
		return flat.Index(0).Interface()
	}
	return convertDataToSlices(flat, t.shape.Dimensions...).Interface()
}

// CopyFlatData returns a copy of the tensor's data as a flat slice of T,
// which must match the tensor's dtype.
func CopyFlatData[T dtypes.Supported](t *Tensor) []T {
	t.AssertValid()
	if got := dtypes.FromGenericsType[T](); got != t.shape.DType {
		exceptions.Panicf("tensors.CopyFlatData[%s]: tensor has dtype %s", got, t.shape.DType)
	}
	flat := make([]T, t.Size())
	if err := t.backend.BufferToFlatData(t.buffer, flat); err != nil {
		exceptions.Panicf("tensors.CopyFlatData: failed to read buffer: %+v", err)
	}
	return flat
}

// ToScalar returns the value of a rank-0 tensor.
func ToScalar[T dtypes.Supported](t *Tensor) T {
	t.AssertValid()
	if !t.IsScalar() {
		exceptions.Panicf("tensors.ToScalar: tensor has shape %s, it is not a scalar", t.shape)
	}
	return CopyFlatData[T](t)[0]
}

// convertDataToSlices takes a flat slice and creates a multi-dimensional
// slice with the given dimensions that points to newly allocated data.
func convertDataToSlices(flat reflect.Value, dimensions ...int) reflect.Value {
	if len(dimensions) <= 1 {
		return flat
	}
	resultT := flat.Type().Elem()
	for range dimensions {
		resultT = reflect.SliceOf(resultT)
	}
	return convertDataToSlicesRecursively(resultT, flat, dimensions)
}

func convertDataToSlicesRecursively(resultT reflect.Type, flat reflect.Value, dimensions []int) reflect.Value {
	if len(dimensions) == 1 {
		return flat
	}
	numRows := dimensions[0]
	result := reflect.MakeSlice(resultT, numRows, numRows)
	subSize := 1
	for _, dim := range dimensions[1:] {
		subSize *= dim
	}
	for row := 0; row < numRows; row++ {
		subFlat := flat.Slice(row*subSize, (row+1)*subSize)
		result.Index(row).Set(convertDataToSlicesRecursively(resultT.Elem(), subFlat, dimensions[1:]))
	}
	return result
}

// Equal checks for equality of shape and values.
func (t *Tensor) Equal(other *Tensor) bool {
	t.AssertValid()
	other.AssertValid()
	if !t.shape.Equal(other.shape) {
		return false
	}
	return reflect.DeepEqual(t.flatValue().Interface(), other.flatValue().Interface())
}

const maxStringSize = 512

// String converts to string, printing up to maxStringSize values.
func (t *Tensor) String() string {
	if t == nil {
		return "tensors.Tensor(nil)"
	}
	if t.buffer == nil {
		return fmt.Sprintf("tensors.Tensor(%s): already finalized", t.shape)
	}
	if t.Size() <= maxStringSize {
		valueStr := fmt.Sprintf("%v", t.Value())
		valueStr = strings.ReplaceAll(valueStr, "]", "}")
		valueStr = strings.ReplaceAll(valueStr, "[", "{")
		return fmt.Sprintf("%s: %s", t.shape, valueStr)
	}
	return fmt.Sprintf("%s: (%d values, too large to print)", t.shape, t.Size())
}
