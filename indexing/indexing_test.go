package indexing_test

import (
	"testing"

	"github.com/gomlx/ndarray/backends"
	_ "github.com/gomlx/ndarray/backends/simplego"
	"github.com/gomlx/ndarray/indexing"
	"github.com/gomlx/ndarray/types/tensors"
	"github.com/gomlx/ndarray/types/xslices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// iotaTensor returns a tensor of the given dimensions holding 0, 1, 2, ...
func iotaTensor(backend backends.Backend, dimensions ...int) *tensors.Tensor {
	size := 1
	for _, dim := range dimensions {
		size *= dim
	}
	return tensors.FromFlatDataAndDimensions(backend, xslices.Iota(int32(0), size), dimensions...)
}

func TestSliceSpec(t *testing.T) {
	full := indexing.Full()
	assert.True(t, full.IsFull())
	assert.Equal(t, 1, full.StrideOrDefault())
	assert.Equal(t, 0, full.StartForAxis(5))
	assert.Equal(t, 5, full.StopForAxis(5))

	reversed := indexing.Full().Stride(-1)
	assert.False(t, reversed.IsFull())
	assert.Equal(t, 4, reversed.StartForAxis(5))
	assert.Equal(t, -6, reversed.StopForAxis(5))
	assert.Equal(t, -1, reversed.AbsoluteStop(5))

	negative := indexing.Range(-3, -1)
	assert.Equal(t, 2, negative.AbsoluteStart(5))
	assert.Equal(t, 4, negative.AbsoluteStop(5))

	assert.False(t, indexing.RangeTo(3).IsFull())
	assert.True(t, indexing.RangeFrom(0).IsFull())

	require.Panics(t, func() { indexing.Full().Stride(0) })
}

func TestReadFastPaths(t *testing.T) {
	backend := backends.New()
	defer backend.Finalize()
	tensor := iotaTensor(backend, 4, 3)

	// Single At selects one row.
	row := indexing.Read(tensor, indexing.At(1))
	assert.Equal(t, []int32{3, 4, 5}, tensors.CopyFlatData[int32](row))

	// Sign resolution: At(-1) equals At(n-1).
	assert.True(t, indexing.Read(tensor, indexing.At(-1)).Equal(indexing.Read(tensor, indexing.At(3))))

	// Single range slices axis 0.
	rows := indexing.Read(tensor, indexing.Range(1, 3))
	assert.Equal(t, [][]int32{{3, 4, 5}, {6, 7, 8}}, rows.Value())

	// Negative stride reverses axis 0.
	reversed := indexing.Read(tensor, indexing.Full().Stride(-1))
	assert.Equal(t, [][]int32{{9, 10, 11}, {6, 7, 8}, {3, 4, 5}, {0, 1, 2}}, reversed.Value())

	// Single Array gathers rows.
	picked := indexing.Read(tensor, indexing.Array(tensors.FromValue(backend, []int32{2, 0, 2})))
	assert.Equal(t, [][]int32{{6, 7, 8}, {0, 1, 2}, {6, 7, 8}}, picked.Value())

	// NewAxis and Ellipsis alone.
	assert.Equal(t, []int{1, 4, 3}, indexing.Read(tensor, indexing.NewAxis).Shape().Dimensions)
	assert.True(t, indexing.Read(tensor, indexing.Ellipsis).Equal(tensor))
}

func TestReadIdentityAndEllipsis(t *testing.T) {
	backend := backends.New()
	defer backend.Finalize()
	tensor := iotaTensor(backend, 4, 3)

	// All-full expressions are the identity.
	assert.True(t, indexing.Read(tensor).Equal(tensor))
	assert.True(t, indexing.Read(tensor, indexing.Full(), indexing.Full()).Equal(tensor))

	// Ellipsis expansion equals spelling the full ranges out.
	tensor4 := iotaTensor(backend, 2, 2, 2, 2)
	withEllipsis := indexing.Read(tensor4, indexing.At(0), indexing.Ellipsis, indexing.At(1))
	spelledOut := indexing.Read(tensor4, indexing.At(0), indexing.Full(), indexing.Full(), indexing.At(1))
	assert.True(t, withEllipsis.Equal(spelledOut))
	assert.Equal(t, [][]int32{{1, 3}, {5, 7}}, withEllipsis.Value())
}

func TestReadBasicTuples(t *testing.T) {
	backend := backends.New()
	defer backend.Finalize()
	tensor := iotaTensor(backend, 4, 3)

	// Range and At combined: one slice plus the squeeze of the At axis.
	column := indexing.Read(tensor, indexing.Range(1, 3), indexing.At(0))
	assert.Equal(t, []int32{3, 6}, tensors.CopyFlatData[int32](column))

	// Strided range, negative bounds.
	strided := indexing.Read(tensor, indexing.Range(0, -1).Stride(2), indexing.At(-1))
	assert.Equal(t, []int32{2, 8}, tensors.CopyFlatData[int32](strided))

	// Out-of-range bounds clamp, as in NumPy.
	clamped := indexing.Read(tensor, indexing.Range(2, 100))
	assert.Equal(t, [][]int32{{6, 7, 8}, {9, 10, 11}}, clamped.Value())

	// An empty range produces an empty result.
	empty := indexing.Read(tensor, indexing.Range(2, 2))
	assert.Equal(t, []int{0, 3}, empty.Shape().Dimensions)

	// NewAxis inserts size-1 axes around the others.
	expanded := indexing.Read(tensor, indexing.NewAxis, indexing.At(1), indexing.NewAxis)
	assert.Equal(t, []int{1, 1, 3}, expanded.Shape().Dimensions)
	assert.Equal(t, []int32{3, 4, 5}, tensors.CopyFlatData[int32](expanded))
}

func TestReadAdvancedBroadcast(t *testing.T) {
	backend := backends.New()
	defer backend.Finalize()
	tensor := iotaTensor(backend, 4, 3)

	// Two array indices of shapes [3,1] and [1,4] broadcast to [3,4].
	rowIdx := indexing.Array(tensors.FromValue(backend, [][]int32{{0}, {1}, {2}}))
	colIdx := indexing.Array(tensors.FromValue(backend, [][]int32{{0, 1, 2, 0}}))
	gathered := indexing.Read(tensor, rowIdx, colIdx)
	assert.Equal(t, [][]int32{{0, 1, 2, 0}, {3, 4, 5, 3}, {6, 7, 8, 6}}, gathered.Value())

	// An At broadcasts against an Array like a scalar.
	mixed := indexing.Read(tensor, indexing.At(1), indexing.Array(tensors.FromValue(backend, []int32{2, 0})))
	assert.Equal(t, []int32{5, 3}, tensors.CopyFlatData[int32](mixed))

	// Negative array values count from the end of the axis.
	negative := indexing.Read(tensor, indexing.Array(tensors.FromValue(backend, []int32{-1, -4})))
	assert.Equal(t, [][]int32{{9, 10, 11}, {0, 1, 2}}, negative.Value())
}

func TestReadPlacementRule(t *testing.T) {
	backend := backends.New()
	defer backend.Finalize()
	tensor := iotaTensor(backend, 2, 3, 2)

	first := indexing.Array(tensors.FromValue(backend, []int32{0, 1}))
	second := indexing.Array(tensors.FromValue(backend, []int32{1, 0}))

	// Non-contiguous advanced indices: their broadcast dimension moves to
	// the front, ahead of the middle range.
	separated := indexing.Read(tensor, first, indexing.Full(), second)
	assert.Equal(t, []int{2, 3}, separated.Shape().Dimensions)
	assert.Equal(t, [][]int32{{1, 3, 5}, {6, 8, 10}}, separated.Value())

	// Contiguous advanced indices stay in place.
	third := indexing.Array(tensors.FromValue(backend, []int32{2, 0}))
	contiguous := indexing.Read(tensor, first, third, indexing.Full())
	assert.Equal(t, []int{2, 2}, contiguous.Shape().Dimensions)
	assert.Equal(t, [][]int32{{4, 5}, {6, 7}}, contiguous.Value())

	// A trailing range after the advanced block is applied as a residual
	// slice.
	residual := indexing.Read(tensor, first, third, indexing.At(1))
	assert.Equal(t, []int32{5, 7}, tensors.CopyFlatData[int32](residual))
}

func TestWriteFastPaths(t *testing.T) {
	backend := backends.New()
	defer backend.Finalize()
	tensor := iotaTensor(backend, 4, 3)

	// Whole-tensor overwrite broadcasts the update.
	zeros := indexing.Write(tensor, tensors.FromScalar(backend, int32(0)))
	assert.Equal(t, [][]int32{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}, {0, 0, 0}}, zeros.Value())
	viaEllipsis := indexing.Write(tensor, tensors.FromValue(backend, []int32{7, 8, 9}), indexing.Ellipsis)
	assert.Equal(t, [][]int32{{7, 8, 9}, {7, 8, 9}, {7, 8, 9}, {7, 8, 9}}, viaEllipsis.Value())

	// Single At writes one row; the update may carry leading size-1 axes.
	row := indexing.Write(tensor, tensors.FromValue(backend, [][]int32{{30, 40, 50}}), indexing.At(1))
	assert.Equal(t, [][]int32{{0, 1, 2}, {30, 40, 50}, {6, 7, 8}, {9, 10, 11}}, row.Value())

	// Single range writes a span, broadcasting the update to it.
	span := indexing.Write(tensor, tensors.FromScalar(backend, int32(-1)), indexing.Range(1, 3))
	assert.Equal(t, [][]int32{{0, 1, 2}, {-1, -1, -1}, {-1, -1, -1}, {9, 10, 11}}, span.Value())

	// Single Array writes one row per index value.
	picked := indexing.Write(tensor, tensors.FromValue(backend, [][]int32{{90, 91, 92}, {93, 94, 95}}),
		indexing.Array(tensors.FromValue(backend, []int32{3, 0})))
	assert.Equal(t, [][]int32{{93, 94, 95}, {3, 4, 5}, {6, 7, 8}, {90, 91, 92}}, picked.Value())
}

func TestWriteSliceUpdates(t *testing.T) {
	backend := backends.New()
	defer backend.Finalize()
	tensor := iotaTensor(backend, 4, 3)

	// Range and At combined collapse to one slice-assign.
	columned := indexing.Write(tensor, tensors.FromValue(backend, []int32{70, 80}),
		indexing.Range(0, 2), indexing.At(1))
	assert.Equal(t, [][]int32{{0, 70, 2}, {3, 80, 5}, {6, 7, 8}, {9, 10, 11}}, columned.Value())

	// Negative stride writes bottom-up.
	reversed := indexing.Write(tensor, iotaTensor(backend, 4, 3), indexing.Full().Stride(-1))
	assert.Equal(t, [][]int32{{9, 10, 11}, {6, 7, 8}, {3, 4, 5}, {0, 1, 2}}, reversed.Value())

	// Fewer elements than rank: the unaddressed trailing axes take the
	// update's trailing dimensions.
	headRows := indexing.Write(tensor, tensors.FromValue(backend, []int32{-1, -2, -3}), indexing.Range(0, 2))
	assert.Equal(t, [][]int32{{-1, -2, -3}, {-1, -2, -3}, {6, 7, 8}, {9, 10, 11}}, headRows.Value())
}

func TestWriteScatter(t *testing.T) {
	backend := backends.New()
	defer backend.Finalize()
	tensor := iotaTensor(backend, 4, 3)

	rows := indexing.Array(tensors.FromValue(backend, []int32{0, 2}))

	// Array plus trailing stride-1 range: the range stays an offset, its
	// span folded into the scatter window.
	offsets := indexing.Write(tensor, tensors.FromValue(backend, [][]int32{{20, 21}, {22, 23}}),
		rows, indexing.Range(1, 3))
	assert.Equal(t, [][]int32{{0, 20, 21}, {3, 4, 5}, {6, 22, 23}, {9, 10, 11}}, offsets.Value())

	// Array plus strided range: the range is materialized as explicit
	// positions.
	strided := indexing.Write(tensor, tensors.FromValue(backend, [][]int32{{100, 101}, {102, 103}}),
		rows, indexing.Full().Stride(2))
	assert.Equal(t, [][]int32{{100, 1, 101}, {3, 4, 5}, {102, 7, 103}, {9, 10, 11}}, strided.Value())

	// Range before the array: materialized, keeping its leading position.
	columns := indexing.Write(tensor, tensors.FromValue(backend, [][]int32{{50, 51}, {52, 53}}),
		indexing.Range(1, 3), indexing.Array(tensors.FromValue(backend, []int32{0, 2})))
	assert.Equal(t, [][]int32{{0, 1, 2}, {50, 4, 51}, {52, 7, 53}, {9, 10, 11}}, columns.Value())

	// At and Array broadcast together element-wise.
	cells := indexing.Write(tensor, tensors.FromValue(backend, []int32{-1, -2}),
		indexing.At(3), indexing.Array(tensors.FromValue(backend, []int32{0, 2})))
	assert.Equal(t, [][]int32{{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, {-1, 10, -2}}, cells.Value())
}

func TestWriteScatterPlacement(t *testing.T) {
	backend := backends.New()
	defer backend.Finalize()
	tensor := iotaTensor(backend, 2, 3, 2)

	first := indexing.Array(tensors.FromValue(backend, []int32{0, 1}))
	second := indexing.Array(tensors.FromValue(backend, []int32{1, 0}))

	// Non-contiguous advanced indices: the update aligns with the
	// front-placed broadcast dimension, like the equivalent Read.
	read := indexing.Read(tensor, first, indexing.Full(), second)
	written := indexing.Write(tensor, read, first, indexing.Full(), second)
	assert.True(t, written.Equal(tensor))

	// Contiguous advanced indices: the update keeps the in-order layout.
	third := indexing.Array(tensors.FromValue(backend, []int32{2, 0}))
	contiguous := indexing.Write(tensor, tensors.FromValue(backend, [][]int32{{-1, -2}, {-3, -4}}),
		first, third, indexing.Full())
	assert.Equal(t, [][][]int32{
		{{0, 1}, {2, 3}, {-1, -2}},
		{{-3, -4}, {8, 9}, {10, 11}},
	}, contiguous.Value())
}

func TestRoundTrip(t *testing.T) {
	backend := backends.New()
	defer backend.Finalize()

	expressions := [][]indexing.Element{
		{indexing.At(1)},
		{indexing.At(-2)},
		{indexing.Full().Stride(-1)},
		{indexing.Range(1, 3)},
		{indexing.Range(0, -1).Stride(2), indexing.At(2)},
		{indexing.Ellipsis, indexing.At(0)},
		{indexing.Full(), indexing.Range(0, 2)},
	}
	tensor := iotaTensor(backend, 4, 3)
	for _, expression := range expressions {
		read := indexing.Read(tensor, expression...)
		written := indexing.Write(tensor, read, expression...)
		assert.Truef(t, written.Equal(tensor), "round trip failed for %v", expression)
	}

	// Advanced expressions (no duplicate indices) round trip too.
	tensor3 := iotaTensor(backend, 2, 3, 2)
	first := tensors.FromValue(backend, []int32{0, 1})
	second := tensors.FromValue(backend, []int32{1, 0})
	advanced := [][]indexing.Element{
		{indexing.Array(first)},
		{indexing.Array(first), indexing.Array(second), indexing.Full()},
		{indexing.Array(first), indexing.Full(), indexing.Array(second)},
		{indexing.Full(), indexing.Array(second)},
		{indexing.At(1), indexing.Array(second)},
	}
	for _, expression := range advanced {
		read := indexing.Read(tensor3, expression...)
		written := indexing.Write(tensor3, read, expression...)
		assert.Truef(t, written.Equal(tensor3), "round trip failed for %v", expression)
	}
}

func TestConcreteScenario(t *testing.T) {
	backend := backends.New()
	defer backend.Finalize()
	tensor := iotaTensor(backend, 4, 3)

	assert.Equal(t, []int32{3, 4, 5}, tensors.CopyFlatData[int32](indexing.Read(tensor, indexing.At(1))))

	tensor = indexing.Write(tensor, tensors.FromValue(backend, []int32{30, 40, 50}), indexing.At(1))
	assert.Equal(t, []int32{30, 40, 50}, tensors.CopyFlatData[int32](indexing.Read(tensor, indexing.At(1))))

	column := indexing.Read(tensor, indexing.Range(1, 3), indexing.At(0))
	assert.Equal(t, []int32{30, 6}, tensors.CopyFlatData[int32](column))
}

func TestPreconditions(t *testing.T) {
	backend := backends.New()
	defer backend.Finalize()
	tensor := iotaTensor(backend, 4, 3)
	update := tensors.FromScalar(backend, int32(0))

	// More than one Ellipsis.
	require.Panics(t, func() {
		indexing.Read(tensor, indexing.Ellipsis, indexing.At(0), indexing.Ellipsis)
	})
	// More addressed axes than rank.
	require.Panics(t, func() {
		indexing.Read(tensor, indexing.At(0), indexing.At(0), indexing.At(0))
	})
	require.Panics(t, func() {
		indexing.Read(tensors.FromScalar(backend, int32(1)), indexing.At(0))
	})
	// NewAxis in a write expression.
	require.Panics(t, func() {
		indexing.Write(tensor, update, indexing.NewAxis)
	})
	// Update dtype mismatch.
	require.Panics(t, func() {
		indexing.Write(tensor, tensors.FromScalar(backend, float32(0)), indexing.At(0))
	})
	// Non-integer Array indices.
	require.Panics(t, func() {
		indexing.Array(tensors.FromValue(backend, []float32{1}))
	})
}
