package tensors_test

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/ndarray/backends"
	_ "github.com/gomlx/ndarray/backends/simplego"
	"github.com/gomlx/ndarray/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromValue(t *testing.T) {
	backend := backends.New()
	defer backend.Finalize()

	scalar := tensors.FromValue(backend, float32(7))
	assert.True(t, scalar.IsScalar())
	assert.Equal(t, dtypes.Float32, scalar.DType())
	assert.Equal(t, float32(7), tensors.ToScalar[float32](scalar))

	matrix := tensors.FromValue(backend, [][]int32{{1, 2}, {3, 4}, {5, 6}})
	assert.Equal(t, []int{3, 2}, matrix.Shape().Dimensions)
	assert.Equal(t, [][]int32{{1, 2}, {3, 4}, {5, 6}}, matrix.Value())
	assert.Equal(t, []int32{1, 2, 3, 4, 5, 6}, tensors.CopyFlatData[int32](matrix))

	cube := tensors.FromValue(backend, [][][]float64{{{1}, {2}}, {{3}, {4}}})
	assert.Equal(t, []int{2, 2, 1}, cube.Shape().Dimensions)
	assert.Equal(t, 4, cube.Size())

	// Ragged inner slices are rejected.
	require.Panics(t, func() { tensors.FromValue(backend, [][]int32{{1, 2}, {3}}) })
}

func TestFromFlatDataAndDimensions(t *testing.T) {
	backend := backends.New()
	defer backend.Finalize()

	tensor := tensors.FromFlatDataAndDimensions(backend, []float32{0, 1, 2, 3, 4, 5}, 2, 3)
	assert.Equal(t, [][]float32{{0, 1, 2}, {3, 4, 5}}, tensor.Value())
	require.Panics(t, func() {
		tensors.FromFlatDataAndDimensions(backend, []float32{0, 1, 2}, 2, 3)
	})
}

func TestBFloat16(t *testing.T) {
	backend := backends.New()
	defer backend.Finalize()

	flat := []bfloat16.BFloat16{
		bfloat16.FromFloat32(1), bfloat16.FromFloat32(2),
		bfloat16.FromFloat32(3), bfloat16.FromFloat32(4),
	}
	tensor := tensors.FromFlatDataAndDimensions(backend, flat, 2, 2)
	assert.Equal(t, dtypes.BFloat16, tensor.DType())

	// Data movement preserves the raw 16-bit values.
	reversed := tensor.Slice([]int{1, 0}, []int{-1, 2}, []int{-1, 1})
	got := tensors.CopyFlatData[bfloat16.BFloat16](reversed)
	assert.Equal(t, float32(3), got[0].Float32())
	assert.Equal(t, float32(2), got[3].Float32())
}

func TestEqualAndFinalize(t *testing.T) {
	backend := backends.New()
	defer backend.Finalize()

	a := tensors.FromValue(backend, []int64{1, 2, 3})
	b := tensors.FromValue(backend, []int64{1, 2, 3})
	c := tensors.FromValue(backend, []int64{1, 2, 4})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(tensors.FromValue(backend, [][]int64{{1, 2, 3}})))

	a.FinalizeAll()
	require.Panics(t, func() { a.Value() })
	a.FinalizeAll() // Idempotent.
}

func TestReshapeSqueezeExpand(t *testing.T) {
	backend := backends.New()
	defer backend.Finalize()

	tensor := tensors.FromFlatDataAndDimensions(backend, []int32{0, 1, 2, 3, 4, 5}, 2, 3)

	reshaped := tensor.Reshape(3, 2)
	assert.Equal(t, [][]int32{{0, 1}, {2, 3}, {4, 5}}, reshaped.Value())

	expanded := tensor.ExpandDims(0, -1)
	assert.Equal(t, []int{1, 2, 3, 1}, expanded.Shape().Dimensions)

	squeezed := expanded.Squeeze()
	assert.Equal(t, []int{2, 3}, squeezed.Shape().Dimensions)

	squeezedOne := expanded.Squeeze(-1)
	assert.Equal(t, []int{1, 2, 3}, squeezedOne.Shape().Dimensions)

	require.Panics(t, func() { tensor.Squeeze(0) }) // Dimension 2, not 1.
	require.Panics(t, func() { tensor.Reshape(7) })
}

func TestPrimitiveOps(t *testing.T) {
	backend := backends.New()
	defer backend.Finalize()

	tensor := tensors.FromFlatDataAndDimensions(backend, []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, 4, 3)

	sliced := tensor.Slice([]int{1, 0}, []int{3, 3}, []int{1, 1})
	assert.Equal(t, [][]int32{{3, 4, 5}, {6, 7, 8}}, sliced.Value())

	taken := tensor.Take(tensors.FromValue(backend, []int32{-1, 0}), 0)
	assert.Equal(t, [][]int32{{9, 10, 11}, {0, 1, 2}}, taken.Value())

	gathered := tensor.Gather(
		[]*tensors.Tensor{tensors.FromValue(backend, []int32{2, 0})},
		[]int{0}, []int{1, 3})
	assert.Equal(t, []int{2, 1, 3}, gathered.Shape().Dimensions)
	assert.Equal(t, []int32{6, 7, 8, 0, 1, 2}, tensors.CopyFlatData[int32](gathered))

	scattered := tensor.Scatter(
		[]*tensors.Tensor{tensors.FromValue(backend, []int32{1})},
		tensors.FromValue(backend, [][][]int32{{{-1, -2, -3}}}),
		[]int{0})
	assert.Equal(t, [][]int32{{0, 1, 2}, {-1, -2, -3}, {6, 7, 8}, {9, 10, 11}}, scattered.Value())

	updated := tensor.SliceUpdate(tensors.FromValue(backend, int32(9)),
		[]int{0, 0}, []int{4, 3}, []int{3, 2})
	assert.Equal(t, [][]int32{{9, 1, 9}, {3, 4, 5}, {6, 7, 8}, {9, 10, 9}}, updated.Value())

	broadcast := tensors.FromValue(backend, []int32{1, 2, 3}).BroadcastTo(2, 3)
	assert.Equal(t, [][]int32{{1, 2, 3}, {1, 2, 3}}, broadcast.Value())

	concat := sliced.Concatenate(0, tensors.FromValue(backend, [][]int32{{100, 101, 102}}))
	assert.Equal(t, [][]int32{{3, 4, 5}, {6, 7, 8}, {100, 101, 102}}, concat.Value())
}
