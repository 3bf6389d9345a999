package xslices

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHelpers(t *testing.T) {
	assert.Equal(t, []int{2, 3, 4}, Iota(2, 3))
	assert.Equal(t, []float32{0, 1}, Iota(float32(0), 2))
	assert.Equal(t, []int{1, 1, 1}, SliceWithValue(3, 1))

	s := make([]int, 2)
	FillSlice(s, 7)
	assert.Equal(t, []int{7, 7}, s)

	assert.Equal(t, []int{1, 4, 9}, Map([]int{1, 2, 3}, func(x int) int { return x * x }))

	assert.Equal(t, 3, At([]int{1, 2, 3}, -1))
	assert.Equal(t, 1, At([]int{1, 2, 3}, 0))
	assert.Equal(t, 3, Last([]int{1, 2, 3}))

	assert.Equal(t, 2, AdjustAxisToRank(-1, 3))
	assert.Equal(t, 1, AdjustAxisToRank(1, 3))
}
