// Package indexing translates NumPy-style mixed index expressions into calls
// against the primitive tensor operations of package tensors.
//
// An index expression is an ordered sequence of Elements, one per axis
// position (plus the Ellipsis and NewAxis meta-elements), combining:
//
//   - At(i): selects one position of an axis, removing it. Negative values
//     count from the end of the axis.
//   - Range(...), RangeFrom(...), RangeTo(...), Full(), optionally with
//     .Stride(k): a NumPy [start:stop:stride] range over one axis.
//   - Ellipsis: expands to as many Full() ranges as needed to address the
//     axes no other element addresses.
//   - NewAxis: inserts a size-1 axis (reads only).
//   - Array(t): an integer tensor of positions to gather along the axis;
//     multiple Array elements broadcast against each other.
//
// Read and Write are the two entry points. Example, with t of shape [4, 3]:
//
//	row := indexing.Read(t, indexing.At(1))                   // shape [3]
//	rev := indexing.Read(t, indexing.Full().Stride(-1))       // rows reversed
//	sub := indexing.Read(t, indexing.Range(1, 3), indexing.At(0))
//	t2 := indexing.Write(t, update, indexing.At(1))           // t2 rebinds t
//
// Out-of-range At and Array values are not validated here: behavior is
// whatever the backend primitives do (see backends.Backend).
package indexing

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/ndarray/types/tensors"
)

// Element is one operand of an index expression: Ellipsis, NewAxis, At,
// Array, or a SliceSpec. It is a closed interface, no other implementations
// exist.
type Element interface {
	fmt.Stringer

	// indexElement limits implementations to this package.
	indexElement()
}

type ellipsisElement struct{}

func (ellipsisElement) indexElement()  {}
func (ellipsisElement) String() string { return "Ellipsis" }

// Ellipsis stands for as many Full() ranges as needed to address the axes
// not addressed by the other elements of the expression. At most one per
// expression.
var Ellipsis Element = ellipsisElement{}

type newAxisElement struct{}

func (newAxisElement) indexElement()  {}
func (newAxisElement) String() string { return "NewAxis" }

// NewAxis inserts a new size-1 axis at its position. It is only valid when
// reading, a write expression must not contain it.
var NewAxis Element = newAxisElement{}

type pointElement struct {
	index int
}

func (pointElement) indexElement()    {}
func (p pointElement) String() string { return fmt.Sprintf("At(%d)", p.index) }

// At selects a single position of an axis, removing the axis from the
// result. Negative values count from the end of the axis: At(-1) is the last
// position.
func At(index int) Element {
	return pointElement{index: index}
}

type arrayElement struct {
	tensor *tensors.Tensor
}

func (arrayElement) indexElement()    {}
func (a arrayElement) String() string { return fmt.Sprintf("Array(%s)", a.tensor.Shape()) }

// Array uses an integer tensor of arbitrary shape as positions to gather
// along the axis. Several Array (and At) elements in one expression
// broadcast against each other, NumPy-style. Negative values count from the
// end of the axis.
func Array(indices *tensors.Tensor) Element {
	indices.AssertValid()
	if !indices.DType().IsInt() {
		exceptions.Panicf("indexing.Array: indices must have an integer dtype, got %s", indices.Shape())
	}
	return arrayElement{tensor: indices}
}

// SliceSpec is a NumPy [start:stop:stride] range over one axis: start and
// stop are optional and axis-relative (negative values count from the end of
// the axis), stride defaults to 1 and must not be 0. The zero value is
// Full(), the range covering the whole axis.
//
// SliceSpec values are never mutated: Stride returns a new value.
type SliceSpec struct {
	start, stop, stride          int
	hasStart, hasStop, hasStride bool
}

func (SliceSpec) indexElement() {}

func (s SliceSpec) String() string {
	format := func(value int, has bool) string {
		if !has {
			return ""
		}
		return fmt.Sprintf("%d", value)
	}
	return fmt.Sprintf("[%s:%s:%s]",
		format(s.start, s.hasStart), format(s.stop, s.hasStop), format(s.stride, s.hasStride))
}

// Full returns the range covering a whole axis, the ":" of NumPy.
func Full() SliceSpec { return SliceSpec{} }

// Range returns the range [start, stop), the "start:stop" of NumPy.
func Range(start, stop int) SliceSpec {
	return SliceSpec{start: start, hasStart: true, stop: stop, hasStop: true}
}

// RangeFrom returns the range from start to the end of the axis, the
// "start:" of NumPy.
func RangeFrom(start int) SliceSpec {
	return SliceSpec{start: start, hasStart: true}
}

// RangeTo returns the range from the beginning of the axis to stop
// (exclusive), the ":stop" of NumPy.
func RangeTo(stop int) SliceSpec {
	return SliceSpec{stop: stop, hasStop: true}
}

// Stride returns a copy of the range stepping by the given stride, which
// must not be 0. A negative stride walks the axis backwards, and then the
// default start and stop cover the whole axis reversed.
func (s SliceSpec) Stride(stride int) SliceSpec {
	if stride == 0 {
		exceptions.Panicf("indexing.SliceSpec: stride must not be 0")
	}
	s.stride = stride
	s.hasStride = true
	return s
}

// StrideOrDefault returns the stride, defaulting to 1.
func (s SliceSpec) StrideOrDefault() int {
	if !s.hasStride {
		return 1
	}
	return s.stride
}

// StartForAxis returns the start for an axis of length n: the set value, or
// 0 (n-1 for negative strides) if unset. The result may be negative
// (axis-relative).
func (s SliceSpec) StartForAxis(n int) int {
	if s.hasStart {
		return s.start
	}
	if s.StrideOrDefault() < 0 {
		return n - 1
	}
	return 0
}

// StopForAxis returns the exclusive stop for an axis of length n: the set
// value, or n (-n-1 for negative strides) if unset. The result may be
// negative (axis-relative).
func (s SliceSpec) StopForAxis(n int) int {
	if s.hasStop {
		return s.stop
	}
	if s.StrideOrDefault() < 0 {
		return -n - 1
	}
	return n
}

// AbsoluteStart is StartForAxis with negative results shifted by +n.
func (s SliceSpec) AbsoluteStart(n int) int {
	start := s.StartForAxis(n)
	if start < 0 {
		start += n
	}
	return start
}

// AbsoluteStop is StopForAxis with negative results shifted by +n. Note the
// default stop for a negative stride resolves to -1, one before position 0.
func (s SliceSpec) AbsoluteStop(n int) int {
	stop := s.StopForAxis(n)
	if stop < 0 {
		stop += n
	}
	return stop
}

// IsFull returns whether the range covers the whole axis in natural order,
// for any axis length.
func (s SliceSpec) IsFull() bool {
	if s.hasStride && s.stride != 1 {
		return false
	}
	if s.hasStart && s.start != 0 {
		return false
	}
	return !s.hasStop
}

// sliceParams resolves the range against an axis of length n to a
// (start, limit, stride) triple accepted by the backend Slice/SliceUpdate
// primitives: signs resolved, out-of-range bounds clamped, and empty ranges
// normalized to (0, 0, 1).
func (s SliceSpec) sliceParams(n int) (start, limit, stride int) {
	stride = s.StrideOrDefault()
	start, limit = s.AbsoluteStart(n), s.AbsoluteStop(n)
	if stride > 0 {
		start = clamp(start, 0, n)
		limit = clamp(limit, start, n)
	} else {
		start = clamp(start, -1, n-1)
		limit = clamp(limit, -1, start)
	}
	if spanSize(start, limit, stride) == 0 {
		return 0, 0, 1
	}
	return
}

// spanOnAxis returns the number of positions the range addresses on an axis
// of length n.
func (s SliceSpec) spanOnAxis(n int) int {
	return spanSize(s.sliceParams(n))
}

func clamp(value, low, high int) int {
	return min(max(value, low), high)
}

// concatDims returns the concatenation of dimension lists, always a fresh
// slice.
func concatDims(dimsList ...[]int) []int {
	total := 0
	for _, dims := range dimsList {
		total += len(dims)
	}
	out := make([]int, 0, total)
	for _, dims := range dimsList {
		out = append(out, dims...)
	}
	return out
}

// spanSize returns the number of positions a resolved (start, limit, stride)
// triple addresses.
func spanSize(start, limit, stride int) int {
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

// resolveSign converts a negative axis-relative position to its absolute
// counterpart for an axis of length n. Out-of-range values are returned
// unchanged, they are undefined behavior at the primitive layer.
func resolveSign(index, n int) int {
	if index < 0 {
		return index + n
	}
	return index
}

// scratch tracks the intermediate tensors of one Read or Write plan so they
// can be released as soon as the plan is done, keeping only the result
// alive.
type scratch struct {
	created []*tensors.Tensor
}

// track registers an intermediate tensor and returns it.
func (s *scratch) track(t *tensors.Tensor) *tensors.Tensor {
	s.created = append(s.created, t)
	return t
}

// releaseExcept finalizes every tracked tensor except result.
func (s *scratch) releaseExcept(result *tensors.Tensor) {
	for _, t := range s.created {
		if t != result {
			t.FinalizeAll()
		}
	}
	s.created = nil
}
