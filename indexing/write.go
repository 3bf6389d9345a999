package indexing

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/ndarray/types/shapes"
	"github.com/gomlx/ndarray/types/tensors"
	"github.com/gomlx/ndarray/types/xslices"
)

// Write returns a copy of t with the region addressed by the index
// expression overwritten by update, the NumPy t[elements...] = update.
// Tensors are immutable, so "in-place" assignment means rebinding the
// caller's handle:
//
//	t = indexing.Write(t, update, indexing.At(1))
//
// The update broadcasts to the addressed region. It panics on a malformed
// expression (more than one Ellipsis, more addressed axes than t's rank, a
// zero stride, a NewAxis element, a dtype mismatch between t and update).
// Out-of-range At or Array values are undefined behavior, delegated to the
// backend primitives.
func Write(t, update *tensors.Tensor, elements ...Element) *tensors.Tensor {
	t.AssertValid()
	update.AssertValid()
	if t.DType() != update.DType() {
		exceptions.Panicf("indexing.Write: update dtype (%s) must match target dtype (%s)",
			update.Shape(), t.Shape())
	}
	rank := t.Rank()
	dims := t.Shape().Dimensions
	nonNewAxis := 0
	for _, element := range elements {
		switch element.(type) {
		case newAxisElement:
			exceptions.Panicf("indexing.Write: NewAxis is not allowed in a write expression")
		case ellipsisElement:
		default:
			nonNewAxis++
		}
	}
	checkAddressedAxes(nonNewAxis, rank)

	plan := &scratch{}
	u := stripLeadingOnes(update, plan)

	var result *tensors.Tensor
	switch {
	case len(elements) == 0:
		result = u.BroadcastTo(dims...)
	case len(elements) == 1:
		result = writeSingle(t, u, elements[0], plan)
	default:
		expanded := expandEllipsis(elements, rank)
		haveArray := slices.ContainsFunc(expanded, func(element Element) bool {
			_, ok := element.(arrayElement)
			return ok
		})
		if haveArray {
			result = scatterWrite(t, u, expanded, plan)
		} else {
			result = sliceUpdateWrite(t, u, expanded, plan)
		}
	}
	plan.releaseExcept(result)
	return result
}

// writeSingle handles the single-element shortcuts: whole-tensor overwrite,
// one slice-update, or a degenerate one-axis scatter.
func writeSingle(t, u *tensors.Tensor, element Element, plan *scratch) *tensors.Tensor {
	dims := t.Shape().Dimensions
	backend := t.Backend()
	switch element := element.(type) {
	case ellipsisElement:
		return u.BroadcastTo(dims...)

	case SliceSpec:
		starts, limits, strides := fullSliceParams(dims)
		starts[0], limits[0], strides[0] = element.sliceParams(dims[0])
		return t.SliceUpdate(u, starts, limits, strides)

	case pointElement:
		// Scatter one row: the update broadcasts to the trailing shape and
		// gains the length-1 axis the scatter window expects.
		index := plan.track(tensors.FromScalar(backend, int32(resolveSign(element.index, dims[0]))))
		broadcast := plan.track(u.BroadcastTo(dims[1:]...))
		window := plan.track(broadcast.Reshape(append([]int{1}, dims[1:]...)...))
		return t.Scatter([]*tensors.Tensor{index}, window, []int{0})

	case arrayElement:
		indices := element.tensor
		idxDims := indices.Shape().Dimensions
		broadcast := plan.track(u.BroadcastTo(concatDims(idxDims, dims[1:])...))
		windowShape := concatDims(idxDims, append([]int{1}, dims[1:]...))
		window := plan.track(broadcast.Reshape(windowShape...))
		return t.Scatter([]*tensors.Tensor{indices}, window, []int{0})
	}
	panic("unreachable") // Ellipsis/NewAxis handled by the caller.
}

// sliceUpdateWrite collapses an array-free expression to one slice-update:
// one (start, limit, stride) triple per axis, with At elements becoming
// length-1 spans. The update's trailing axes are aligned right-to-left with
// the addressed (and unaddressed trailing) axes of t; At elements consume no
// update axis.
func sliceUpdateWrite(t, u *tensors.Tensor, expanded []Element, plan *scratch) *tensors.Tensor {
	dims := t.Shape().Dimensions
	rank := len(dims)
	addressed := len(expanded)
	starts, limits, strides := fullSliceParams(dims)
	upDims := u.Shape().Dimensions
	upReshape := make([]int, rank)
	upAxis := len(upDims) - 1
	consumeUpdateAxis := func() int {
		if upAxis < 0 {
			return 1
		}
		dim := upDims[upAxis]
		upAxis--
		return dim
	}
	for axis := rank - 1; axis >= addressed; axis-- {
		upReshape[axis] = consumeUpdateAxis()
	}
	for axis := addressed - 1; axis >= 0; axis-- {
		switch element := expanded[axis].(type) {
		case SliceSpec:
			starts[axis], limits[axis], strides[axis] = element.sliceParams(dims[axis])
			upReshape[axis] = consumeUpdateAxis()
		case pointElement:
			index := resolveSign(element.index, dims[axis])
			starts[axis], limits[axis], strides[axis] = index, index+1, 1
			upReshape[axis] = 1
		}
	}
	if upAxis >= 0 {
		exceptions.Panicf("indexing.Write: update shape %s has more dimensions than the %d axes the expression addresses",
			u.Shape(), rank)
	}
	if !slices.Equal(upReshape, upDims) {
		u = plan.track(u.Reshape(upReshape...))
	}
	return t.SliceUpdate(u, starts, limits, strides)
}

// scatterWrite builds the scatter plan for an expression with at least one
// Array element: one integer index tensor per expression element, the
// update broadcast to the addressed region and reshaped to the window layout
// the scatter primitive expects.
func scatterWrite(t, u *tensors.Tensor, expanded []Element, plan *scratch) *tensors.Tensor {
	backend := t.Backend()
	dims := t.Shape().Dimensions
	rank := len(dims)
	addressed := len(expanded)

	// Placement: as in Read, advanced elements separated by a range move
	// their combined dimensions to the front of the index shape.
	var haveAdvanced, haveBasicAfter, arraysFirst bool
	maxDims := 0
	for _, element := range expanded {
		switch element := element.(type) {
		case pointElement, arrayElement:
			if haveAdvanced && haveBasicAfter {
				arraysFirst = true
			}
			haveAdvanced = true
			if array, ok := element.(arrayElement); ok {
				maxDims = max(maxDims, array.tensor.Rank())
			}
		case SliceSpec:
			if haveAdvanced {
				haveBasicAfter = true
			}
		}
	}

	// A stride-1 range in the trailing run after the last advanced or
	// strided element keeps its extent folded into the scatter window and
	// contributes only its start offset. Every other range must materialize
	// as an explicit index tensor with an index-shape slot of its own.
	materialize := make([]bool, addressed)
	numMaterialized := 0
	numPre := 0 // materialized ranges before the first advanced element
	blockedLater := false
	for axis := addressed - 1; axis >= 0; axis-- {
		switch element := expanded[axis].(type) {
		case SliceSpec:
			if element.StrideOrDefault() != 1 {
				materialize[axis] = true
				blockedLater = true
			} else if blockedLater {
				materialize[axis] = true
			}
			if materialize[axis] {
				numMaterialized++
			}
		case pointElement, arrayElement:
			blockedLater = true
		}
	}
	firstAdvanced := addressed
	for axis, element := range expanded {
		switch element.(type) {
		case pointElement, arrayElement:
			firstAdvanced = min(firstAdvanced, axis)
		}
	}
	for axis := 0; axis < firstAdvanced; axis++ {
		if materialize[axis] {
			numPre++
		}
	}
	idxRank := maxDims + numMaterialized
	numPost := numMaterialized - numPre

	// Build one index tensor per element, shaped to broadcast into the
	// common index shape with each materialized range in its own slot.
	indices := make([]*tensors.Tensor, addressed)
	rangeOrd := 0
	for axis, element := range expanded {
		switch element := element.(type) {
		case pointElement:
			indices[axis] = plan.track(tensors.FromScalar(backend, int32(resolveSign(element.index, dims[axis]))))
		case arrayElement:
			array := element.tensor
			arrayRank := array.Rank()
			var shape []int
			if arraysFirst {
				if numMaterialized > 0 && arrayRank > 0 {
					shape = append(array.Shape().Clone().Dimensions, xslices.SliceWithValue(numMaterialized, 1)...)
				}
			} else if numPost > 0 && arrayRank > 0 {
				shape = xslices.SliceWithValue(numPre, 1)
				shape = append(shape, array.Shape().Dimensions...)
				shape = append(shape, xslices.SliceWithValue(numPost, 1)...)
			}
			if shape == nil {
				indices[axis] = array
			} else {
				indices[axis] = plan.track(array.Reshape(shape...))
			}
		case SliceSpec:
			if !materialize[axis] {
				start, _, _ := element.sliceParams(dims[axis])
				indices[axis] = plan.track(tensors.FromScalar(backend, int32(start)))
				continue
			}
			start, _, stride := element.sliceParams(dims[axis])
			span := element.spanOnAxis(dims[axis])
			positions := make([]int32, span)
			for ii := range positions {
				positions[ii] = int32(start + ii*stride)
			}
			slot := rangeOrd
			if arraysFirst {
				slot = maxDims + rangeOrd
			} else if rangeOrd >= numPre {
				slot = numPre + maxDims + (rangeOrd - numPre)
			}
			shape := xslices.SliceWithValue(idxRank, 1)
			shape[slot] = span
			indices[axis] = plan.track(tensors.FromFlatDataAndDimensions(backend, positions, shape...))
			rangeOrd++
		}
	}

	// The update broadcasts against the shape a Read of the same expression
	// would produce: index shape, then offset-only spans, then the
	// unaddressed trailing axes. The scatter window re-inserts the length-1
	// axes for the indexed positions.
	idxDimsList := xslices.Map(indices, func(index *tensors.Tensor) []int {
		return index.Shape().Dimensions
	})
	idxShape, err := shapes.BroadcastDimensions(idxDimsList...)
	if err != nil {
		exceptions.Panicf("indexing.Write: Array index shapes do not broadcast together: %+v", err)
	}
	window := make([]int, rank)
	var spans []int
	for axis := range window {
		window[axis] = 1
		if axis >= addressed {
			window[axis] = dims[axis]
			spans = append(spans, dims[axis])
			continue
		}
		if element, ok := expanded[axis].(SliceSpec); ok && !materialize[axis] {
			window[axis] = element.spanOnAxis(dims[axis])
			spans = append(spans, window[axis])
		}
	}
	broadcast := plan.track(u.BroadcastTo(concatDims(idxShape, spans)...))
	reshaped := plan.track(broadcast.Reshape(concatDims(idxShape, window)...))
	return t.Scatter(indices, reshaped, xslices.Iota(0, addressed))
}

// stripLeadingOnes drops the leading size-1 axes of the update, so its
// remaining axes align with the trailing axes of whatever region it is
// broadcast to.
func stripLeadingOnes(u *tensors.Tensor, plan *scratch) *tensors.Tensor {
	dims := u.Shape().Dimensions
	strip := 0
	for strip < len(dims) && dims[strip] == 1 {
		strip++
	}
	if strip == 0 {
		return u
	}
	return plan.track(u.Reshape(dims[strip:]...))
}
