package indexing

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/ndarray/types/tensors"
	"github.com/gomlx/ndarray/types/xslices"
)

// Read returns the sub-tensor of t addressed by the index expression, the
// NumPy t[elements...]. It always returns a new tensor, t is not consumed.
//
// It panics on a malformed expression (more than one Ellipsis, more
// addressed axes than t's rank, a zero stride). Out-of-range At or Array
// values are undefined behavior, delegated to the backend primitives.
func Read(t *tensors.Tensor, elements ...Element) *tensors.Tensor {
	t.AssertValid()
	rank := t.Rank()
	dims := t.Shape().Dimensions
	plan := &scratch{}

	// Fast path: a single element addresses axis 0 with one primitive call.
	if len(elements) == 1 {
		switch element := elements[0].(type) {
		case ellipsisElement:
			return t.Reshape(dims...)
		case newAxisElement:
			return t.ExpandDims(0)
		case pointElement:
			checkAddressedAxes(1, rank)
			index := plan.track(tensors.FromScalar(t.Backend(), int32(resolveSign(element.index, dims[0]))))
			result := t.Take(index, 0)
			plan.releaseExcept(result)
			return result
		case SliceSpec:
			checkAddressedAxes(1, rank)
			starts, limits, strides := fullSliceParams(dims)
			starts[0], limits[0], strides[0] = element.sliceParams(dims[0])
			return t.Slice(starts, limits, strides)
		case arrayElement:
			checkAddressedAxes(1, rank)
			return t.Take(element.tensor, 0)
		}
	}

	expanded := expandEllipsis(elements, rank)

	// Placement analysis: when advanced (At/Array) elements are separated by
	// a basic element, their combined dimensions move to the front of the
	// output. Contiguous advanced elements keep their position.
	var haveAdvanced, haveBasicAfter, gatherFirst, haveArray bool
	lastAdvanced := -1
	for pos, element := range expanded {
		switch element.(type) {
		case pointElement, arrayElement:
			if haveAdvanced && haveBasicAfter {
				gatherFirst = true
			}
			haveAdvanced = true
			lastAdvanced = pos
			if _, ok := element.(arrayElement); ok {
				haveArray = true
			}
		case SliceSpec, newAxisElement:
			if haveAdvanced {
				haveBasicAfter = true
			}
		}
	}

	cur := t
	var remaining []Element
	if haveArray {
		// One gather consumes every element up to the last advanced one;
		// what it leaves behind is re-addressed by the residual expression.
		region := expanded[:lastAdvanced+1]
		var maxDims int
		cur, maxDims = gatherRegion(t, region, gatherFirst, plan)
		remaining = make([]Element, 0, len(expanded)+maxDims)
		if gatherFirst {
			for range maxDims {
				remaining = append(remaining, Full())
			}
			for _, element := range region {
				switch element.(type) {
				case newAxisElement:
					remaining = append(remaining, NewAxis)
				case SliceSpec:
					remaining = append(remaining, Full())
				}
			}
		} else {
			appendedAdvanced := false
			for _, element := range region {
				switch element.(type) {
				case newAxisElement:
					remaining = append(remaining, NewAxis)
				case SliceSpec:
					remaining = append(remaining, Full())
				default:
					if !appendedAdvanced {
						for range maxDims {
							remaining = append(remaining, Full())
						}
						appendedAdvanced = true
					}
				}
			}
		}
		remaining = append(remaining, expanded[lastAdvanced+1:]...)
	} else {
		remaining = expanded
	}

	// Residual slice: basic elements (and, with no Array present, At
	// elements) collapse to one primitive slice over cur.
	curDims := cur.Shape().Dimensions
	starts, limits, strides := fullSliceParams(curDims)
	slicingNeeded := false
	squeezeNeeded := false
	newAxisPresent := false
	axis := 0
	for _, element := range remaining {
		switch element := element.(type) {
		case newAxisElement:
			newAxisPresent = true
		case pointElement:
			index := resolveSign(element.index, curDims[axis])
			starts[axis], limits[axis], strides[axis] = index, index+1, 1
			slicingNeeded = true
			squeezeNeeded = true
			axis++
		case SliceSpec:
			if !element.IsFull() {
				starts[axis], limits[axis], strides[axis] = element.sliceParams(curDims[axis])
				slicingNeeded = true
			}
			axis++
		}
	}
	if slicingNeeded {
		cur = plan.track(cur.Slice(starts, limits, strides))
	}

	// Shape repair: insert NewAxis dimensions and drop the length-1 axes
	// left by At elements, in one reshape.
	if squeezeNeeded || newAxisPresent {
		curDims = cur.Shape().Dimensions
		outDims := make([]int, 0, len(curDims)+len(remaining))
		axis = 0
		for _, element := range remaining {
			switch element.(type) {
			case newAxisElement:
				outDims = append(outDims, 1)
			case pointElement:
				axis++
			case SliceSpec:
				outDims = append(outDims, curDims[axis])
				axis++
			}
		}
		outDims = append(outDims, curDims[axis:]...)
		cur = plan.track(cur.Reshape(outDims...))
	}

	if cur == t {
		// Nothing to do, but Read always returns a fresh handle.
		cur = t.Reshape(dims...)
	}
	plan.releaseExcept(cur)
	return cur
}

// gatherRegion issues the single gather all the advanced elements of the
// expression collapse into. The region covers the expression from its start
// through its last advanced element; NewAxis elements inside it are ignored
// (they are re-inserted by the caller's shape repair).
//
// Per element it builds one integer index tensor: At becomes a sign-resolved
// scalar, a SliceSpec becomes the explicit range of positions it addresses,
// and an Array is used as is. The tensors are reshaped so they broadcast
// into one coherent index shape: array/point dimensions occupy maxDims
// adjacent axes and each range occupies one axis of its own, ranges trailing
// when gatherFirst (fixed leading slots otherwise).
//
// It returns the gathered tensor, shaped index-shape ++ unconsumed trailing
// dimensions of t, and maxDims, the number of leading broadcast dimensions
// the advanced elements produced.
func gatherRegion(t *tensors.Tensor, region []Element, gatherFirst bool, plan *scratch) (*tensors.Tensor, int) {
	backend := t.Backend()
	dims := t.Shape().Dimensions

	type indexEntry struct {
		tensor   *tensors.Tensor
		isRange  bool
		rangeOrd int
	}
	entries := make([]indexEntry, 0, len(region))
	numRanges, maxDims := 0, 0
	axis := 0
	for _, element := range region {
		switch element := element.(type) {
		case newAxisElement:
			continue
		case pointElement:
			index := plan.track(tensors.FromScalar(backend, int32(resolveSign(element.index, dims[axis]))))
			entries = append(entries, indexEntry{tensor: index})
		case arrayElement:
			entries = append(entries, indexEntry{tensor: element.tensor})
			maxDims = max(maxDims, element.tensor.Rank())
		case SliceSpec:
			start, _, stride := element.sliceParams(dims[axis])
			span := element.spanOnAxis(dims[axis])
			positions := make([]int32, span)
			for ii := range positions {
				positions[ii] = int32(start + ii*stride)
			}
			arange := plan.track(tensors.FromFlatDataAndDimensions(backend, positions, span))
			entries = append(entries, indexEntry{tensor: arange, isRange: true, rangeOrd: numRanges})
			numRanges++
		}
		axis++
	}

	idxRank := maxDims + numRanges
	indices := make([]*tensors.Tensor, len(entries))
	for ii, entry := range entries {
		switch {
		case entry.isRange:
			slot := entry.rangeOrd
			if gatherFirst {
				slot = maxDims + entry.rangeOrd
			}
			shape := xslices.SliceWithValue(idxRank, 1)
			shape[slot] = entry.tensor.Shape().Dimensions[0]
			indices[ii] = plan.track(entry.tensor.Reshape(shape...))
		case gatherFirst && numRanges > 0 && entry.tensor.Rank() > 0:
			// Push the array's dimensions in front of the range slots.
			shape := append(entry.tensor.Shape().Clone().Dimensions, xslices.SliceWithValue(numRanges, 1)...)
			indices[ii] = plan.track(entry.tensor.Reshape(shape...))
		default:
			// Scalars and, when ranges trail nothing, arrays broadcast
			// naturally into their trailing slots.
			indices[ii] = entry.tensor
		}
	}

	numIndexed := len(entries)
	axes := xslices.Iota(0, numIndexed)
	sliceSizes := make([]int, len(dims))
	for ii := range sliceSizes {
		if ii < numIndexed {
			sliceSizes[ii] = 1
		} else {
			sliceSizes[ii] = dims[ii]
		}
	}
	gathered := plan.track(t.Gather(indices, axes, sliceSizes))
	squeezed := plan.track(gathered.Squeeze(xslices.Iota(idxRank, numIndexed)...))
	return squeezed, maxDims
}

// fullSliceParams returns the (starts, limits, strides) triples covering the
// given dimensions whole.
func fullSliceParams(dims []int) (starts, limits, strides []int) {
	starts = make([]int, len(dims))
	limits = append([]int{}, dims...)
	strides = xslices.SliceWithValue(len(dims), 1)
	return
}

// checkAddressedAxes panics if the expression addresses more axes than the
// tensor has.
func checkAddressedAxes(addressed, rank int) {
	if addressed > rank {
		exceptions.Panicf("indexing: expression addresses %d axes, but the tensor has rank %d", addressed, rank)
	}
}
