package indexing

import (
	"github.com/gomlx/exceptions"
)

// expandEllipsis replaces the (at most one) Ellipsis of the expression with
// one Full() range per axis it must absorb, so that the result is
// ellipsis-free. It also validates that the expression does not address more
// axes than the rank provides.
//
// The returned expression addresses at most rank axes with its non-NewAxis
// elements, exactly rank when an ellipsis was present.
func expandEllipsis(elements []Element, rank int) []Element {
	numEllipsis := 0
	ellipsisPos := -1
	nonNewAxis := 0
	for pos, element := range elements {
		switch element.(type) {
		case ellipsisElement:
			numEllipsis++
			ellipsisPos = pos
		case newAxisElement:
			// Addresses no axis.
		default:
			nonNewAxis++
		}
	}
	if numEllipsis > 1 {
		exceptions.Panicf("indexing: at most one Ellipsis is allowed per index expression, got %d", numEllipsis)
	}
	if nonNewAxis > rank {
		exceptions.Panicf("indexing: expression addresses %d axes, but the tensor has rank %d", nonNewAxis, rank)
	}
	if numEllipsis == 0 {
		return elements
	}
	numAbsorbed := rank - nonNewAxis
	expanded := make([]Element, 0, len(elements)-1+numAbsorbed)
	expanded = append(expanded, elements[:ellipsisPos]...)
	for range numAbsorbed {
		expanded = append(expanded, Full())
	}
	expanded = append(expanded, elements[ellipsisPos+1:]...)
	return expanded
}
