package condition

import (
	"slices"
	"sort"
)

// OptimizeAnd returns the children ordered to maximize expected
// short-circuiting of an AND: ascending cost, so cheap checks run before
// expensive ones. The sort is stable so equal costs preserve their
// original relative order and evaluation stays deterministic.
func OptimizeAnd(children []Condition) []Condition {
	ordered := slices.Clone(children)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Cost() < ordered[j].Cost()
	})
	return ordered
}

// OptimizeOr returns the children ordered to maximize expected
// short-circuiting of an OR: children with a declared success likelihood
// come first, descending, and the rest follow in ascending cost order.
// The comparison is total, so the order is well defined for any mix of
// hinted and unhinted children. Stable for ties.
func OptimizeOr(children []Condition) []Condition {
	ordered := slices.Clone(children)
	sort.SliceStable(ordered, func(i, j int) bool {
		li, iok := likelihoodOf(ordered[i])
		lj, jok := likelihoodOf(ordered[j])
		if iok != jok {
			return iok
		}
		if iok && li != lj {
			return li > lj
		}
		return ordered[i].Cost() < ordered[j].Cost()
	})
	return ordered
}

func likelihoodOf(c Condition) (float64, bool) {
	if l, ok := c.(likelihooder); ok {
		return l.Likelihood()
	}
	return 0, false
}
