package condition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namesOf(conditions []Condition) []string {
	names := make([]string, len(conditions))
	for i, c := range conditions {
		names[i] = c.(*stub).name
	}
	return names
}

func TestOptimizeAndOrdersByAscendingCost(t *testing.T) {
	ordered := OptimizeAnd([]Condition{
		&stub{name: "expensive", cost: 80},
		&stub{name: "cheap", cost: 5},
		&stub{name: "medium", cost: 40},
	})
	assert.Equal(t, []string{"cheap", "medium", "expensive"}, namesOf(ordered))
}

func TestOptimizeAndStableForEqualCosts(t *testing.T) {
	ordered := OptimizeAnd([]Condition{
		&stub{name: "first", cost: 10},
		&stub{name: "second", cost: 10},
		&stub{name: "third", cost: 10},
	})
	assert.Equal(t, []string{"first", "second", "third"}, namesOf(ordered))
}

func TestOptimizeAndDoesNotMutateInput(t *testing.T) {
	input := []Condition{
		&stub{name: "b", cost: 20},
		&stub{name: "a", cost: 10},
	}
	OptimizeAnd(input)
	assert.Equal(t, []string{"b", "a"}, namesOf(input))
}

func TestOptimizeOrOrdersByDescendingLikelihood(t *testing.T) {
	ordered := OptimizeOr([]Condition{
		&stub{name: "rare", cost: 10, likelihood: floatPtr(0.1)},
		&stub{name: "common", cost: 10, likelihood: floatPtr(0.9)},
		&stub{name: "sometimes", cost: 10, likelihood: floatPtr(0.5)},
	})
	assert.Equal(t, []string{"common", "sometimes", "rare"}, namesOf(ordered))
}

func TestOptimizeOrFallsBackToCost(t *testing.T) {
	// No declared likelihoods: ascending cost, as for AND.
	ordered := OptimizeOr([]Condition{
		&stub{name: "expensive", cost: 80},
		&stub{name: "cheap", cost: 5},
	})
	assert.Equal(t, []string{"cheap", "expensive"}, namesOf(ordered))
}

func TestOptimizeOrHintedChildrenComeFirst(t *testing.T) {
	// A declared likelihood outranks cost: hinted children run before
	// unhinted ones even when they are more expensive.
	ordered := OptimizeOr([]Condition{
		&stub{name: "unhinted", cost: 5},
		&stub{name: "hinted", cost: 80, likelihood: floatPtr(0.2)},
	})
	assert.Equal(t, []string{"hinted", "unhinted"}, namesOf(ordered))
}

func TestOptimizeOrMixedHintsTotalOrder(t *testing.T) {
	// Hinted children sort among themselves by descending likelihood and
	// unhinted ones by ascending cost, with every hinted child first.
	ordered := OptimizeOr([]Condition{
		&stub{name: "cheap", cost: 5},
		&stub{name: "rare", cost: 70, likelihood: floatPtr(0.1)},
		&stub{name: "pricey", cost: 90},
		&stub{name: "common", cost: 40, likelihood: floatPtr(0.8)},
	})
	assert.Equal(t, []string{"common", "rare", "cheap", "pricey"}, namesOf(ordered))
}

func TestOptimizeOrStableForEqualLikelihood(t *testing.T) {
	ordered := OptimizeOr([]Condition{
		&stub{name: "first", cost: 10, likelihood: floatPtr(0.5)},
		&stub{name: "second", cost: 10, likelihood: floatPtr(0.5)},
	})
	assert.Equal(t, []string{"first", "second"}, namesOf(ordered))
}

func TestReorderingPreservesResult(t *testing.T) {
	// Ordering is a performance hint only: the boolean result matches the
	// unordered composition for every combination.
	combos := [][]bool{
		{true, true, true},
		{true, false, true},
		{false, true, false},
		{false, false, false},
	}
	for _, results := range combos {
		children := []Condition{
			&stub{name: "a", result: results[0], cost: 70},
			&stub{name: "b", result: results[1], cost: 10},
			&stub{name: "c", result: results[2], cost: 40},
		}

		wantAnd := results[0] && results[1] && results[2]
		wantOr := results[0] || results[1] || results[2]

		and, err := NewAnd(children...)
		require.NoError(t, err)
		or, err := NewOr(children...)
		require.NoError(t, err)

		assert.Equal(t, wantAnd, and.Evaluate(context.Background(), testContext(nil)), "AND of %v", results)
		assert.Equal(t, wantOr, or.Evaluate(context.Background(), testContext(nil)), "OR of %v", results)
	}
}

func TestAndEvaluatesCheapestFirst(t *testing.T) {
	var order []string
	and, err := NewAnd(
		&stub{name: "expensive", result: true, cost: 80, order: &order},
		&stub{name: "cheap", result: true, cost: 5, order: &order},
	)
	require.NoError(t, err)

	and.Evaluate(context.Background(), testContext(nil))
	assert.Equal(t, []string{"cheap", "expensive"}, order)
}
