package condition

import (
	"context"
	"fmt"
	"maps"
)

// DefaultCost is the evaluation cost assumed when content authors supply
// none. Cost is an optimization hint in [0,100]; it never affects the
// boolean result.
const DefaultCost = 50

// Condition is a composable boolean predicate. Evaluate never returns an
// error: missing context data, timeouts and panics inside a check all
// evaluate to false (fail-closed). Conditions are immutable after
// construction and safe for concurrent use.
type Condition interface {
	// Evaluate reports whether the condition holds for the snapshot.
	// Cancellation of ctx short-circuits composites to false.
	Evaluate(ctx context.Context, ec *Context) bool

	// Cost is the evaluation cost hint used to order composite children.
	Cost() int

	// Deterministic reports whether the result is a pure function of the
	// context. Time-based and random-based conditions are not, and must
	// never be cached.
	Deterministic() bool

	// Node returns the serializable tree form of the condition.
	Node() *Node
}

// likelihooder is implemented by conditions carrying a declared success
// likelihood, used to order OR children.
type likelihooder interface {
	Likelihood() (float64, bool)
}

// CheckFunc is a single leaf check. An error or panic is converted to a
// false result at the leaf boundary.
type CheckFunc func(ctx context.Context, ec *Context) (bool, error)

// Leaf is a type-specific check against the evaluation context, built
// through a Registry.
type Leaf struct {
	kind          string
	params        map[string]any
	cost          int
	likelihood    float64
	hasLikelihood bool
	deterministic bool
	check         CheckFunc
}

func (l *Leaf) Evaluate(ctx context.Context, ec *Context) (result bool) {
	defer func() {
		if r := recover(); r != nil {
			ec.Logger().Error("condition check panicked",
				"kind", l.kind,
				"panic", r)
			result = false
		}
	}()

	if ctx.Err() != nil {
		return false
	}

	ok, err := l.check(ctx, ec)
	if err != nil {
		ec.Logger().Warn("condition check faulted",
			"kind", l.kind,
			"error", err)
		return false
	}
	return ok
}

func (l *Leaf) Cost() int {
	return l.cost
}

func (l *Leaf) Deterministic() bool {
	return l.deterministic
}

func (l *Leaf) Kind() string {
	return l.kind
}

func (l *Leaf) Likelihood() (float64, bool) {
	return l.likelihood, l.hasLikelihood
}

func (l *Leaf) Node() *Node {
	n := &Node{
		Kind: l.kind,
		Cost: intPtr(l.cost),
	}
	if len(l.params) > 0 {
		n.Params = maps.Clone(l.params)
	}
	if l.hasLikelihood {
		lk := l.likelihood
		n.Likelihood = &lk
	}
	return n
}

func intPtr(v int) *int {
	return &v
}

// validateCost rejects out-of-range author-supplied costs at load time.
func validateCost(cost int) error {
	if cost < 0 || cost > 100 {
		return fmt.Errorf("cost %d out of range [0,100]", cost)
	}
	return nil
}
