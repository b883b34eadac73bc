package condition

import (
	"context"
	"fmt"
)

// Reserved composite kinds used in the serialized tree form.
const (
	KindAnd = "and"
	KindOr  = "or"
	KindNot = "not"
)

// And is true when every child is true. Children are evaluated in
// optimized order (ascending cost) and evaluation stops at the first false.
type And struct {
	children []Condition
	cost     int
}

// NewAnd builds an AND composite. The child list is reordered for
// short-circuiting at construction; boolean composition is order-independent
// so only performance is affected.
func NewAnd(children ...Condition) (*And, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("and: children must not be empty")
	}

	ordered := OptimizeAnd(children)
	cost := 0
	for _, c := range ordered {
		cost += c.Cost()
	}
	return &And{children: ordered, cost: cost}, nil
}

func (a *And) Evaluate(ctx context.Context, ec *Context) bool {
	for _, child := range a.children {
		// Cancellation is checked between children so a slow chain can
		// be aborted mid-evaluation.
		if ctx.Err() != nil {
			return false
		}
		if !child.Evaluate(ctx, ec) {
			return false
		}
	}
	return true
}

// Cost is the sum of all children costs: a false near the end still
// requires evaluating the cheaper children first.
func (a *And) Cost() int {
	return a.cost
}

func (a *And) Deterministic() bool {
	return allDeterministic(a.children)
}

func (a *And) Node() *Node {
	return &Node{Kind: KindAnd, Children: childNodes(a.children)}
}

// Children returns the evaluation-ordered child list.
func (a *And) Children() []Condition {
	return a.children
}

// Or is true when any child is true. Children are evaluated in optimized
// order (descending declared likelihood, then ascending cost) and
// evaluation stops at the first true.
type Or struct {
	children []Condition
	cost     int
}

func NewOr(children ...Condition) (*Or, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("or: children must not be empty")
	}

	ordered := OptimizeOr(children)
	sum := 0
	for _, c := range ordered {
		sum += c.Cost()
	}
	// Heuristic expectation assuming partial short-circuiting.
	return &Or{children: ordered, cost: sum / 2}, nil
}

func (o *Or) Evaluate(ctx context.Context, ec *Context) bool {
	for _, child := range o.children {
		if ctx.Err() != nil {
			return false
		}
		if child.Evaluate(ctx, ec) {
			return true
		}
	}
	return false
}

func (o *Or) Cost() int {
	return o.cost
}

func (o *Or) Deterministic() bool {
	return allDeterministic(o.children)
}

func (o *Or) Node() *Node {
	return &Node{Kind: KindOr, Children: childNodes(o.children)}
}

func (o *Or) Children() []Condition {
	return o.children
}

// Not negates its single child.
type Not struct {
	child Condition
}

func NewNot(child Condition) (*Not, error) {
	if child == nil {
		return nil, fmt.Errorf("not: child must not be nil")
	}
	return &Not{child: child}, nil
}

func (n *Not) Evaluate(ctx context.Context, ec *Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return !n.child.Evaluate(ctx, ec)
}

func (n *Not) Cost() int {
	return n.child.Cost()
}

func (n *Not) Deterministic() bool {
	return n.child.Deterministic()
}

func (n *Not) Node() *Node {
	return &Node{Kind: KindNot, Children: []*Node{n.child.Node()}}
}

func (n *Not) Child() Condition {
	return n.child
}

func allDeterministic(children []Condition) bool {
	for _, c := range children {
		if !c.Deterministic() {
			return false
		}
	}
	return true
}

func childNodes(children []Condition) []*Node {
	nodes := make([]*Node, len(children))
	for i, c := range children {
		nodes[i] = c.Node()
	}
	return nodes
}
