package condition

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Node is the serialized tree form of a condition: a nested key-value
// structure with a type tag, parameters and children. It is the shape
// content files use (JSON or YAML) and the shape conditions round-trip
// through.
type Node struct {
	Kind       string         `json:"kind" yaml:"kind"`
	Params     map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Cost       *int           `json:"cost,omitempty" yaml:"cost,omitempty"`
	Likelihood *float64       `json:"likelihood,omitempty" yaml:"likelihood,omitempty"`
	Children   []*Node        `json:"children,omitempty" yaml:"children,omitempty"`
}

// Decode reconstructs a condition from its tree form, validating the whole
// tree up front. Malformed trees (empty AND/OR children, wrong NOT arity,
// out-of-range cost, unknown leaf kind) fail here with the offending path,
// never at evaluation time.
func Decode(reg *Registry, n *Node) (Condition, error) {
	return decodeNode(reg, n, n.pathKind())
}

func decodeNode(reg *Registry, n *Node, path string) (Condition, error) {
	if n == nil {
		return nil, fmt.Errorf("%s: node must not be nil", path)
	}

	switch n.Kind {
	case KindAnd, KindOr:
		if len(n.Children) == 0 {
			return nil, fmt.Errorf("%s: children must not be empty", path)
		}
		children := make([]Condition, len(n.Children))
		for i, child := range n.Children {
			childPath := fmt.Sprintf("%s[%d].%s", path, i, child.pathKind())
			c, err := decodeNode(reg, child, childPath)
			if err != nil {
				return nil, err
			}
			children[i] = c
		}
		if n.Kind == KindAnd {
			return NewAnd(children...)
		}
		return NewOr(children...)

	case KindNot:
		if len(n.Children) != 1 {
			return nil, fmt.Errorf("%s: not requires exactly one child, got %d", path, len(n.Children))
		}
		childPath := fmt.Sprintf("%s[0].%s", path, n.Children[0].pathKind())
		child, err := decodeNode(reg, n.Children[0], childPath)
		if err != nil {
			return nil, err
		}
		return NewNot(child)

	case "":
		return nil, fmt.Errorf("%s: missing kind", path)

	default:
		leaf, err := reg.NewLeaf(n.Kind, n.Params, n.Cost, n.Likelihood)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return leaf, nil
	}
}

func (n *Node) pathKind() string {
	if n == nil || n.Kind == "" {
		return "?"
	}
	return n.Kind
}

// CacheKey derives the cache key for a condition result: kind, canonically
// serialized parameters (encoding/json sorts map keys) and the actor. Two
// structurally identical conditions share a key.
func CacheKey(c Condition, actorID string) (string, error) {
	node := c.Node()
	data, err := json.Marshal(node)
	if err != nil {
		return "", fmt.Errorf("failed to serialize condition for cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("cond:%s:%s:%s", node.Kind, actorID, hex.EncodeToString(sum[:8])), nil
}
