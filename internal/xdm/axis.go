package xdm

import "github.com/cockroachdb/errors"

// Axis is a navigation direction.
type Axis string

const (
	Child            Axis = "child"
	Descendant       Axis = "descendant"
	DescendantOrSelf Axis = "descendant-or-self"
	Self             Axis = "self"
	Parent           Axis = "parent"
	Attribute        Axis = "attribute"
)

// Node tests understood by Step besides plain names.
const (
	TestAnyNode = "node()"
	TestAnyName = "*"
	TestText    = "text()"
)

// Step returns the nodes on axis from n that pass test, in document order.
// An empty test is the same as node().
func Step(n *Node, axis Axis, test string) ([]*Node, error) {
	var candidates []*Node
	switch axis {
	case Child:
		candidates = n.Children
	case Descendant:
		candidates = descendants(n, false)
	case DescendantOrSelf:
		candidates = descendants(n, true)
	case Self:
		candidates = []*Node{n}
	case Parent:
		if n.Parent != nil {
			candidates = []*Node{n.Parent}
		}
	case Attribute:
		candidates = n.Attrs
	default:
		return nil, errors.Newf("unknown axis %q", axis)
	}
	principal := ElementNode
	if axis == Attribute {
		principal = AttributeNode
	}
	var out []*Node
	for _, c := range candidates {
		if Matches(c, test, principal) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Matches applies a node test. principal is the node kind name tests and
// "*" select on the axis in use.
func Matches(n *Node, test string, principal Kind) bool {
	switch test {
	case "", TestAnyNode:
		return true
	case TestText:
		return n.Kind == TextNode
	case TestAnyName:
		return n.Kind == principal
	default:
		return n.Kind == principal && n.Name == test
	}
}

// descendants lists the element and text descendants of n in document
// order. Attributes are not on the descendant axis.
func descendants(n *Node, self bool) []*Node {
	var out []*Node
	if self {
		out = append(out, n)
	}
	stack := make([]*Node, 0, len(n.Children))
	for i := len(n.Children) - 1; i >= 0; i-- {
		stack = append(stack, n.Children[i])
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, cur)
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
	return out
}
