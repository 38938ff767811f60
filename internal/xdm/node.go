package xdm

import (
	"fmt"
	"slices"
	"strings"
)

// Kind is a node kind.
type Kind int

const (
	DocumentNode Kind = iota + 1
	ElementNode
	AttributeNode
	TextNode
)

func (k Kind) String() string {
	switch k {
	case DocumentNode:
		return "document"
	case ElementNode:
		return "element"
	case AttributeNode:
		return "attribute"
	case TextNode:
		return "text"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Node is a document node. Nodes are created by Build or Parse and never
// modified afterwards; compare them by pointer identity.
type Node struct {
	Kind     Kind
	Name     string // element and attribute name
	Value    string // attribute and text value
	Parent   *Node
	Children []*Node
	Attrs    []*Node
	order    int
}

// Order returns the node's position in document order.
func (n *Node) Order() int { return n.order }

// Path renders a readable location such as /a[1]/b[2]/@id.
func (n *Node) Path() string {
	var parts []string
	for cur := n; cur != nil && cur.Kind != DocumentNode; cur = cur.Parent {
		switch cur.Kind {
		case AttributeNode:
			parts = append(parts, "@"+cur.Name)
		case TextNode:
			parts = append(parts, fmt.Sprintf("text()[%d]", cur.position()))
		default:
			parts = append(parts, fmt.Sprintf("%s[%d]", cur.Name, cur.position()))
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}

// position is the 1-based index among same-kind, same-name siblings.
func (n *Node) position() int {
	if n.Parent == nil {
		return 1
	}
	pos := 0
	for _, sib := range n.Parent.Children {
		if sib.Kind == n.Kind && sib.Name == n.Name {
			pos++
		}
		if sib == n {
			break
		}
	}
	return pos
}

// Document owns a node tree.
type Document struct {
	Root  *Node
	nodes []*Node
}

// Nodes returns every node in document order.
func (d *Document) Nodes() []*Node { return d.nodes }

// Spec describes a node to Build. Attrs is ordered by name on build.
type Spec struct {
	Name     string
	Text     string // non-empty makes a text node
	Attrs    map[string]string
	Children []Spec
}

// E is shorthand for an element spec.
func E(name string, children ...Spec) Spec {
	return Spec{Name: name, Children: children}
}

// T is shorthand for a text spec.
func T(text string) Spec {
	return Spec{Text: text}
}

// Build creates a document whose children are the given specs and assigns
// document order.
func Build(children ...Spec) *Document {
	doc := &Document{Root: &Node{Kind: DocumentNode}}
	doc.link(doc.Root, map[*Node][]Spec{doc.Root: children})
	doc.number()
	return doc
}

// link materializes pending specs breadth-first with an explicit queue.
func (d *Document) link(root *Node, pending map[*Node][]Spec) {
	queue := []*Node{root}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, spec := range pending[parent] {
			var n *Node
			if spec.Text != "" && spec.Name == "" {
				n = &Node{Kind: TextNode, Value: spec.Text, Parent: parent}
			} else {
				n = &Node{Kind: ElementNode, Name: spec.Name, Parent: parent}
				for _, name := range sortedKeys(spec.Attrs) {
					n.Attrs = append(n.Attrs, &Node{Kind: AttributeNode, Name: name, Value: spec.Attrs[name], Parent: n})
				}
				pending[n] = spec.Children
				queue = append(queue, n)
			}
			parent.Children = append(parent.Children, n)
		}
		delete(pending, parent)
	}
}

// number assigns document order: a node, then its attributes, then its
// children.
func (d *Document) number() {
	d.nodes = d.nodes[:0]
	stack := []*Node{d.Root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n.order = len(d.nodes)
		d.nodes = append(d.nodes, n)
		for _, a := range n.Attrs {
			a.order = len(d.nodes)
			d.nodes = append(d.nodes, a)
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
