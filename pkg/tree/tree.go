package tree

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	apperr "github.com/matzehuels/ancsummary/pkg/errors"
)

var (
	// ErrEmptyTree is returned when a tree has no nodes.
	ErrEmptyTree = errors.New("tree has no nodes")

	// ErrNotBinary is returned when an internal node does not have exactly
	// two children. Summaries are defined on rooted, strictly bifurcating trees.
	ErrNotBinary = errors.New("internal node must have exactly two children")

	// ErrDuplicateTaxon is returned when two tips share the same name.
	ErrDuplicateTaxon = errors.New("duplicate taxon name")

	// ErrUnknownTaxon is returned by [Tree.CladeKeys] when a tip is missing
	// from the supplied taxon order.
	ErrUnknownTaxon = errors.New("unknown taxon")

	// ErrAnnotationSize is returned by [Tree.SetAnnotations] when the
	// annotation arrays do not match the number of nodes.
	ErrAnnotationSize = errors.New("annotation size does not match tree")
)

// NoParent is the parent index of the root.
const NoParent = -1

// Node is a single vertex of a [Tree].
//
// The zero value is not meaningful on its own; nodes are created by [Parse]
// or [New] and are addressed by Index.
type Node struct {
	Index        int     // Stable arena index (tips first, root last)
	Name         string  // Taxon name for tips; optional label for internal nodes
	Parent       int     // Parent index, or NoParent for the root
	Children     []int   // Zero or two child indices
	BranchLength float64 // Length of the branch leading to this node
	Age          float64 // Time before the youngest tip, derived from branch lengths
}

// IsTip reports whether the node has no children.
func (n Node) IsTip() bool { return len(n.Children) == 0 }

// IsRoot reports whether the node has no parent.
func (n Node) IsRoot() bool { return n.Parent == NoParent }

// Tree is a rooted binary tree stored as an arena of nodes.
//
// The zero value is not usable - use [Parse] or [New].
type Tree struct {
	nodes   []Node
	root    int
	taxa    map[string]int
	ann     *Annotations
	rootAge float64
}

// Spec describes one node when building a tree programmatically with [New].
// Children are indices into the same slice; the slice order does not need to
// follow the tips-first convention, [New] renumbers nodes.
type Spec struct {
	Name         string
	Children     []int
	BranchLength float64
}

// New builds a tree from node specs, where root is the index of the root
// entry. Nodes are renumbered to the tips-first, post-order convention.
func New(specs []Spec, root int) (*Tree, error) {
	if len(specs) == 0 {
		return nil, ErrEmptyTree
	}
	if root < 0 || root >= len(specs) {
		return nil, fmt.Errorf("root index %d out of range", root)
	}
	var toRaw func(i int, depth int) (*rawNode, error)
	toRaw = func(i int, depth int) (*rawNode, error) {
		if depth > len(specs) {
			return nil, fmt.Errorf("cycle through node %d", i)
		}
		s := specs[i]
		rn := &rawNode{name: s.Name, length: s.BranchLength, hasLength: true}
		for _, c := range s.Children {
			if c < 0 || c >= len(specs) {
				return nil, fmt.Errorf("child index %d out of range", c)
			}
			child, err := toRaw(c, depth+1)
			if err != nil {
				return nil, err
			}
			rn.children = append(rn.children, child)
		}
		return rn, nil
	}
	raw, err := toRaw(root, 0)
	if err != nil {
		return nil, err
	}
	return build(raw)
}

// NumNodes returns the number of nodes.
func (t *Tree) NumNodes() int { return len(t.nodes) }

// NumTips returns the number of tips.
func (t *Tree) NumTips() int { return len(t.taxa) }

// Root returns the index of the root node.
func (t *Tree) Root() int { return t.root }

// Node returns a copy of the node at index i.
func (t *Tree) Node(i int) Node { return t.nodes[i] }

// Nodes returns all nodes in index order. The returned slice must not be modified.
func (t *Tree) Nodes() []Node { return t.nodes }

// Parent returns the parent index of node i, or NoParent for the root.
func (t *Tree) Parent(i int) int { return t.nodes[i].Parent }

// Children returns the child indices of node i.
func (t *Tree) Children(i int) []int { return t.nodes[i].Children }

// IsTip reports whether node i is a tip.
func (t *Tree) IsTip(i int) bool { return t.nodes[i].IsTip() }

// IsRoot reports whether node i is the root.
func (t *Tree) IsRoot(i int) bool { return i == t.root }

// Age returns the age of node i.
func (t *Tree) Age(i int) float64 { return t.nodes[i].Age }

// BranchLength returns the length of the branch leading to node i.
func (t *Tree) BranchLength(i int) float64 { return t.nodes[i].BranchLength }

// RootAge returns the maximum root-to-tip distance ("total root depth").
func (t *Tree) RootAge() float64 { return t.rootAge }

// Label returns the trace label of node i: its index plus one.
func Label(i int) string { return strconv.Itoa(i + 1) }

// Taxa returns the tip names in tip-index order.
func (t *Tree) Taxa() []string {
	names := make([]string, len(t.taxa))
	for name, i := range t.taxa {
		names[i] = name
	}
	return names
}

// TipIndex returns the index of the tip with the given name.
func (t *Tree) TipIndex(name string) (int, bool) {
	i, ok := t.taxa[name]
	return i, ok
}

// PreOrder returns node indices in pre-order (root first, left before right).
func (t *Tree) PreOrder() []int {
	order := make([]int, 0, len(t.nodes))
	stack := []int{t.root}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, i)
		ch := t.nodes[i].Children
		for k := len(ch) - 1; k >= 0; k-- {
			stack = append(stack, ch[k])
		}
	}
	return order
}

// Annotations returns the annotation set attached to the tree, or nil.
func (t *Tree) Annotations() *Annotations { return t.ann }

// SetAnnotations replaces the tree's annotations with a. Passing nil clears them.
func (t *Tree) SetAnnotations(a *Annotations) error {
	if a != nil && a.Len() != len(t.nodes) {
		return fmt.Errorf("%w: %d arrays for %d nodes", ErrAnnotationSize, a.Len(), len(t.nodes))
	}
	t.ann = a
	return nil
}

// Clone returns a deep copy of the tree without annotations.
func (t *Tree) Clone() *Tree {
	nodes := make([]Node, len(t.nodes))
	for i, n := range t.nodes {
		n.Children = append([]int(nil), n.Children...)
		nodes[i] = n
	}
	taxa := make(map[string]int, len(t.taxa))
	for k, v := range t.taxa {
		taxa[k] = v
	}
	return &Tree{nodes: nodes, root: t.root, taxa: taxa, rootAge: t.rootAge}
}

// computeAges sets Age on every node from branch lengths. The root sits at
// the largest root-to-tip distance; non-ultrametric tips get positive ages.
func (t *Tree) computeAges() {
	depth := make([]float64, len(t.nodes))
	maxDepth := 0.0
	for _, i := range t.PreOrder() {
		n := t.nodes[i]
		if n.Parent != NoParent {
			depth[i] = depth[n.Parent] + n.BranchLength
		}
		if n.IsTip() && depth[i] > maxDepth {
			maxDepth = depth[i]
		}
	}
	for i := range t.nodes {
		age := maxDepth - depth[i]
		if math.Abs(age) < 1e-12 {
			age = 0
		}
		t.nodes[i].Age = age
	}
	t.rootAge = maxDepth
}

// build converts a parsed node hierarchy into an arena using the tips-first,
// post-order numbering.
func build(raw *rawNode) (*Tree, error) {
	if raw == nil {
		return nil, ErrEmptyTree
	}

	var tips []*rawNode
	var internal []*rawNode
	var walk func(n *rawNode) error
	walk = func(n *rawNode) error {
		switch len(n.children) {
		case 0:
			tips = append(tips, n)
			return nil
		case 2:
		default:
			return fmt.Errorf("%w: node %q has %d children", ErrNotBinary, n.name, len(n.children))
		}
		for _, c := range n.children {
			if err := walk(c); err != nil {
				return err
			}
		}
		internal = append(internal, n)
		return nil
	}
	if err := walk(raw); err != nil {
		return nil, err
	}

	index := make(map[*rawNode]int, len(tips)+len(internal))
	for i, n := range tips {
		index[n] = i
	}
	for i, n := range internal {
		index[n] = len(tips) + i
	}

	t := &Tree{
		nodes: make([]Node, len(index)),
		root:  index[raw],
		taxa:  make(map[string]int, len(tips)),
	}
	for n, i := range index {
		node := Node{Index: i, Name: n.name, Parent: NoParent, BranchLength: n.length}
		for _, c := range n.children {
			node.Children = append(node.Children, index[c])
		}
		t.nodes[i] = node
	}
	for i := range t.nodes {
		for _, c := range t.nodes[i].Children {
			t.nodes[c].Parent = i
		}
	}
	for i, n := range tips {
		if err := apperr.ValidateTaxonName(n.name); err != nil {
			return nil, err
		}
		if _, dup := t.taxa[n.name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTaxon, n.name)
		}
		t.taxa[n.name] = i
	}
	t.computeAges()

	if err := t.attachComments(index); err != nil {
		return nil, err
	}
	return t, nil
}
