package render

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/matzehuels/ancsummary/pkg/tree"
)

// Options configures DOT generation.
type Options struct {
	// StateKey is the annotation holding the state used for coloring and
	// labels. Empty picks the first of anc_state_1, end_state_1 and
	// map_character_history that the tree carries.
	StateKey string

	// Detailed adds every annotation of a node to its tooltip.
	Detailed bool

	// BranchLengths prints branch lengths on edges.
	BranchLengths bool
}

// Keys tried, in order, when Options.StateKey is empty.
var defaultStateKeys = []string{"anc_state_1", "end_state_1", "map_character_history"}

// palette is a qualitative color set; states map onto it by hash so that
// the same state gets the same color across renders.
var palette = []string{
	"#4e79a7", "#f28e2b", "#e15759", "#76b7b2", "#59a14f",
	"#edc948", "#b07aa1", "#ff9da7", "#9c755f", "#bab0ac",
}

// ToDOT converts an annotated tree to Graphviz DOT.
func ToDOT(t *tree.Tree, opts Options) string {
	ann := t.Annotations()
	key := stateKey(ann, opts.StateKey)

	var buf bytes.Buffer
	buf.WriteString("digraph T {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  splines=ortho;\n")
	buf.WriteString("  node [shape=circle, style=filled, fillcolor=white, fontsize=10, width=0.25, fixedsize=false];\n")
	buf.WriteString("  edge [arrowhead=none];\n")
	buf.WriteString("\n")

	for _, i := range t.PreOrder() {
		attrs := nodeAttrs(t, ann, key, i, opts.Detailed)
		fmt.Fprintf(&buf, "  n%d [%s];\n", i, strings.Join(attrs, ", "))
	}
	buf.WriteString("\n")
	for _, i := range t.PreOrder() {
		for _, c := range t.Children(i) {
			if opts.BranchLengths {
				fmt.Fprintf(&buf, "  n%d -> n%d [label=%q];\n", i, c, tree.FormatFloat(t.BranchLength(c)))
			} else {
				fmt.Fprintf(&buf, "  n%d -> n%d;\n", i, c)
			}
		}
	}
	buf.WriteString("}\n")
	return buf.String()
}

func stateKey(ann *tree.Annotations, key string) string {
	if ann == nil {
		return ""
	}
	if key != "" {
		return key
	}
	for _, k := range defaultStateKeys {
		if ann.Has(k) {
			return k
		}
	}
	return ""
}

func nodeAttrs(t *tree.Tree, ann *tree.Annotations, key string, i int, detailed bool) []string {
	n := t.Node(i)
	state := ""
	if ann != nil && key != "" {
		state, _ = ann.Format(key, i)
		state = lastState(state)
	}

	label := state
	if n.IsTip() {
		label = n.Name
		if state != "" {
			label += " (" + state + ")"
		}
	} else if pp, ok := posterior(ann, key, i); ok && state != "" {
		label = fmt.Sprintf("%s\n%.2f", state, pp)
	}

	attrs := []string{fmt.Sprintf("label=%q", label)}
	if n.IsTip() {
		attrs = append(attrs, "shape=plaintext", "style=\"\"")
	} else if state != "" && state != "NA" {
		attrs = append(attrs, fmt.Sprintf("fillcolor=%q", StateColor(state)))
	}
	if detailed && ann != nil {
		attrs = append(attrs, fmt.Sprintf("tooltip=%q", tooltip(ann, i)))
	}
	return attrs
}

// posterior returns the probability paired with key ("<key>_pp") when the
// tree has one.
func posterior(ann *tree.Annotations, key string, i int) (float64, bool) {
	if ann == nil || key == "" {
		return 0, false
	}
	return ann.Number(key+"_pp", i)
}

// lastState reduces a SIMMAP history to the state at the tip end of the
// branch, which is written first.
func lastState(s string) string {
	if !strings.HasPrefix(s, "{") {
		return s
	}
	s = strings.TrimPrefix(s, "{")
	first, _, _ := strings.Cut(s, ":")
	state, _, _ := strings.Cut(first, ",")
	return state
}

func tooltip(ann *tree.Annotations, i int) string {
	var parts []string
	for _, k := range ann.Keys() {
		if v, ok := ann.Format(k, i); ok {
			parts = append(parts, k+"="+v)
		}
	}
	return strings.Join(parts, "\n")
}

// StateColor returns the fill color used for state.
func StateColor(state string) string {
	h := fnv.New32a()
	h.Write([]byte(state))
	return palette[h.Sum32()%uint32(len(palette))]
}
