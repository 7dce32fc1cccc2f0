package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	apperr "github.com/matzehuels/ancsummary/pkg/errors"
)

// Newick returns the tree as extended Newick. Annotations, if any, are written
// as FigTree comments after each node name; text values are double-quoted so
// that reading the string back preserves value types.
func (t *Tree) Newick() string {
	var buf bytes.Buffer
	t.writeNode(&buf, t.root)
	buf.WriteByte(';')
	return buf.String()
}

func (t *Tree) writeNode(buf *bytes.Buffer, i int) {
	n := t.nodes[i]
	if !n.IsTip() {
		buf.WriteByte('(')
		for k, c := range n.Children {
			if k > 0 {
				buf.WriteByte(',')
			}
			t.writeNode(buf, c)
		}
		buf.WriteByte(')')
	}
	buf.WriteString(quoteName(n.Name))
	t.writeComment(buf, i)
	if !n.IsRoot() {
		buf.WriteByte(':')
		buf.WriteString(FormatFloat(n.BranchLength))
	}
}

func (t *Tree) writeComment(buf *bytes.Buffer, i int) {
	if t.ann == nil {
		return
	}
	var parts []string
	for _, key := range t.ann.keys {
		if v, ok := t.ann.Number(key, i); ok {
			parts = append(parts, key+"="+FormatFloat(v))
		} else if s, ok := t.ann.Text(key, i); ok {
			parts = append(parts, key+"=\""+s+"\"")
		}
	}
	if len(parts) == 0 {
		return
	}
	buf.WriteString("[&")
	buf.WriteString(strings.Join(parts, ","))
	buf.WriteByte(']')
}

func quoteName(name string) string {
	if !apperr.NeedsQuoting(name) {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// WriteNEXUS writes the tree inside a NEXUS taxa and trees block, the layout
// FigTree and most tree viewers expect for annotated summary trees.
func WriteNEXUS(w io.Writer, t *Tree, name string) error {
	if name == "" {
		name = "TREE1"
	}
	var buf bytes.Buffer
	buf.WriteString("#NEXUS\n\n")
	buf.WriteString("Begin taxa;\n")
	fmt.Fprintf(&buf, "\tDimensions ntax=%d;\n", t.NumTips())
	buf.WriteString("\tTaxlabels\n")
	for _, taxon := range t.Taxa() {
		fmt.Fprintf(&buf, "\t\t%s\n", quoteName(taxon))
	}
	buf.WriteString("\t\t;\nEnd;\n\n")
	buf.WriteString("Begin trees;\n")
	fmt.Fprintf(&buf, "\ttree %s = [&R] %s\n", name, t.Newick())
	buf.WriteString("End;\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// =============================================================================
// JSON
// =============================================================================

// jsonTree is the node-oriented wire format produced by MarshalJSON.
type jsonTree struct {
	Root    int        `json:"root"`
	RootAge float64    `json:"root_age"`
	Newick  string     `json:"newick"`
	Nodes   []jsonNode `json:"nodes"`
}

type jsonNode struct {
	Index        int            `json:"index"`
	Label        string         `json:"label"`
	Name         string         `json:"name,omitempty"`
	Parent       *int           `json:"parent,omitempty"`
	Children     []int          `json:"children,omitempty"`
	BranchLength float64        `json:"branch_length"`
	Age          float64        `json:"age"`
	Annotations  map[string]any `json:"annotations,omitempty"`
}

// MarshalJSON converts the tree and its annotations to indented JSON bytes.
// Nodes are listed in index order for deterministic output.
func MarshalJSON(t *Tree) ([]byte, error) {
	doc := jsonTree{Root: t.root, RootAge: t.rootAge, Newick: t.Newick()}
	for _, n := range t.nodes {
		jn := jsonNode{
			Index:        n.Index,
			Label:        Label(n.Index),
			Name:         n.Name,
			Children:     n.Children,
			BranchLength: n.BranchLength,
			Age:          n.Age,
		}
		if !n.IsRoot() {
			p := n.Parent
			jn.Parent = &p
		}
		if t.ann != nil {
			for _, key := range t.ann.keys {
				if jn.Annotations == nil {
					jn.Annotations = make(map[string]any)
				}
				if v, ok := t.ann.Number(key, n.Index); ok {
					jn.Annotations[key] = v
				} else if s, ok := t.ann.Text(key, n.Index); ok {
					jn.Annotations[key] = s
				}
			}
		}
		doc.Nodes = append(doc.Nodes, jn)
	}
	return json.MarshalIndent(doc, "", "  ")
}
