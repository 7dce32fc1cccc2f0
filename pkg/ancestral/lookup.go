package ancestral

import (
	"errors"
	"fmt"

	apperr "github.com/matzehuels/ancsummary/pkg/errors"
	"github.com/matzehuels/ancsummary/pkg/trace"
	"github.com/matzehuels/ancsummary/pkg/tree"
)

// ErrTaxonMismatch is returned when a sampled tree's taxa differ from the
// summary tree's.
var ErrTaxonMismatch = errors.New("sampled tree taxa differ from summary tree")

// CladeMatcher locates summary nodes in sampled trees by clade.
//
// Per-sample clade indexes are built on first use and kept for the lifetime
// of the matcher; sweeps visit every sample once per node.
type CladeMatcher struct {
	keys  []string
	order map[string]int
	trees []*tree.Tree
	index []map[string]int
}

// NewCladeMatcher prepares matching of summary against trees. An empty
// trees slice means every sample was drawn on the summary tree itself.
func NewCladeMatcher(summary *tree.Tree, trees []*tree.Tree) (*CladeMatcher, error) {
	m := &CladeMatcher{trees: trees}
	if len(trees) == 0 {
		return m, nil
	}
	m.order = summary.TaxonOrder()
	keys, err := summary.CladeKeys(m.order)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidTree, err, "summary tree")
	}
	m.keys = keys
	for j, t := range trees {
		if t.NumTips() != len(m.order) {
			return nil, apperr.Wrap(apperr.ErrCodeInvalidTree, ErrTaxonMismatch,
				"sample %d has %d tips, summary has %d", j, t.NumTips(), len(m.order))
		}
		for name := range m.order {
			if _, ok := t.TipIndex(name); !ok {
				return nil, apperr.Wrap(apperr.ErrCodeInvalidTree, ErrTaxonMismatch,
					"sample %d lacks summary taxon %q", j, name)
			}
		}
	}
	m.index = make([]map[string]int, len(trees))
	return m, nil
}

// Find returns the index of the node in sample j's tree whose clade equals
// that of summary node. ok is false when the sampled topology lacks the clade.
func (m *CladeMatcher) Find(node, j int) (int, bool) {
	if len(m.trees) == 0 {
		return node, true
	}
	idx := m.index[j]
	if idx == nil {
		keys, err := m.trees[j].CladeKeys(m.order)
		if err != nil {
			return 0, false
		}
		idx = make(map[string]int, len(keys))
		for i, k := range keys {
			idx[k] = i
		}
		m.index[j] = idx
	}
	i, ok := idx[m.keys[node]]
	return i, ok
}

// TraceLookup resolves node indices to state traces by label.
type TraceLookup struct {
	store *trace.Store
}

// NewTraceLookup returns a lookup over store.
func NewTraceLookup(store *trace.Store) TraceLookup {
	return TraceLookup{store: store}
}

// End returns the trace of the state at node, trying "<node+1>" before
// "end_<node+1>".
func (l TraceLookup) End(node int) (*trace.StateTrace, bool) {
	label := tree.Label(node)
	if t, ok := l.store.Trace(label); ok {
		return t, true
	}
	return l.store.Trace(trace.EndPrefix + label)
}

// Start returns the trace of the state at the start of the branch leading
// to node.
func (l TraceLookup) Start(node int) (*trace.StateTrace, bool) {
	return l.store.Trace(trace.StartPrefix + tree.Label(node))
}

// Parent resolves the end-state trace of a parent index. The root has none.
func (l TraceLookup) Parent(parent int) (*trace.StateTrace, bool) {
	if parent == tree.NoParent {
		return nil, false
	}
	return l.End(parent)
}

// value extracts one site of sample j from t.
func value(t *trace.StateTrace, j, site int) (string, error) {
	v, err := trace.SiteValue(t.At(j), site)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrCodeDecode, err, "trace %s, sample %d", t.Label, j)
	}
	return v, nil
}

func missingTrace(node int, what string) error {
	return apperr.New(apperr.ErrCodeMissingTrace, "no %s trace for node %d (labels %s or %s%s)",
		what, node+1, tree.Label(node), trace.EndPrefix, tree.Label(node))
}

func nodeErr(err error, node int) error {
	return fmt.Errorf("node %d: %w", node+1, err)
}
