package ancestral

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/charmbracelet/log"

	apperr "github.com/matzehuels/ancsummary/pkg/errors"
	"github.com/matzehuels/ancsummary/pkg/trace"
	"github.com/matzehuels/ancsummary/pkg/tree"
)

// Annotation keys written by [Summarizer.AncestralStates].
const (
	KeyPosterior   = "posterior"
	KeyMean        = "mean"
	KeyLowerCI     = "lower_95%_CI"
	KeyUpperCI     = "upper_95%_CI"
	PrefixAncState = "anc_state"
	PrefixEnd      = "end_state"
	PrefixStart    = "start_state"
)

// ProgressFunc receives the number of visited nodes out of total.
type ProgressFunc func(done, total int)

// Summarizer projects the samples of a [trace.Store] onto a summary tree.
//
// The summary tree and store are never modified. Every call builds a fresh
// annotation set and attaches it to a copy of the summary tree.
type Summarizer struct {
	summary *tree.Tree
	store   *trace.Store
	matcher *CladeMatcher
	lookup  TraceLookup

	// Logger receives debug output per node and warnings for nodes without
	// counted samples. Defaults to a discarding logger.
	Logger *log.Logger

	// Progress, if set, is called after each node visit.
	Progress ProgressFunc
}

// NewSummarizer prepares a summarizer. With a tree trace in store, every
// sampled tree must carry the summary tree's taxa.
func NewSummarizer(summary *tree.Tree, store *trace.Store) (*Summarizer, error) {
	m, err := NewCladeMatcher(summary, store.Trees())
	if err != nil {
		return nil, err
	}
	return &Summarizer{
		summary: summary,
		store:   store,
		matcher: m,
		lookup:  NewTraceLookup(store),
		Logger:  log.New(io.Discard),
	}, nil
}

// NodeSummary holds the statistics computed for one summary node.
type NodeSummary struct {
	Index     int        `json:"index"`
	Posterior float64    `json:"posterior"`
	Samples   int        `json:"samples"`
	End       Selection  `json:"end"`
	Start     *Selection `json:"start,omitempty"`
	Interval  *Interval  `json:"interval,omitempty"`
}

// Result is an annotated copy of the summary tree and the per-node
// statistics behind the annotations, indexed by node.
type Result struct {
	Tree  *tree.Tree    `json:"-"`
	Nodes []NodeSummary `json:"nodes"`
}

// sampleTree returns the tree sample j was drawn on.
func (s *Summarizer) sampleTree(j int) *tree.Tree {
	if t := s.store.Tree(j); t != nil {
		return t
	}
	return s.summary
}

func (s *Summarizer) visit(ctx context.Context, done, total int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Progress != nil {
		s.Progress(done, total)
	}
	return nil
}

// requireEndTraces fails when states were sampled on the summary tree and a
// node has no end-state trace. With a tree trace a missing label only skips
// the samples that would use it.
func (s *Summarizer) requireEndTraces() error {
	if s.store.HasTrees() {
		return nil
	}
	for i := range s.summary.NumNodes() {
		if _, ok := s.lookup.End(i); !ok {
			return missingTrace(i, "state")
		}
	}
	return nil
}

// =============================================================================
// Ancestral states
// =============================================================================

// nodeAccumulator collects one node's samples in a single sweep.
type nodeAccumulator struct {
	matched int
	end     *EndStateCounts
	starts  []*StartStateCounts // per summary child
	values  []float64           // mean statistic
	joint   *jointSelection     // joint reconstruction only
}

// jointSelection holds selections made directly from collected samples.
type jointSelection struct {
	end    Selection
	starts []Selection // per summary child
}

// AncestralStates summarizes sampled node states. Nodes are visited in
// pre-order so that conditional reconstruction can pass each node's MAP
// state down to its children.
func (s *Summarizer) AncestralStates(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if err := s.requireEndTraces(); err != nil {
		return nil, err
	}

	n := s.summary.NumNodes()
	res := &Result{Nodes: make([]NodeSummary, n)}
	ann := tree.NewAnnotations(n)
	mapState := make([]string, n)
	starts := make([]*Selection, n)
	total := s.store.NumPostBurnin()

	for k, i := range s.summary.PreOrder() {
		if err := s.visit(ctx, k, n); err != nil {
			return nil, err
		}
		parent := s.summary.Parent(i)
		conditional := opts.Reconstruction == Conditional && parent != tree.NoParent
		parentMAP := ""
		if conditional {
			parentMAP = mapState[parent]
		}

		var acc *nodeAccumulator
		var err error
		if opts.Reconstruction == Joint {
			acc, err = s.collectJoint(i, opts)
		} else {
			acc, err = s.accumulate(i, opts, conditional, parentMAP)
		}
		if err != nil {
			return nil, nodeErr(err, i)
		}

		ns := NodeSummary{Index: i, Posterior: float64(acc.matched) / float64(total), Samples: acc.end.Samples}
		ann.SetNumber(KeyPosterior, i, ns.Posterior)

		if opts.Statistic == Mean {
			iv, err := MeanInterval(acc.values)
			if err != nil {
				s.Logger.Warn("no counted samples", "node", i+1)
			} else {
				ns.Interval = &iv
				ann.SetNumber(KeyMean, i, iv.Mean)
				ann.SetNumber(KeyLowerCI, i, iv.Lower)
				ann.SetNumber(KeyUpperCI, i, iv.Upper)
			}
			res.Nodes[i] = ns
			continue
		}

		children := s.summary.Children(i)
		if acc.joint != nil {
			ns.End = acc.joint.end
			for c, sel := range acc.joint.starts {
				starts[children[c]] = &sel
			}
		} else {
			ns.End = s.selectEnd(acc.end, i)
			for c, st := range acc.starts {
				sel := s.selectStart(st, children[c])
				starts[children[c]] = &sel
			}
		}
		mapState[i] = ns.End.MAPState()
		if opts.Cladogenetic {
			annotateSelection(ann, PrefixEnd, i, ns.End)
		} else {
			annotateSelection(ann, PrefixAncState, i, ns.End)
		}
		res.Nodes[i] = ns

		s.Logger.Debug("summarized node", "node", i+1, "matched", acc.matched,
			"counted", acc.end.Samples, "map", ns.End.MAPState(), "pp", ns.End.Top[0].Prob)
	}

	if opts.Cladogenetic {
		// Start states of a branch are tallied while visiting its parent, so
		// they are attached in a second pass. The root has no incoming branch
		// and reports its end state.
		for _, i := range s.summary.PreOrder() {
			sel := starts[i]
			if i == s.summary.Root() {
				sel = &res.Nodes[i].End
			}
			if sel == nil {
				empty := emptySelection()
				sel = &empty
			}
			res.Nodes[i].Start = sel
			annotateSelection(ann, PrefixStart, i, *sel)
		}
	}
	if err := s.visit(ctx, n, n); err != nil {
		return nil, err
	}

	out := s.summary.Clone()
	if err := out.SetAnnotations(ann); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInternal, err, "attach annotations")
	}
	res.Tree = out
	return res, nil
}

// accumulate runs the sample sweep for node i. In conditional mode a sample
// counts only if the sampled parent's end state equals parentMAP.
func (s *Summarizer) accumulate(i int, opts Options, conditional bool, parentMAP string) (*nodeAccumulator, error) {
	children := s.summary.Children(i)
	acc := &nodeAccumulator{end: newEndStateCounts()}
	if opts.Cladogenetic {
		for range children {
			acc.starts = append(acc.starts, newStartStateCounts())
		}
	}

	for j := range s.store.Samples() {
		m, ok := s.matcher.Find(i, j)
		if !ok {
			continue
		}
		acc.matched++
		sampled := s.sampleTree(j)

		if conditional {
			pt, ok := s.lookup.Parent(sampled.Parent(m))
			if !ok {
				continue
			}
			pv, err := value(pt, j, opts.Site)
			if err != nil {
				return nil, err
			}
			if pv != parentMAP {
				continue
			}
		}

		if et, ok := s.lookup.End(m); ok {
			v, err := value(et, j, opts.Site)
			if err != nil {
				return nil, err
			}
			if opts.Statistic == Mean {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return nil, apperr.Wrap(apperr.ErrCodeDecode, err, "sample %d is not numeric", j)
				}
				acc.values = append(acc.values, f)
				acc.end.Samples++
			} else {
				acc.end.Add(v)
			}
		}

		for c, child := range children {
			if !opts.Cladogenetic {
				break
			}
			if err := s.countStart(acc.starts[c], child, m, j, opts.Site, sampled); err != nil {
				return nil, err
			}
		}
	}
	return acc, nil
}

// countStart tallies the start state of child's branch in sample j, when
// the child's clade is a direct descendant of the matched parent m.
func (s *Summarizer) countStart(st *StartStateCounts, child, m, j, site int, sampled *tree.Tree) error {
	mc, ok := s.matcher.Find(child, j)
	if !ok || sampled.Parent(mc) != m {
		return nil
	}
	t, ok := s.lookup.Start(mc)
	if !ok {
		return nil
	}
	v, err := value(t, j, site)
	if err != nil {
		return err
	}
	st.Add(v)
	return nil
}

// collectJoint gathers every matching sample of node i without parent
// conditioning, then tallies the collected states in one pass.
func (s *Summarizer) collectJoint(i int, opts Options) (*nodeAccumulator, error) {
	children := s.summary.Children(i)
	acc := &nodeAccumulator{end: newEndStateCounts()}
	var ends []string
	startSamples := make([][]string, len(children))

	for j := range s.store.Samples() {
		m, ok := s.matcher.Find(i, j)
		if !ok {
			continue
		}
		acc.matched++
		if et, ok := s.lookup.End(m); ok {
			v, err := value(et, j, opts.Site)
			if err != nil {
				return nil, err
			}
			ends = append(ends, v)
		}
		if !opts.Cladogenetic {
			continue
		}
		sampled := s.sampleTree(j)
		for c, child := range children {
			mc, ok := s.matcher.Find(child, j)
			if !ok || sampled.Parent(mc) != m {
				continue
			}
			if t, ok := s.lookup.Start(mc); ok {
				v, err := value(t, j, opts.Site)
				if err != nil {
					return nil, err
				}
				startSamples[c] = append(startSamples[c], v)
			}
		}
	}

	acc.end.Samples = len(ends)
	acc.joint = &jointSelection{end: s.selectCollected(ends, i, "no counted samples")}
	if opts.Cladogenetic {
		for c, vs := range startSamples {
			sel := s.selectCollected(vs, children[c], "no counted start-state samples")
			acc.joint.starts = append(acc.joint.starts, sel)
		}
	}
	return acc, nil
}

// selectCollected merges collected sample states by label and selects the
// top three.
func (s *Summarizer) selectCollected(samples []string, node int, msg string) Selection {
	sel, err := SelectMerged(samples)
	if errors.Is(err, ErrNoCountedSamples) {
		s.Logger.Warn(msg, "node", node+1)
	}
	return sel
}

func (s *Summarizer) selectEnd(e *EndStateCounts, node int) Selection {
	if err := e.Normalize(); err != nil {
		if errors.Is(err, ErrNoCountedSamples) {
			s.Logger.Warn("no counted samples", "node", node+1)
		}
		return emptySelection()
	}
	return Select(e.Counts)
}

func (s *Summarizer) selectStart(st *StartStateCounts, node int) Selection {
	if err := st.Normalize(); err != nil {
		if errors.Is(err, ErrNoCountedSamples) {
			s.Logger.Warn("no counted start-state samples", "node", node+1)
		}
		return emptySelection()
	}
	return Select(st.Counts)
}

func annotateSelection(a *tree.Annotations, prefix string, i int, sel Selection) {
	for k, sp := range sel.Top {
		key := prefix + "_" + strconv.Itoa(k+1)
		a.SetText(key, i, sp.State)
		a.SetNumber(key+"_pp", i, sp.Prob)
	}
	a.SetNumber(prefix+"_other_pp", i, sel.Other)
}
