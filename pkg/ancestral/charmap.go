package ancestral

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	apperr "github.com/matzehuels/ancsummary/pkg/errors"
	"github.com/matzehuels/ancsummary/pkg/simmap"
	"github.com/matzehuels/ancsummary/pkg/tree"
)

// Annotation keys written by [Summarizer.CharacterMap].
const (
	KeyCharacterHistory           = "map_character_history"
	KeyCharacterHistoryPosteriors = "map_character_history_posteriors"
)

// ErrNoHistory is returned when no sample provides a character history for
// a node.
var ErrNoHistory = errors.New("no character history sampled for node")

// BranchSummary is the MAP character history of one branch.
type BranchSummary struct {
	Index      int     `json:"index"`
	Posterior  float64 `json:"posterior"`
	Histories  int     `json:"histories"`
	History    string  `json:"history"`
	Posteriors string  `json:"posteriors"`
	EndState   string  `json:"end_state"`
}

// CharacterMapResult is an annotated copy of the summary tree and the
// per-branch histories, indexed by node.
type CharacterMapResult struct {
	Tree     *tree.Tree      `json:"-"`
	Branches []BranchSummary `json:"branches"`
}

// branchHistories holds the decoded histories of one branch. conditioned is
// the subset whose sampled parent ended in the parent's MAP state.
type branchHistories struct {
	matched     int
	all         []simmap.BranchHistory
	conditioned []simmap.BranchHistory
}

// CharacterMap builds a MAP character history for every branch. The root
// age is cut into opts.Slices windows of equal width; each branch is walked
// window by window from its root end, and in every window the most common
// state among the sampled histories is kept.
func (s *Summarizer) CharacterMap(ctx context.Context, opts CharacterMapOptions) (*CharacterMapResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if s.summary.RootAge() <= 0 {
		return nil, apperr.New(apperr.ErrCodeInvalidTree, "summary tree has zero root age")
	}
	if err := s.requireEndTraces(); err != nil {
		return nil, err
	}

	dt := s.summary.RootAge() / float64(opts.Slices)
	n := s.summary.NumNodes()
	res := &CharacterMapResult{Branches: make([]BranchSummary, n)}
	ann := tree.NewAnnotations(n)
	endState := make([]string, n)
	total := s.store.NumPostBurnin()

	for k, i := range s.summary.PreOrder() {
		if err := s.visit(ctx, k, n); err != nil {
			return nil, err
		}
		parent := s.summary.Parent(i)
		conditional := opts.Conditional && parent != tree.NoParent
		parentState := ""
		if conditional {
			parentState = endState[parent]
		}

		bh, err := s.collectHistories(i, conditional, parentState)
		if err != nil {
			return nil, nodeErr(err, i)
		}
		if len(bh.all) == 0 {
			return nil, nodeErr(apperr.Wrap(apperr.ErrCodeDecode, ErrNoHistory, "%d samples matched", bh.matched), i)
		}

		var b BranchSummary
		if parent == tree.NoParent || s.summary.BranchLength(i) <= 0 {
			b, err = summarizePoint(bh.all)
		} else {
			b, err = summarizeBranch(bh, s.summary.BranchLength(i), dt, conditional)
		}
		if err != nil {
			return nil, nodeErr(apperr.Wrap(apperr.ErrCodeInternal, err, "summarize branch"), i)
		}
		b.Index = i
		b.Posterior = float64(bh.matched) / float64(total)
		b.Histories = len(bh.all)
		endState[i] = b.EndState
		res.Branches[i] = b

		ann.SetNumber(KeyPosterior, i, b.Posterior)
		ann.SetText(KeyCharacterHistory, i, b.History)
		ann.SetText(KeyCharacterHistoryPosteriors, i, b.Posteriors)

		s.Logger.Debug("mapped branch", "node", i+1, "histories", len(bh.all),
			"conditioned", len(bh.conditioned), "end", b.EndState)
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

func (s *Summarizer) collectHistories(i int, conditional bool, parentState string) (*branchHistories, error) {
	bh := &branchHistories{}
	for j := range s.store.Samples() {
		m, ok := s.matcher.Find(i, j)
		if !ok {
			continue
		}
		bh.matched++
		t, ok := s.lookup.End(m)
		if !ok {
			continue
		}
		h, err := decodeSample(t.At(j), j)
		if err != nil {
			return nil, err
		}
		bh.all = append(bh.all, h)

		if !conditional {
			continue
		}
		pt, ok := s.lookup.Parent(s.sampleTree(j).Parent(m))
		if !ok {
			continue
		}
		ph, err := decodeSample(pt.At(j), j)
		if err != nil {
			return nil, err
		}
		if ph.EndState() == parentState {
			bh.conditioned = append(bh.conditioned, h)
		}
	}
	return bh, nil
}

func decodeSample(v string, j int) (simmap.BranchHistory, error) {
	h, err := simmap.Decode(v)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeDecode, err, "sample %d", j)
	}
	return h, nil
}

// summarizePoint handles branches of zero length: one window holding each
// history's end state.
func summarizePoint(histories []simmap.BranchHistory) (BranchSummary, error) {
	c := NewStateCount()
	for _, h := range histories {
		c.Add(h.EndState(), 1)
	}
	if err := c.Normalize(len(histories)); err != nil {
		return BranchSummary{}, err
	}
	sel := Select(c)

	var hist, post simmap.Builder
	hist.Prepend(sel.MAPState(), 0)
	post.Prepend(percent(sel.Top[0].Prob), 0)
	return BranchSummary{History: hist.String(), Posteriors: post.String(), EndState: sel.MAPState()}, nil
}

// summarizeBranch walks a branch of length bl in windows of width dt. The
// first window prefers histories conditioned on the parent; later windows,
// in conditional mode, keep the histories that were in the previous
// window's MAP state at the previous window's end. An empty pool falls back
// to all histories. Sampled histories are rescaled to the summary branch
// length.
func summarizeBranch(bh *branchHistories, bl, dt float64, conditional bool) (BranchSummary, error) {
	windows := max(1, int(math.Ceil(bl/dt-1e-9)))
	var hist, post simmap.Builder
	prevState := ""
	prevEnd := 0.0

	for w := range windows {
		start := float64(w) * dt
		end := math.Min(start+dt, bl)
		if w == windows-1 {
			end = bl
		}

		pool := bh.all
		switch {
		case w == 0 && conditional && len(bh.conditioned) > 0:
			pool = bh.conditioned
		case w > 0 && conditional:
			var kept []simmap.BranchHistory
			for _, h := range bh.all {
				if stateAt(h, prevEnd, bl) == prevState {
					kept = append(kept, h)
				}
			}
			if len(kept) > 0 {
				pool = kept
			}
		}

		c := NewStateCount()
		for _, h := range pool {
			c.Add(stateAt(h, end, bl), 1)
		}
		if err := c.Normalize(len(pool)); err != nil {
			return BranchSummary{}, fmt.Errorf("window %d: %w", w+1, err)
		}
		sel := Select(c)

		hist.Prepend(sel.MAPState(), end-start)
		post.Prepend(percent(sel.Top[0].Prob), end-start)
		prevState = sel.MAPState()
		prevEnd = end
	}
	return BranchSummary{History: hist.String(), Posteriors: post.String(), EndState: prevState}, nil
}

// stateAt returns the state of h at time t on a branch of length bl,
// scaling h to bl.
func stateAt(h simmap.BranchHistory, t, bl float64) string {
	return h.StateAt(t * h.Duration() / bl)
}

func percent(p float64) string {
	return strconv.Itoa(int(math.Floor(100 * p)))
}
