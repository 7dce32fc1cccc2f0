package ancestral

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"math"

	apperr "github.com/matzehuels/ancsummary/pkg/errors"
	"github.com/matzehuels/ancsummary/pkg/simmap"
	"github.com/matzehuels/ancsummary/pkg/trace"
	"github.com/matzehuels/ancsummary/pkg/tree"
)

// TransitionKind classifies a [TransitionEvent].
type TransitionKind string

// Transition kinds.
const (
	NoChange     TransitionKind = "no_change"
	Anagenetic   TransitionKind = "anagenetic"
	Cladogenetic TransitionKind = "cladogenetic"
)

// TransitionEvent is one row of the transition table. Undefined times are
// NaN and undefined node indices are [tree.NoParent]; both are written as NA.
type TransitionEvent struct {
	Iteration      string         `json:"iteration"`
	Node           int            `json:"node_index"`
	BranchStart    float64        `json:"branch_start_time"`
	BranchEnd      float64        `json:"branch_end_time"`
	StartState     string         `json:"start_state"`
	EndState       string         `json:"end_state"`
	TransitionTime float64        `json:"transition_time"`
	Kind           TransitionKind `json:"transition_type"`
	Parent         int            `json:"parent_index"`
	Child1         int            `json:"child1_index"`
	Child2         int            `json:"child2_index"`
}

// TransitionHeader is the header row of the transition table.
var TransitionHeader = []string{
	"iteration", "node_index", "branch_start_time", "branch_end_time",
	"start_state", "end_state", "transition_time", "transition_type",
	"parent_index", "child1_index", "child2_index",
}

// Transitions lists the state changes in every post-burn-in sample's
// character histories. Each sampled node contributes a no_change row when
// its history is a single state, one anagenetic row per change along the
// branch otherwise, and one cladogenetic row per child whose history starts
// in a different state than this node ends in.
//
// Transition times of anagenetic changes are measured from the start of the
// branch; cladogenetic changes are timed at the node's age.
func (s *Summarizer) Transitions(ctx context.Context) ([]TransitionEvent, error) {
	iterations, ok := s.store.Trace(trace.IterationLabel)
	if !ok {
		return nil, apperr.New(apperr.ErrCodeMissingTrace, "transition export requires an %q trace", trace.IterationLabel)
	}
	if err := s.requireEndTraces(); err != nil {
		return nil, err
	}

	var events []TransitionEvent
	total := s.store.NumPostBurnin()
	done := 0
	for j := range s.store.Samples() {
		if err := s.visit(ctx, done, total); err != nil {
			return nil, err
		}
		t := s.sampleTree(j)
		histories, err := s.decodeAll(t, j)
		if err != nil {
			return nil, err
		}
		for _, i := range t.PreOrder() {
			h := histories[i]
			if h == nil {
				continue
			}
			base := TransitionEvent{
				Iteration:      iterations.At(j),
				Node:           i,
				BranchStart:    math.NaN(),
				BranchEnd:      t.Age(i),
				StartState:     h.StartState(),
				EndState:       h.EndState(),
				TransitionTime: math.NaN(),
				Parent:         t.Parent(i),
				Child1:         tree.NoParent,
				Child2:         tree.NoParent,
			}
			if p := t.Parent(i); p != tree.NoParent {
				base.BranchStart = t.Age(p)
			}
			if ch := t.Children(i); len(ch) == 2 {
				base.Child1, base.Child2 = ch[0], ch[1]
			}

			if h.Changes() == 0 {
				e := base
				e.Kind = NoChange
				events = append(events, e)
			} else {
				elapsed := 0.0
				for k := 1; k < len(h); k++ {
					elapsed += h[k-1].Duration
					if h[k].State == h[k-1].State {
						continue
					}
					e := base
					e.Kind = Anagenetic
					e.StartState = h[k-1].State
					e.EndState = h[k].State
					e.TransitionTime = elapsed
					events = append(events, e)
				}
			}

			for _, c := range t.Children(i) {
				ch := histories[c]
				if ch == nil || ch.StartState() == h.EndState() {
					continue
				}
				e := base
				e.Kind = Cladogenetic
				e.StartState = h.EndState()
				e.EndState = ch.StartState()
				e.TransitionTime = t.Age(i)
				events = append(events, e)
			}
		}
		done++
	}
	if err := s.visit(ctx, total, total); err != nil {
		return nil, err
	}
	return events, nil
}

// decodeAll decodes the history of every node of t in sample j. Nodes
// without a trace are left nil.
func (s *Summarizer) decodeAll(t *tree.Tree, j int) ([]simmap.BranchHistory, error) {
	out := make([]simmap.BranchHistory, t.NumNodes())
	for i := range out {
		tr, ok := s.lookup.End(i)
		if !ok {
			continue
		}
		h, err := decodeSample(tr.At(j), j)
		if err != nil {
			return nil, nodeErr(err, i)
		}
		out[i] = h
	}
	return out, nil
}

// WriteTransitions writes events as a tab-delimited table with a header row.
// Node indices are written one-based, like trace labels.
func WriteTransitions(w io.Writer, events []TransitionEvent) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(TransitionHeader); err != nil {
		return err
	}
	for _, e := range events {
		row := []string{
			e.Iteration,
			formatIndex(e.Node),
			formatTime(e.BranchStart),
			formatTime(e.BranchEnd),
			e.StartState,
			e.EndState,
			formatTime(e.TransitionTime),
			string(e.Kind),
			formatIndex(e.Parent),
			formatIndex(e.Child1),
			formatIndex(e.Child2),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalJSON writes undefined times and node indices as null. Indices are
// zero-based node indices, unlike the one-based labels of the table.
func (e TransitionEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Iteration      string         `json:"iteration"`
		Node           *int           `json:"node_index"`
		BranchStart    *float64       `json:"branch_start_time"`
		BranchEnd      *float64       `json:"branch_end_time"`
		StartState     string         `json:"start_state"`
		EndState       string         `json:"end_state"`
		TransitionTime *float64       `json:"transition_time"`
		Kind           TransitionKind `json:"transition_type"`
		Parent         *int           `json:"parent_index"`
		Child1         *int           `json:"child1_index"`
		Child2         *int           `json:"child2_index"`
	}{
		Iteration:      e.Iteration,
		Node:           optIndex(e.Node),
		BranchStart:    optTime(e.BranchStart),
		BranchEnd:      optTime(e.BranchEnd),
		StartState:     e.StartState,
		EndState:       e.EndState,
		TransitionTime: optTime(e.TransitionTime),
		Kind:           e.Kind,
		Parent:         optIndex(e.Parent),
		Child1:         optIndex(e.Child1),
		Child2:         optIndex(e.Child2),
	})
}

func optIndex(i int) *int {
	if i == tree.NoParent {
		return nil
	}
	return &i
}

func optTime(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func formatIndex(i int) string {
	if i == tree.NoParent {
		return NA
	}
	return tree.Label(i)
}

func formatTime(v float64) string {
	if math.IsNaN(v) {
		return NA
	}
	return tree.FormatFloat(v)
}
